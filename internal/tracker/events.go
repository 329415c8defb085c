package tracker

import (
	"time"

	"momentummail/backend/internal/domain"
)

// EventType 状态提交后发布的事件类型
type EventType string

const (
	EventEmailCreated  EventType = "email_created"
	EventStatusChanged EventType = "status_changed"
	EventFollowUpsSent EventType = "follow_ups_sent"
)

// Event 一次成功提交的变更，Emails 为变更后记录的副本
type Event struct {
	Type   EventType             `json:"type"`
	Owner  string                `json:"owner"`
	Emails []domain.TrackedEmail `json:"emails"`
	At     time.Time             `json:"at"`
}

// Publisher 接收已提交的变更事件，实现不得阻塞调用方
type Publisher interface {
	Publish(event Event)
}

// Publishers 将事件依次转发给多个 Publisher
type Publishers []Publisher

// Publish 实现 Publisher
func (ps Publishers) Publish(event Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(event)
		}
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
