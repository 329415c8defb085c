package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EmailStatus 表示一封已发送邮件的跟进状态。
type EmailStatus string

const (
	StatusWaiting      EmailStatus = "WAITING"        // 已发送，尚未回复
	StatusReplied      EmailStatus = "REPLIED"        // 对方已回复
	StatusFollowUpSent EmailStatus = "FOLLOW_UP_SENT" // 已到期并记录跟进
)

// Valid 判断状态值是否合法。
func (s EmailStatus) Valid() bool {
	switch s {
	case StatusWaiting, StatusReplied, StatusFollowUpSent:
		return true
	}
	return false
}

// ParseEmailStatus 将字符串解析为状态枚举，非法值返回 ErrInvalidStatus。
func ParseEmailStatus(value string) (EmailStatus, error) {
	status := EmailStatus(strings.TrimSpace(value))
	if !status.Valid() {
		return "", &ValidationError{
			Field:  "status",
			Reason: "must be one of WAITING, REPLIED, FOLLOW_UP_SENT",
			Err:    ErrInvalidStatus,
		}
	}
	return status, nil
}

// TrackedEmail 表示一封等待回复的已发送邮件。
type TrackedEmail struct {
	ID               string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Recipient        string      `json:"recipient" gorm:"type:varchar(255);not null"`
	Subject          string      `json:"subject" gorm:"type:varchar(500);not null"`
	SentAt           time.Time   `json:"sentAt" gorm:"not null"`
	FollowUpInterval int         `json:"followUpInterval" gorm:"not null"` // 天数
	Status           EmailStatus `json:"status" gorm:"type:varchar(20);index;not null"`
	FollowUpContent  *string     `json:"followUpContent,omitempty" gorm:"type:text"`
}

// CreateEmailInput 定义创建跟踪邮件所需的输入，时间戳保持 ISO-8601 字符串形式。
type CreateEmailInput struct {
	Recipient        string
	Subject          string
	SentAt           string
	FollowUpInterval int
}

// NewTrackedEmail 校验输入并构造一条新的 WAITING 记录。
func NewTrackedEmail(input CreateEmailInput) (TrackedEmail, error) {
	recipient := strings.TrimSpace(input.Recipient)
	if recipient == "" {
		return TrackedEmail{}, newValidationError("recipient", "must not be empty")
	}
	subject := strings.TrimSpace(input.Subject)
	if subject == "" {
		return TrackedEmail{}, newValidationError("subject", "must not be empty")
	}
	if input.FollowUpInterval < 1 {
		return TrackedEmail{}, newValidationError("followUpInterval", "must be at least 1 day")
	}
	sentAt, err := ParseTimestamp(input.SentAt)
	if err != nil {
		return TrackedEmail{}, newValidationError("sentAt", "must be an ISO-8601 timestamp")
	}

	return TrackedEmail{
		ID:               uuid.NewString(),
		Recipient:        recipient,
		Subject:          subject,
		SentAt:           sentAt,
		FollowUpInterval: input.FollowUpInterval,
		Status:           StatusWaiting,
	}, nil
}

// timestampLayouts 按优先级排列的可接受时间格式。
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp 解析 ISO-8601 时间戳，无时区信息时按 UTC 处理。
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Clone 返回记录的深拷贝，调用方拿到的永远不是内部引用。
func (e TrackedEmail) Clone() TrackedEmail {
	if e.FollowUpContent != nil {
		content := *e.FollowUpContent
		e.FollowUpContent = &content
	}
	return e
}
