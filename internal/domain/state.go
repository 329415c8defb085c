package domain

import "time"

// TrackerState 是单个所有者的全部跟踪数据，按创建顺序保存。
type TrackerState struct {
	Emails      []TrackedEmail `json:"emails"`
	NextSweepAt *time.Time     `json:"nextSweepAt,omitempty"` // 持久化的下一次清扫时间
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// NewTrackerState 创建空状态。
func NewTrackerState() *TrackerState {
	return &TrackerState{Emails: make([]TrackedEmail, 0)}
}

// Clone 返回状态的深拷贝。
func (s *TrackerState) Clone() *TrackerState {
	if s == nil {
		return NewTrackerState()
	}
	out := &TrackerState{
		Emails:    make([]TrackedEmail, len(s.Emails)),
		UpdatedAt: s.UpdatedAt,
	}
	for i, email := range s.Emails {
		out.Emails[i] = email.Clone()
	}
	if s.NextSweepAt != nil {
		next := *s.NextSweepAt
		out.NextSweepAt = &next
	}
	return out
}

// IndexOf 按 ID 查找记录位置，不存在返回 -1。
func (s *TrackerState) IndexOf(id string) int {
	for i := range s.Emails {
		if s.Emails[i].ID == id {
			return i
		}
	}
	return -1
}

// CountByStatus 统计各状态的记录数量。
func (s *TrackerState) CountByStatus() map[EmailStatus]int {
	counts := map[EmailStatus]int{
		StatusWaiting:      0,
		StatusReplied:      0,
		StatusFollowUpSent: 0,
	}
	for _, email := range s.Emails {
		counts[email.Status]++
	}
	return counts
}
