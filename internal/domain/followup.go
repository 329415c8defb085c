package domain

import "time"

// FollowUpPlaceholder 草稿生成失败时写入的固定内容。
const FollowUpPlaceholder = "Error: Could not generate AI draft."

// FollowUpDueAt 返回记录开始需要跟进的时间点。
func FollowUpDueAt(email TrackedEmail) time.Time {
	return email.SentAt.UTC().AddDate(0, 0, email.FollowUpInterval)
}

// IsDue 判断记录在 now 时刻是否需要跟进：仅 WAITING 且已达到间隔天数。
//
// 定时清扫的筛选与提交前复核都通过该函数判断，避免规则漂移。
func IsDue(now time.Time, email TrackedEmail) bool {
	if email.Status != StatusWaiting {
		return false
	}
	return !now.Before(FollowUpDueAt(email))
}
