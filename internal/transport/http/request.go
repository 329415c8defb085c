package httptransport

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"momentummail/backend/internal/domain"
)

// createEmailRequest POST /api/emails 请求体
type createEmailRequest struct {
	Recipient        string       `json:"recipient" binding:"required,email"`
	Subject          string       `json:"subject" binding:"required"`
	SentAt           string       `json:"sentAt" binding:"required"`
	FollowUpInterval IntervalDays `json:"followUpInterval"`
}

func (r createEmailRequest) toInput() domain.CreateEmailInput {
	return domain.CreateEmailInput{
		Recipient:        r.Recipient,
		Subject:          r.Subject,
		SentAt:           r.SentAt,
		FollowUpInterval: int(r.FollowUpInterval),
	}
}

// updateStatusRequest PUT /api/emails/:id/status 请求体
type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// IntervalDays 接受 JSON 数字或数字字符串（表单输入常以字符串提交）
type IntervalDays int

// UnmarshalJSON 实现 json.Unmarshaler
func (d *IntervalDays) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		return nil
	}

	text := string(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsInf(value, 0) || math.IsNaN(value) || value != math.Trunc(value) {
		return &domain.ValidationError{
			Field:  "followUpInterval",
			Reason: "must be a whole number of days",
		}
	}
	if value > math.MaxInt32 || value < math.MinInt32 {
		return &domain.ValidationError{
			Field:  "followUpInterval",
			Reason: "is out of range",
		}
	}
	*d = IntervalDays(int(value))
	return nil
}
