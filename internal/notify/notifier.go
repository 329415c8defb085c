package notify

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"momentummail/backend/internal/domain"
	"momentummail/backend/internal/monitoring"
	"momentummail/backend/internal/pool"
	"momentummail/backend/internal/tracker"
)

// Notifier 把清扫生成的跟进草稿通过邮件发给所有者
//
// 发送在协程池中异步进行，失败只记录日志，不影响跟踪状态。
type Notifier struct {
	sender  Sender
	pool    *pool.WorkerPool
	to      []string
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewNotifier 创建通知器
func NewNotifier(sender Sender, workers *pool.WorkerPool, to []string, metrics *monitoring.Metrics, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{sender: sender, pool: workers, to: to, metrics: metrics, log: log}
}

// Publish 实现 tracker.Publisher，只处理 follow_ups_sent 事件
func (n *Notifier) Publish(event tracker.Event) {
	if event.Type != tracker.EventFollowUpsSent || len(n.to) == 0 {
		return
	}

	for _, email := range event.Emails {
		email := email.Clone()
		ok := n.pool.TrySubmit(func() {
			subject, body := composeNotification(email)
			if err := n.sender.Send(n.to, subject, body); err != nil {
				n.metrics.RecordNotification("error")
				n.log.Error("failed to send follow-up notification",
					zap.String("owner", event.Owner),
					zap.String("email_id", email.ID),
					zap.Error(err),
				)
				return
			}
			n.metrics.RecordNotification("sent")
			n.log.Info("follow-up notification sent",
				zap.String("owner", event.Owner),
				zap.String("email_id", email.ID),
			)
		})
		if !ok {
			n.metrics.RecordNotification("dropped")
			n.log.Warn("notification queue full, dropping", zap.String("email_id", email.ID))
		}
	}
}

func composeNotification(email domain.TrackedEmail) (string, string) {
	subject := fmt.Sprintf("Follow up: %s", email.Subject)

	var b strings.Builder
	fmt.Fprintf(&b, "Your email to %s (\"%s\", sent %s) has not been answered.\n\n",
		email.Recipient, email.Subject, email.SentAt.UTC().Format("Mon Jan 02 2006"))
	b.WriteString("Suggested follow-up:\n\n")
	if email.FollowUpContent != nil {
		b.WriteString(*email.FollowUpContent)
	} else {
		b.WriteString(domain.FollowUpPlaceholder)
	}
	b.WriteString("\n")
	return subject, b.String()
}
