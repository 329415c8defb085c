package notify

import (
	"crypto/tls"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Sender 发送纯文本邮件
type Sender interface {
	Send(to []string, subject, body string) error
}

// SMTPConfig SMTP 发信配置
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	InsecureSkipVerify bool
	RetryCount         int
	RetryBackoff       time.Duration
}

type smtpSender struct {
	dialer       *gomail.Dialer
	from         string
	retryCount   int
	retryBackoff time.Duration
	log          *zap.Logger
}

// NewSMTPSender 创建带重试的 gomail 发信器
func NewSMTPSender(cfg SMTPConfig, log *zap.Logger) Sender {
	if log == nil {
		log = zap.NewNop()
	}
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.InsecureSkipVerify {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	from := cfg.From
	if from == "" {
		from = "momentummail@localhost"
	}
	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	return &smtpSender{
		dialer:       d,
		from:         from,
		retryCount:   retryCount,
		retryBackoff: backoff,
		log:          log,
	}
}

func (s *smtpSender) Send(to []string, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.from, "MomentumMail")
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	var lastErr error
	backoff := s.retryBackoff
	for attempt := 0; attempt <= s.retryCount; attempt++ {
		err := s.dialer.DialAndSend(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < s.retryCount {
			s.log.Warn("notification send failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			time.Sleep(backoff)
			backoff = time.Duration(math.Min(float64(backoff)*2, float64(30*time.Second)))
		}
	}
	return fmt.Errorf("send notification after %d attempts: %w", s.retryCount+1, lastErr)
}
