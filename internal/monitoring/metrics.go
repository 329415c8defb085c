package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
//
// 所有方法对 nil 接收者安全，未启用监控时可直接传 nil。
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 跟踪邮件指标
	EmailsCreated prometheus.Counter
	StatusChanges *prometheus.CounterVec
	FollowUpsSent prometheus.Counter
	DraftFailures prometheus.Counter
	TrackedEmails *prometheus.GaugeVec
	SweepsTotal   *prometheus.CounterVec
	SweepDuration prometheus.Histogram
	Notifications *prometheus.CounterVec

	// 错误指标
	PanicsTotal prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics 在指定注册表上创建监控指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentum_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "momentum_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		EmailsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "momentum_emails_created_total",
				Help: "Total number of tracked emails created",
			},
		),

		StatusChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentum_status_changes_total",
				Help: "Total number of explicit status changes by target status",
			},
			[]string{"status"},
		),

		FollowUpsSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "momentum_follow_ups_sent_total",
				Help: "Total number of emails moved to FOLLOW_UP_SENT by the sweep",
			},
		),

		DraftFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "momentum_draft_failures_total",
				Help: "Total number of follow-up drafts replaced by the placeholder",
			},
		),

		TrackedEmails: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "momentum_tracked_emails",
				Help: "Number of tracked emails by owner and status",
			},
			[]string{"owner", "status"},
		),

		SweepsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentum_sweeps_total",
				Help: "Total number of scheduled sweeps by result",
			},
			[]string{"result"},
		),

		SweepDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "momentum_sweep_duration_seconds",
				Help:    "Scheduled sweep duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentum_notifications_total",
				Help: "Total number of follow-up notification mails by result",
			},
			[]string{"result"},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "momentum_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		gatherer: gatherer,
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordEmailCreated 记录新建跟踪邮件
func (m *Metrics) RecordEmailCreated() {
	if m == nil {
		return
	}
	m.EmailsCreated.Inc()
}

// RecordStatusChange 记录显式状态变更
func (m *Metrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.StatusChanges.WithLabelValues(status).Inc()
}

// RecordSweep 记录一次清扫
func (m *Metrics) RecordSweep(result string, transitioned, draftFailures int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SweepsTotal.WithLabelValues(result).Inc()
	m.SweepDuration.Observe(duration.Seconds())
	m.FollowUpsSent.Add(float64(transitioned))
	m.DraftFailures.Add(float64(draftFailures))
}

// RecordNotification 记录通知邮件发送结果
func (m *Metrics) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(result).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	if m == nil {
		return
	}
	m.PanicsTotal.Inc()
}

// UpdateTrackedEmails 更新某个所有者各状态的邮件数
func (m *Metrics) UpdateTrackedEmails(owner string, counts map[string]int) {
	if m == nil {
		return
	}
	for status, count := range counts {
		m.TrackedEmails.WithLabelValues(owner, status).Set(float64(count))
	}
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
