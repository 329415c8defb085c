package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"momentummail/backend/internal/domain"
	"momentummail/backend/internal/draft"
	"momentummail/backend/internal/monitoring"
	"momentummail/backend/internal/storage"
)

// Config 跟踪器的调度参数
type Config struct {
	SweepInterval    time.Duration // 两次清扫之间的间隔
	FirstSweepDelay  time.Duration // 首次活动后到第一次清扫的延迟
	DraftTimeout     time.Duration // 单次草稿生成的最长等待
	DraftConcurrency int           // 同时进行的草稿生成数
}

// DefaultConfig 返回默认调度参数
func DefaultConfig() Config {
	return Config{
		SweepInterval:    time.Minute,
		FirstSweepDelay:  5 * time.Second,
		DraftTimeout:     20 * time.Second,
		DraftConcurrency: 4,
	}
}

// SweepResult 一次清扫的结果
type SweepResult struct {
	Transitioned  int       // 转为 FOLLOW_UP_SENT 的记录数
	DraftFailures int       // 使用占位内容的记录数
	NextSweepAt   time.Time // 已持久化的下一次清扫时间
}

// Tracker 单个所有者的跟踪邮件状态机
//
// 状态在首次访问时从仓库加载；create、setStatus 与清扫提交串行执行，
// 每次变更先写入仓库成功后才替换内存中的状态。
type Tracker struct {
	owner     string
	cfg       Config
	repo      storage.StateRepository
	generator draft.Generator
	publisher Publisher
	metrics   *monitoring.Metrics
	log       *zap.Logger
	now       func() time.Time

	mu     sync.RWMutex // 保护 state 与 loaded
	state  *domain.TrackerState
	loaded bool

	sweepMu sync.Mutex // 同一时刻只有一次清扫
	alarm   *alarm
}

// Option 跟踪器可选参数
type Option func(*Tracker)

// WithLogger 设置日志记录器
func WithLogger(log *zap.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithPublisher 设置事件发布器
func WithPublisher(p Publisher) Option {
	return func(t *Tracker) {
		if p != nil {
			t.publisher = p
		}
	}
}

// WithMetrics 设置监控指标
func WithMetrics(m *monitoring.Metrics) Option {
	return func(t *Tracker) {
		t.metrics = m
	}
}

// New 创建跟踪器，不会立即访问仓库
func New(owner string, repo storage.StateRepository, generator draft.Generator, cfg Config, opts ...Option) *Tracker {
	defaults := DefaultConfig()
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	if cfg.FirstSweepDelay < 0 {
		cfg.FirstSweepDelay = defaults.FirstSweepDelay
	}
	if cfg.DraftTimeout <= 0 {
		cfg.DraftTimeout = defaults.DraftTimeout
	}
	if cfg.DraftConcurrency < 1 {
		cfg.DraftConcurrency = defaults.DraftConcurrency
	}
	if generator == nil {
		generator = draft.Unconfigured{}
	}

	t := &Tracker{
		owner:     owner,
		cfg:       cfg,
		repo:      repo,
		generator: generator,
		publisher: noopPublisher{},
		log:       zap.NewNop(),
		now:       time.Now,
		alarm:     newAlarm(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(zap.String("owner", owner))
	return t
}

// Owner 返回所有者标识
func (t *Tracker) Owner() string {
	return t.owner
}

// List 返回当前全部记录的副本，按创建顺序
func (t *Tracker) List(ctx context.Context) ([]domain.TrackedEmail, error) {
	if err := t.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	emails := make([]domain.TrackedEmail, len(t.state.Emails))
	for i, email := range t.state.Emails {
		emails[i] = email.Clone()
	}
	return emails, nil
}

// Create 校验输入并追加一条 WAITING 记录
func (t *Tracker) Create(ctx context.Context, input domain.CreateEmailInput) (domain.TrackedEmail, error) {
	email, err := domain.NewTrackedEmail(input)
	if err != nil {
		return domain.TrackedEmail{}, err
	}
	if err := t.ensureLoaded(ctx); err != nil {
		return domain.TrackedEmail{}, err
	}

	t.mu.Lock()
	next := t.state.Clone()
	for next.IndexOf(email.ID) >= 0 {
		email.ID = uuid.NewString()
	}
	next.Emails = append(next.Emails, email)
	next.UpdatedAt = t.now().UTC()
	err = t.commitLocked(ctx, next)
	t.mu.Unlock()
	if err != nil {
		return domain.TrackedEmail{}, err
	}

	t.log.Info("tracked email created",
		zap.String("email_id", email.ID),
		zap.Int("follow_up_interval", email.FollowUpInterval),
	)
	t.metrics.RecordEmailCreated()
	t.publish(EventEmailCreated, []domain.TrackedEmail{email.Clone()})
	return email.Clone(), nil
}

// SetStatus 将指定记录设置为新状态，followUpContent 保持不变
func (t *Tracker) SetStatus(ctx context.Context, id string, status domain.EmailStatus) (domain.TrackedEmail, error) {
	status, err := domain.ParseEmailStatus(string(status))
	if err != nil {
		return domain.TrackedEmail{}, err
	}
	if err := t.ensureLoaded(ctx); err != nil {
		return domain.TrackedEmail{}, err
	}

	t.mu.Lock()
	idx := t.state.IndexOf(id)
	if idx < 0 {
		t.mu.Unlock()
		return domain.TrackedEmail{}, domain.ErrEmailNotFound
	}
	next := t.state.Clone()
	previous := next.Emails[idx].Status
	next.Emails[idx].Status = status
	next.UpdatedAt = t.now().UTC()
	updated := next.Emails[idx].Clone()
	err = t.commitLocked(ctx, next)
	t.mu.Unlock()
	if err != nil {
		return domain.TrackedEmail{}, err
	}

	t.log.Info("email status changed",
		zap.String("email_id", id),
		zap.String("from", string(previous)),
		zap.String("status", string(status)),
	)
	t.metrics.RecordStatusChange(string(status))
	t.publish(EventStatusChanged, []domain.TrackedEmail{updated.Clone()})
	return updated, nil
}

// NextSweepAt 返回待触发的清扫时间
func (t *Tracker) NextSweepAt() (time.Time, bool) {
	return t.alarm.pending()
}

// Run 处理定时唤醒直到 ctx 结束
func (t *Tracker) Run(ctx context.Context) {
	defer t.alarm.stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.alarm.wake:
			t.alarm.consume()
			t.runScheduledSweep(ctx)
		}
	}
}

// runScheduledSweep 执行一次清扫，无论结果如何都重新安排下一次
func (t *Tracker) runScheduledSweep(ctx context.Context) {
	result, err := t.sweep(ctx)
	if ctx.Err() != nil {
		return
	}

	next := result.NextSweepAt
	if err != nil {
		t.log.Error("scheduled sweep failed", zap.Error(err))
		next = t.now().Add(t.cfg.SweepInterval)
	}
	t.alarm.arm(next, t.now())
}

// sweep 将所有到期的 WAITING 记录转为 FOLLOW_UP_SENT 并一次性提交
func (t *Tracker) sweep(ctx context.Context) (SweepResult, error) {
	t.sweepMu.Lock()
	defer t.sweepMu.Unlock()

	started := time.Now()
	if err := t.ensureLoaded(ctx); err != nil {
		t.metrics.RecordSweep("error", 0, 0, time.Since(started))
		return SweepResult{}, err
	}

	now := t.now()
	t.mu.RLock()
	var due []domain.TrackedEmail
	for _, email := range t.state.Emails {
		if domain.IsDue(now, email) {
			due = append(due, email.Clone())
		}
	}
	t.mu.RUnlock()

	// 草稿生成期间不持有锁
	drafts, failures := t.generateDrafts(ctx, due)
	if err := ctx.Err(); err != nil {
		return SweepResult{}, err
	}

	t.mu.Lock()
	next := t.state.Clone()
	var changed []domain.TrackedEmail
	for i := range next.Emails {
		email := &next.Emails[i]
		content, ok := drafts[email.ID]
		if !ok || !domain.IsDue(now, *email) {
			continue
		}
		email.Status = domain.StatusFollowUpSent
		email.FollowUpContent = &content
		changed = append(changed, email.Clone())
	}
	nextSweepAt := t.now().Add(t.cfg.SweepInterval).UTC()
	var err error
	// 无状态转换且已有持久化的清扫时间时不重写状态
	if len(changed) > 0 || t.state.NextSweepAt == nil {
		next.NextSweepAt = &nextSweepAt
		if len(changed) > 0 {
			next.UpdatedAt = now.UTC()
		}
		err = t.commitLocked(ctx, next)
	}
	t.mu.Unlock()

	result := SweepResult{
		Transitioned:  len(changed),
		DraftFailures: failures,
		NextSweepAt:   nextSweepAt,
	}
	if err != nil {
		t.metrics.RecordSweep("error", 0, 0, time.Since(started))
		return SweepResult{}, err
	}

	t.metrics.RecordSweep("ok", result.Transitioned, result.DraftFailures, time.Since(started))
	if len(changed) > 0 {
		t.log.Info("follow-ups recorded",
			zap.Int("count", len(changed)),
			zap.Int("draft_failures", failures),
			zap.Duration("duration", time.Since(started)),
		)
		t.publish(EventFollowUpsSent, changed)
	}
	return result, nil
}

// generateDrafts 并发生成草稿，失败或超时的记录使用占位内容
func (t *Tracker) generateDrafts(ctx context.Context, due []domain.TrackedEmail) (map[string]string, int) {
	drafts := make(map[string]string, len(due))
	if len(due) == 0 {
		return drafts, 0
	}

	contents := make([]string, len(due))
	failed := make([]bool, len(due))

	var g errgroup.Group
	g.SetLimit(t.cfg.DraftConcurrency)
	for i, email := range due {
		g.Go(func() error {
			text, err := t.generateOne(ctx, email)
			if err != nil {
				t.log.Warn("follow-up draft generation failed, using placeholder",
					zap.String("email_id", email.ID),
					zap.Error(err),
				)
				text = domain.FollowUpPlaceholder
				failed[i] = true
			}
			contents[i] = text
			return nil
		})
	}
	_ = g.Wait()

	failures := 0
	for i, email := range due {
		drafts[email.ID] = contents[i]
		if failed[i] {
			failures++
		}
	}
	return drafts, failures
}

// generateOne 在 DraftTimeout 内等待生成结果，不依赖生成器自身遵守 ctx
func (t *Tracker) generateOne(ctx context.Context, email domain.TrackedEmail) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.DraftTimeout)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: generator panic: %v", draft.ErrGeneration, r)}
			}
		}()
		text, err := t.generator.Generate(ctx, email)
		done <- outcome{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", draft.ErrGeneration, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return "", out.err
		}
		if out.text == "" {
			return "", fmt.Errorf("%w: empty draft", draft.ErrGeneration)
		}
		return out.text, nil
	}
}

// ensureLoaded 首次访问时加载状态并安排第一次清扫
func (t *Tracker) ensureLoaded(ctx context.Context) error {
	t.mu.RLock()
	loaded := t.loaded
	t.mu.RUnlock()
	if loaded {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loaded {
		return nil
	}

	state, err := t.repo.LoadState(ctx, t.owner)
	switch {
	case errors.Is(err, storage.ErrStateNotFound):
		state = domain.NewTrackerState()
	case err != nil:
		return fmt.Errorf("load tracker state: %w", err)
	}
	t.state = state
	t.loaded = true
	t.updateGaugeLocked()

	now := t.now()
	at := now.Add(t.cfg.FirstSweepDelay)
	if state.NextSweepAt != nil {
		at = *state.NextSweepAt
	}
	if t.alarm.arm(at, now) {
		t.log.Debug("first sweep scheduled", zap.Time("at", at))
	}
	return nil
}

// commitLocked 持久化 next 并替换内存状态，调用方需持有写锁
func (t *Tracker) commitLocked(ctx context.Context, next *domain.TrackerState) error {
	if err := t.repo.SaveState(ctx, t.owner, next); err != nil {
		return fmt.Errorf("persist tracker state: %w", err)
	}
	t.state = next
	t.updateGaugeLocked()
	return nil
}

func (t *Tracker) updateGaugeLocked() {
	counts := t.state.CountByStatus()
	t.metrics.UpdateTrackedEmails(t.owner, map[string]int{
		string(domain.StatusWaiting):      counts[domain.StatusWaiting],
		string(domain.StatusReplied):      counts[domain.StatusReplied],
		string(domain.StatusFollowUpSent): counts[domain.StatusFollowUpSent],
	})
}

func (t *Tracker) publish(eventType EventType, emails []domain.TrackedEmail) {
	t.publisher.Publish(Event{
		Type:   eventType,
		Owner:  t.owner,
		Emails: emails,
		At:     t.now().UTC(),
	})
}
