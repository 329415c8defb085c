package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"momentummail/backend/internal/domain"
	"momentummail/backend/internal/draft"
	"momentummail/backend/internal/storage/memory"
)

const testOwner = "default-user"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{now: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, email domain.TrackedEmail) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// 首次清扫延迟设为一小时，测试中由用例显式调用 sweep
func testConfig() Config {
	return Config{
		SweepInterval:    time.Hour,
		FirstSweepDelay:  time.Hour,
		DraftTimeout:     time.Second,
		DraftConcurrency: 4,
	}
}

func newTestTracker(t *testing.T, gen draft.Generator, opts ...Option) (*Tracker, *memory.Store, *fakeClock) {
	t.Helper()
	store := memory.NewStore()
	clock := newFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	tr := New(testOwner, store, gen, testConfig(), opts...)
	t.Cleanup(tr.alarm.stop)
	return tr, store, clock
}

func proposalInput() domain.CreateEmailInput {
	return domain.CreateEmailInput{
		Recipient:        "a@x.com",
		Subject:          "Proposal",
		SentAt:           "2024-01-01",
		FollowUpInterval: 3,
	}
}

func TestTracker_Create(t *testing.T) {
	tr, store, _ := newTestTracker(t, nil)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, email.Status)
	assert.NotEmpty(t, email.ID)
	assert.Nil(t, email.FollowUpContent)
	assert.Equal(t, 1, store.Saves())

	persisted, err := store.LoadState(ctx, testOwner)
	require.NoError(t, err)
	require.Len(t, persisted.Emails, 1)
	assert.Equal(t, email.ID, persisted.Emails[0].ID)

	second, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	assert.NotEqual(t, email.ID, second.ID)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, email.ID, emails[0].ID)
	assert.Equal(t, second.ID, emails[1].ID)
}

func TestTracker_CreateValidation(t *testing.T) {
	tr, store, _ := newTestTracker(t, nil)
	ctx := context.Background()

	input := proposalInput()
	input.FollowUpInterval = 0
	_, err := tr.Create(ctx, input)
	assert.ErrorIs(t, err, domain.ErrValidation)

	input = proposalInput()
	input.SentAt = "yesterday"
	_, err = tr.Create(ctx, input)
	assert.ErrorIs(t, err, domain.ErrValidation)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, emails)
	assert.Equal(t, 0, store.Saves())
}

func TestTracker_ListReturnsCopies(t *testing.T) {
	tr, _, _ := newTestTracker(t, nil)
	ctx := context.Background()

	_, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	emails[0].Status = domain.StatusReplied
	emails[0].Subject = "mutated"

	again, err := tr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, again[0].Status)
	assert.Equal(t, "Proposal", again[0].Subject)
}

func TestTracker_SetStatus(t *testing.T) {
	tr, _, _ := newTestTracker(t, nil)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	updated, err := tr.SetStatus(ctx, email.ID, domain.StatusReplied)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReplied, updated.Status)

	// 任意状态都可以手动回到 WAITING
	updated, err = tr.SetStatus(ctx, email.ID, domain.StatusWaiting)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, updated.Status)

	// 手动设置 FOLLOW_UP_SENT 不写入内容
	updated, err = tr.SetStatus(ctx, email.ID, domain.StatusFollowUpSent)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFollowUpSent, updated.Status)
	assert.Nil(t, updated.FollowUpContent)

	// 重复设置相同状态被接受
	_, err = tr.SetStatus(ctx, email.ID, domain.StatusFollowUpSent)
	assert.NoError(t, err)
}

func TestTracker_SetStatusUnknownID(t *testing.T) {
	tr, store, _ := newTestTracker(t, nil)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	saves := store.Saves()

	_, err = tr.SetStatus(ctx, "missing", domain.StatusReplied)
	assert.ErrorIs(t, err, domain.ErrEmailNotFound)
	assert.Equal(t, saves, store.Saves())

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, email, emails[0])
}

func TestTracker_SetStatusInvalid(t *testing.T) {
	tr, _, _ := newTestTracker(t, nil)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	_, err = tr.SetStatus(ctx, email.ID, domain.EmailStatus("ARCHIVED"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestTracker_SetStatusTrimsPadding(t *testing.T) {
	tr, store, _ := newTestTracker(t, nil)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	saves := store.Saves()

	updated, err := tr.SetStatus(ctx, email.ID, domain.EmailStatus(" REPLIED "))
	require.NoError(t, err)
	assert.Equal(t, email.ID, updated.ID)
	assert.Equal(t, domain.StatusReplied, updated.Status)
	assert.Equal(t, saves+1, store.Saves())

	persisted, err := store.LoadState(ctx, testOwner)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReplied, persisted.Emails[0].Status)
}

func TestTracker_SaveFailureLeavesStateUnchanged(t *testing.T) {
	tr, store, _ := newTestTracker(t, nil)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	store.SetFailSave(errors.New("disk full"))

	_, err = tr.Create(ctx, proposalInput())
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrValidation)

	_, err = tr.SetStatus(ctx, email.ID, domain.StatusReplied)
	require.Error(t, err)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, domain.StatusWaiting, emails[0].Status)
}

func TestTracker_SweepWithFailingGenerator(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("", draft.ErrGeneration)

	tr, _, clock := newTestTracker(t, gen)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	result, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, 1, result.DraftFailures)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, email.ID, emails[0].ID)
	assert.Equal(t, domain.StatusFollowUpSent, emails[0].Status)
	require.NotNil(t, emails[0].FollowUpContent)
	assert.Equal(t, "Error: Could not generate AI draft.", *emails[0].FollowUpContent)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestTracker_SweepWithGeneratedDraft(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(e domain.TrackedEmail) bool {
		return e.Recipient == "a@x.com"
	})).Return("Just following up on my proposal.", nil)

	tr, store, clock := newTestTracker(t, gen)
	ctx := context.Background()

	_, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	result, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, 0, result.DraftFailures)

	persisted, err := store.LoadState(ctx, testOwner)
	require.NoError(t, err)
	require.NotNil(t, persisted.Emails[0].FollowUpContent)
	assert.Equal(t, "Just following up on my proposal.", *persisted.Emails[0].FollowUpContent)
	require.NotNil(t, persisted.NextSweepAt)
	assert.True(t, persisted.NextSweepAt.Equal(result.NextSweepAt))
}

func TestTracker_SweepOnlyTouchesDueWaiting(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("draft", nil)

	tr, _, clock := newTestTracker(t, gen)
	ctx := context.Background()

	due, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	later := proposalInput()
	later.SentAt = "2024-01-04"
	notDue, err := tr.Create(ctx, later)
	require.NoError(t, err)

	replied, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	_, err = tr.SetStatus(ctx, replied.ID, domain.StatusReplied)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	result, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	byID := map[string]domain.TrackedEmail{}
	for _, e := range emails {
		byID[e.ID] = e
	}
	assert.Equal(t, domain.StatusFollowUpSent, byID[due.ID].Status)
	assert.Equal(t, domain.StatusWaiting, byID[notDue.ID].Status)
	assert.Equal(t, domain.StatusReplied, byID[replied.ID].Status)
	assert.Nil(t, byID[replied.ID].FollowUpContent)
}

func TestTracker_SweepIsIdempotent(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("draft", nil)

	tr, _, clock := newTestTracker(t, gen)
	ctx := context.Background()

	_, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	first, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Transitioned)
	before, err := tr.List(ctx)
	require.NoError(t, err)

	second, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Transitioned)
	after, err := tr.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	gen.AssertNumberOfCalls(t, "Generate", 1)
}

func TestTracker_IdleSweepSkipsWrite(t *testing.T) {
	tr, store, clock := newTestTracker(t, nil)
	ctx := context.Background()

	_, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	saves := store.Saves()

	// 首次空闲清扫需要落盘下一次清扫时间
	first, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, first.Transitioned)
	assert.Equal(t, saves+1, store.Saves())

	persisted, err := store.LoadState(ctx, testOwner)
	require.NoError(t, err)
	require.NotNil(t, persisted.NextSweepAt)
	assert.True(t, persisted.NextSweepAt.Equal(first.NextSweepAt))

	clock.Set(time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC))
	second, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Transitioned)
	assert.True(t, second.NextSweepAt.Equal(clock.Now().Add(time.Hour)))
	assert.Equal(t, saves+1, store.Saves())
}

func TestTracker_RepliedBeforeSweepIsNotOverwritten(t *testing.T) {
	gen := &mockGenerator{}
	tr, _, clock := newTestTracker(t, gen)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	_, err = tr.SetStatus(ctx, email.ID, domain.StatusReplied)
	require.NoError(t, err)

	result, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Transitioned)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReplied, emails[0].Status)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestTracker_RepliedDuringDraftGeneration(t *testing.T) {
	var tr *Tracker
	var emailID string
	gen := draft.GeneratorFunc(func(ctx context.Context, e domain.TrackedEmail) (string, error) {
		// 草稿生成期间用户标记为已回复
		_, err := tr.SetStatus(ctx, emailID, domain.StatusReplied)
		return "draft", err
	})

	tr, _, clock := newTestTracker(t, gen)
	ctx := context.Background()

	email, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	emailID = email.ID

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	result, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Transitioned)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReplied, emails[0].Status)
	assert.Nil(t, emails[0].FollowUpContent)
}

func TestTracker_DraftTimeoutUsesPlaceholder(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })

	// 生成器忽略 ctx，一直阻塞
	gen := draft.GeneratorFunc(func(context.Context, domain.TrackedEmail) (string, error) {
		<-block
		return "too late", nil
	})

	store := memory.NewStore()
	clock := newFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := testConfig()
	cfg.DraftTimeout = 20 * time.Millisecond
	tr := New(testOwner, store, gen, cfg, WithClock(clock.Now))
	t.Cleanup(tr.alarm.stop)
	ctx := context.Background()

	_, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	start := time.Now()
	result, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1, result.DraftFailures)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFollowUpSent, emails[0].Status)
	assert.Equal(t, domain.FollowUpPlaceholder, *emails[0].FollowUpContent)
}

func TestTracker_SweepSaveFailure(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("draft", nil)

	tr, store, clock := newTestTracker(t, gen)
	ctx := context.Background()

	_, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	store.SetFailSave(errors.New("connection reset"))
	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	_, err = tr.sweep(ctx)
	require.Error(t, err)

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, emails[0].Status)
	assert.Nil(t, emails[0].FollowUpContent)

	// 恢复后下一次清扫完成转换
	store.SetFailSave(nil)
	result, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
}

func TestTracker_SweepFansOutDrafts(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	gen := draft.GeneratorFunc(func(_ context.Context, e domain.TrackedEmail) (string, error) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		return "draft for " + e.Subject, nil
	})

	tr, store, clock := newTestTracker(t, gen)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		input := proposalInput()
		input.Subject = fmt.Sprintf("Proposal %d", i)
		_, err := tr.Create(ctx, input)
		require.NoError(t, err)
	}
	saves := store.Saves()

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	result, err := tr.sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Transitioned)
	assert.LessOrEqual(t, peak, 4)

	// 整批只写一次
	assert.Equal(t, saves+1, store.Saves())

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	for _, e := range emails {
		assert.Equal(t, "draft for "+e.Subject, *e.FollowUpContent)
	}
}

func TestTracker_ConcurrentCreates(t *testing.T) {
	tr, store, _ := newTestTracker(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tr.Create(ctx, proposalInput())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	emails, err := tr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, emails, 50)

	seen := map[string]bool{}
	for _, e := range emails {
		assert.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}

	persisted, err := store.LoadState(ctx, testOwner)
	require.NoError(t, err)
	assert.Len(t, persisted.Emails, 50)
}

func TestTracker_PublishesEvents(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("draft", nil)
	pub := &recordingPublisher{}

	tr, _, clock := newTestTracker(t, gen, WithPublisher(pub))
	ctx := context.Background()

	first, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	second, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	_, err = tr.SetStatus(ctx, second.ID, domain.StatusReplied)
	require.NoError(t, err)

	clock.Set(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	_, err = tr.sweep(ctx)
	require.NoError(t, err)

	events := pub.Events()
	require.Len(t, events, 4)
	assert.Equal(t, EventEmailCreated, events[0].Type)
	assert.Equal(t, EventStatusChanged, events[2].Type)
	assert.Equal(t, EventFollowUpsSent, events[3].Type)
	require.Len(t, events[3].Emails, 1)
	assert.Equal(t, first.ID, events[3].Emails[0].ID)
	assert.Equal(t, testOwner, events[3].Owner)
}

func TestTracker_FirstActivitySchedulesSweep(t *testing.T) {
	tr, _, clock := newTestTracker(t, nil)
	ctx := context.Background()

	_, pending := tr.NextSweepAt()
	assert.False(t, pending)

	_, err := tr.List(ctx)
	require.NoError(t, err)

	at, pending := tr.NextSweepAt()
	require.True(t, pending)
	assert.Equal(t, clock.Now().Add(time.Hour), at)

	// 再次活动不会重复安排
	_, err = tr.Create(ctx, proposalInput())
	require.NoError(t, err)
	again, _ := tr.NextSweepAt()
	assert.Equal(t, at, again)
}

func TestTracker_ResumesPersistedSchedule(t *testing.T) {
	store := memory.NewStore()
	next := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	state := domain.NewTrackerState()
	state.NextSweepAt = &next
	require.NoError(t, store.SaveState(context.Background(), testOwner, state))

	clock := newFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	tr := New(testOwner, store, nil, testConfig(), WithClock(clock.Now))
	t.Cleanup(tr.alarm.stop)

	_, err := tr.List(context.Background())
	require.NoError(t, err)

	at, pending := tr.NextSweepAt()
	require.True(t, pending)
	assert.True(t, next.Equal(at))
}

func TestTracker_RunSweepsAndReschedules(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("draft", nil)

	store := memory.NewStore()
	clock := newFakeClock(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC))
	cfg := testConfig()
	cfg.FirstSweepDelay = 10 * time.Millisecond
	tr := New(testOwner, store, gen, cfg, WithClock(clock.Now))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		tr.Run(ctx)
	}()

	_, err := tr.Create(ctx, proposalInput())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		emails, err := tr.List(ctx)
		return err == nil && emails[0].Status == domain.StatusFollowUpSent
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		at, pending := tr.NextSweepAt()
		return pending && at.Equal(clock.Now().Add(time.Hour))
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestTracker_LoadFailure(t *testing.T) {
	repo := &failingRepo{err: errors.New("database unavailable")}
	tr := New(testOwner, repo, nil, testConfig())
	t.Cleanup(tr.alarm.stop)

	_, err := tr.List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")

	_, pending := tr.NextSweepAt()
	assert.False(t, pending)
}

func TestAlarm_ArmIsIdempotent(t *testing.T) {
	a := newAlarm()
	t.Cleanup(a.stop)
	now := time.Now()

	assert.True(t, a.arm(now.Add(time.Hour), now))
	assert.False(t, a.arm(now.Add(time.Minute), now))

	at, pending := a.pending()
	assert.True(t, pending)
	assert.Equal(t, now.Add(time.Hour), at)

	a.consume()
	assert.True(t, a.arm(now.Add(time.Minute), now))
}

func TestAlarm_FiresOnce(t *testing.T) {
	a := newAlarm()
	t.Cleanup(a.stop)
	now := time.Now()

	require.True(t, a.arm(now.Add(5*time.Millisecond), now))
	select {
	case <-a.wake:
	case <-time.After(time.Second):
		t.Fatal("alarm did not fire")
	}

	select {
	case <-a.wake:
		t.Fatal("alarm fired twice")
	case <-time.After(30 * time.Millisecond):
	}
}
