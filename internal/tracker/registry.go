package tracker

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"momentummail/backend/internal/storage"
)

// Factory 为所有者构造跟踪器
type Factory func(owner string) *Tracker

// Registry 每个所有者唯一的跟踪器实例，首次 Get 时创建
type Registry struct {
	repo    storage.StateRepository
	factory Factory
	log     *zap.Logger

	mu       sync.Mutex
	trackers map[string]*Tracker
	runCtx   context.Context // Start 之后非空
	wg       sync.WaitGroup
}

// NewRegistry 创建注册表
func NewRegistry(repo storage.StateRepository, factory Factory, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		repo:     repo,
		factory:  factory,
		log:      log,
		trackers: make(map[string]*Tracker),
	}
}

// Get 返回所有者的跟踪器并确保其状态已加载
func (r *Registry) Get(ctx context.Context, owner string) (*Tracker, error) {
	r.mu.Lock()
	t, ok := r.trackers[owner]
	if !ok {
		t = r.factory(owner)
		r.trackers[owner] = t
		if r.runCtx != nil {
			r.launchLocked(t)
		}
	}
	r.mu.Unlock()

	if err := t.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Start 启动已创建跟踪器的调度循环，并恢复仓库中已有的所有者
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.runCtx != nil {
		r.mu.Unlock()
		return fmt.Errorf("tracker registry already started")
	}
	r.runCtx = ctx
	for _, t := range r.trackers {
		r.launchLocked(t)
	}
	r.mu.Unlock()

	owners, err := r.repo.ListOwners(ctx)
	if err != nil {
		return fmt.Errorf("list persisted owners: %w", err)
	}
	for _, owner := range owners {
		if _, err := r.Get(ctx, owner); err != nil {
			r.log.Error("failed to resume tracker", zap.String("owner", owner), zap.Error(err))
			continue
		}
		r.log.Info("tracker resumed", zap.String("owner", owner))
	}
	return nil
}

// Wait 等待所有调度循环退出（在 Start 的 ctx 取消后调用）
func (r *Registry) Wait() {
	r.wg.Wait()
}

// Owners 返回已创建的所有者列表
func (r *Registry) Owners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := make([]string, 0, len(r.trackers))
	for owner := range r.trackers {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

func (r *Registry) launchLocked(t *Tracker) {
	ctx := r.runCtx
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		t.Run(ctx)
	}()
}
