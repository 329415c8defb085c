package memory

import (
	"context"
	"sort"
	"sync"

	"momentummail/backend/internal/domain"
	"momentummail/backend/internal/storage"
)

// Store 使用内存保存跟踪状态，主要用于开发验证和测试。
type Store struct {
	mu     sync.RWMutex
	states map[string]*domain.TrackerState // owner -> state

	failSave error // 非空时 SaveState 直接返回该错误，用于模拟存储故障
	saves    int
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		states: make(map[string]*domain.TrackerState),
	}
}

// LoadState 返回状态的深拷贝。
func (s *Store) LoadState(_ context.Context, owner string) (*domain.TrackerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[owner]
	if !ok {
		return nil, storage.ErrStateNotFound
	}
	return state.Clone(), nil
}

// SaveState 整体替换所有者的状态。
func (s *Store) SaveState(_ context.Context, owner string, state *domain.TrackerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSave != nil {
		return s.failSave
	}
	s.states[owner] = state.Clone()
	s.saves++
	return nil
}

// ListOwners 返回已持久化的所有者列表（字典序）。
func (s *Store) ListOwners(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	owners := make([]string, 0, len(s.states))
	for owner := range s.states {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners, nil
}

// Saves 返回成功写入次数。
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// SetFailSave 设置写入故障，传 nil 恢复正常。
func (s *Store) SetFailSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSave = err
}

// Close 内存存储无需关闭。
func (s *Store) Close() error {
	return nil
}

// Health 内存存储始终健康。
func (s *Store) Health() error {
	return nil
}
