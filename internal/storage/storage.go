package storage

import (
	"context"
	"errors"

	"momentummail/backend/internal/domain"
)

var (
	// ErrStateNotFound 指定所有者尚无持久化状态
	ErrStateNotFound = errors.New("tracker state not found")
)

// StateRepository 定义跟踪状态的持久化操作。
//
// SaveState 必须整体成功或整体失败，不允许留下部分写入的集合。
type StateRepository interface {
	LoadState(ctx context.Context, owner string) (*domain.TrackerState, error)
	SaveState(ctx context.Context, owner string, state *domain.TrackerState) error
	ListOwners(ctx context.Context) ([]string, error)

	// 工具方法
	Close() error
	Health() error
}
