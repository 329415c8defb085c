package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"momentummail/backend/internal/domain"
	"momentummail/backend/internal/storage"
)

const defaultKeyPrefix = "momentum"

// Store 将每个所有者的状态保存为一个 JSON 值，并用集合记录所有者列表。
type Store struct {
	client *Client
	prefix string
}

// NewStore 基于已连接的客户端创建存储
func NewStore(client *Client, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) stateKey(owner string) string {
	return fmt.Sprintf("%s:tracker:%s", s.prefix, owner)
}

func (s *Store) ownersKey() string {
	return s.prefix + ":owners"
}

// LoadState 读取所有者状态
func (s *Store) LoadState(ctx context.Context, owner string) (*domain.TrackerState, error) {
	data, err := s.client.rdb.Get(ctx, s.stateKey(owner)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, storage.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to load tracker state: %w", err)
	}

	state := domain.NewTrackerState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode tracker state: %w", err)
	}
	if state.Emails == nil {
		state.Emails = []domain.TrackedEmail{}
	}
	return state, nil
}

// SaveState 在 MULTI/EXEC 中同时写入状态与所有者集合
func (s *Store) SaveState(ctx context.Context, owner string, state *domain.TrackerState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode tracker state: %w", err)
	}

	_, err = s.client.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.stateKey(owner), data, 0)
		pipe.SAdd(ctx, s.ownersKey(), owner)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save tracker state: %w", err)
	}
	return nil
}

// ListOwners 返回所有已持久化的所有者
func (s *Store) ListOwners(ctx context.Context) ([]string, error) {
	owners, err := s.client.rdb.SMembers(ctx, s.ownersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}

// Close 关闭底层连接
func (s *Store) Close() error {
	return s.client.Close()
}

// Health 检查 Redis 是否可达
func (s *Store) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.client.Ping(ctx)
}
