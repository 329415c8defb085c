package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"momentummail/backend/internal/domain"
	"momentummail/backend/internal/storage"
)

const stateFileExt = ".json"

// Store 文件系统存储实现，每个所有者对应一个 JSON 文件
type Store struct {
	basePath string     // 状态文件根目录
	mu       sync.Mutex // 串行化写入和重命名
}

// stateFile 磁盘上的文件结构，记录原始所有者名用于 ListOwners
type stateFile struct {
	Owner string               `json:"owner"`
	State *domain.TrackerState `json:"state"`
}

// NewStore 创建文件系统存储实例
func NewStore(basePath string) (*Store, error) {
	if err := validateBasePath(basePath); err != nil {
		return nil, fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	// 确保基础目录存在
	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Store{basePath: filepath.Clean(absPath)}, nil
}

// LoadState 读取所有者的状态文件
func (s *Store) LoadState(_ context.Context, owner string) (*domain.TrackerState, error) {
	file, err := s.readFile(s.statePath(owner))
	if err != nil {
		return nil, err
	}
	if file.Owner != owner {
		return nil, fmt.Errorf("state file owner mismatch: want %q, got %q", owner, file.Owner)
	}
	if file.State == nil {
		return domain.NewTrackerState(), nil
	}
	if file.State.Emails == nil {
		file.State.Emails = make([]domain.TrackedEmail, 0)
	}
	return file.State, nil
}

// SaveState 先写临时文件再原子重命名，读者只会看到完整的旧文件或新文件
func (s *Store) SaveState(_ context.Context, owner string, state *domain.TrackerState) error {
	data, err := json.MarshalIndent(stateFile{Owner: owner, State: state}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.statePath(owner)
	existing, err := s.readFile(path)
	switch {
	case err == nil && existing.Owner != owner:
		return fmt.Errorf("state file %s belongs to owner %q", filepath.Base(path), existing.Owner)
	case err != nil && !errors.Is(err, storage.ErrStateNotFound):
		return err
	}

	tmp, err := os.CreateTemp(s.basePath, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // 重命名成功后为空操作

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

// ListOwners 扫描目录中的状态文件
func (s *Store) ListOwners(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read state directory: %w", err)
	}

	owners := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != stateFileExt {
			continue
		}
		file, err := s.readFile(filepath.Join(s.basePath, name))
		if err != nil {
			return nil, err
		}
		owners = append(owners, file.Owner)
	}
	sort.Strings(owners)
	return owners, nil
}

// Close 文件系统存储无需关闭
func (s *Store) Close() error {
	return nil
}

// Health 检查根目录是否可访问
func (s *Store) Health() error {
	info, err := os.Stat(s.basePath)
	if err != nil {
		return fmt.Errorf("state directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("state path is not a directory: %s", s.basePath)
	}
	return nil
}

func (s *Store) readFile(path string) (*stateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrStateNotFound
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var file stateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &file, nil
}

func (s *Store) statePath(owner string) string {
	return filepath.Join(s.basePath, ownerFileName(owner))
}
