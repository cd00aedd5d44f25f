package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryDedupStore 进程内去重/租约，单机模式使用
type MemoryDedupStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryDedupStore 创建内存去重存储
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{entries: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryDedupStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if exp, ok := s.entries[key]; ok && now.Before(exp) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	s.gc(now)
	return true, nil
}

func (s *MemoryDedupStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// gc 顺带清理过期项
func (s *MemoryDedupStore) gc(now time.Time) {
	if len(s.entries) < 1024 {
		return
	}
	for k, exp := range s.entries {
		if !now.Before(exp) {
			delete(s.entries, k)
		}
	}
}
