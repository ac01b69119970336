package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore 进程内 TTL 存储
// 适用于测试与单进程部署；跨进程的 single-flight 语义需要 RedisStore。
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	claims  map[string]time.Time
	// now 可注入，测试时模拟时间流逝
	now func() time.Time
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		claims:  make(map[string]time.Time),
		now:     time.Now,
	}
}

// Get 获取缓存值
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return "", ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return "", ErrCacheMiss
	}
	return entry.value, nil
}

// Set 设置缓存值
func (s *MemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
	return nil
}

// GetOrClaim 原子地获取缓存值或占有计算权
// 值与占有记录在同一把锁下检查，两个并发调用者不会同时获得计算权。
func (s *MemoryStore) GetOrClaim(ctx context.Context, key string, claimTTL time.Duration) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		if entry.expiresAt.IsZero() || s.now().Before(entry.expiresAt) {
			return entry.value, false, nil
		}
		delete(s.entries, key)
	}

	if until, ok := s.claims[key]; ok && s.now().Before(until) {
		return "", false, ErrCacheMiss
	}
	s.claims[key] = s.now().Add(claimTTL)
	return "", true, nil
}

// ReleaseClaim 归还计算权
func (s *MemoryStore) ReleaseClaim(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
	return nil
}

// Delete 删除缓存值
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	s.mu.Unlock()
	return nil
}

// Len 返回当前条目数（测试用）
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
