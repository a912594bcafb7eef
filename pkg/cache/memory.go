package cache

import (
	"context"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is an in-process Store, selected with cache.url "memory://".
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   time.Now,
	}
}

// Get returns a copy of the stored value.
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if s.now().After(item.expiresAt) {
		s.mu.Lock()
		delete(s.items, key)
		s.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte{}, item.value...), nil
}

// Set stores value under key. A non-positive ttl is treated as one second.
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryItem{
		value:     append([]byte{}, value...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}
