package storage

import (
	"context"
	"sync"

	"github.com/LJTian/ToramListener/internal/collector"
)

// MemoryStore 进程内水位，测试和演练用
type MemoryStore struct {
	mu  sync.RWMutex
	id  collector.NewsID
	set bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get(_ context.Context) (collector.NewsID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.set, nil
}

func (s *MemoryStore) Set(_ context.Context, id collector.NewsID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id, s.set = id, true
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
