package cache

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store. The tenant index makes
// PurgeTenant an O(keys-of-tenant) walk instead of a full scan.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]string
	byTenant map[string]map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries:  make(map[string]string),
		byTenant: make(map[string]map[string]struct{}),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	if tenant := tenantOf(key); tenant != "" {
		idx, ok := s.byTenant[tenant]
		if !ok {
			idx = make(map[string]struct{})
			s.byTenant[tenant] = idx
		}
		idx[key] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.entries, key)
		if tenant := tenantOf(key); tenant != "" {
			if idx, ok := s.byTenant[tenant]; ok {
				delete(idx, key)
				if len(idx) == 0 {
					delete(s.byTenant, tenant)
				}
			}
		}
	}
	return nil
}

func (s *MemoryStore) PurgeTenant(_ context.Context, tenantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tenant := tenantID.String()
	for key := range s.byTenant[tenant] {
		delete(s.entries, key)
	}
	delete(s.byTenant, tenant)
	return nil
}

// Len reports the number of cached entries. Used in tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
