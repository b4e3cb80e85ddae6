package audit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps entries in memory for tests and local development.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []*Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, entry *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	copied.Details = cloneDetails(entry.Details)
	s.entries = append(s.entries, &copied)
	return nil
}

func (s *MemoryStore) ListByEntity(_ context.Context, entityType, entityID string) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Entry
	for _, entry := range s.entries {
		if entry.EntityType != entityType || entry.EntityID != entityID {
			continue
		}
		copied := *entry
		copied.Details = cloneDetails(entry.Details)
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
}

// All returns every entry in insertion order. Test helper only.
func (s *MemoryStore) All() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		copied := *entry
		copied.Details = cloneDetails(entry.Details)
		out = append(out, &copied)
	}
	return out
}

func cloneDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = v
	}
	return out
}
