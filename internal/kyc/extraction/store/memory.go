// Package store persists extracted document fields.
package store

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"kyc-gateway/internal/domain"
	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/sentinel"
)

// Memory is a mutex-guarded extraction store for tests and local development.
type Memory struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.ExtractedData
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[uuid.UUID]*domain.ExtractedData)}
}

func (s *Memory) Create(_ context.Context, data *domain.ExtractedData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *data
	if copied.Dob != nil {
		dob := *copied.Dob
		copied.Dob = &dob
	}
	s.rows[data.ID] = &copied
	return nil
}

func (s *Memory) ByDocument(_ context.Context, documentID id.DocumentID) (*domain.ExtractedData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.ExtractedData
	for _, row := range s.rows {
		if row.DocumentID != documentID {
			continue
		}
		if latest == nil || row.CreatedAt.After(latest.CreatedAt) {
			latest = row
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	copied := *latest
	if copied.Dob != nil {
		dob := *copied.Dob
		copied.Dob = &dob
	}
	return &copied, nil
}
