// Package store persists verification decisions.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"kyc-gateway/internal/domain"
	id "kyc-gateway/pkg/domain"
)

// Memory is a mutex-guarded result store for tests and local development.
type Memory struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*domain.VerificationResult
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[uuid.UUID]*domain.VerificationResult)}
}

func (s *Memory) Create(_ context.Context, result *domain.VerificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *result
	s.rows[result.ID] = &copied
	return nil
}

func (s *Memory) ListByRequest(_ context.Context, requestID id.RequestID) ([]*domain.VerificationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*domain.VerificationResult
	for _, row := range s.rows {
		if row.RequestID != requestID {
			continue
		}
		copied := *row
		results = append(results, &copied)
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	return results, nil
}
