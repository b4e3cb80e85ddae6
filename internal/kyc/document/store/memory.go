// Package store provides document metadata persistence.
package store

import (
	"context"
	"sync"

	"kyc-gateway/internal/domain"
	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/sentinel"
)

// RequestLookup is the slice of the request store the memory document store
// needs to answer ExistsVerified.
type RequestLookup interface {
	Get(ctx context.Context, requestID id.RequestID) (*domain.VerificationRequest, error)
}

// Memory is a mutex-guarded document store for tests and local development.
type Memory struct {
	mu       sync.RWMutex
	docs     map[id.DocumentID]*domain.Document
	requests RequestLookup
}

func NewMemory(requests RequestLookup) *Memory {
	return &Memory{
		docs:     make(map[id.DocumentID]*domain.Document),
		requests: requests,
	}
}

func (s *Memory) Create(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *doc
	s.docs[doc.ID] = &copied
	return nil
}

func (s *Memory) ByRequest(_ context.Context, requestID id.RequestID) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Document
	for _, doc := range s.docs {
		if doc.RequestID != requestID {
			continue
		}
		if latest == nil || doc.UploadedAt.After(latest.UploadedAt) {
			latest = doc
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	copied := *latest
	return &copied, nil
}

func (s *Memory) ExistsVerified(ctx context.Context, userID id.UserID, documentType domain.DocumentType, documentNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if doc.DocumentType != documentType || doc.DocumentNumber != documentNumber {
			continue
		}
		req, err := s.requests.Get(ctx, doc.RequestID)
		if err != nil {
			continue
		}
		if req.UserID == userID && req.Status == domain.StatusVerified {
			return true, nil
		}
	}
	return false, nil
}
