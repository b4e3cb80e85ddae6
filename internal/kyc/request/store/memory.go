// Package store provides request persistence. The in-memory implementation
// backs unit tests and local development; PostgreSQL is the production store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/sentinel"
)

// Memory is a mutex-guarded request store. The claim is atomic under the
// store lock, which stands in for the database's conditional update.
type Memory struct {
	mu       sync.RWMutex
	requests map[id.RequestID]*domain.VerificationRequest
}

func NewMemory() *Memory {
	return &Memory{requests: make(map[id.RequestID]*domain.VerificationRequest)}
}

func (s *Memory) Create(_ context.Context, req *domain.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.requests {
		if existing.UserID == req.UserID &&
			existing.DocumentType == req.DocumentType &&
			!existing.Status.Terminal() {
			return sentinel.ErrConflict
		}
	}
	s.requests[req.ID] = clone(req)
	return nil
}

func (s *Memory) Get(_ context.Context, requestID id.RequestID) (*domain.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[requestID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(req), nil
}

func (s *Memory) Update(_ context.Context, req *domain.VerificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.requests[req.ID] = clone(req)
	return nil
}

func (s *Memory) UpdateStatus(_ context.Context, requestID id.RequestID, status domain.Status, failureReason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok {
		return sentinel.ErrNotFound
	}
	req.Status = status
	req.FailureReason = failureReason
	req.UpdatedAt = now
	if status.Terminal() {
		completed := now
		req.CompletedAt = &completed
	}
	return nil
}

func (s *Memory) ClaimForProcessing(_ context.Context, requestID id.RequestID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[requestID]
	if !ok || req.Status != domain.StatusSubmitted {
		return false, nil
	}
	started := now
	req.Status = domain.StatusProcessing
	req.ProcessingStartedAt = &started
	req.UpdatedAt = now
	return true, nil
}

func (s *Memory) LatestByUserAndType(_ context.Context, userID id.UserID, documentType domain.DocumentType) (*domain.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.VerificationRequest
	for _, req := range s.requests {
		if req.UserID != userID || req.DocumentType != documentType {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	return clone(latest), nil
}

func (s *Memory) SumAttemptsSince(_ context.Context, userID id.UserID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, req := range s.requests {
		if req.UserID == userID && !req.SubmittedAt.Before(since) {
			total += req.AttemptNumber
		}
	}
	return total, nil
}

func (s *Memory) ListByUser(_ context.Context, userID id.UserID) ([]*domain.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reqs []*domain.VerificationRequest
	for _, req := range s.requests {
		if req.UserID == userID {
			reqs = append(reqs, clone(req))
		}
	}
	sortNewestFirst(reqs)
	return reqs, nil
}

func (s *Memory) Search(_ context.Context, filter ports.RequestFilter) ([]*domain.VerificationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reqs []*domain.VerificationRequest
	for _, req := range s.requests {
		if !filter.UserID.IsNil() && req.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.DocumentType != "" && req.DocumentType != filter.DocumentType {
			continue
		}
		if filter.SubmittedAfter != nil && req.SubmittedAt.Before(*filter.SubmittedAfter) {
			continue
		}
		if filter.SubmittedBefore != nil && req.SubmittedAt.After(*filter.SubmittedBefore) {
			continue
		}
		reqs = append(reqs, clone(req))
	}
	sortNewestFirst(reqs)
	if filter.Offset > 0 {
		if filter.Offset >= len(reqs) {
			return nil, nil
		}
		reqs = reqs[filter.Offset:]
	}
	if filter.Limit > 0 && len(reqs) > filter.Limit {
		reqs = reqs[:filter.Limit]
	}
	return reqs, nil
}

func sortNewestFirst(reqs []*domain.VerificationRequest) {
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].SubmittedAt.After(reqs[j].SubmittedAt)
	})
}

func clone(req *domain.VerificationRequest) *domain.VerificationRequest {
	copied := *req
	if req.ProcessingStartedAt != nil {
		t := *req.ProcessingStartedAt
		copied.ProcessingStartedAt = &t
	}
	if req.CompletedAt != nil {
		t := *req.CompletedAt
		copied.CompletedAt = &t
	}
	return &copied
}
