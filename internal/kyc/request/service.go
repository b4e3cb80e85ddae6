// Package request owns the verification request lifecycle: creation, the
// daily attempt limit, resubmission rules, and every status transition.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	id "kyc-gateway/pkg/domain"
	pkgerrors "kyc-gateway/pkg/errors"
	"kyc-gateway/pkg/platform/sentinel"
)

// Type aliases for shared interfaces.
type (
	Store = ports.RequestStore
	Clock = ports.Clock
)

// DefaultDailyAttemptLimit caps the sum of attempt numbers a user may submit
// per calendar day.
const DefaultDailyAttemptLimit = 5

// Service is the request lifecycle manager. It is the only writer of request
// state outside the worker's claim.
type Service struct {
	store      Store
	audit      ports.AuditSink
	clock      Clock
	logger     *slog.Logger
	dailyLimit int
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAuditSink sets the audit sink for lifecycle actions.
func WithAuditSink(sink ports.AuditSink) Option {
	return func(s *Service) { s.audit = sink }
}

// WithClock overrides the wall clock, mainly for tests.
func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithDailyAttemptLimit overrides the per-day attempt budget.
func WithDailyAttemptLimit(limit int) Option {
	return func(s *Service) { s.dailyLimit = limit }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("request store is required")
	}
	svc := &Service{
		store:      store,
		clock:      ports.ClockFunc(time.Now),
		dailyLimit: DefaultDailyAttemptLimit,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateOrReuse returns the request a new submission should ride on. A FAILED
// request for the same (user, type) pair is reopened with its attempt number
// incremented; otherwise a fresh request is created. The daily limit sums
// attempt numbers over everything the user submitted since local midnight and
// is checked before any row is touched.
func (s *Service) CreateOrReuse(ctx context.Context, userID id.UserID, documentType domain.DocumentType) (*domain.VerificationRequest, error) {
	now := s.clock.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	attempts, err := s.store.SumAttemptsSince(ctx, userID, startOfDay)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "sum daily attempts")
	}
	if attempts >= s.dailyLimit {
		return nil, fmt.Errorf("%w: %d attempts submitted today", domain.ErrDailyLimitExceeded, attempts)
	}

	latest, err := s.store.LatestByUserAndType(ctx, userID, documentType)
	switch {
	case err == nil:
		switch latest.Status {
		case domain.StatusSubmitted, domain.StatusProcessing:
			return nil, domain.ErrConcurrentRequestExists
		case domain.StatusFailed:
			return s.reopen(ctx, latest, now)
		}
	case errors.Is(err, sentinel.ErrNotFound):
		// No prior request; fall through to create.
	default:
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "look up latest request")
	}

	req := &domain.VerificationRequest{
		ID:            id.NewRequestID(),
		UserID:        userID,
		DocumentType:  documentType,
		Status:        domain.StatusSubmitted,
		AttemptNumber: 1,
		SubmittedAt:   now,
		Timestamps:    domain.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	if err := s.store.Create(ctx, req); err != nil {
		// A concurrent submission won the race on the one-in-flight
		// constraint; report it as the same conflict the caller would have
		// seen a moment later.
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, domain.ErrConcurrentRequestExists
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "create request")
	}
	s.logAudit(ctx, "KYC_SUBMITTED", req, nil)
	return req, nil
}

// reopen performs the FAILED -> SUBMITTED resubmission edge on the same
// request identity. The attempt number increases by exactly one and never
// resets.
func (s *Service) reopen(ctx context.Context, req *domain.VerificationRequest, now time.Time) (*domain.VerificationRequest, error) {
	req.AttemptNumber++
	req.Status = domain.StatusSubmitted
	req.FailureReason = ""
	req.SubmittedAt = now
	req.ProcessingStartedAt = nil
	req.CompletedAt = nil
	req.UpdatedAt = now
	if err := s.store.Update(ctx, req); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "reopen request")
	}
	s.logAudit(ctx, "KYC_RESUBMITTED", req, map[string]any{"attempt_number": req.AttemptNumber})
	return req, nil
}

// UpdateStatus records a status transition for a request. The edge is
// validated against the state machine table; the worker uses this to record
// terminal outcomes after a claim.
func (s *Service) UpdateStatus(ctx context.Context, requestID id.RequestID, status domain.Status, failureReason string) error {
	if !status.Valid() {
		return pkgerrors.Newf(pkgerrors.CodeInvalidInput, "unknown status %q", status)
	}
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.ErrRequestNotFound
		}
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load request")
	}
	if !domain.CanTransition(req.Status, status) {
		return pkgerrors.Wrap(sentinel.ErrInvalidState,
			pkgerrors.CodeConflict,
			fmt.Sprintf("transition %s -> %s is not allowed", req.Status, status))
	}
	now := s.clock.Now()
	if err := s.store.UpdateStatus(ctx, requestID, status, failureReason, now); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.ErrRequestNotFound
		}
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "update status")
	}
	s.logAudit(ctx, "KYC_STATUS_UPDATED", req, map[string]any{
		"from": string(req.Status),
		"to":   string(status),
	})
	return nil
}

// Get returns a request by identifier.
func (s *Service) Get(ctx context.Context, requestID id.RequestID) (*domain.VerificationRequest, error) {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load request")
	}
	return req, nil
}

// Claim moves a SUBMITTED request to PROCESSING. False means the request was
// not claimable, either because another worker got there first or because it
// no longer exists; callers that care which must follow up with Get.
func (s *Service) Claim(ctx context.Context, requestID id.RequestID) (bool, error) {
	claimed, err := s.store.ClaimForProcessing(ctx, requestID, s.clock.Now())
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "claim request")
	}
	return claimed, nil
}

// Latest returns the most recent request for the user and type.
func (s *Service) Latest(ctx context.Context, userID id.UserID, documentType domain.DocumentType) (*domain.VerificationRequest, error) {
	req, err := s.store.LatestByUserAndType(ctx, userID, documentType)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load latest request")
	}
	return req, nil
}

// ListByUser returns all requests of a user, newest first.
func (s *Service) ListByUser(ctx context.Context, userID id.UserID) ([]*domain.VerificationRequest, error) {
	reqs, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "list requests")
	}
	return reqs, nil
}

// Search returns requests matching the filter for administrative viewers.
// Every search is audited.
func (s *Service) Search(ctx context.Context, filter ports.RequestFilter, actorID string) ([]*domain.VerificationRequest, error) {
	reqs, err := s.store.Search(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "search requests")
	}
	if s.audit != nil {
		details := map[string]any{"results": len(reqs)}
		if !filter.UserID.IsNil() {
			details["user_id"] = filter.UserID.String()
		}
		if filter.Status != "" {
			details["status"] = string(filter.Status)
		}
		if filter.DocumentType != "" {
			details["document_type"] = string(filter.DocumentType)
		}
		s.audit.Log("KYC_SEARCH", "KycRequest", "", details, actorID)
	}
	return reqs, nil
}

func (s *Service) logAudit(ctx context.Context, action string, req *domain.VerificationRequest, extra map[string]any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"request_id", req.ID.String(),
			"user_id", req.UserID.String(),
			"document_type", string(req.DocumentType),
			"status", string(req.Status),
		)
	}
	if s.audit == nil {
		return
	}
	details := map[string]any{
		"document_type": string(req.DocumentType),
		"status":        string(req.Status),
	}
	for k, v := range extra {
		details[k] = v
	}
	s.audit.Log(action, "KycRequest", req.ID.String(), details, req.UserID.String())
}
