// Package ports defines shared interfaces for the kyc module. Interfaces are
// placed here when consumed by multiple services to avoid duplication; stores
// are pure I/O and return sentinel errors, translation to domain errors
// happens in the services.
package ports

import (
	"context"
	"time"

	"kyc-gateway/internal/domain"
	id "kyc-gateway/pkg/domain"
)

// RequestFilter narrows a request search. Zero values mean "no constraint".
type RequestFilter struct {
	UserID          id.UserID
	Status          domain.Status
	DocumentType    domain.DocumentType
	SubmittedAfter  *time.Time
	SubmittedBefore *time.Time
	Limit           int
	Offset          int
}

// RequestStore persists verification requests.
type RequestStore interface {
	// Create inserts a new request. Returns sentinel.ErrConflict when the
	// one-non-terminal-request-per-(user,type) constraint is violated.
	Create(ctx context.Context, req *domain.VerificationRequest) error

	// Get returns a request or sentinel.ErrNotFound.
	Get(ctx context.Context, requestID id.RequestID) (*domain.VerificationRequest, error)

	// Update rewrites the mutable fields of an existing request. Used by the
	// resubmission path. Returns sentinel.ErrNotFound when the row is gone.
	Update(ctx context.Context, req *domain.VerificationRequest) error

	// UpdateStatus writes status and failure reason, refreshing updated_at
	// and stamping completed_at when the status is terminal. Returns
	// sentinel.ErrNotFound when zero rows were affected.
	UpdateStatus(ctx context.Context, requestID id.RequestID, status domain.Status, failureReason string, now time.Time) error

	// ClaimForProcessing atomically moves a request from SUBMITTED to
	// PROCESSING and stamps processing_started_at. Returns false when the
	// request was not in SUBMITTED, which makes redelivery idempotent. The
	// claim must be enforced by the backing store, not an in-process lock.
	ClaimForProcessing(ctx context.Context, requestID id.RequestID, now time.Time) (bool, error)

	// LatestByUserAndType returns the most recently created request for the
	// pair, or sentinel.ErrNotFound.
	LatestByUserAndType(ctx context.Context, userID id.UserID, documentType domain.DocumentType) (*domain.VerificationRequest, error)

	// SumAttemptsSince sums attempt numbers over the user's requests
	// submitted at or after the given instant.
	SumAttemptsSince(ctx context.Context, userID id.UserID, since time.Time) (int, error)

	// ListByUser returns all requests of a user, newest first.
	ListByUser(ctx context.Context, userID id.UserID) ([]*domain.VerificationRequest, error)

	// Search returns requests matching the filter, newest first.
	Search(ctx context.Context, filter RequestFilter) ([]*domain.VerificationRequest, error)
}

// DocumentStore persists uploaded document metadata.
type DocumentStore interface {
	Create(ctx context.Context, doc *domain.Document) error

	// ByRequest returns the most recent document of a request, or
	// sentinel.ErrNotFound.
	ByRequest(ctx context.Context, requestID id.RequestID) (*domain.Document, error)

	// ExistsVerified reports whether a VERIFIED request exists for the user
	// and type whose document carries exactly this declared number.
	ExistsVerified(ctx context.Context, userID id.UserID, documentType domain.DocumentType, documentNumber string) (bool, error)
}

// ExtractionStore persists extracted document fields.
type ExtractionStore interface {
	Create(ctx context.Context, data *domain.ExtractedData) error

	// ByDocument returns the extraction for a document, or sentinel.ErrNotFound.
	ByDocument(ctx context.Context, documentID id.DocumentID) (*domain.ExtractedData, error)
}

// ResultStore persists verification results.
type ResultStore interface {
	Create(ctx context.Context, result *domain.VerificationResult) error

	// ListByRequest returns all results of a request, newest first, one per
	// processing attempt.
	ListByRequest(ctx context.Context, requestID id.RequestID) ([]*domain.VerificationResult, error)
}

// ProfileStore looks up the stored identity of a user.
type ProfileStore interface {
	// Find returns the user's profile or sentinel.ErrNotFound.
	Find(ctx context.Context, userID id.UserID) (*domain.UserProfile, error)
}

// BlobStore writes and reads raw document bytes.
type BlobStore interface {
	// Write stores data under the generated name and returns the path the
	// bytes can later be read back from.
	Write(ctx context.Context, name string, data []byte) (string, error)

	// Read returns the bytes stored at path.
	Read(ctx context.Context, path string) ([]byte, error)
}

// Recognizer turns document bytes into raw text. Failures are opaque.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte) (string, error)
}

// Queue carries request identifiers between submission and the worker pool.
// Delivery is at-least-once; consumers must tolerate duplicates.
type Queue interface {
	Enqueue(ctx context.Context, requestID id.RequestID) error

	// Dequeue blocks until an identifier is available or ctx is cancelled.
	Dequeue(ctx context.Context) (id.RequestID, error)
}

// AuditSink records pipeline actions. Implementations are fire-and-forget:
// they must never block or fail the calling operation.
type AuditSink interface {
	Log(action, entityType, entityID string, details map[string]any, actorID string)
}

// TxRunner provides the short transactional units the pipeline uses around
// store mutations. The in-memory implementation is a pass-through.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock supplies wall-clock time so rate limiting and timestamps are testable.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
