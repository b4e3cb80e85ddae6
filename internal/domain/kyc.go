// Package domain defines the entities owned by the verification pipeline and
// the state machine that governs them.
package domain

import (
	"time"

	"github.com/google/uuid"

	id "kyc-gateway/pkg/domain"
)

// Timestamps carries audit timestamps shared by persisted entities.
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// VerificationRequest is the unit of work driven through the pipeline. It is
// owned exclusively by the request lifecycle service and mutated only through
// the transitions in status.go.
type VerificationRequest struct {
	ID                  id.RequestID
	UserID              id.UserID
	DocumentType        DocumentType
	Status              Status
	AttemptNumber       int
	FailureReason       string
	SubmittedAt         time.Time
	ProcessingStartedAt *time.Time
	CompletedAt         *time.Time
	Timestamps
}

// Document records an uploaded file. Immutable once created; a re-upload
// creates a new Document under a reused or new request.
type Document struct {
	ID             id.DocumentID
	RequestID      id.RequestID
	DocumentType   DocumentType
	DocumentNumber string
	Path           string
	Hash           string
	MimeType       string
	FileSize       int64
	UploadedAt     time.Time
}

// ExtractedData holds the fields recovered from a document. Created once per
// successful extraction and never updated. Any field may be empty when the
// heuristics could not recover it; empty fields simply fail matching later.
type ExtractedData struct {
	ID             uuid.UUID
	DocumentID     id.DocumentID
	Name           string
	Dob            *time.Time
	DocumentNumber string
	RawText        string
	CreatedAt      time.Time
}

// VerificationResult is the decision produced for one processing attempt.
// A request accumulates one result per attempt; prior results persist.
type VerificationResult struct {
	ID                  uuid.UUID
	RequestID           id.RequestID
	NameMatchScore      float64 // 0-100
	DobMatch            bool
	DocumentNumberMatch bool
	FinalStatus         Status // StatusVerified or StatusFailed
	DecisionReason      string
	CreatedAt           time.Time
}

// UserProfile is the stored identity the extracted document fields are
// matched against.
type UserProfile struct {
	UserID id.UserID
	Name   string
	Dob    *time.Time
}
