// Package domain holds typed identifiers shared across modules. Distinct ID
// types keep user, request, and document identifiers from being swapped at
// compile time.
package domain

import (
	"github.com/google/uuid"

	pkgerrors "kyc-gateway/pkg/errors"
)

type (
	// UserID identifies the owner of a verification request.
	UserID uuid.UUID

	// RequestID identifies a verification request. This is the only value
	// carried on the submission queue.
	RequestID uuid.UUID

	// DocumentID identifies an uploaded document.
	DocumentID uuid.UUID
)

// NewUserID returns a fresh random user identifier.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRequestID returns a fresh random request identifier.
func NewRequestID() RequestID { return RequestID(uuid.New()) }

// NewDocumentID returns a fresh random document identifier.
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id RequestID) String() string  { return uuid.UUID(id).String() }
func (id DocumentID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// ParseUserID parses a user ID, rejecting empty, malformed, and nil values.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user id")
	return UserID(parsed), err
}

// ParseRequestID parses a request ID, rejecting empty, malformed, and nil values.
func ParseRequestID(raw string) (RequestID, error) {
	parsed, err := parseUUID(raw, "request id")
	return RequestID(parsed), err
}

// ParseDocumentID parses a document ID, rejecting empty, malformed, and nil values.
func ParseDocumentID(raw string) (DocumentID, error) {
	parsed, err := parseUUID(raw, "document id")
	return DocumentID(parsed), err
}

func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeInvalidInput, "%s is required", kind)
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(err, pkgerrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeInvalidInput, "%s must not be nil", kind)
	}
	return parsed, nil
}
