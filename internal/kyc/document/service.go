// Package document validates and persists uploaded identity documents.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	id "kyc-gateway/pkg/domain"
	pkgerrors "kyc-gateway/pkg/errors"
	"kyc-gateway/pkg/platform/sentinel"
)

// Upload carries the raw file a caller submitted.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Service owns document validation, content hashing, and persistence.
type Service struct {
	store        ports.DocumentStore
	blobs        ports.BlobStore
	clock        ports.Clock
	logger       *slog.Logger
	allowedTypes map[string]struct{}
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(clock ports.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// DefaultAllowedTypes is the MIME allow-list applied when none is configured.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "application/pdf"}

func New(store ports.DocumentStore, blobs ports.BlobStore, allowedTypes []string, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if len(allowedTypes) == 0 {
		allowedTypes = DefaultAllowedTypes
	}
	svc := &Service{
		store:        store,
		blobs:        blobs,
		clock:        ports.ClockFunc(time.Now),
		allowedTypes: make(map[string]struct{}, len(allowedTypes)),
	}
	for _, t := range allowedTypes {
		svc.allowedTypes[t] = struct{}{}
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Validate rejects empty files and content types outside the allow-list.
func (s *Service) Validate(file Upload) error {
	if len(file.Data) == 0 {
		return fmt.Errorf("%w: file is empty", domain.ErrFileValidationFailed)
	}
	if _, ok := s.allowedTypes[file.ContentType]; !ok {
		return fmt.Errorf("%w: invalid file type %q", domain.ErrFileValidationFailed, file.ContentType)
	}
	return nil
}

// Save hashes the raw bytes, writes them to blob storage under a fresh
// unique name, and records the Document row for the owning request.
func (s *Service) Save(ctx context.Context, requestID id.RequestID, documentType domain.DocumentType, file Upload, documentNumber string) (*domain.Document, error) {
	if err := s.Validate(file); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(file.Data)
	hash := hex.EncodeToString(sum[:])

	name := uuid.New().String() + "_" + file.Filename
	path, err := s.blobs.Write(ctx, name, file.Data)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "store file")
	}

	doc := &domain.Document{
		ID:             id.NewDocumentID(),
		RequestID:      requestID,
		DocumentType:   documentType,
		DocumentNumber: documentNumber,
		Path:           path,
		Hash:           hash,
		MimeType:       file.ContentType,
		FileSize:       int64(len(file.Data)),
		UploadedAt:     s.clock.Now(),
	}
	if err := s.store.Create(ctx, doc); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, domain.ErrPersistenceConflict
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "create document")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "document stored",
			"request_id", requestID.String(),
			"document_type", string(documentType),
			"size", doc.FileSize,
		)
	}
	return doc, nil
}

// Load returns the most recent document of a request together with its raw
// bytes read back from blob storage.
func (s *Service) Load(ctx context.Context, requestID id.RequestID) (*domain.Document, []byte, error) {
	doc, err := s.store.ByRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, pkgerrors.Wrap(err, pkgerrors.CodeNotFound, "no document for request")
		}
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load document")
	}
	data, err := s.blobs.Read(ctx, doc.Path)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "read document file")
	}
	return doc, data, nil
}

// IsVerified reports whether this exact (user, type, number) tuple already
// passed verification. The submission entry point uses it to short-circuit
// re-verification of an approved document.
func (s *Service) IsVerified(ctx context.Context, userID id.UserID, documentType domain.DocumentType, documentNumber string) (bool, error) {
	verified, err := s.store.ExistsVerified(ctx, userID, documentType, documentNumber)
	if err != nil {
		return false, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "check verified document")
	}
	return verified, nil
}
