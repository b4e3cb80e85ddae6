package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"kyc-gateway/internal/domain"
	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/sentinel"
	txcontext "kyc-gateway/pkg/platform/tx"
)

// Postgres persists document metadata in the kyc_documents table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, doc *domain.Document) error {
	query := `
		INSERT INTO kyc_documents (
			id, request_id, document_type, document_number,
			document_path, document_hash, mime_type, file_size, uploaded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(doc.ID),
		uuid.UUID(doc.RequestID),
		string(doc.DocumentType),
		doc.DocumentNumber,
		doc.Path,
		doc.Hash,
		doc.MimeType,
		doc.FileSize,
		doc.UploadedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Postgres) ByRequest(ctx context.Context, requestID id.RequestID) (*domain.Document, error) {
	query := `
		SELECT id, request_id, document_type, document_number,
		       document_path, document_hash, mime_type, file_size, uploaded_at
		FROM kyc_documents
		WHERE request_id = $1
		ORDER BY uploaded_at DESC
		LIMIT 1
	`
	var (
		doc          domain.Document
		docID, reqID uuid.UUID
		docType      string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)).Scan(
		&docID, &reqID, &docType, &doc.DocumentNumber,
		&doc.Path, &doc.Hash, &doc.MimeType, &doc.FileSize, &doc.UploadedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	doc.ID = id.DocumentID(docID)
	doc.RequestID = id.RequestID(reqID)
	doc.DocumentType = domain.DocumentType(docType)
	return &doc, nil
}

func (s *Postgres) ExistsVerified(ctx context.Context, userID id.UserID, documentType domain.DocumentType, documentNumber string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM kyc_documents d
			JOIN kyc_requests r ON r.id = d.request_id
			WHERE r.user_id = $1
			  AND d.document_type = $2
			  AND d.document_number = $3
			  AND r.status = $4
		)
	`
	var exists bool
	err := s.execer(ctx).QueryRowContext(ctx, query,
		uuid.UUID(userID), string(documentType), documentNumber, string(domain.StatusVerified),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check verified document: %w", err)
	}
	return exists, nil
}
