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

// Postgres persists extracted fields in the kyc_extracted_data table.
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

func (s *Postgres) Create(ctx context.Context, data *domain.ExtractedData) error {
	query := `
		INSERT INTO kyc_extracted_data (
			id, document_id, extracted_name, extracted_dob,
			extracted_document_number, raw_text, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	var dob sql.NullTime
	if data.Dob != nil {
		dob = sql.NullTime{Time: *data.Dob, Valid: true}
	}
	_, err := s.execer(ctx).ExecContext(ctx, query,
		data.ID,
		uuid.UUID(data.DocumentID),
		data.Name,
		dob,
		data.DocumentNumber,
		data.RawText,
		data.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extracted data: %w", err)
	}
	return nil
}

func (s *Postgres) ByDocument(ctx context.Context, documentID id.DocumentID) (*domain.ExtractedData, error) {
	query := `
		SELECT id, document_id, extracted_name, extracted_dob,
		       extracted_document_number, raw_text, created_at
		FROM kyc_extracted_data
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var (
		data  domain.ExtractedData
		docID uuid.UUID
		dob   sql.NullTime
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(documentID)).Scan(
		&data.ID, &docID, &data.Name, &dob,
		&data.DocumentNumber, &data.RawText, &data.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get extracted data: %w", err)
	}
	data.DocumentID = id.DocumentID(docID)
	if dob.Valid {
		t := dob.Time
		data.Dob = &t
	}
	return &data, nil
}
