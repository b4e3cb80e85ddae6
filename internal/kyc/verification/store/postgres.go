package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"kyc-gateway/internal/domain"
	id "kyc-gateway/pkg/domain"
	txcontext "kyc-gateway/pkg/platform/tx"
)

// Postgres persists decisions in the kyc_verification_results table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, result *domain.VerificationResult) error {
	query := `
		INSERT INTO kyc_verification_results (
			id, request_id, name_match_score, dob_match,
			document_number_match, final_status, decision_reason, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		result.ID,
		uuid.UUID(result.RequestID),
		result.NameMatchScore,
		result.DobMatch,
		result.DocumentNumberMatch,
		string(result.FinalStatus),
		result.DecisionReason,
		result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert verification result: %w", err)
	}
	return nil
}

func (s *Postgres) ListByRequest(ctx context.Context, requestID id.RequestID) ([]*domain.VerificationResult, error) {
	query := `
		SELECT id, request_id, name_match_score, dob_match,
		       document_number_match, final_status, decision_reason, created_at
		FROM kyc_verification_results
		WHERE request_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(requestID))
	if err != nil {
		return nil, fmt.Errorf("list verification results: %w", err)
	}
	defer rows.Close()

	var results []*domain.VerificationResult
	for rows.Next() {
		var (
			result domain.VerificationResult
			reqID  uuid.UUID
			status string
		)
		err := rows.Scan(
			&result.ID, &reqID, &result.NameMatchScore, &result.DobMatch,
			&result.DocumentNumberMatch, &status, &result.DecisionReason, &result.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan verification result: %w", err)
		}
		result.RequestID = id.RequestID(reqID)
		result.FinalStatus = domain.Status(status)
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification results: %w", err)
	}
	return results, nil
}
