package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/ports"
	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/sentinel"
	txcontext "kyc-gateway/pkg/platform/tx"
)

// Postgres persists requests in the kyc_requests table. A partial unique
// index on (user_id, document_type) over non-terminal statuses enforces the
// one-in-flight invariant at the store level; Create translates that
// violation to sentinel.ErrConflict.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const requestColumns = `
	id, user_id, document_type, status, attempt_number, failure_reason,
	submitted_at, processing_started_at, completed_at, created_at, updated_at
`

func (s *Postgres) Create(ctx context.Context, req *domain.VerificationRequest) error {
	query := `
		INSERT INTO kyc_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		uuid.UUID(req.UserID),
		string(req.DocumentType),
		string(req.Status),
		req.AttemptNumber,
		req.FailureReason,
		req.SubmittedAt,
		req.ProcessingStartedAt,
		req.CompletedAt,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("%w: %v", sentinel.ErrConflict, err)
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, requestID id.RequestID) (*domain.VerificationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM kyc_requests WHERE id = $1`
	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(requestID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	return req, nil
}

func (s *Postgres) Update(ctx context.Context, req *domain.VerificationRequest) error {
	query := `
		UPDATE kyc_requests
		SET status = $2,
		    attempt_number = $3,
		    failure_reason = $4,
		    submitted_at = $5,
		    processing_started_at = $6,
		    completed_at = $7,
		    updated_at = $8
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID),
		string(req.Status),
		req.AttemptNumber,
		req.FailureReason,
		req.SubmittedAt,
		req.ProcessingStartedAt,
		req.CompletedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	return requireRow(result, "update request")
}

func (s *Postgres) UpdateStatus(ctx context.Context, requestID id.RequestID, status domain.Status, failureReason string, now time.Time) error {
	query := `
		UPDATE kyc_requests
		SET status = $2,
		    failure_reason = $3,
		    updated_at = $4,
		    completed_at = CASE WHEN $2 IN ('VERIFIED', 'FAILED') THEN $4 ELSE completed_at END
		WHERE id = $1
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(requestID), string(status), failureReason, now)
	if err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return requireRow(result, "update request status")
}

// ClaimForProcessing is the pipeline's only cross-worker mutual exclusion:
// a conditional update that succeeds for exactly one claimant per attempt,
// regardless of how many workers or service instances race on it.
func (s *Postgres) ClaimForProcessing(ctx context.Context, requestID id.RequestID, now time.Time) (bool, error) {
	query := `
		UPDATE kyc_requests
		SET status = $2,
		    processing_started_at = $3,
		    updated_at = $3
		WHERE id = $1 AND status = $4
	`
	result, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(requestID),
		string(domain.StatusProcessing),
		now,
		string(domain.StatusSubmitted),
	)
	if err != nil {
		return false, fmt.Errorf("claim request: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim request rows affected: %w", err)
	}
	return rows > 0, nil
}

func (s *Postgres) LatestByUserAndType(ctx context.Context, userID id.UserID, documentType domain.DocumentType) (*domain.VerificationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM kyc_requests
		WHERE user_id = $1 AND document_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	req, err := scanRequest(s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(userID), string(documentType)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest request: %w", err)
	}
	return req, nil
}

func (s *Postgres) SumAttemptsSince(ctx context.Context, userID id.UserID, since time.Time) (int, error) {
	query := `
		SELECT COALESCE(SUM(attempt_number), 0)
		FROM kyc_requests
		WHERE user_id = $1 AND submitted_at >= $2
	`
	var total int
	if err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(userID), since).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum attempts: %w", err)
	}
	return total, nil
}

func (s *Postgres) ListByUser(ctx context.Context, userID id.UserID) ([]*domain.VerificationRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM kyc_requests
		WHERE user_id = $1
		ORDER BY submitted_at DESC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, uuid.UUID(userID))
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func (s *Postgres) Search(ctx context.Context, filter ports.RequestFilter) ([]*domain.VerificationRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM kyc_requests WHERE 1=1`
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if !filter.UserID.IsNil() {
		query += ` AND user_id = ` + arg(uuid.UUID(filter.UserID))
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.DocumentType != "" {
		query += ` AND document_type = ` + arg(string(filter.DocumentType))
	}
	if filter.SubmittedAfter != nil {
		query += ` AND submitted_at >= ` + arg(*filter.SubmittedAfter)
	}
	if filter.SubmittedBefore != nil {
		query += ` AND submitted_at <= ` + arg(*filter.SubmittedBefore)
	}
	query += ` ORDER BY submitted_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search requests: %w", err)
	}
	defer rows.Close()
	return scanRequests(rows)
}

func requireRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type requestRow interface {
	Scan(dest ...any) error
}

func scanRequest(row requestRow) (*domain.VerificationRequest, error) {
	var (
		req           domain.VerificationRequest
		reqID, userID uuid.UUID
		docType       string
		status        string
		failureReason sql.NullString
		started       sql.NullTime
		completed     sql.NullTime
	)
	err := row.Scan(
		&reqID, &userID, &docType, &status, &req.AttemptNumber, &failureReason,
		&req.SubmittedAt, &started, &completed, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.ID = id.RequestID(reqID)
	req.UserID = id.UserID(userID)
	req.DocumentType = domain.DocumentType(docType)
	req.Status = domain.Status(status)
	req.FailureReason = failureReason.String
	if started.Valid {
		req.ProcessingStartedAt = &started.Time
	}
	if completed.Valid {
		req.CompletedAt = &completed.Time
	}
	return &req, nil
}

func scanRequests(rows *sql.Rows) ([]*domain.VerificationRequest, error) {
	var reqs []*domain.VerificationRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		reqs = append(reqs, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}
	return reqs, nil
}
