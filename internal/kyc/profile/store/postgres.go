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
)

// Postgres reads user reference profiles from the users table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Find(ctx context.Context, userID id.UserID) (*domain.UserProfile, error) {
	query := `
		SELECT id, full_name, date_of_birth
		FROM users
		WHERE id = $1
	`
	var (
		profile domain.UserProfile
		uid     uuid.UUID
		dob     sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, uuid.UUID(userID)).Scan(&uid, &profile.Name, &dob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	profile.UserID = id.UserID(uid)
	if dob.Valid {
		t := dob.Time
		profile.Dob = &t
	}
	return &profile, nil
}
