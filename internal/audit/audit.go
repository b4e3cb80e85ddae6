// Package audit records who did what to which entity. Writes are
// fire-and-forget so an audit outage never fails a user-facing operation.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one recorded action. Details are masked before the entry is
// handed to any store or sink.
type Entry struct {
	ID         uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Details    map[string]any
	ActorID    string
	CreatedAt  time.Time
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error

	// ListByEntity returns entries for one entity, newest first.
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*Entry, error)
}
