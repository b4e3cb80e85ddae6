package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kyc-gateway/internal/kyc/ports"
	"kyc-gateway/pkg/masking"
)

// DefaultBufferSize bounds the in-flight entries between Log and the writer.
const DefaultBufferSize = 256

// Service is the asynchronous audit recorder. Log masks sensitive detail
// values and queues the entry; a single writer goroutine owned by Run drains
// the queue into the store. When the buffer is full the entry is dropped and
// counted, never blocking the caller.
type Service struct {
	store   Store
	clock   ports.Clock
	logger  *slog.Logger
	entries chan *Entry
	dropped func()
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithClock(clock ports.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithBufferSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.entries = make(chan *Entry, size)
		}
	}
}

// WithDropCallback is invoked each time an entry is dropped on overflow.
func WithDropCallback(fn func()) Option {
	return func(s *Service) { s.dropped = fn }
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	svc := &Service{
		store:   store,
		clock:   ports.ClockFunc(time.Now),
		entries: make(chan *Entry, DefaultBufferSize),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Log queues one entry. It never blocks and never returns an error.
func (s *Service) Log(action, entityType, entityID string, details map[string]any, actorID string) {
	entry := &Entry{
		ID:         uuid.New(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    masking.Details(details),
		ActorID:    actorID,
		CreatedAt:  s.clock.Now(),
	}
	select {
	case s.entries <- entry:
	default:
		if s.dropped != nil {
			s.dropped()
		}
		if s.logger != nil {
			s.logger.Warn("audit buffer full, entry dropped", "action", action)
		}
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is
// still buffered before returning. Cancellation is a clean stop, not an
// error.
func (s *Service) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-s.entries:
			s.write(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.entries:
					s.write(entry)
				default:
					return nil
				}
			}
		}
	}
}

func (s *Service) write(entry *Entry) {
	// The parent context may already be cancelled during shutdown; give the
	// write its own deadline instead.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.Append(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("audit write failed",
			"action", entry.Action,
			"entity_id", entry.EntityID,
			"error", err.Error(),
		)
	}
}
