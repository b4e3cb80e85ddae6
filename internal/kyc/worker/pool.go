// Package worker runs the pool of goroutines that drain the verification
// queue and hand each request to the orchestrator.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"kyc-gateway/internal/kyc/ports"
	id "kyc-gateway/pkg/domain"
)

// DefaultPoolSize is the number of concurrent workers when none is configured.
const DefaultPoolSize = 10

// Processor drives one request to a terminal status.
type Processor interface {
	Process(ctx context.Context, requestID id.RequestID) error
}

// Pool drains the queue with a fixed number of workers. A processing error
// is logged and the worker moves on; only context cancellation stops the
// pool.
type Pool struct {
	queue     ports.Queue
	processor Processor
	size      int
	logger    *slog.Logger
}

// Option configures the Pool.
type Option func(*Pool)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

func WithSize(size int) Option {
	return func(p *Pool) {
		if size > 0 {
			p.size = size
		}
	}
}

func New(queue ports.Queue, processor Processor, opts ...Option) (*Pool, error) {
	if queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	p := &Pool{
		queue:     queue,
		processor: processor,
		size:      DefaultPoolSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run blocks until ctx is cancelled, then waits for in-flight items to
// finish. It always returns nil on cancellation.
func (p *Pool) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		worker := i
		g.Go(func() error {
			return p.loop(ctx, worker)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (p *Pool) loop(ctx context.Context, worker int) error {
	for {
		requestID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if p.logger != nil {
				p.logger.ErrorContext(ctx, "dequeue failed",
					"worker", worker,
					"error", err.Error(),
				)
			}
			continue
		}
		if err := p.processor.Process(ctx, requestID); err != nil {
			if p.logger != nil {
				p.logger.ErrorContext(ctx, "processing failed",
					"worker", worker,
					"request_id", requestID.String(),
					"error", err.Error(),
				)
			}
		}
	}
}
