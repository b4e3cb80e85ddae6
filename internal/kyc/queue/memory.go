// Package queue carries request identifiers from submission to the worker
// pool. The memory queue serves single-process deployments and tests; the
// Redis and AMQP queues serve multi-instance deployments.
package queue

import (
	"context"
	"fmt"

	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/sentinel"
)

// DefaultCapacity bounds the memory queue when no capacity is configured.
const DefaultCapacity = 1024

// Memory is a bounded in-process queue backed by a channel.
type Memory struct {
	ch chan id.RequestID
}

func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Memory{ch: make(chan id.RequestID, capacity)}
}

// Enqueue blocks when the queue is full until space frees up or ctx ends.
// A queue still full when ctx ends is reported as unavailable.
func (q *Memory) Enqueue(ctx context.Context, requestID id.RequestID) error {
	select {
	case q.ch <- requestID:
		return nil
	default:
	}
	select {
	case q.ch <- requestID:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("queue full: %w", sentinel.ErrUnavailable)
	}
}

func (q *Memory) Dequeue(ctx context.Context) (id.RequestID, error) {
	select {
	case requestID := <-q.ch:
		return requestID, nil
	case <-ctx.Done():
		return id.RequestID{}, ctx.Err()
	}
}

// Len reports the number of queued identifiers. Used by metrics gauges.
func (q *Memory) Len() int {
	return len(q.ch)
}
