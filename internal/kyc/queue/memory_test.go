package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	id "kyc-gateway/pkg/domain"
	"kyc-gateway/pkg/platform/sentinel"
)

func TestMemoryEnqueueDequeue(t *testing.T) {
	q := NewMemory(4)
	ctx := context.Background()

	first := id.NewRequestID()
	second := id.NewRequestID()
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))
	require.Equal(t, 2, q.Len())

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, first, got)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, second, got)
}

func TestMemoryDequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewMemory(1)
	want := id.NewRequestID()

	done := make(chan id.RequestID, 1)
	go func() {
		got, err := q.Dequeue(context.Background())
		if err == nil {
			done <- got
		}
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), want))

	select {
	case got := <-done:
		require.Equal(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not observe the enqueued identifier")
	}
}

func TestMemoryDequeueHonorsCancellation(t *testing.T) {
	q := NewMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		errs <- err
	}()

	cancel()
	select {
	case err := <-errs:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return after cancellation")
	}
}

func TestMemoryEnqueueBlocksWhenFull(t *testing.T) {
	q := NewMemory(1)
	require.NoError(t, q.Enqueue(context.Background(), id.NewRequestID()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Enqueue(ctx, id.NewRequestID())
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestMemoryEnqueueWithEndedContextSucceedsWhenSpaceRemains(t *testing.T) {
	q := NewMemory(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, q.Enqueue(ctx, id.NewRequestID()))
	require.Equal(t, 1, q.Len())
}
