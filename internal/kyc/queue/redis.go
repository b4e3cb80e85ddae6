package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "kyc-gateway/pkg/domain"
)

// DefaultRedisKey is the list key the Redis queue pushes to.
const DefaultRedisKey = "kyc:verification:queue"

// dequeuePollInterval bounds how long a blocking pop holds a connection, so
// context cancellation is observed promptly.
const dequeuePollInterval = 2 * time.Second

// Redis is a durable queue backed by a Redis list. Submissions LPUSH, the
// worker pool BRPOPs, so identifiers survive process restarts.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (q *Redis) Enqueue(ctx context.Context, requestID id.RequestID) error {
	if err := q.client.LPush(ctx, q.key, requestID.String()).Err(); err != nil {
		return fmt.Errorf("push to queue: %w", err)
	}
	return nil
}

func (q *Redis) Dequeue(ctx context.Context) (id.RequestID, error) {
	for {
		values, err := q.client.BRPop(ctx, dequeuePollInterval, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				if ctx.Err() != nil {
					return id.RequestID{}, ctx.Err()
				}
				continue
			}
			if ctx.Err() != nil {
				return id.RequestID{}, ctx.Err()
			}
			return id.RequestID{}, fmt.Errorf("pop from queue: %w", err)
		}
		// BRPop returns [key, value].
		requestID, err := id.ParseRequestID(values[1])
		if err != nil {
			return id.RequestID{}, fmt.Errorf("malformed queue entry %q: %w", values[1], err)
		}
		return requestID, nil
	}
}

// Len reports the queued depth. Used by metrics gauges.
func (q *Redis) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
