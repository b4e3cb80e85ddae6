package queue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	id "kyc-gateway/pkg/domain"
)

// DefaultAMQPQueue is the queue name the AMQP adapter declares.
const DefaultAMQPQueue = "kyc.verification"

// AMQP is a broker-backed queue for deployments already running RabbitMQ.
// Messages are persistent and acked only after delivery to the caller, so a
// crashed consumer redelivers rather than loses work.
type AMQP struct {
	ch         *amqp.Channel
	queue      string
	deliveries <-chan amqp.Delivery
}

func NewAMQP(conn *amqp.Connection, queueName string) (*AMQP, error) {
	if queueName == "" {
		queueName = DefaultAMQPQueue
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("start consumer: %w", err)
	}
	return &AMQP{ch: ch, queue: queueName, deliveries: deliveries}, nil
}

func (q *AMQP) Enqueue(ctx context.Context, requestID id.RequestID) error {
	err := q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "text/plain",
		DeliveryMode: amqp.Persistent,
		Body:         []byte(requestID.String()),
	})
	if err != nil {
		return fmt.Errorf("publish to queue: %w", err)
	}
	return nil
}

func (q *AMQP) Dequeue(ctx context.Context) (id.RequestID, error) {
	select {
	case delivery, ok := <-q.deliveries:
		if !ok {
			return id.RequestID{}, fmt.Errorf("queue channel closed")
		}
		requestID, err := id.ParseRequestID(string(delivery.Body))
		if err != nil {
			_ = delivery.Nack(false, false)
			return id.RequestID{}, fmt.Errorf("malformed queue entry %q: %w", delivery.Body, err)
		}
		if err := delivery.Ack(false); err != nil {
			return id.RequestID{}, fmt.Errorf("ack delivery: %w", err)
		}
		return requestID, nil
	case <-ctx.Done():
		return id.RequestID{}, ctx.Err()
	}
}

func (q *AMQP) Close() error {
	return q.ch.Close()
}
