package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// DefaultKafkaTopic is the topic the Kafka store produces to.
const DefaultKafkaTopic = "kyc.audit"

// KafkaStore publishes entries to a Kafka topic instead of a database, for
// deployments that ship audit into a central pipeline. Produces are async;
// delivery failures are logged, matching the fire-and-forget contract.
type KafkaStore struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

func NewKafkaStore(brokers []string, topic string, logger *slog.Logger) (*KafkaStore, error) {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaStore{client: client, topic: topic, logger: logger}, nil
}

func (s *KafkaStore) Append(ctx context.Context, entry *Entry) error {
	payload, err := json.Marshal(map[string]any{
		"id":          entry.ID.String(),
		"action":      entry.Action,
		"entity_type": entry.EntityType,
		"entity_id":   entry.EntityID,
		"details":     entry.Details,
		"actor_id":    entry.ActorID,
		"created_at":  entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(entry.EntityID),
		Value: payload,
	}
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil && s.logger != nil {
			s.logger.Error("audit publish failed",
				"action", entry.Action,
				"entity_id", entry.EntityID,
				"error", err.Error(),
			)
		}
	})
	return nil
}

// ListByEntity is unsupported on the Kafka store; entries live in the
// downstream pipeline.
func (s *KafkaStore) ListByEntity(context.Context, string, string) ([]*Entry, error) {
	return nil, fmt.Errorf("kafka audit store does not support reads")
}

func (s *KafkaStore) Close() {
	s.client.Close()
}
