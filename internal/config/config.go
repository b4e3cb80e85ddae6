// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Queue driver names accepted in KYC_QUEUE_DRIVER.
const (
	QueueMemory = "memory"
	QueueRedis  = "redis"
	QueueAMQP   = "amqp"
)

// Config holds everything the server binary needs to wire itself.
type Config struct {
	Addr     string
	LogLevel string

	// DatabaseURL empty means memory stores.
	DatabaseURL string

	QueueDriver   string
	QueueCapacity int
	RedisURL      string
	AMQPURL       string

	// KafkaBrokers non-empty routes audit entries to Kafka.
	KafkaBrokers []string
	KafkaTopic   string

	UploadDir        string
	AllowedMimeTypes []string

	// MinioEndpoint non-empty switches blob storage to MinIO.
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	Workers    int
	DailyLimit int
}

// FromEnv reads configuration with defaults suitable for local development.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:             envOr("KYC_ADDR", ":8080"),
		LogLevel:         envOr("KYC_LOG_LEVEL", "info"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		QueueDriver:      envOr("KYC_QUEUE_DRIVER", QueueMemory),
		RedisURL:         os.Getenv("REDIS_URL"),
		AMQPURL:          os.Getenv("AMQP_URL"),
		KafkaTopic:       envOr("KYC_AUDIT_TOPIC", "kyc.audit"),
		UploadDir:        envOr("KYC_UPLOAD_DIR", "./uploads"),
		MinioEndpoint:    os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:   os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:   os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:      envOr("MINIO_BUCKET", "kyc-documents"),
		MinioUseSSL:      os.Getenv("MINIO_USE_SSL") == "true",
		AllowedMimeTypes: splitList(os.Getenv("KYC_ALLOWED_TYPES")),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	}

	var err error
	if cfg.Workers, err = envInt("KYC_WORKERS", 10); err != nil {
		return nil, err
	}
	if cfg.DailyLimit, err = envInt("KYC_DAILY_LIMIT", 5); err != nil {
		return nil, err
	}
	if cfg.QueueCapacity, err = envInt("KYC_QUEUE_CAPACITY", 1024); err != nil {
		return nil, err
	}

	switch cfg.QueueDriver {
	case QueueMemory:
	case QueueRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("KYC_QUEUE_DRIVER=redis requires REDIS_URL")
		}
	case QueueAMQP:
		if cfg.AMQPURL == "" {
			return nil, fmt.Errorf("KYC_QUEUE_DRIVER=amqp requires AMQP_URL")
		}
	default:
		return nil, fmt.Errorf("unknown queue driver %q", cfg.QueueDriver)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
