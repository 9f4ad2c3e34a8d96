// Package kafka_config loads producer settings for the booking event stream.
package kafka_config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"ticketing/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

const (
	EnvBrokers          = "KAFKA_BROKERS"
	EnvMaxAttempts      = "KAFKA_PRODUCER_MAX_ATTEMPTS"
	EnvBatchTimeout     = "KAFKA_PRODUCER_BATCH_TIMEOUT"
	EnvWriteTimeout     = "KAFKA_PRODUCER_WRITE_TIMEOUT"
	EnvRequiredAcks     = "KAFKA_PRODUCER_REQUIRE_ACKS"
	EnvCompression      = "KAFKA_PRODUCER_COMPRESSION"
	EnvAsync            = "KAFKA_PRODUCER_ASYNC"
	EnvDLQEnabled       = "KAFKA_DLQ_ENABLED"
	EnvEnableMiddleware = "KAFKA_ENABLE_MIDDLEWARE"

	DefaultBrokers      = "localhost:9092"
	DefaultMaxAttempts  = 3
	DefaultBatchTimeout = 10 * time.Millisecond
	DefaultWriteTimeout = 5 * time.Second
	DefaultCompression  = "snappy"

	// DLQSuffix names a topic's dead letter queue.
	DLQSuffix = "-dlq"
)

var compressionCodecs = map[string]compress.Compression{
	"none":   0,
	"gzip":   compress.Gzip,
	"snappy": compress.Snappy,
	"lz4":    compress.Lz4,
	"zstd":   compress.Zstd,
}

var requiredAcks = map[int]kafka.RequiredAcks{
	-1: kafka.RequireAll,
	0:  kafka.RequireNone,
	1:  kafka.RequireOne,
}

type Config struct {
	Brokers []string

	MaxAttempts  int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int // -1 all replicas, 0 none, 1 leader
	Compression  string
	Async        bool

	DLQEnabled       bool
	EnableMiddleware bool
}

// Load reads the KAFKA_* environment and validates it.
func Load() (*Config, error) {
	var brokers []string
	for _, b := range strings.Split(envStr(EnvBrokers, DefaultBrokers), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	cfg := &Config{
		Brokers:          brokers,
		MaxAttempts:      envInt(EnvMaxAttempts, DefaultMaxAttempts),
		BatchTimeout:     envDuration(EnvBatchTimeout, DefaultBatchTimeout),
		WriteTimeout:     envDuration(EnvWriteTimeout, DefaultWriteTimeout),
		RequiredAcks:     envInt(EnvRequiredAcks, -1),
		Compression:      strings.ToLower(envStr(EnvCompression, DefaultCompression)),
		Async:            envBool(EnvAsync, false),
		DLQEnabled:       envBool(EnvDLQEnabled, true),
		EnableMiddleware: envBool(EnvEnableMiddleware, true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) Validate() error {
	var problems []string

	if len(cfg.Brokers) == 0 {
		problems = append(problems, "at least one broker is required")
	}
	if cfg.MaxAttempts <= 0 {
		problems = append(problems, fmt.Sprintf("max attempts must be positive, got: %d", cfg.MaxAttempts))
	}
	if cfg.BatchTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("batch timeout must be positive, got: %s", cfg.BatchTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		problems = append(problems, fmt.Sprintf("write timeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if _, ok := compressionCodecs[cfg.Compression]; !ok {
		problems = append(problems, fmt.Sprintf("compression must be one of none, gzip, snappy, lz4, zstd, got: %q", cfg.Compression))
	}
	if _, ok := requiredAcks[cfg.RequiredAcks]; !ok {
		problems = append(problems, fmt.Sprintf("required acks must be -1, 0 or 1, got: %d", cfg.RequiredAcks))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid kafka configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Codec maps the configured compression name onto kafka-go's codec.
func (cfg *Config) Codec() compress.Compression {
	return compressionCodecs[cfg.Compression]
}

// Acks maps the configured acknowledgement level onto kafka-go's setting.
func (cfg *Config) Acks() kafka.RequiredAcks {
	if acks, ok := requiredAcks[cfg.RequiredAcks]; ok {
		return acks
	}
	return kafka.RequireAll
}

// DLQTopic returns the dead letter topic for topic, or "" when disabled.
func (cfg *Config) DLQTopic(topic string) string {
	if !cfg.DLQEnabled {
		return ""
	}
	return topic + DLQSuffix
}

func (cfg *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded",
		"brokers", cfg.Brokers,
		"max_attempts", cfg.MaxAttempts,
		"batch_timeout", cfg.BatchTimeout,
		"write_timeout", cfg.WriteTimeout,
		"required_acks", cfg.RequiredAcks,
		"compression", cfg.Compression,
		"async", cfg.Async,
		"dlq_enabled", cfg.DLQEnabled,
		"middleware", cfg.EnableMiddleware,
	)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
