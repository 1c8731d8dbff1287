package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the telemetry pipeline.
type Config struct {
	HTTPPort   string
	Database   DatabaseConfig
	Redis      RedisConfig
	Blob       BlobConfig
	Queue      QueueConfig
	Extraction ExtractionConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings. An empty Address means
// the queue falls back to the in-process implementation.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// BlobConfig holds settings for the S3-backed artifact store. An empty
// Bucket means artifacts go to the in-memory store, which only makes
// sense for local development.
type BlobConfig struct {
	Bucket string
	Region string
	Prefix string
}

// QueueConfig holds processing queue settings
type QueueConfig struct {
	Name         string
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// ExtractionConfig bounds the trace aggregation retry loop
type ExtractionConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getEnvString(key string, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort: getEnvString("HTTP_PORT", "8080"),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Redis: RedisConfig{
			Address:  getEnvString("REDIS_ADDRESS", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Blob: BlobConfig{
			Bucket: getEnvString("BLOB_S3_BUCKET", ""),
			Region: getEnvString("BLOB_S3_REGION", "us-east-1"),
			Prefix: getEnvString("BLOB_S3_PREFIX", ""),
		},
		Queue: QueueConfig{
			Name:         getEnvString("QUEUE_NAME", "prompt-trace:processing"),
			BatchSize:    getEnvInt("QUEUE_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("QUEUE_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("QUEUE_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("QUEUE_RETRY_BACKOFF", 1*time.Second),
		},
		Extraction: ExtractionConfig{
			MaxAttempts:  getEnvInt("EXTRACTION_MAX_ATTEMPTS", 3),
			RetryBackoff: getEnvDuration("EXTRACTION_RETRY_BACKOFF", 50*time.Millisecond),
		},
	}

	return cfg, nil
}
