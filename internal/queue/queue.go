package queue

import (
	"context"
	"time"
)

// Package queue carries processing messages from the execution logger to
// the background worker, with two backends:
//
// 1. Memory Queue (in-memory, channel-based):
//    - No persistence, data lost on restart
//    - Zero external dependencies
//    - Meant for standalone/development deployments
//
// 2. Redis Queue (Redis List-based):
//    - Persistent across restarts
//    - Supports distributed workers
//    - Production-ready for Kubernetes deployments
//
// Delivery is at-least-once and unordered: the worker re-enqueues a
// message whose processing failed, so a message can be seen more than
// once and messages for the same trace id can be in flight on several
// workers at the same time. Everything downstream is written to tolerate
// that. Messages that keep failing land in the dead-letter queue after
// MaxRetries deliveries.

// Message asks the worker to process one finished execution log.
// Attempts counts prior deliveries; zero on first send.
type Message struct {
	TenantID  int64 `json:"tenant_id"`
	ProjectID int64 `json:"project_id"`
	PromptID  int64 `json:"prompt_id"`
	Version   int64 `json:"version"`
	LogID     int64 `json:"log_id"`
	Attempts  int   `json:"attempts,omitempty"`
}

// Queue defines the interface for message queuing
type Queue interface {
	// Enqueue adds a message to the queue
	Enqueue(ctx context.Context, msg Message) error

	// Dequeue retrieves messages from the queue (up to maxItems)
	// Blocks until at least one message is available or context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]Message, error)

	// DequeueWithTimeout retrieves messages with a timeout
	// Returns messages if available before timeout, empty slice otherwise
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]Message, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue defines the interface for handling messages that
// exhausted their deliveries
type DeadLetterQueue interface {
	// Add parks a failed message with its final error
	Add(ctx context.Context, msg Message, cause error) error

	// List retrieves items from the dead letter queue
	List(ctx context.Context, maxItems int) ([]DeadLetterItem, error)

	// Remove removes an item from the dead letter queue
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem represents a parked message
type DeadLetterItem struct {
	ID        string
	Message   Message
	Error     string
	Timestamp time.Time
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of messages to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of deliveries before a message
	// is parked in the dead-letter queue
	MaxRetries int

	// RetryBackoff is the delay before a failed message is re-enqueued
	RetryBackoff time.Duration

	// UseRedis indicates whether to use Redis or in-memory queue
	UseRedis bool

	// RedisAddr is the Redis server address (if UseRedis is true)
	RedisAddr string

	// RedisPassword is the Redis password (if UseRedis is true)
	RedisPassword string

	// RedisDB is the Redis database number (if UseRedis is true)
	RedisDB int

	// QueueName is the name/key for the queue
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UseRedis:     false,
		QueueName:    queueName,
	}
}
