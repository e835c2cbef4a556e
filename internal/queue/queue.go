// Package queue carries asynchronous work between the request path and
// background workers. Two backends are provided:
//
//  1. Memory queue (buffered channel): no persistence, no external
//     dependencies. Items are lost on restart. Suited to single-instance
//     and development deployments.
//
//  2. Redis queue (Redis list): survives gateway restarts and can be
//     drained by any instance sharing the Redis server.
//
// Usage log entries flow like this:
//
//	┌──────────────┐   Enqueue    ┌──────────────┐   batches   ┌──────────────┐
//	│  Completion  │ ───────────▶ │ Usage Queue  │ ──────────▶ │ Usage Worker │
//	│   Service    │ (fire&forget)└──────────────┘             └──────┬───────┘
//	└──────────────┘                                    retry w/ backoff │
//	                                                        ┌───────────┴────┐
//	                                                        ▼                ▼
//	                                                 ┌────────────┐     ┌─────┐
//	                                                 │ ai_usage_  │     │ DLQ │
//	                                                 │ logs table │     └─────┘
//	                                                 └────────────┘
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue defines the interface for message queuing
type Queue[T any] interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item T) error

	// Dequeue retrieves items from the queue (up to maxItems)
	// Blocks until at least one item is available or context is cancelled
	Dequeue(ctx context.Context, maxItems int) ([]T, error)

	// DequeueWithTimeout retrieves items with a timeout
	// Returns items if available before timeout, empty slice otherwise
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue gracefully
	Close() error
}

// DeadLetterQueue defines the interface for handling failed items
type DeadLetterQueue[T any] interface {
	// Add adds a failed item to the dead letter queue with error info
	Add(ctx context.Context, item T, err error) error

	// List retrieves items from the dead letter queue
	List(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error)

	// Remove removes an item from the dead letter queue
	Remove(ctx context.Context, id string) error

	// Close shuts down the dead letter queue
	Close() error
}

// DeadLetterItem represents an item in the dead letter queue
type DeadLetterItem[T any] struct {
	ID        string    `json:"id"`
	Item      T         `json:"item"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items to process in a batch
	BatchSize int

	// BatchTimeout is how long to wait before processing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries
	RetryBackoff time.Duration

	// RedisAddr selects the Redis backend when non-empty
	RedisAddr string

	// RedisPassword is the Redis password
	RedisPassword string

	// RedisDB is the Redis database number
	RedisDB int

	// QueueName is the name/key for the queue
	QueueName string
}

// UseRedis reports whether the Redis backend is configured
func (c *Config) UseRedis() bool {
	return c.RedisAddr != ""
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}

// New builds the queue and dead-letter queue pair described by config.
// With a Redis address both share one connection, otherwise both live in memory.
func New[T any](config *Config) (Queue[T], DeadLetterQueue[T], error) {
	if config == nil {
		config = DefaultConfig("default")
	}
	if !config.UseRedis() {
		return NewMemoryQueue[T](config), NewMemoryDeadLetterQueue[T](), nil
	}

	client, err := dialRedis(config)
	if err != nil {
		return nil, nil, err
	}
	return NewRedisQueueWithClient[T](client, config), NewRedisDeadLetterQueueWithClient[T](client, config), nil
}

func dialRedis(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}
