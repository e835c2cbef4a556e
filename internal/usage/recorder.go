// Package usage meters completed AI requests. Recording never blocks or
// fails the request that produced the entry.
package usage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/queue"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// Recorder accepts usage entries. Record must return immediately and must
// not panic; failures are reported through logs only.
type Recorder interface {
	Record(entry models.UsageLogEntry)
}

// QueueRecorder hands entries to a queue from a detached goroutine
type QueueRecorder struct {
	queue   queue.Queue[models.UsageLogEntry]
	timeout time.Duration
	logger  *utils.Logger
	wg      sync.WaitGroup
}

// NewQueueRecorder creates a recorder. timeout bounds each enqueue.
func NewQueueRecorder(q queue.Queue[models.UsageLogEntry], timeout time.Duration) *QueueRecorder {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &QueueRecorder{
		queue:   q,
		timeout: timeout,
		logger:  utils.NewLogger("usage"),
	}
}

// Record enqueues entry in the background
func (r *QueueRecorder) Record(entry models.UsageLogEntry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Usage recording panicked", "id", entry.ID, "panic", fmt.Sprint(rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.queue.Enqueue(ctx, entry); err != nil {
			r.logger.Error("Failed to record usage",
				"id", entry.ID,
				"caller_id", entry.CallerID,
				"model", entry.ModelIdentifier,
				"prompt_type", entry.PromptType,
				"tokens", entry.TokensUsed,
				"error", err)
		}
	}()
}

// Close waits for in-flight enqueues or until ctx is done
func (r *QueueRecorder) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StoreRecorder writes entries straight to a Store in the background.
// Used by tools that run without a queue worker.
type StoreRecorder struct {
	store   Store
	timeout time.Duration
	logger  *utils.Logger
	wg      sync.WaitGroup
}

// NewStoreRecorder creates a recorder that bypasses the queue
func NewStoreRecorder(store Store, timeout time.Duration) *StoreRecorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StoreRecorder{
		store:   store,
		timeout: timeout,
		logger:  utils.NewLogger("usage"),
	}
}

// Record persists entry in the background
func (r *StoreRecorder) Record(entry models.UsageLogEntry) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("Usage recording panicked", "panic", fmt.Sprint(rec))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		if err := r.store.Create(ctx, &entry); err != nil {
			r.logger.Error("Failed to persist usage", "model", entry.ModelIdentifier, "error", err)
		}
	}()
}

// Close waits for in-flight writes or until ctx is done
func (r *StoreRecorder) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NopRecorder discards entries
type NopRecorder struct{}

// Record does nothing
func (NopRecorder) Record(models.UsageLogEntry) {}
