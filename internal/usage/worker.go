package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/queue"
	"github.com/esche888/appcollab-sub000/internal/utils"
)

// Store persists usage entries. storage.UsageRepository implements it.
type Store interface {
	Create(ctx context.Context, entry *models.UsageLogEntry) error
	CreateBatch(ctx context.Context, entries []*models.UsageLogEntry) error
}

// Worker drains the usage queue into the Store in batches
type Worker struct {
	queue       queue.Queue[models.UsageLogEntry]
	dlq         queue.DeadLetterQueue[models.UsageLogEntry]
	store       Store
	config      *queue.Config
	logger      *utils.Logger
	sleep       func(ctx context.Context, d time.Duration)
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewWorker creates a new usage queue worker
func NewWorker(q queue.Queue[models.UsageLogEntry], dlq queue.DeadLetterQueue[models.UsageLogEntry], store Store, config *queue.Config) *Worker {
	if config == nil {
		config = queue.DefaultConfig("ai-usage")
	}

	return &Worker{
		queue:       q,
		dlq:         dlq,
		store:       store,
		config:      config,
		logger:      utils.NewLogger("usage-worker"),
		sleep:       sleepCtx,
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *Worker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop signals the worker to finish and waits for the current batch and a
// final drain of whatever is still queued.
func (w *Worker) Stop() error {
	close(w.stopChan)
	<-w.stoppedChan
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.drain()
			w.logger.Info("Usage worker stopped")
			return
		case <-ctx.Done():
			w.logger.Info("Usage worker context cancelled")
			return
		default:
			w.processBatch(ctx)
		}
	}
}

// drain flushes items still buffered when the worker is stopped
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for {
		entries, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, 10*time.Millisecond)
		if len(entries) > 0 {
			w.persist(ctx, entries)
		}
		if err != nil || len(entries) == 0 {
			return
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	entries, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, w.config.BatchTimeout)
	if len(entries) > 0 {
		w.persist(ctx, entries)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, queue.ErrQueueClosed) {
			// nothing more will arrive; idle until stopped
			w.sleep(ctx, w.config.BatchTimeout)
			return
		}
		w.logger.Error("Failed to dequeue usage entries", "error", err)
		w.sleep(ctx, time.Second) // Back off on error
	}
}

// persist tries the whole batch in one transaction and falls back to
// individual inserts with retries when that fails.
func (w *Worker) persist(ctx context.Context, entries []models.UsageLogEntry) {
	batch := make([]*models.UsageLogEntry, len(entries))
	for i := range entries {
		batch[i] = &entries[i]
	}

	w.logger.Debug("Processing usage batch", "count", len(batch))

	err := w.store.CreateBatch(ctx, batch)
	if err == nil {
		return
	}

	w.logger.Error("Failed to insert batch, falling back to individual inserts", "count", len(batch), "error", err)
	for _, entry := range batch {
		if err := w.processItem(ctx, entry); err != nil {
			w.logger.Error("Failed to persist usage entry", "id", entry.ID, "error", err)
		}
	}
}

// processItem inserts one entry, retrying with exponential backoff, and
// moves it to the dead letter queue once retries are exhausted.
func (w *Worker) processItem(ctx context.Context, entry *models.UsageLogEntry) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying usage entry", "attempt", attempt, "backoff", backoff)
			w.sleep(ctx, backoff)
		}

		if err := w.store.Create(ctx, entry); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, *entry, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Usage entry moved to DLQ", "id", entry.ID, "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
}

// QueueLength returns the number of entries waiting to be persisted
func (w *Worker) QueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// DeadLetterItems returns entries that could not be persisted
func (w *Worker) DeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[models.UsageLogEntry], error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a dead-lettered entry
func (w *Worker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, dlItem.Item); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
