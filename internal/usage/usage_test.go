package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esche888/appcollab-sub000/internal/models"
	"github.com/esche888/appcollab-sub000/internal/queue"
)

// mockStore simulates database operations for testing
type mockStore struct {
	mu         sync.Mutex
	entries    []*models.UsageLogEntry
	failCount  int
	maxFails   int
	failBatch  bool
	batchCalls int
}

func (m *mockStore) Create(ctx context.Context, entry *models.UsageLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCount < m.maxFails {
		m.failCount++
		return errors.New("simulated database error")
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockStore) CreateBatch(ctx context.Context, entries []*models.UsageLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batchCalls++
	if m.failBatch {
		return errors.New("simulated batch error")
	}
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *mockStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// panicQueue panics on Enqueue
type panicQueue struct {
	queue.Queue[models.UsageLogEntry]
}

func (panicQueue) Enqueue(context.Context, models.UsageLogEntry) error {
	panic("boom")
}

// blockingQueue never accepts an item before ctx expires
type blockingQueue struct {
	queue.Queue[models.UsageLogEntry]
}

func (blockingQueue) Enqueue(ctx context.Context, _ models.UsageLogEntry) error {
	<-ctx.Done()
	return ctx.Err()
}

func testConfig() *queue.Config {
	cfg := queue.DefaultConfig("test-usage")
	cfg.BatchSize = 10
	cfg.BatchTimeout = 20 * time.Millisecond
	cfg.MaxRetries = 2
	cfg.RetryBackoff = time.Millisecond
	return cfg
}

func entry(caller string) models.UsageLogEntry {
	return models.UsageLogEntry{
		CallerID:        caller,
		ModelIdentifier: models.ModelClaude,
		PromptType:      models.PromptProjectGuidance,
		TokensUsed:      10,
		ResponseTimeMS:  5,
	}
}

func TestQueueRecorder_EnqueuesWithIDAndTimestamp(t *testing.T) {
	q := queue.NewMemoryQueue[models.UsageLogEntry](testConfig())
	rec := NewQueueRecorder(q, time.Second)

	rec.Record(entry("u1"))
	require.NoError(t, rec.Close(context.Background()))

	items, err := q.DequeueWithTimeout(context.Background(), 10, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "u1", items[0].CallerID)
	assert.NotEqual(t, uuid.Nil, items[0].ID)
	assert.False(t, items[0].CreatedAt.IsZero())
}

func TestQueueRecorder_RecordReturnsImmediately(t *testing.T) {
	rec := NewQueueRecorder(blockingQueue{}, 100*time.Millisecond)

	start := time.Now()
	rec.Record(entry("slow"))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, rec.Close(context.Background()))
}

func TestQueueRecorder_SwallowsPanics(t *testing.T) {
	rec := NewQueueRecorder(panicQueue{}, time.Second)

	assert.NotPanics(t, func() {
		rec.Record(entry("p"))
		_ = rec.Close(context.Background())
	})
}

func TestQueueRecorder_CloseHonoursContext(t *testing.T) {
	rec := NewQueueRecorder(blockingQueue{}, time.Second)
	rec.Record(entry("slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, rec.Close(ctx), context.DeadlineExceeded)
}

func TestStoreRecorder_Persists(t *testing.T) {
	store := &mockStore{}
	rec := NewStoreRecorder(store, time.Second)

	rec.Record(entry("a"))
	rec.Record(entry("b"))
	require.NoError(t, rec.Close(context.Background()))

	assert.Equal(t, 2, store.count())
}

func TestStoreRecorder_FailureIsNotFatal(t *testing.T) {
	store := &mockStore{maxFails: 1}
	rec := NewStoreRecorder(store, time.Second)

	assert.NotPanics(t, func() { rec.Record(entry("a")) })
	require.NoError(t, rec.Close(context.Background()))
	assert.Equal(t, 0, store.count())
}

func TestWorker_PersistsBatches(t *testing.T) {
	cfg := testConfig()
	q := queue.NewMemoryQueue[models.UsageLogEntry](cfg)
	store := &mockStore{}
	w := NewWorker(q, queue.NewMemoryDeadLetterQueue[models.UsageLogEntry](), store, cfg)

	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, q.Enqueue(ctx, entry("u")))
	}

	w.Start(ctx)
	assert.Eventually(t, func() bool { return store.count() == 25 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, w.Stop())
}

func TestWorker_FallsBackToIndividualInsertsWithRetry(t *testing.T) {
	cfg := testConfig()
	store := &mockStore{failBatch: true, maxFails: 2}
	dlq := queue.NewMemoryDeadLetterQueue[models.UsageLogEntry]()
	w := NewWorker(queue.NewMemoryQueue[models.UsageLogEntry](cfg), dlq, store, cfg)
	w.sleep = func(context.Context, time.Duration) {}

	e := entry("retry")
	w.persist(context.Background(), []models.UsageLogEntry{e})

	assert.Equal(t, 1, store.count())
	items, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestWorker_DeadLettersAfterMaxRetries(t *testing.T) {
	cfg := testConfig()
	store := &mockStore{failBatch: true, maxFails: 100}
	dlq := queue.NewMemoryDeadLetterQueue[models.UsageLogEntry]()
	q := queue.NewMemoryQueue[models.UsageLogEntry](cfg)
	w := NewWorker(q, dlq, store, cfg)

	var backoffs []time.Duration
	w.sleep = func(_ context.Context, d time.Duration) { backoffs = append(backoffs, d) }

	e := entry("doomed")
	err := w.processItem(context.Background(), &e)
	assert.ErrorIs(t, err, queue.ErrMaxRetriesExceeded)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, backoffs)

	ctx := context.Background()
	items, err := w.DeadLetterItems(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "doomed", items[0].Item.CallerID)

	require.NoError(t, w.RetryDeadLetterItem(ctx, items[0].ID))
	n, err := w.QueueLength(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.ErrorIs(t, w.RetryDeadLetterItem(ctx, items[0].ID), queue.ErrItemNotFound)
}

func TestWorker_StopDrainsQueue(t *testing.T) {
	cfg := testConfig()
	cfg.BatchTimeout = 50 * time.Millisecond
	q := queue.NewMemoryQueue[models.UsageLogEntry](cfg)
	store := &mockStore{}
	w := NewWorker(q, nil, store, cfg)

	ctx := context.Background()
	w.Start(ctx)

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, entry("late")))
	}
	require.NoError(t, q.Close())
	require.NoError(t, w.Stop())

	assert.Equal(t, 5, store.count())
}

func TestNopRecorder(t *testing.T) {
	assert.NotPanics(t, func() { NopRecorder{}.Record(entry("x")) })
}
