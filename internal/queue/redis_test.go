package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfig(t *testing.T, name string) (*Config, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	config := DefaultConfig(name)
	config.RedisAddr = mr.Addr()
	return config, mr
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	config, mr := redisConfig(t, "test-redis-basic")

	q, err := NewRedisQueue[testItem](config)
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, testItem{Caller: "u1", Tokens: 5}))
	require.NoError(t, q.Enqueue(ctx, testItem{Caller: "u2", Tokens: 6}))

	// stored as JSON in a list
	raw, err := mr.List("queue:test-redis-basic")
	require.NoError(t, err)
	assert.JSONEq(t, `{"caller":"u1","tokens":5}`, raw[0])

	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	items, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []testItem{{Caller: "u1", Tokens: 5}, {Caller: "u2", Tokens: 6}}, items)
}

func TestRedisQueue_DequeueWithTimeout(t *testing.T) {
	config, _ := redisConfig(t, "test-redis-timeout")

	q, err := NewRedisQueue[int](config)
	require.NoError(t, err)
	defer q.Close()

	ctx := context.Background()
	items, err := q.DequeueWithTimeout(ctx, 10, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, items)

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, i))
	}
	items, err = q.DequeueWithTimeout(ctx, 2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, items)
}

func TestRedisQueue_SkipsUndecodableItems(t *testing.T) {
	config, mr := redisConfig(t, "test-redis-junk")

	q, err := NewRedisQueue[testItem](config)
	require.NoError(t, err)
	defer q.Close()

	_, err = mr.Push("queue:test-redis-junk", `{"caller":"ok","tokens":1}`, "not json", `{"caller":"ok2","tokens":2}`)
	require.NoError(t, err)

	items, err := q.DequeueWithTimeout(context.Background(), 10, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []testItem{{Caller: "ok", Tokens: 1}, {Caller: "ok2", Tokens: 2}}, items)
}

func TestRedisQueue_Persistence(t *testing.T) {
	config, _ := redisConfig(t, "test-redis-persist")
	ctx := context.Background()

	q1, err := NewRedisQueue[int](config)
	require.NoError(t, err)
	require.NoError(t, q1.Enqueue(ctx, 42))
	require.NoError(t, q1.Close())

	q2, err := NewRedisQueue[int](config)
	require.NoError(t, err)
	defer q2.Close()

	items, err := q2.DequeueWithTimeout(ctx, 1, time.Second)
	require.NoError(t, err)
	assert.Equal(t, []int{42}, items)
}

func TestRedisQueue_ConnectFailure(t *testing.T) {
	config := DefaultConfig("unreachable")
	config.RedisAddr = "127.0.0.1:1"

	_, err := NewRedisQueue[int](config)
	assert.Error(t, err)

	_, _, err = New[int](config)
	assert.Error(t, err)
}

func TestRedisDeadLetterQueue_AddListRemove(t *testing.T) {
	config, _ := redisConfig(t, "test-redis-dlq")

	dlq, err := NewRedisDeadLetterQueue[testItem](config)
	require.NoError(t, err)
	defer dlq.Close()

	ctx := context.Background()
	require.NoError(t, dlq.Add(ctx, testItem{Caller: "first"}, errors.New("insert failed")))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, dlq.Add(ctx, testItem{Caller: "second"}, errors.New("insert failed")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Item.Caller)
	assert.Equal(t, "insert failed", items[0].Error)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))
	assert.ErrorIs(t, dlq.Remove(ctx, items[0].ID), ErrItemNotFound)

	items, err = dlq.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "second", items[0].Item.Caller)
}

func TestNew_SharesRedisConnection(t *testing.T) {
	config, _ := redisConfig(t, "usage")

	q, dlq, err := New[testItem](config)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, dlq.Add(ctx, testItem{Caller: "x"}, errors.New("boom")))

	// closing the dead letter queue must not close the shared client
	require.NoError(t, dlq.Close())
	require.NoError(t, q.Enqueue(ctx, testItem{Caller: "y"}))
	require.NoError(t, q.Close())
}
