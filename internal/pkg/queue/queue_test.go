package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return client, cleanup
}

func TestQueue_Push(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "test_queue")
	ctx := context.Background()

	t.Run("push single message", func(t *testing.T) {
		msg := &RecommendationJobMessage{
			AnalysisID: 100,
			UserID:     10,
		}

		err := q.Push(ctx, msg)
		require.NoError(t, err)

		length, err := q.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), length)
	})

	t.Run("push multiple messages", func(t *testing.T) {
		client.Del(ctx, "test_queue2")
		q2 := NewQueue(client, "test_queue2")

		for i := 0; i < 5; i++ {
			err := q2.Push(ctx, &RecommendationJobMessage{AnalysisID: int64(i)})
			require.NoError(t, err)
		}

		length, err := q2.Length(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), length)
	})
}

func TestQueue_Pop(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	q := NewQueue(client, "pop_queue")
	ctx := context.Background()

	t.Run("pop returns pushed message", func(t *testing.T) {
		pushed := &RecommendationJobMessage{AnalysisID: 42, UserID: 7}
		require.NoError(t, q.Push(ctx, pushed))

		msg, err := q.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, msg)
		assert.Equal(t, int64(42), msg.AnalysisID)
		assert.Equal(t, int64(7), msg.UserID)
	})

	t.Run("fifo order", func(t *testing.T) {
		client.Del(ctx, "fifo_queue")
		q2 := NewQueue(client, "fifo_queue")

		require.NoError(t, q2.Push(ctx, &RecommendationJobMessage{AnalysisID: 1}))
		require.NoError(t, q2.Push(ctx, &RecommendationJobMessage{AnalysisID: 2}))

		first, err := q2.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, int64(1), first.AnalysisID)

		second, err := q2.Pop(ctx, time.Second)
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, int64(2), second.AnalysisID)
	})
}
