package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestQueue(t *testing.T) (*miniredis.Miniredis, *Service) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	st := store.NewRedisStoreFromClient(client)
	return s, New(st, zerolog.Nop())
}

func TestEnqueue_Dequeue_RoundTrip(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	id, err := svc.Enqueue(ctx, "q", map[string]interface{}{"x": 1.0, "y": 2.0})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	tk, err := svc.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)
	require.NotNil(t, tk)

	assert.Equal(t, id, tk.ID)
	assert.Equal(t, task.StatusPending, tk.Status)
	assert.Equal(t, map[string]interface{}{"x": 1.0, "y": 2.0}, tk.Kwargs)
}

func TestDequeue_MovesToProcessingSidecar(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, "q", nil)
	require.NoError(t, err)

	_, err = svc.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)

	mainLen, err := svc.Count(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(0), mainLen)

	procLen, err := svc.CountProcessing(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), procLen)
}

func TestDequeue_TimeoutReturnsNilTask(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	tk, err := svc.Dequeue(ctx, "empty-q", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, tk)
}

func TestMarkComplete_RemovesFromSidecar(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, "q", nil)
	require.NoError(t, err)
	tk, err := svc.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)

	require.NoError(t, svc.MarkComplete(ctx, "q", tk.ID))

	procLen, err := svc.CountProcessing(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(0), procLen)
}

func TestMarkComplete_NonexistentIDIsNoOp(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	err := svc.MarkComplete(ctx, "q", "does-not-exist")
	assert.NoError(t, err)
}

func TestRequeue_BumpsRetryCountAndAppendsToTail(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, "q", nil)
	require.NoError(t, err)
	tk, err := svc.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)

	require.NoError(t, svc.Requeue(ctx, "q", tk))

	mainLen, err := svc.Count(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mainLen)

	requeued, err := svc.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, requeued.RetryCount)
	assert.Nil(t, requeued.StartTime)
	assert.Equal(t, task.StatusPending, requeued.Status)
}

func TestRequeue_DoesNotRemoveSidecarEntry(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, "q", nil)
	require.NoError(t, err)
	tk, err := svc.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)

	require.NoError(t, svc.Requeue(ctx, "q", tk))

	procLen, err := svc.CountProcessing(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), procLen, "requeue must leave the original sidecar entry in place")
}

func TestRecover_RestoresOrderToHead(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	ids := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := svc.Enqueue(ctx, "q", nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for i := 0; i < 3; i++ {
		_, err := svc.Dequeue(ctx, "q", time.Second)
		require.NoError(t, err)
	}

	mainLen, _ := svc.Count(ctx, "q")
	require.Equal(t, int64(0), mainLen)

	n, err := svc.Recover(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	mainLen, err = svc.Count(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(3), mainLen)

	procLen, err := svc.CountProcessing(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(0), procLen)

	for _, id := range ids {
		tk, err := svc.Dequeue(ctx, "q", time.Second)
		require.NoError(t, err)
		assert.Equal(t, id, tk.ID)
	}
}

func TestRecover_Idempotent(t *testing.T) {
	_, svc := setupTestQueue(t)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, "q", nil)
	require.NoError(t, err)
	_, err = svc.Dequeue(ctx, "q", time.Second)
	require.NoError(t, err)

	n1, err := svc.Recover(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 1, n1)

	n2, err := svc.Recover(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, 0, n2)

	mainLen, err := svc.Count(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(1), mainLen)
}
