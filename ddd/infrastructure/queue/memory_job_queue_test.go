package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJobQueueFIFO(t *testing.T) {
	q := NewMemoryJobQueue(4)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "m1", []byte("a")))
	require.NoError(t, q.Enqueue(ctx, "m1", []byte("b")))

	d, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", string(d.Body))
	assert.Equal(t, 1, d.Attempt)

	d, err = q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", string(d.Body))

	m := q.GetMetrics()
	assert.Equal(t, uint64(2), m.EnqueueCount)
	assert.Equal(t, uint64(2), m.DequeueCount)
	assert.Equal(t, 4, m.MaxSize)
}

func TestMemoryJobQueueFull(t *testing.T) {
	q := NewMemoryJobQueue(1)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, "m1", []byte("a")))
	assert.ErrorIs(t, q.Enqueue(ctx, "m1", []byte("b")), ErrQueueFull)
}

func TestMemoryJobQueueCloseUnblocksDequeue(t *testing.T) {
	q := NewMemoryJobQueue(1)
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("dequeue not released by close")
	}
	assert.True(t, q.IsClosed())
	assert.ErrorIs(t, q.Enqueue(context.Background(), "m1", nil), ErrQueueClosed)
}
