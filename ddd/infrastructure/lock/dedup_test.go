package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/pkg/redisclient"
)

func newRedisStore(t *testing.T) (*RedisDedupStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	native := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = native.Close() })
	return NewRedisDedupStore(redisclient.Wrap(native, "test")), mr
}

func exerciseAcquireRelease(t *testing.T, store gateway.DedupStore) {
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "lease:m1:1080p", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Acquire(ctx, "lease:m1:1080p", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while held")

	ok, err = store.Acquire(ctx, "lease:m1:2160p", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	require.NoError(t, store.Release(ctx, "lease:m1:1080p"))
	require.NoError(t, store.Release(ctx, "lease:missing"))

	ok, err = store.Acquire(ctx, "lease:m1:1080p", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisDedupStore(t *testing.T) {
	store, _ := newRedisStore(t)
	exerciseAcquireRelease(t, store)
}

func TestRedisDedupStoreExpires(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	ok, err := store.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("test:dedup:k"))

	mr.FastForward(2 * time.Second)
	ok, err = store.Acquire(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryDedupStore(t *testing.T) {
	exerciseAcquireRelease(t, NewMemoryDedupStore())
}

func TestMemoryDedupStoreExpires(t *testing.T) {
	store := NewMemoryDedupStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := store.Acquire(ctx, "k", time.Second)
	require.True(t, ok)
	now = now.Add(2 * time.Second)
	ok, _ = store.Acquire(ctx, "k", time.Second)
	assert.True(t, ok)
}
