package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7/pkg/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// chanSource 每次调用返回一个预置通道
type chanSource struct {
	ch chan notification.Info
}

func (s *chanSource) ListenBucketNotification(ctx context.Context, bucket, prefix, suffix string, events []string) <-chan notification.Info {
	out := make(chan notification.Info)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case info, ok := <-s.ch:
				if !ok {
					<-ctx.Done()
					return
				}
				select {
				case out <- info:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func record(name, key string) notification.Event {
	var ev notification.Event
	ev.EventName = name
	ev.S3.Bucket.Name = "media"
	ev.S3.Object.Key = key
	ev.S3.Object.ContentType = "video/mp4"
	ev.S3.Object.Size = 42
	return ev
}

func TestDecode(t *testing.T) {
	ev, ok := Decode(record("s3:ObjectCreated:Put", "media%2Fu1%2Fmy+clip.mp4"))
	require.True(t, ok)
	assert.Equal(t, "media/u1/my clip.mp4", ev.Key)
	assert.Equal(t, "media", ev.Bucket)
	assert.Equal(t, int64(42), ev.Size)

	_, ok = Decode(record("s3:ObjectRemoved:Delete", "media/u1/a.mp4"))
	assert.False(t, ok)
}

func TestListenerDispatchesCreatedEvents(t *testing.T) {
	src := &chanSource{ch: make(chan notification.Info, 1)}
	var mu sync.Mutex
	var keys []string
	l := NewMinioListener(src, "media", "media/", 2, func(ctx context.Context, ev ObjectCreated) error {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, ev.Key)
		return nil
	})
	require.NoError(t, l.Start(context.Background()))

	src.ch <- notification.Info{Records: []notification.Event{
		record("s3:ObjectCreated:Put", "media/u1/a.mp4"),
		record("s3:ObjectRemoved:Delete", "media/u1/b.mp4"),
	}}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Stop())
	require.NoError(t, l.Stop())
	assert.Equal(t, []string{"media/u1/a.mp4"}, keys)
}

func TestListenerKeepsReadingWhileHandlersBusy(t *testing.T) {
	src := &chanSource{ch: make(chan notification.Info)}
	release := make(chan struct{})
	var mu sync.Mutex
	var keys []string
	l := NewMinioListener(src, "media", "media/", 1, func(ctx context.Context, ev ObjectCreated) error {
		select {
		case <-release:
		case <-ctx.Done():
			return ctx.Err()
		}
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, ev.Key)
		return nil
	})
	require.NoError(t, l.Start(context.Background()))

	// 唯一的 worker 卡在第一个事件上，通知流仍能被读完
	for _, key := range []string{"media/u1/a.mp4", "media/u1/b.mp4", "media/u1/c.mp4", "media/u1/d.mp4"} {
		select {
		case src.ch <- notification.Info{Records: []notification.Event{record("s3:ObjectCreated:Put", key)}}:
		case <-time.After(time.Second):
			t.Fatalf("notification stream blocked at %s", key)
		}
	}
	require.Eventually(t, func() bool { return l.backlog.len() == 3 }, time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(keys) == 4
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, l.Stop())
	assert.Equal(t, []string{"media/u1/a.mp4", "media/u1/b.mp4", "media/u1/c.mp4", "media/u1/d.mp4"}, keys)
}
