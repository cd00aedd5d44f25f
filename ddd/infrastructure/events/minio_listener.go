package events

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/notification"
	"golang.org/x/sync/errgroup"

	"media-transcode-service/pkg/logger"
)

// ObjectCreated 解码后的对象写入事件
type ObjectCreated struct {
	Bucket      string
	Key         string
	ContentType string
	Size        int64
}

// HandlerFunc 处理一个对象写入事件
type HandlerFunc func(ctx context.Context, ev ObjectCreated) error

// NotificationSource 桶通知来源，*minio.Client 满足该接口
type NotificationSource interface {
	ListenBucketNotification(ctx context.Context, bucketName, prefix, suffix string, events []string) <-chan notification.Info
}

var _ NotificationSource = (*minio.Client)(nil)

// MinioListener 订阅桶的 ObjectCreated 通知，作为 object-finalized 事件源。
// 读取与处理分开：通知流持续读入 backlog，固定数量的 worker 处理，
// 720p 同步编码耗时再长也不会阻塞通知流。
type MinioListener struct {
	source      NotificationSource
	bucket      string
	prefix      string
	handler     HandlerFunc
	concurrency int
	backoff     time.Duration
	backlog     *backlog

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMinioListener 创建监听器
func NewMinioListener(source NotificationSource, bucket, prefix string, concurrency int, handler HandlerFunc) *MinioListener {
	if concurrency <= 0 {
		concurrency = 2
	}
	return &MinioListener{
		source:      source,
		bucket:      bucket,
		prefix:      strings.TrimLeft(prefix, "/"),
		handler:     handler,
		concurrency: concurrency,
		backoff:     3 * time.Second,
		backlog:     newBacklog(),
	}
}

// Start 在后台开始监听
func (l *MinioListener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return nil
	}
	listenCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(listenCtx, l.done)
	logger.Infof("Bucket notification listener started bucket=%s prefix=%s", l.bucket, l.prefix)
	return nil
}

// Stop 停止监听并等待在途事件处理完成
func (l *MinioListener) Stop() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel = nil
	l.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (l *MinioListener) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	var g errgroup.Group
	for i := 0; i < l.concurrency; i++ {
		g.Go(func() error {
			l.work(ctx)
			return nil
		})
	}
	defer func() {
		_ = g.Wait()
		if n := l.backlog.len(); n > 0 {
			logger.Warn("pending object events dropped on shutdown", logger.Fields{"bucket": l.bucket, "events": n})
		}
	}()

	for ctx.Err() == nil {
		ch := l.source.ListenBucketNotification(ctx, l.bucket, l.prefix, "", []string{"s3:ObjectCreated:*"})
		for info := range ch {
			if info.Err != nil {
				logger.Warn("bucket notification error", logger.Fields{"bucket": l.bucket, "error": info.Err.Error()})
				continue
			}
			for _, rec := range info.Records {
				if ev, ok := Decode(rec); ok {
					l.backlog.push(ev)
				}
			}
		}
		// 通道关闭说明连接断开，稍后重连
		select {
		case <-ctx.Done():
		case <-time.After(l.backoff):
		}
	}
}

func (l *MinioListener) work(ctx context.Context) {
	for {
		if ev, ok := l.backlog.pop(); ok {
			if err := l.handler(ctx, ev); err != nil {
				logger.Warn("object event handling failed", logger.Fields{"object": ev.Key, "error": err.Error()})
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-l.backlog.ready:
		}
	}
}

// backlog 无界的待处理事件队列，push 从不阻塞
type backlog struct {
	mu    sync.Mutex
	items []ObjectCreated
	ready chan struct{}
}

func newBacklog() *backlog {
	return &backlog{ready: make(chan struct{}, 1)}
}

func (b *backlog) push(ev ObjectCreated) {
	b.mu.Lock()
	b.items = append(b.items, ev)
	b.mu.Unlock()
	b.signal()
}

func (b *backlog) pop() (ObjectCreated, bool) {
	b.mu.Lock()
	if len(b.items) == 0 {
		b.mu.Unlock()
		return ObjectCreated{}, false
	}
	ev := b.items[0]
	b.items[0] = ObjectCreated{}
	b.items = b.items[1:]
	more := len(b.items) > 0
	b.mu.Unlock()
	if more {
		b.signal()
	}
	return ev, true
}

func (b *backlog) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *backlog) signal() {
	select {
	case b.ready <- struct{}{}:
	default:
	}
}

// Decode 把通知记录转为事件；对象键在通知中是 URL 编码的
func Decode(rec notification.Event) (ObjectCreated, bool) {
	if !strings.HasPrefix(rec.EventName, "s3:ObjectCreated:") {
		return ObjectCreated{}, false
	}
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		key = rec.S3.Object.Key
	}
	if key == "" {
		return ObjectCreated{}, false
	}
	return ObjectCreated{
		Bucket:      rec.S3.Bucket.Name,
		Key:         key,
		ContentType: rec.S3.Object.ContentType,
		Size:        rec.S3.Object.Size,
	}, true
}
