package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var (
	// ErrQueueClosed 队列已关闭
	ErrQueueClosed = errors.New("queue is closed")
	// ErrQueueFull 队列已满
	ErrQueueFull = errors.New("queue is full")
)

// Delivery 一次投递
type Delivery struct {
	Key  string
	Body []byte
	// Attempt 从 1 开始，重新入队时递增
	Attempt int
}

// QueueMetrics 队列指标
type QueueMetrics struct {
	EnqueueCount uint64
	DequeueCount uint64
	MaxSize      int
	CurrentSize  int
}

// MemoryJobQueue 基于 channel 的进程内任务队列，单机模式使用
type MemoryJobQueue struct {
	queue    chan *Delivery
	done     chan struct{}
	closed   bool
	mu       sync.RWMutex
	enqueued atomic.Uint64
	dequeued atomic.Uint64
}

// NewMemoryJobQueue 创建内存任务队列
func NewMemoryJobQueue(capacity int) *MemoryJobQueue {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoryJobQueue{
		queue: make(chan *Delivery, capacity),
		done:  make(chan struct{}),
	}
}

// Enqueue 非阻塞入队，满时返回 ErrQueueFull
func (q *MemoryJobQueue) Enqueue(ctx context.Context, key string, body []byte) error {
	return q.Requeue(ctx, &Delivery{Key: key, Body: body, Attempt: 1})
}

// Requeue 重新投递一条消息
func (q *MemoryJobQueue) Requeue(ctx context.Context, d *Delivery) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.queue <- d:
		q.enqueued.Add(1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Dequeue 阻塞出队，直到有消息、ctx 结束或队列关闭
func (q *MemoryJobQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	select {
	case d := <-q.queue:
		q.dequeued.Add(1)
		return d, nil
	case <-q.done:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size 当前积压
func (q *MemoryJobQueue) Size() int {
	return len(q.queue)
}

// Close 关闭队列；积压消息被丢弃
func (q *MemoryJobQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// IsClosed 检查队列是否已关闭
func (q *MemoryJobQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

// GetMetrics 获取队列指标
func (q *MemoryJobQueue) GetMetrics() QueueMetrics {
	return QueueMetrics{
		EnqueueCount: q.enqueued.Load(),
		DequeueCount: q.dequeued.Load(),
		MaxSize:      cap(q.queue),
		CurrentSize:  len(q.queue),
	}
}
