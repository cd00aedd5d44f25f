package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/infrastructure/queue"
	"media-transcode-service/pkg/logger"
)

// JobHandler 处理一条档位任务
type JobHandler interface {
	HandleTranscodeJob(ctx context.Context, msg *entity.TranscodeJobMessage) error
}

// WorkerStats 工作器统计信息
type WorkerStats struct {
	ProcessedTasks   uint64
	SuccessfulTasks  uint64
	FailedTasks      uint64
	RequeuedTasks    uint64
	DroppedTasks     uint64
	CurrentlyRunning int
	StartTime        time.Time
	LastTaskTime     time.Time
}

// Options 工作器参数
type Options struct {
	Concurrency int
	// MaxAttempts 单条消息最多投递次数，超过后丢弃
	MaxAttempts int
	RetryDelay  time.Duration
	// Retryable 判断失败是否需要重新投递，nil 时全部重投
	Retryable func(error) bool
}

// TranscodeWorker 从内存队列消费档位任务。处理失败且可重试时重新入队，
// 对应 kafka/http 模式下"不确认即重投"的语义。
type TranscodeWorker struct {
	id      string
	queue   *queue.MemoryJobQueue
	handler JobHandler
	opts    Options

	running bool
	cancel  context.CancelFunc
	stats   WorkerStats
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// NewTranscodeWorker 创建转码工作器
func NewTranscodeWorker(id string, q *queue.MemoryJobQueue, handler JobHandler, opts Options) *TranscodeWorker {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &TranscodeWorker{
		id:      id,
		queue:   q,
		handler: handler,
		opts:    opts,
	}
}

// Start 启动工作器
func (w *TranscodeWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("worker %s is already running", w.id)
	}
	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.stats.StartTime = time.Now()

	logger.Infof("Starting transcode worker %s with %d goroutines", w.id, w.opts.Concurrency)
	for i := 0; i < w.opts.Concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(workerCtx, i)
	}
	return nil
}

// Stop 停止工作器并等待正在处理的任务返回
func (w *TranscodeWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	logger.Infof("Transcode worker %s stopped", w.id)
	return nil
}

// IsRunning 检查工作器是否运行中
func (w *TranscodeWorker) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// GetStats 获取工作器统计信息
func (w *TranscodeWorker) GetStats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.stats
}

func (w *TranscodeWorker) workerLoop(ctx context.Context, slot int) {
	defer w.wg.Done()
	for {
		d, err := w.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			logger.Warn("dequeue failed", logger.Fields{"worker": w.id, "slot": slot, "error": err.Error()})
			continue
		}
		w.process(ctx, d)
	}
}

func (w *TranscodeWorker) process(ctx context.Context, d *queue.Delivery) {
	msg, err := entity.DecodeTranscodeJob(d.Body)
	if err != nil {
		logger.Error("drop undecodable job", logger.Fields{"worker": w.id, "key": d.Key, "error": err.Error()})
		w.updateStats(func(s *WorkerStats) { s.DroppedTasks++ })
		return
	}

	w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning++
		s.LastTaskTime = time.Now()
	})
	err = w.handler.HandleTranscodeJob(ctx, msg)
	w.updateStats(func(s *WorkerStats) {
		s.CurrentlyRunning--
		s.ProcessedTasks++
		if err == nil {
			s.SuccessfulTasks++
		} else {
			s.FailedTasks++
		}
	})
	if err == nil {
		return
	}

	fields := logger.Fields{"worker": w.id, "job": msg.JobID(), "attempt": d.Attempt, "error": err.Error()}
	if ctx.Err() != nil || (w.opts.Retryable != nil && !w.opts.Retryable(err)) || d.Attempt >= w.opts.MaxAttempts {
		logger.Error("transcode job dropped", fields)
		w.updateStats(func(s *WorkerStats) { s.DroppedTasks++ })
		return
	}

	logger.Warn("transcode job will be redelivered", fields)
	timer := time.NewTimer(w.opts.RetryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}
	next := &queue.Delivery{Key: d.Key, Body: d.Body, Attempt: d.Attempt + 1}
	if err := w.queue.Requeue(ctx, next); err != nil {
		logger.Error("requeue failed", logger.Fields{"worker": w.id, "job": msg.JobID(), "error": err.Error()})
		return
	}
	w.updateStats(func(s *WorkerStats) { s.RequeuedTasks++ })
}

func (w *TranscodeWorker) updateStats(fn func(*WorkerStats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}
