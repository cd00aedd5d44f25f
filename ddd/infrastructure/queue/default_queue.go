package queue

import (
	"sync"

	"media-transcode-service/pkg/config"
)

var (
	queueOnce    sync.Once
	defaultQueue *MemoryJobQueue
)

// DefaultMemoryJobQueue 进程内共享的任务队列，生产端与 worker 使用同一实例
func DefaultMemoryJobQueue() *MemoryJobQueue {
	queueOnce.Do(func() {
		capacity := 100
		if cfg := config.GetGlobalConfig(); cfg != nil && cfg.Queue.MemoryCapacity > 0 {
			capacity = cfg.Queue.MemoryCapacity
		}
		defaultQueue = NewMemoryJobQueue(capacity)
	})
	return defaultQueue
}

// CloseDefaultMemoryJobQueue 关闭默认任务队列
func CloseDefaultMemoryJobQueue() {
	if defaultQueue != nil {
		_ = defaultQueue.Close()
	}
}
