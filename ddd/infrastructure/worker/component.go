package worker

import (
	"context"

	"media-transcode-service/pkg/task"
)

// backgroundTaskAdapter adapts Start/Stop functions to the BackgroundTask interface.
type backgroundTaskAdapter struct {
	name      string
	startFunc func(ctx context.Context) error
	stopFunc  func() error
}

func (b *backgroundTaskAdapter) Name() string                    { return b.name }
func (b *backgroundTaskAdapter) Start(ctx context.Context) error { return b.startFunc(ctx) }
func (b *backgroundTaskAdapter) Stop() error                     { return b.stopFunc() }

// AsBackgroundTask 包装为后台任务，交给 task 管理器统一启动/停止
func AsBackgroundTask(name string, start func(ctx context.Context) error, stop func() error) task.BackgroundTask {
	return &backgroundTaskAdapter{name: name, startFunc: start, stopFunc: stop}
}
