package component

import (
	"fmt"

	appsvc "media-transcode-service/ddd/application/app"
	"media-transcode-service/ddd/infrastructure/queue"
	"media-transcode-service/ddd/infrastructure/worker"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/task"
)

// TranscodeWorkerComponentPlugin queue.driver=memory/http 时在进程内消费后台档位任务
type TranscodeWorkerComponentPlugin struct{}

func (p *TranscodeWorkerComponentPlugin) Name() string {
	return "transcodeWorkerComponent"
}

func (p *TranscodeWorkerComponentPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := configFrom(deps)
	// http 模式下推送来的任务同样进入本地内存队列
	if cfg.Queue.Driver == "kafka" {
		return nil
	}
	q := queue.DefaultMemoryJobQueue()
	return &transcodeWorkerComponent{
		name: "transcodeWorker",
		worker: worker.NewTranscodeWorker(cfg.Worker.WorkerID, q, appFrom(deps), worker.Options{
			Concurrency: cfg.Worker.MaxConcurrentTasks,
			Retryable:   appsvc.Redeliverable,
		}),
	}
}

type transcodeWorkerComponent struct {
	name   string
	worker *worker.TranscodeWorker
}

func (c *transcodeWorkerComponent) Start() error {
	if c.worker == nil {
		return fmt.Errorf("transcode worker not initialized")
	}
	// 注册后台任务，由 task 管理器统一启动
	task.Register(worker.AsBackgroundTask(c.name, c.worker.Start, c.worker.Stop))
	logger.Infof("Transcode worker component registered background task name=%s", c.name)
	return nil
}

func (c *transcodeWorkerComponent) Stop() error {
	// 背景任务由 task 管理器停止，这里只关闭队列
	queue.CloseDefaultMemoryJobQueue()
	logger.Infof("Transcode worker component stopped name=%s", c.name)
	return nil
}

func (c *transcodeWorkerComponent) GetName() string {
	return c.name
}
