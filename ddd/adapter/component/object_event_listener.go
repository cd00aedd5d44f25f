package component

import (
	"context"
	"errors"

	"media-transcode-service/ddd/application/cqe"
	"media-transcode-service/ddd/infrastructure/events"
	"media-transcode-service/ddd/infrastructure/worker"
	"media-transcode-service/internal/resource"
	"media-transcode-service/pkg/errno"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/task"
)

// ObjectEventListenerPlugin 订阅 MinIO 桶通知，作为 HTTP 事件入口之外的另一种事件源
type ObjectEventListenerPlugin struct{}

func (p *ObjectEventListenerPlugin) Name() string { return "objectEventListener" }

func (p *ObjectEventListenerPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := configFrom(deps)
	if !cfg.Minio.ListenEvents || cfg.Storage.Driver != "minio" {
		return nil
	}
	res := resource.DefaultMinioResource()
	if !res.Enabled() {
		logger.Warnf("Object event listener disabled: minio resource not opened")
		return nil
	}
	app := appFrom(deps)
	handler := func(ctx context.Context, ev events.ObjectCreated) error {
		_, err := app.HandleObjectFinalized(ctx, &cqe.ObjectFinalizedReq{
			Bucket:      ev.Bucket,
			Name:        ev.Key,
			ContentType: ev.ContentType,
			Size:        ev.Size,
		})
		var biz *errno.BizError
		if errors.As(err, &biz) && biz.Code == errno.ErrJobInProgress.Code {
			// 同一资产正在处理，重复通知直接忽略
			return nil
		}
		return err
	}
	return &objectEventListener{
		listener: events.NewMinioListener(res.GetClient(), res.GetBucketName(), cfg.Transcode.UploadPrefix, cfg.Worker.MaxConcurrentTasks, handler),
	}
}

type objectEventListener struct {
	listener *events.MinioListener
}

func (c *objectEventListener) Start() error {
	task.Register(worker.AsBackgroundTask("objectEventListener", c.listener.Start, c.listener.Stop))
	return nil
}

func (c *objectEventListener) Stop() error { return nil }

func (c *objectEventListener) GetName() string { return "objectEventListener" }
