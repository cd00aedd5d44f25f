package http

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"media-transcode-service/ddd/application/app"
	"media-transcode-service/ddd/application/cqe"
	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/infrastructure/queue"
	"media-transcode-service/pkg/assert"
	"media-transcode-service/pkg/errno"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/restapi"
)

var (
	eventControllerOnce      sync.Once
	singletonEventController EventController
)

// EventControllerPlugin 对象事件 webhook 与任务推送入口
type EventControllerPlugin struct{}

func (p *EventControllerPlugin) Name() string {
	return "eventControllerPlugin"
}

func (p *EventControllerPlugin) MustCreateController(deps *manager.Dependencies) manager.Controller {
	assert.NotCircular()
	eventControllerOnce.Do(func() {
		singletonEventController = NewEventController(appFrom(deps), queue.DefaultMemoryJobQueue())
	})
	assert.NotNil(singletonEventController)
	return singletonEventController
}

type EventController interface {
	manager.Controller
	ObjectFinalized(ctx *gin.Context)
	PushTranscodeJob(ctx *gin.Context)
}

// localQueue async 推送落入的本地队列
type localQueue interface {
	Enqueue(ctx context.Context, key string, body []byte) error
}

type eventControllerImpl struct {
	transcodeApp app.TranscodeApp
	local        localQueue
}

// NewEventController 创建事件控制器
func NewEventController(transcodeApp app.TranscodeApp, local localQueue) EventController {
	return &eventControllerImpl{transcodeApp: transcodeApp, local: local}
}

func (e *eventControllerImpl) RegisterRoutes(engine *gin.Engine) {
	engine.POST("/api/v1/events/object-finalized", e.ObjectFinalized)
	engine.POST(queue.PushPath, e.PushTranscodeJob)
}

// ObjectFinalized 同步生成 720p 后返回；409 表示同一资产正在处理
func (e *eventControllerImpl) ObjectFinalized(ctx *gin.Context) {
	var req cqe.ObjectFinalizedReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	resp, err := e.transcodeApp.HandleObjectFinalized(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// PushTranscodeJob 非 2xx 响应表示请求方需要重投。
// async=1 时放入本地队列并返回 202，由本地 worker 处理与重试。
func (e *eventControllerImpl) PushTranscodeJob(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<20))
	if err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	msg, err := entity.DecodeTranscodeJob(body)
	if err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	if err := msg.Validate(); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}

	if ctx.Query("async") == "1" {
		if err := e.local.Enqueue(ctx.Request.Context(), msg.Key(), body); err != nil {
			logger.Warn("local enqueue rejected", logger.Fields{"job": msg.JobID(), "error": err.Error()})
			restapi.Failed(ctx, errno.NewBizError(errno.ErrQueueFull, err))
			return
		}
		ctx.JSON(http.StatusAccepted, restapi.Response{
			Code:      errno.OK.Code,
			Message:   "Accepted",
			Data:      gin.H{"job": msg.JobID()},
			RequestID: ctx.GetString("request_id"),
		})
		return
	}

	if err := e.transcodeApp.HandleTranscodeJob(ctx.Request.Context(), msg); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, gin.H{"job": msg.JobID()})
}
