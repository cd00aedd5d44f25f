package http

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"media-transcode-service/ddd/application/app"
	"media-transcode-service/ddd/application/cqe"
	"media-transcode-service/pkg/assert"
	"media-transcode-service/pkg/errno"
	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/restapi"
)

var (
	mediaControllerOnce      sync.Once
	singletonMediaController MediaController
)

type MediaControllerPlugin struct{}

func (p *MediaControllerPlugin) Name() string {
	return "mediaControllerPlugin"
}

func (p *MediaControllerPlugin) MustCreateController(deps *manager.Dependencies) manager.Controller {
	assert.NotCircular()
	mediaControllerOnce.Do(func() {
		singletonMediaController = NewMediaController(appFrom(deps))
	})
	assert.NotNil(singletonMediaController)
	return singletonMediaController
}

type MediaController interface {
	manager.Controller
	GetMedia(ctx *gin.Context)
	RegisterMedia(ctx *gin.Context)
	Playback(ctx *gin.Context)
}

type mediaControllerImpl struct {
	transcodeApp app.TranscodeApp
}

func NewMediaController(transcodeApp app.TranscodeApp) MediaController {
	return &mediaControllerImpl{transcodeApp: transcodeApp}
}

func (m *mediaControllerImpl) RegisterRoutes(engine *gin.Engine) {
	v1 := engine.Group("/api/v1/media")
	{
		v1.POST("", m.RegisterMedia)
		v1.GET("/:id", m.GetMedia)
	}
	// 与 Firebase Storage 下载地址同形：/v0/b/<bucket>/o/<object>?token=
	engine.GET("/v0/b/:bucket/o/*object", m.Playback)
}

func (m *mediaControllerImpl) GetMedia(ctx *gin.Context) {
	resp, err := m.transcodeApp.GetMedia(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

func (m *mediaControllerImpl) RegisterMedia(ctx *gin.Context) {
	var req cqe.RegisterMediaReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	resp, err := m.transcodeApp.RegisterMedia(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// Playback 校验 token 后流式返回对象
func (m *mediaControllerImpl) Playback(ctx *gin.Context) {
	rc, info, err := m.transcodeApp.OpenPlayback(ctx.Request.Context(), ctx.Param("bucket"), ctx.Param("object"), ctx.Query("token"))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	defer rc.Close()
	headers := map[string]string{}
	if info.CacheControl != "" {
		headers["Cache-Control"] = info.CacheControl
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	ctx.DataFromReader(http.StatusOK, info.Size, contentType, rc, headers)
}
