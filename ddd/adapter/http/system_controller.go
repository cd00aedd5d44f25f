package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/metrics"
)

type SystemControllerPlugin struct{}

func (p *SystemControllerPlugin) Name() string { return "systemControllerPlugin" }

func (p *SystemControllerPlugin) MustCreateController(deps *manager.Dependencies) manager.Controller {
	return &systemController{service: configFrom(deps).ServiceRegistry.ServiceName}
}

type systemController struct {
	service string
}

func (s *systemController) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", s.Health)
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))
}

func (s *systemController) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   s.service,
		"timestamp": time.Now().Unix(),
	})
}
