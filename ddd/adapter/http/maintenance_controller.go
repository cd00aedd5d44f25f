package http

import (
	"github.com/gin-gonic/gin"

	"media-transcode-service/ddd/application/app"
	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/middleware"
	"media-transcode-service/pkg/restapi"
)

type MaintenanceControllerPlugin struct{}

func (p *MaintenanceControllerPlugin) Name() string { return "maintenanceControllerPlugin" }

func (p *MaintenanceControllerPlugin) MustCreateController(deps *manager.Dependencies) manager.Controller {
	return NewMaintenanceController(appFrom(deps), configFrom(deps).Maintenance.OperatorKey)
}

type maintenanceController struct {
	transcodeApp app.TranscodeApp
	operatorKey  string
}

// NewMaintenanceController operatorKey 为空时不校验
func NewMaintenanceController(transcodeApp app.TranscodeApp, operatorKey string) manager.Controller {
	return &maintenanceController{transcodeApp: transcodeApp, operatorKey: operatorKey}
}

func (m *maintenanceController) RegisterRoutes(engine *gin.Engine) {
	g := engine.Group("/api/v1/maintenance", middleware.OperatorKeyMiddleware(m.operatorKey))
	g.POST("/reset-stuck", m.ResetStuck)
}

func (m *maintenanceController) ResetStuck(ctx *gin.Context) {
	resp, err := m.transcodeApp.ResetStuck(ctx.Request.Context())
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}
