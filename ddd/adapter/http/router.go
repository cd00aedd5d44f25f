package http

import (
	"github.com/gin-gonic/gin"

	appsvc "media-transcode-service/ddd/application/app"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/middleware"
)

// NewEngine 创建带公共中间件的 gin 引擎
func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg != nil && cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestContextMiddleware())
	engine.Use(middleware.AccessLogMiddleware())
	return engine
}

func appFrom(deps *manager.Dependencies) appsvc.TranscodeApp {
	if deps != nil {
		if v, ok := deps.TranscodeAppService.(appsvc.TranscodeApp); ok && v != nil {
			return v
		}
	}
	return appsvc.DefaultTranscodeApp()
}

func configFrom(deps *manager.Dependencies) *config.Config {
	if deps != nil && deps.Config != nil {
		return deps.Config
	}
	if cfg := config.GetGlobalConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}
