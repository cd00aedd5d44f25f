package component

import (
	appsvc "media-transcode-service/ddd/application/app"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/manager"
)

func init() {
	// 各组件按配置决定是否启用，未启用时返回 nil
	manager.RegisterComponentPlugin(&TranscodeJobConsumerPlugin{})
	manager.RegisterComponentPlugin(&TranscodeWorkerComponentPlugin{})
	manager.RegisterComponentPlugin(&MaintenanceComponentPlugin{})
	manager.RegisterComponentPlugin(&ObjectEventListenerPlugin{})
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
