package http

import "media-transcode-service/pkg/manager"

func init() {
	manager.RegisterControllerPlugin(&SystemControllerPlugin{})
	manager.RegisterControllerPlugin(&EventControllerPlugin{})
	manager.RegisterControllerPlugin(&MediaControllerPlugin{})
	manager.RegisterControllerPlugin(&MaintenanceControllerPlugin{})
}
