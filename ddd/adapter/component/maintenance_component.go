package component

import (
	"context"

	"media-transcode-service/ddd/infrastructure/worker"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/task"
)

// MaintenanceComponentPlugin 周期性修复卡住的资产与停滞的后台链
type MaintenanceComponentPlugin struct{}

func (p *MaintenanceComponentPlugin) Name() string { return "maintenanceComponent" }

func (p *MaintenanceComponentPlugin) MustCreateComponent(deps *manager.Dependencies) manager.Component {
	cfg := configFrom(deps)
	if !cfg.Maintenance.Enabled {
		return nil
	}
	app := appFrom(deps)
	return &maintenanceComponent{
		task: worker.NewMaintenanceTask(cfg.Maintenance.Interval, func(ctx context.Context) error {
			report, err := app.ResetStuck(ctx)
			if err != nil {
				return err
			}
			if report.Corrected > 0 {
				logger.Info("maintenance corrected media", logger.Fields{"corrected": report.Corrected, "scanned": report.Scanned})
			}
			return nil
		}),
	}
}

type maintenanceComponent struct {
	task *worker.MaintenanceTask
}

func (c *maintenanceComponent) Start() error {
	task.Register(c.task)
	return nil
}

func (c *maintenanceComponent) Stop() error { return nil }

func (c *maintenanceComponent) GetName() string { return "maintenance" }
