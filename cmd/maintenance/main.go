// maintenance 单次执行卡住资产修复，供定时任务调用
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"media-transcode-service/app"
	transcodeapp "media-transcode-service/ddd/application/app"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/manager"

	_ "media-transcode-service/internal/resource"
)

func main() {
	timeout := flag.Duration("timeout", 10*time.Minute, "overall deadline for the scan")
	flag.Parse()

	_, logService := app.MustLoad()
	defer logService.Close()

	manager.MustInitResources()
	defer manager.CloseResources()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := transcodeapp.DefaultTranscodeApp().ResetStuck(ctx)
	if err != nil {
		logger.Error("reset stuck failed", logger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
	if len(report.Errors) > 0 {
		os.Exit(2)
	}
}
