package observability

import (
	"os"
	"strings"

	"github.com/grafana/pyroscope-go"

	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
)

var profiler *pyroscope.Profiler

// StartProfiling 启动 pyroscope 持续剖析；未配置服务端地址时跳过
func StartProfiling(appName string, cfg config.ProfilingConfig) {
	addr := strings.TrimSpace(cfg.ServerAddress)
	if env := os.Getenv("PYROSCOPE_SERVER_ADDRESS"); env != "" {
		addr = env
	}
	if !cfg.Enabled && os.Getenv("PYROSCOPE_SERVER_ADDRESS") == "" {
		return
	}
	if addr == "" {
		logger.Warnf("Profiling enabled but no server address configured app=%s", appName)
		return
	}
	hostname, _ := os.Hostname()
	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: appName,
		ServerAddress:   addr,
		Tags:            map[string]string{"hostname": hostname},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Warnf("Failed to start profiling app=%s error=%v", appName, err)
		return
	}
	profiler = p
	logger.Infof("Profiling started app=%s server=%s", appName, addr)
}

// StopProfiling 停止剖析
func StopProfiling() {
	if profiler != nil {
		_ = profiler.Stop()
		profiler = nil
	}
}
