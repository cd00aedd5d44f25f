package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	httpAdapter "media-transcode-service/ddd/adapter/http"
	transcodeapp "media-transcode-service/ddd/application/app"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/manager"
	"media-transcode-service/pkg/observability"
	"media-transcode-service/pkg/registry"
	"media-transcode-service/pkg/task"

	_ "media-transcode-service/ddd/adapter/component"
	// 导入资源包以触发init函数
	_ "media-transcode-service/internal/resource"
)

const serviceName = "media-transcode-service"

// MustLoad 加载配置并初始化全局日志器
func MustLoad() (*config.Config, *logger.Logger) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("[ERROR] Failed to load config (%s): %v\n", cfgPath, err)
		os.Exit(1)
	}
	// 设置全局配置（必须在资源管理器初始化之前）
	config.SetGlobalConfig(cfg)

	logService := logger.NewLogger(cfg)
	logger.SetGlobalLogger(logService)
	logger.Debug("Logger initialized", logger.Fields{
		"config": cfgPath,
		"level":  cfg.Log.Level,
		"format": cfg.Log.Format,
		"output": cfg.Log.Output,
	})
	return cfg, logService
}

func Run() {
	fmt.Println("[STARTUP] Starting media transcode service...")
	cfg, logService := MustLoad()
	defer logService.Close()

	observability.StartProfiling(serviceName, cfg.Profiling)
	defer observability.StopProfiling()

	checkFFmpeg(cfg)

	logger.Infof("Initializing resource manager...")
	manager.MustInitResources()
	defer manager.CloseResources()

	transcodeAppService := transcodeapp.DefaultTranscodeApp()
	deps := &manager.Dependencies{
		Config:              cfg,
		TranscodeAppService: transcodeAppService,
	}

	logger.Infof("Initializing components...")
	manager.MustInitComponents(deps)
	if err := task.StartAll(context.Background()); err != nil {
		logger.Fatal("start background tasks", logger.Fields{"error": err.Error()})
	}
	logger.Info("Background tasks started", logger.Fields{"tasks": task.Names()})

	engine := httpAdapter.NewEngine(cfg)
	manager.RegisterAllRoutes(engine)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	server := &http.Server{
		Addr:        addr,
		Handler:     engine,
		ReadTimeout: cfg.Server.ReadTimeout,
		// 事件 webhook 同步生成 720p，写超时需覆盖档位超时
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(fmt.Sprintf("Failed to start HTTP server error=%v", err))
		}
	}()
	logger.Infof("HTTP server started addr=%s service=%s", addr, serviceName)

	var reg *registry.ServiceRegistry
	if cfg.ServiceRegistry.Enabled {
		reg = mustRegister(cfg)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("Received shutdown signal, shutting down server...")

	// 先摘除注册，避免继续收到推送
	if reg != nil {
		if err := reg.Deregister(); err != nil {
			logger.Warnf("Deregister failed error=%v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Warnf("Server forced to close error=%v", err)
	}

	task.StopAll()
	manager.Shutdown()
	logger.Infof("Server exited safely")
}

func mustRegister(cfg *config.Config) *registry.ServiceRegistry {
	host := cfg.ServiceRegistry.RegisterHost
	if host == "" {
		host, _ = os.Hostname()
	}
	svc := cfg.ServiceRegistry
	if svc.ServiceID == "" {
		svc.ServiceID = fmt.Sprintf("%s-%s-%d", svc.ServiceName, host, cfg.Server.Port)
	}
	reg, err := registry.NewServiceRegistry(cfg.Etcd, svc, net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port)))
	if err != nil {
		logger.Fatal("create service registry", logger.Fields{"error": err.Error()})
	}
	if err := reg.Register(); err != nil {
		logger.Fatal("register service", logger.Fields{"error": err.Error()})
	}
	return reg
}

// checkFFmpeg 启动阶段检查 ffmpeg/ffprobe 是否可用
func checkFFmpeg(cfg *config.Config) {
	for _, bin := range []string{cfg.Transcode.FFmpeg.BinaryPath, cfg.Transcode.FFmpeg.ProbeBinaryPath} {
		if _, err := exec.LookPath(bin); err != nil {
			logger.Fatal(fmt.Sprintf("FFmpeg binary not found, please install or set transcode.ffmpeg.binary_path binary=%s error=%s", bin, err.Error()))
		}
	}
	if strings.Contains(strings.ToLower(cfg.Transcode.FFmpeg.VideoCodec), "nvenc") {
		out, err := exec.Command(cfg.Transcode.FFmpeg.BinaryPath, "-hide_banner", "-encoders").Output()
		if err == nil && !strings.Contains(strings.ToLower(string(out)), "nvenc") {
			logger.Warnf("NVENC encoder not detected in FFmpeg, codec=%s", cfg.Transcode.FFmpeg.VideoCodec)
		}
	}
}

// resolveConfigPath 根据环境选择配置文件，支持CONFIG_PATH覆盖、CONFIG_ENV区分环境
func resolveConfigPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}

	env := strings.ToLower(strings.TrimSpace(os.Getenv("CONFIG_ENV")))
	if env == "" {
		env = "dev"
	}

	switch env {
	case "prod", "production":
		return "configs/config_prod.yaml"
	case "dev", "development":
		return "configs/config.dev.yaml"
	default:
		return fmt.Sprintf("configs/config.%s.yaml", env)
	}
}
