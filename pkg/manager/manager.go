package manager

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"

	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
)

// Resource 基础资源（数据库、缓存、对象存储、消息队列）
type Resource interface {
	MustOpen()
	Close()
}

// ResourcePlugin 资源插件
type ResourcePlugin interface {
	Name() string
	MustCreateResource() Resource
}

// Component 可启动/停止的组件（消费者、后台任务）
type Component interface {
	Start() error
	Stop() error
	GetName() string
}

// ComponentPlugin 组件插件
type ComponentPlugin interface {
	Name() string
	MustCreateComponent(deps *Dependencies) Component
}

// Controller HTTP 控制器
type Controller interface {
	RegisterRoutes(engine *gin.Engine)
}

// ControllerPlugin 控制器插件
type ControllerPlugin interface {
	Name() string
	MustCreateController(deps *Dependencies) Controller
}

// Dependencies 依赖注入容器
type Dependencies struct {
	Config *config.Config
	// TranscodeAppService holds the application service; typed as interface{} to keep
	// this package free of ddd imports.
	TranscodeAppService interface{}
}

type registry struct {
	mu          sync.Mutex
	resources   []ResourcePlugin
	opened      []Resource
	components  []ComponentPlugin
	started     []Component
	controllers []ControllerPlugin
	deps        *Dependencies
}

var defaultRegistry = &registry{}

// RegisterResourcePlugin 注册资源插件，通常在 init 中调用
func RegisterResourcePlugin(p ResourcePlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.resources = append(defaultRegistry.resources, p)
}

// RegisterComponentPlugin 注册组件插件
func RegisterComponentPlugin(p ComponentPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.components = append(defaultRegistry.components, p)
}

// RegisterControllerPlugin 注册控制器插件
func RegisterControllerPlugin(p ControllerPlugin) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.controllers = append(defaultRegistry.controllers, p)
}

// MustInitResources 按注册顺序打开所有资源，失败直接 panic
func MustInitResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for _, p := range defaultRegistry.resources {
		res := p.MustCreateResource()
		res.MustOpen()
		defaultRegistry.opened = append(defaultRegistry.opened, res)
		logger.Infof("Resource opened name=%s", p.Name())
	}
}

// CloseResources 逆序关闭资源
func CloseResources() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.opened) - 1; i >= 0; i-- {
		defaultRegistry.opened[i].Close()
	}
	defaultRegistry.opened = nil
}

// MustInitComponents 创建并启动全部组件
func MustInitComponents(deps *Dependencies) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.deps = deps
	for _, p := range defaultRegistry.components {
		c := p.MustCreateComponent(deps)
		if c == nil {
			continue
		}
		if err := c.Start(); err != nil {
			panic(fmt.Sprintf("failed to start component %s: %v", p.Name(), err))
		}
		defaultRegistry.started = append(defaultRegistry.started, c)
		logger.Infof("Component started name=%s", c.GetName())
	}
}

// RegisterAllRoutes 注册所有控制器路由
func RegisterAllRoutes(engine *gin.Engine) {
	defaultRegistry.mu.Lock()
	deps := defaultRegistry.deps
	plugins := append([]ControllerPlugin(nil), defaultRegistry.controllers...)
	defaultRegistry.mu.Unlock()
	for _, p := range plugins {
		p.MustCreateController(deps).RegisterRoutes(engine)
		logger.Debugf("Controller routes registered name=%s", p.Name())
	}
}

// Shutdown 逆序停止组件
func Shutdown() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	for i := len(defaultRegistry.started) - 1; i >= 0; i-- {
		c := defaultRegistry.started[i]
		if err := c.Stop(); err != nil {
			logger.Warnf("Component stop failed name=%s error=%v", c.GetName(), err)
		}
	}
	defaultRegistry.started = nil
}
