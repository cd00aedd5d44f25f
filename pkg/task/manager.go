package task

import (
	"context"
	"fmt"
	"sync"

	"media-transcode-service/pkg/logger"
)

// BackgroundTask 长期运行的后台任务（队列消费、维护扫描、事件监听）
type BackgroundTask interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

type manager struct {
	tasks   []BackgroundTask
	started []BackgroundTask
	mu      sync.Mutex
	cancel  context.CancelFunc
}

var defaultManager = &manager{}

// Register 登记后台任务，需在 StartAll 之前调用；同名任务只保留第一个
func Register(t BackgroundTask) {
	if t == nil {
		return
	}
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	for _, existing := range defaultManager.tasks {
		if existing.Name() == t.Name() {
			logger.Warnf("Background task already registered name=%s", t.Name())
			return
		}
	}
	defaultManager.tasks = append(defaultManager.tasks, t)
}

// StartAll 依次启动全部任务；任一失败时停止已启动的任务并返回错误
func StartAll(ctx context.Context) error {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	if defaultManager.cancel != nil {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	defaultManager.cancel = cancel
	for _, t := range defaultManager.tasks {
		if err := t.Start(runCtx); err != nil {
			defaultManager.stopLocked()
			return fmt.Errorf("start background task %s: %w", t.Name(), err)
		}
		defaultManager.started = append(defaultManager.started, t)
		logger.Infof("Background task started name=%s", t.Name())
	}
	return nil
}

// StopAll 逆序停止已启动的任务
func StopAll() {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.stopLocked()
}

// Names 已登记的任务名
func Names() []string {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	names := make([]string, 0, len(defaultManager.tasks))
	for _, t := range defaultManager.tasks {
		names = append(names, t.Name())
	}
	return names
}

func (m *manager) stopLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	for i := len(m.started) - 1; i >= 0; i-- {
		t := m.started[i]
		if err := t.Stop(); err != nil {
			logger.Warnf("Background task stop failed name=%s error=%v", t.Name(), err)
		}
	}
	m.started = nil
}

// reset 清空登记，仅测试使用
func reset() {
	defaultManager.mu.Lock()
	defer defaultManager.mu.Unlock()
	defaultManager.stopLocked()
	defaultManager.tasks = nil
}
