package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"media-transcode-service/pkg/logger"
)

// MaintenanceTask 周期性执行卡住资产的修复
type MaintenanceTask struct {
	interval time.Duration
	run      func(ctx context.Context) error

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	rounds  int
	running bool
}

// NewMaintenanceTask 创建维护任务，interval 默认 10 分钟
func NewMaintenanceTask(interval time.Duration, run func(ctx context.Context) error) *MaintenanceTask {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &MaintenanceTask{interval: interval, run: run}
}

func (m *MaintenanceTask) Name() string { return "maintenance" }

func (m *MaintenanceTask) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return fmt.Errorf("maintenance task already running")
	}
	taskCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true
	go m.loop(taskCtx, m.done)
	logger.Infof("Maintenance task started interval=%s", m.interval)
	return nil
}

func (m *MaintenanceTask) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.cancel()
	done := m.done
	m.mu.Unlock()

	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

// Rounds 已执行的轮数
func (m *MaintenanceTask) Rounds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rounds
}

func (m *MaintenanceTask) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.run(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("maintenance round failed", logger.Fields{"error": err.Error()})
			}
			m.mu.Lock()
			m.rounds++
			m.mu.Unlock()
		}
	}
}
