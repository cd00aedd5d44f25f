package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// PushPath worker 接收任务的地址
const PushPath = "/internal/v1/tasks/transcode"

// Picker 从注册中心挑选一个 worker 实例
type Picker interface {
	PickOne(serviceName string) (string, error)
}

// HTTPPushQueue 把任务直接推送给通过 etcd 发现的 worker。
// worker 返回非 2xx 时投递失败，由调用方记录并等待维护扫描重投。
type HTTPPushQueue struct {
	picker      Picker
	serviceName string
	client      *http.Client
}

// NewHTTPPushQueue 创建推送队列
func NewHTTPPushQueue(picker Picker, serviceName string, timeout time.Duration) *HTTPPushQueue {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPPushQueue{
		picker:      picker,
		serviceName: serviceName,
		client:      &http.Client{Timeout: timeout},
	}
}

func (q *HTTPPushQueue) Enqueue(ctx context.Context, key string, body []byte) error {
	addr, err := q.picker.PickOne(q.serviceName)
	if err != nil {
		return fmt.Errorf("pick worker: %w", err)
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(addr, "/")+PushPath+"?async=1", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Job-Key", key)

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("push job to %s: %w", addr, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("push job to %s: status %d: %s", addr, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
