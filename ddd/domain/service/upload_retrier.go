package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/metrics"
	"media-transcode-service/pkg/retry"
)

// UploadRetrier 带指数退避的产物上传
type UploadRetrier struct {
	storage     gateway.ObjectStorage
	policy      retry.Policy
	parallelism int
}

// NewUploadRetrier 创建上传器
func NewUploadRetrier(storage gateway.ObjectStorage, cfg config.UploadConfig) *UploadRetrier {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 4
	}
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 4
	}
	return &UploadRetrier{
		storage:     storage,
		parallelism: parallelism,
		policy: retry.Policy{
			MaxAttempts: attempts,
			BaseDelay:   cfg.BaseDelay,
			MaxDelay:    cfg.MaxDelay,
			Jitter:      true,
			Retryable:   IsTransient,
		},
	}
}

// Storage exposes the wrapped gateway.
func (u *UploadRetrier) Storage() gateway.ObjectStorage { return u.storage }

// UploadOne uploads a single object, retrying transient errors.
func (u *UploadRetrier) UploadOne(ctx context.Context, obj gateway.UploadObject) error {
	policy := u.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		metrics.UploadRetryTotal.Inc()
		logger.Warnf("upload retry object_key=%s attempt=%d delay=%s error=%v", obj.ObjectKey, attempt, delay, err)
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		return u.storage.Upload(ctx, obj)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, retry.ErrExhausted) {
		return fmt.Errorf("%w: %s: %w", ErrUploadExhausted, obj.ObjectKey, err)
	}
	return fmt.Errorf("upload %s: %w", obj.ObjectKey, err)
}

// Upload 并发上传一批对象，任一失败即取消其余上传
func (u *UploadRetrier) Upload(ctx context.Context, objects []gateway.UploadObject) error {
	if len(objects) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.parallelism)
	for _, obj := range objects {
		obj := obj
		g.Go(func() error {
			return u.UploadOne(gctx, obj)
		})
	}
	return g.Wait()
}

// IsTransient 网络类错误可重试；权限、参数类错误不重试
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, gateway.ErrTransient) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
