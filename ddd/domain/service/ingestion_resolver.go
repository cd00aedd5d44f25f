package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/repo"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/retry"
)

// IngestionResolver 将存储事件中的对象路径映射到资产记录。
// 上传端可能在对象落盘之后才写元数据，所以需要带退避地重查。
type IngestionResolver struct {
	repo      repo.MediaAssetRepository
	policy    retry.Policy
	scanLimit int
}

// NewIngestionResolver 创建解析器
func NewIngestionResolver(r repo.MediaAssetRepository, cfg config.IngestionConfig) *IngestionResolver {
	attempts := cfg.ResolveAttempts
	if attempts <= 0 {
		attempts = 15
	}
	scan := cfg.RecentScanLimit
	if scan <= 0 {
		scan = 50
	}
	return &IngestionResolver{
		repo:      r,
		scanLimit: scan,
		policy: retry.Policy{
			MaxAttempts: attempts,
			BaseDelay:   cfg.ResolveBaseDelay,
			MaxDelay:    cfg.ResolveMaxDelay,
			Factor:      2,
		},
	}
}

// Resolve 依次按源路径、目录精确匹配，重试耗尽后扫描最近记录做宽松匹配
func (r *IngestionResolver) Resolve(ctx context.Context, objectName, objectDir string) (*entity.MediaAsset, error) {
	if objectDir == "" {
		objectDir = path.Dir(objectName)
	}

	var found *entity.MediaAsset
	policy := r.policy
	policy.OnRetry = func(attempt int, err error, delay time.Duration) {
		logger.Debug("media record not visible yet", logger.Fields{
			"object":  objectName,
			"attempt": attempt,
			"delay":   delay.String(),
			"reason":  err.Error(),
		})
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		asset, err := r.lookup(ctx, objectName, objectDir)
		if err != nil {
			return err
		}
		found = asset
		return nil
	})
	if err == nil {
		return found, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	asset, scanErr := r.scanRecent(ctx, objectName, objectDir)
	if scanErr != nil {
		return nil, fmt.Errorf("scan recent media: %w", scanErr)
	}
	if asset != nil {
		logger.Info("media resolved by recent scan", logger.Fields{
			"object":   objectName,
			"media_id": asset.ID(),
		})
		return asset, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, objectName)
}

func (r *IngestionResolver) lookup(ctx context.Context, objectName, objectDir string) (*entity.MediaAsset, error) {
	asset, err := r.repo.FindBySourcePath(ctx, objectName)
	if err == nil {
		return asset, nil
	}
	if !errors.Is(err, repo.ErrMediaNotFound) {
		return nil, err
	}
	asset, err = r.repo.FindByStorageFolder(ctx, objectDir)
	if err != nil {
		return nil, err
	}
	// 目录下的另一个上传，不是本对象的记录
	if !asset.Claims(objectName) {
		return nil, fmt.Errorf("%w: folder %s belongs to %s", repo.ErrMediaNotFound, objectDir, asset.SourceObjectPath())
	}
	return asset, nil
}

func (r *IngestionResolver) scanRecent(ctx context.Context, objectName, objectDir string) (*entity.MediaAsset, error) {
	recent, err := r.repo.ListRecent(ctx, r.scanLimit)
	if err != nil {
		return nil, err
	}
	for _, asset := range recent {
		if looselyMatches(asset, objectName, objectDir) {
			return asset, nil
		}
	}
	return nil, nil
}

// looselyMatches 登记了源对象的记录按路径后缀匹配，否则按目录包含匹配
func looselyMatches(asset *entity.MediaAsset, objectName, objectDir string) bool {
	if asset.SourceObjectPath() != "" {
		return asset.Claims(objectName)
	}
	folder := strings.Trim(asset.StorageFolder(), "/")
	dir := strings.Trim(objectDir, "/")
	return folder != "" && strings.HasPrefix(dir+"/", folder+"/")
}
