package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/infrastructure/database/persistence"
	"media-transcode-service/pkg/config"
)

func fastIngestionConfig() config.IngestionConfig {
	return config.IngestionConfig{
		ResolveAttempts:  8,
		ResolveBaseDelay: 2 * time.Millisecond,
		ResolveMaxDelay:  20 * time.Millisecond,
		RecentScanLimit:  50,
	}
}

func TestResolveBySourcePath(t *testing.T) {
	repo := persistence.NewMemoryMediaAssetRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, entity.NewMediaAsset("m1", "media/u1/m1/video.mp4", "")))

	r := NewIngestionResolver(repo, fastIngestionConfig())
	asset, err := r.Resolve(ctx, "media/u1/m1/video.mp4", "media/u1/m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", asset.ID())
}

func TestResolveByStorageFolder(t *testing.T) {
	repo := persistence.NewMemoryMediaAssetRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, entity.NewMediaAsset("m1", "", "media/u1/m1")))

	r := NewIngestionResolver(repo, fastIngestionConfig())
	asset, err := r.Resolve(ctx, "media/u1/m1/renamed.mov", "")
	require.NoError(t, err)
	assert.Equal(t, "m1", asset.ID())
}

func TestResolveWaitsForLateRecord(t *testing.T) {
	repo := persistence.NewMemoryMediaAssetRepository()
	ctx := context.Background()
	go func() {
		time.Sleep(15 * time.Millisecond)
		_ = repo.Create(context.Background(), entity.NewMediaAsset("late", "media/u1/late/v.mp4", ""))
	}()

	r := NewIngestionResolver(repo, fastIngestionConfig())
	asset, err := r.Resolve(ctx, "media/u1/late/v.mp4", "media/u1/late")
	require.NoError(t, err)
	assert.Equal(t, "late", asset.ID())
}

func TestResolveFallsBackToRecentScan(t *testing.T) {
	repo := persistence.NewMemoryMediaAssetRepository()
	ctx := context.Background()
	// 上传端只写了目录，对象落在子目录里
	require.NoError(t, repo.Create(ctx, entity.NewMediaAsset("m1", "", "media/u1/m1")))
	// 源路径带 bucket 前缀登记
	require.NoError(t, repo.Create(ctx, entity.NewMediaAsset("m2", "media-bucket/media/u1/m2/clip.mp4", "media/u1/m2")))

	cfg := fastIngestionConfig()
	cfg.ResolveAttempts = 2
	r := NewIngestionResolver(repo, cfg)
	asset, err := r.Resolve(ctx, "media/u1/m1/raw/upload.mp4", "media/u1/m1/raw")
	require.NoError(t, err)
	assert.Equal(t, "m1", asset.ID())

	asset, err = r.Resolve(ctx, "media/u1/m2/clip.mp4", "media/u1/m2")
	require.NoError(t, err)
	assert.Equal(t, "m2", asset.ID())
}

func TestResolveIgnoresSiblingUpload(t *testing.T) {
	repo := persistence.NewMemoryMediaAssetRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, entity.NewMediaAsset("a", "uploads/u1/a.mp4", "")))
	// 显式共用目录的旧记录
	require.NoError(t, repo.Create(ctx, entity.NewMediaAsset("c", "uploads/u2/c.mp4", "uploads/u2")))

	cfg := fastIngestionConfig()
	cfg.ResolveAttempts = 2
	r := NewIngestionResolver(repo, cfg)
	_, err := r.Resolve(ctx, "uploads/u1/b.mp4", "uploads/u1")
	assert.ErrorIs(t, err, ErrAssetNotFound)
	_, err = r.Resolve(ctx, "uploads/u2/d.mp4", "uploads/u2")
	assert.ErrorIs(t, err, ErrAssetNotFound)

	// b 的记录稍后可见时解析到 b
	go func() {
		time.Sleep(5 * time.Millisecond)
		_ = repo.Create(context.Background(), entity.NewMediaAsset("b", "uploads/u1/b.mp4", ""))
	}()
	asset, err := NewIngestionResolver(repo, fastIngestionConfig()).Resolve(ctx, "uploads/u1/b.mp4", "uploads/u1")
	require.NoError(t, err)
	assert.Equal(t, "b", asset.ID())
}

func TestResolveNotFound(t *testing.T) {
	repo := persistence.NewMemoryMediaAssetRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, entity.NewMediaAsset("m1", "media/u1/m1/a.mp4", "media/u1/m1")))

	cfg := fastIngestionConfig()
	cfg.ResolveAttempts = 2
	r := NewIngestionResolver(repo, cfg)
	_, err := r.Resolve(ctx, "media/u2/zz/b.mp4", "media/u2/zz")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestResolveHonoursCancellation(t *testing.T) {
	repo := persistence.NewMemoryMediaAssetRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewIngestionResolver(repo, fastIngestionConfig())
	_, err := r.Resolve(ctx, "media/x/y.mp4", "media/x")
	assert.ErrorIs(t, err, context.Canceled)
}
