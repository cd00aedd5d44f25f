package repo

import (
	"context"
	"errors"
	"time"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/vo"
)

// ErrMediaNotFound 资产记录不存在
var ErrMediaNotFound = errors.New("media asset not found")

// AssetPatch 部分更新，nil 字段不写
type AssetPatch struct {
	BackgroundStatus   *vo.BackgroundStatus
	BackgroundTargets  *[]string
	QualityConfigs     map[string]vo.TierConfig
	HLSBasePath        *string
	MasterPlaylistPath *string
	Duration           *float64
	Dimensions         *vo.Dimensions
}

// IsEmpty reports whether the patch writes nothing.
func (p AssetPatch) IsEmpty() bool {
	return p.BackgroundStatus == nil && p.BackgroundTargets == nil && p.QualityConfigs == nil &&
		p.HLSBasePath == nil && p.MasterPlaylistPath == nil && p.Duration == nil && p.Dimensions == nil
}

// MediaAssetRepository 资产元数据仓储。所有写操作都是字段级合并，
// 不做整条记录覆盖；状态字段只能通过条件更新方法修改。
type MediaAssetRepository interface {
	Create(ctx context.Context, asset *entity.MediaAsset) error
	Get(ctx context.Context, id string) (*entity.MediaAsset, error)
	FindBySourcePath(ctx context.Context, sourcePath string) (*entity.MediaAsset, error)
	FindByStorageFolder(ctx context.Context, folder string) (*entity.MediaAsset, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.MediaAsset, error)
	ListByTranscodeStatus(ctx context.Context, status vo.TranscodeStatus, updatedBefore time.Time, limit int) ([]*entity.MediaAsset, error)
	ListStalledBackground(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.MediaAsset, error)

	UpdateFields(ctx context.Context, id string, patch AssetPatch) error
	// EnsureSharedToken stores candidate only when no token exists and returns the effective token.
	EnsureSharedToken(ctx context.Context, id, candidate string) (string, error)
	// BeginProcessing moves a non-ready asset to processing; false means it is already ready.
	BeginProcessing(ctx context.Context, id string) (bool, error)
	MarkReady(ctx context.Context, id string) error
	// MarkFailed applies only while the asset is not ready.
	MarkFailed(ctx context.Context, id, reason string) (bool, error)
	// MergeQualityLevel merges tier under a row lock and returns the resulting list.
	MergeQualityLevel(ctx context.Context, id string, tier vo.TierResult) ([]vo.TierResult, error)
	AppendFailure(ctx context.Context, id string, failure vo.FailedQuality) error
	// CompleteBackground flips processing to completed; false when it was not processing.
	CompleteBackground(ctx context.Context, id string) (bool, error)
}
