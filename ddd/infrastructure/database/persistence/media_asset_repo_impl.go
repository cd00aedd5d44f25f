package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/repo"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/ddd/infrastructure/database/convertor"
	"media-transcode-service/ddd/infrastructure/database/dao"
	"media-transcode-service/ddd/infrastructure/database/po"
	"media-transcode-service/internal/resource"
)

func init() {
	resource.RegisterAutoMigrate(&po.MediaAsset{})
}

// mediaAssetRepositoryImpl 基于 gorm 的资产仓储
type mediaAssetRepositoryImpl struct {
	dao       *dao.MediaAssetDAO
	convertor *convertor.MediaAssetConvertor
}

// NewMediaAssetRepository 创建资产仓储
func NewMediaAssetRepository(db *gorm.DB) repo.MediaAssetRepository {
	return &mediaAssetRepositoryImpl{
		dao:       dao.NewMediaAssetDAO(db),
		convertor: convertor.NewMediaAssetConvertor(),
	}
}

func (r *mediaAssetRepositoryImpl) Create(ctx context.Context, asset *entity.MediaAsset) error {
	return r.dao.Create(ctx, r.convertor.ToPO(asset))
}

func (r *mediaAssetRepositoryImpl) Get(ctx context.Context, id string) (*entity.MediaAsset, error) {
	p, err := r.dao.FindByUUID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return r.convertor.ToEntity(p), nil
}

func (r *mediaAssetRepositoryImpl) FindBySourcePath(ctx context.Context, sourcePath string) (*entity.MediaAsset, error) {
	p, err := r.dao.FindBySourcePath(ctx, sourcePath)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return r.convertor.ToEntity(p), nil
}

func (r *mediaAssetRepositoryImpl) FindByStorageFolder(ctx context.Context, folder string) (*entity.MediaAsset, error) {
	p, err := r.dao.FindByStorageFolder(ctx, folder)
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return r.convertor.ToEntity(p), nil
}

func (r *mediaAssetRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*entity.MediaAsset, error) {
	list, err := r.dao.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return r.convertor.ToEntities(list), nil
}

func (r *mediaAssetRepositoryImpl) ListByTranscodeStatus(ctx context.Context, status vo.TranscodeStatus, updatedBefore time.Time, limit int) ([]*entity.MediaAsset, error) {
	list, err := r.dao.QueryByStatus(ctx, string(status), updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	return r.convertor.ToEntities(list), nil
}

func (r *mediaAssetRepositoryImpl) ListStalledBackground(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.MediaAsset, error) {
	list, err := r.dao.QueryStalledBackground(ctx, updatedBefore, limit)
	if err != nil {
		return nil, err
	}
	return r.convertor.ToEntities(list), nil
}

func (r *mediaAssetRepositoryImpl) UpdateFields(ctx context.Context, id string, patch repo.AssetPatch) error {
	if patch.IsEmpty() {
		return nil
	}
	columns := make(map[string]interface{})
	if patch.BackgroundStatus != nil {
		columns["background_status"] = patch.BackgroundStatus.String()
	}
	if patch.BackgroundTargets != nil {
		columns["background_targets"] = po.StringList(*patch.BackgroundTargets)
	}
	if patch.QualityConfigs != nil {
		columns["quality_configs"] = po.TierConfigMap(patch.QualityConfigs)
	}
	if patch.HLSBasePath != nil {
		columns["hls_base_path"] = *patch.HLSBasePath
	}
	if patch.MasterPlaylistPath != nil {
		columns["master_playlist_path"] = *patch.MasterPlaylistPath
	}
	if patch.Duration != nil {
		columns["duration"] = *patch.Duration
	}
	if patch.Dimensions != nil {
		columns["width"] = patch.Dimensions.Width
		columns["height"] = patch.Dimensions.Height
	}
	affected, err := r.dao.UpdateColumns(ctx, id, columns)
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.ensureExists(ctx, id)
	}
	return nil
}

func (r *mediaAssetRepositoryImpl) EnsureSharedToken(ctx context.Context, id, candidate string) (string, error) {
	p, err := r.dao.LockedUpdate(ctx, id, func(asset *po.MediaAsset) (map[string]interface{}, error) {
		if asset.SharedToken != "" {
			return nil, nil
		}
		asset.SharedToken = candidate
		return map[string]interface{}{"shared_token": candidate}, nil
	})
	if err != nil {
		return "", wrapNotFound(err)
	}
	return p.SharedToken, nil
}

func (r *mediaAssetRepositoryImpl) BeginProcessing(ctx context.Context, id string) (bool, error) {
	affected, err := r.dao.UpdateColumnsWhere(ctx, id, "transcode_status <> ?", []interface{}{string(vo.TranscodeStatusReady)},
		map[string]interface{}{
			"transcode_status": string(vo.TranscodeStatusProcessing),
			"failure_reason":   "",
		})
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, r.ensureExists(ctx, id)
	}
	return true, nil
}

func (r *mediaAssetRepositoryImpl) MarkReady(ctx context.Context, id string) error {
	affected, err := r.dao.UpdateColumns(ctx, id, map[string]interface{}{
		"transcode_status": string(vo.TranscodeStatusReady),
		"failure_reason":   "",
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return r.ensureExists(ctx, id)
	}
	return nil
}

func (r *mediaAssetRepositoryImpl) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	affected, err := r.dao.UpdateColumnsWhere(ctx, id, "transcode_status <> ?", []interface{}{string(vo.TranscodeStatusReady)},
		map[string]interface{}{
			"transcode_status": string(vo.TranscodeStatusFailed),
			"failure_reason":   reason,
			"quality_levels":   po.TierResultList{},
		})
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, r.ensureExists(ctx, id)
	}
	return true, nil
}

func (r *mediaAssetRepositoryImpl) MergeQualityLevel(ctx context.Context, id string, tier vo.TierResult) ([]vo.TierResult, error) {
	p, err := r.dao.LockedUpdate(ctx, id, func(asset *po.MediaAsset) (map[string]interface{}, error) {
		merged := vo.MergeTier(asset.QualityLevels, tier)
		asset.QualityLevels = merged
		return map[string]interface{}{"quality_levels": po.TierResultList(merged)}, nil
	})
	if err != nil {
		return nil, wrapNotFound(err)
	}
	return append([]vo.TierResult(nil), p.QualityLevels...), nil
}

func (r *mediaAssetRepositoryImpl) AppendFailure(ctx context.Context, id string, failure vo.FailedQuality) error {
	_, err := r.dao.LockedUpdate(ctx, id, func(asset *po.MediaAsset) (map[string]interface{}, error) {
		list := append(po.FailedQualityList{}, asset.FailedQualities...)
		list = append(list, failure)
		asset.FailedQualities = list
		return map[string]interface{}{"failed_qualities": list}, nil
	})
	return wrapNotFound(err)
}

func (r *mediaAssetRepositoryImpl) CompleteBackground(ctx context.Context, id string) (bool, error) {
	affected, err := r.dao.UpdateColumnsWhere(ctx, id, "background_status = ?", []interface{}{string(vo.BackgroundStatusProcessing)},
		map[string]interface{}{"background_status": string(vo.BackgroundStatusCompleted)})
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, r.ensureExists(ctx, id)
	}
	return true, nil
}

func (r *mediaAssetRepositoryImpl) ensureExists(ctx context.Context, id string) error {
	if _, err := r.dao.FindByUUID(ctx, id); err != nil {
		return wrapNotFound(err)
	}
	return nil
}

func wrapNotFound(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", repo.ErrMediaNotFound, err)
	}
	return err
}
