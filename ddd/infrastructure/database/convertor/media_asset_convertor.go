package convertor

import (
	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/ddd/infrastructure/database/po"
)

// MediaAssetConvertor 资产转换器
type MediaAssetConvertor struct{}

// NewMediaAssetConvertor 创建资产转换器
func NewMediaAssetConvertor() *MediaAssetConvertor {
	return &MediaAssetConvertor{}
}

// ToEntity 将PO转换为Entity
func (c *MediaAssetConvertor) ToEntity(p *po.MediaAsset) *entity.MediaAsset {
	if p == nil {
		return nil
	}
	return entity.RestoreMediaAsset(entity.MediaAssetSnapshot{
		ID:                 p.MediaUUID,
		Type:               vo.MediaType(p.MediaType),
		SourceObjectPath:   p.SourceObjectPath,
		StorageFolder:      p.StorageFolder,
		TranscodeStatus:    vo.TranscodeStatus(p.TranscodeStatus),
		FailureReason:      p.FailureReason,
		QualityLevels:      p.QualityLevels,
		BackgroundStatus:   vo.BackgroundStatus(p.BackgroundStatus),
		BackgroundTargets:  p.BackgroundTargets,
		FailedQualities:    p.FailedQualities,
		SharedToken:        p.SharedToken,
		QualityConfigs:     p.QualityConfigs,
		HLSBasePath:        p.HLSBasePath,
		MasterPlaylistPath: p.MasterPlaylistPath,
		Duration:           p.Duration,
		Dimensions:         vo.Dimensions{Width: p.Width, Height: p.Height},
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	})
}

// ToPO 将Entity转换为PO
func (c *MediaAssetConvertor) ToPO(e *entity.MediaAsset) *po.MediaAsset {
	s := e.Snapshot()
	return &po.MediaAsset{
		BaseModel: po.BaseModel{
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		},
		MediaUUID:          s.ID,
		MediaType:          string(s.Type),
		SourceObjectPath:   s.SourceObjectPath,
		StorageFolder:      s.StorageFolder,
		TranscodeStatus:    string(s.TranscodeStatus),
		FailureReason:      s.FailureReason,
		QualityLevels:      s.QualityLevels,
		BackgroundStatus:   s.BackgroundStatus.String(),
		BackgroundTargets:  s.BackgroundTargets,
		FailedQualities:    s.FailedQualities,
		SharedToken:        s.SharedToken,
		QualityConfigs:     s.QualityConfigs,
		HLSBasePath:        s.HLSBasePath,
		MasterPlaylistPath: s.MasterPlaylistPath,
		Duration:           s.Duration,
		Width:              s.Dimensions.Width,
		Height:             s.Dimensions.Height,
	}
}

// ToEntities 批量转换
func (c *MediaAssetConvertor) ToEntities(list []*po.MediaAsset) []*entity.MediaAsset {
	out := make([]*entity.MediaAsset, 0, len(list))
	for _, p := range list {
		out = append(out, c.ToEntity(p))
	}
	return out
}
