package dto

import (
	"time"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/vo"
)

// MediaDto 资产状态
type MediaDto struct {
	MediaID            string             `json:"mediaId"`
	SourcePath         string             `json:"sourcePath"`
	StorageFolder      string             `json:"storageFolder"`
	TranscodeStatus    string             `json:"transcodeStatus"`
	FailureReason      string             `json:"failureReason,omitempty"`
	BackgroundStatus   string             `json:"backgroundStatus"`
	BackgroundTargets  []string           `json:"backgroundTargets,omitempty"`
	QualityLevels      []vo.TierResult    `json:"qualityLevels"`
	FailedQualities    []vo.FailedQuality `json:"failedQualities,omitempty"`
	MasterPlaylistPath string             `json:"masterPlaylistPath,omitempty"`
	MasterPlaylistURL  string             `json:"masterPlaylistUrl,omitempty"`
	Duration           float64            `json:"duration,omitempty"`
	Dimensions         vo.Dimensions      `json:"dimensions"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// NewMediaDto 从实体创建DTO；masterURL 由调用方签名后传入
func NewMediaDto(asset *entity.MediaAsset, masterURL string) *MediaDto {
	if asset == nil {
		return nil
	}
	levels := asset.QualityLevels()
	if levels == nil {
		levels = []vo.TierResult{}
	}
	return &MediaDto{
		MediaID:            asset.ID(),
		SourcePath:         asset.SourceObjectPath(),
		StorageFolder:      asset.StorageFolder(),
		TranscodeStatus:    asset.TranscodeStatus().String(),
		FailureReason:      asset.FailureReason(),
		BackgroundStatus:   asset.BackgroundStatus().String(),
		BackgroundTargets:  asset.BackgroundTargets(),
		QualityLevels:      levels,
		FailedQualities:    asset.FailedQualities(),
		MasterPlaylistPath: asset.MasterPlaylistPath(),
		MasterPlaylistURL:  masterURL,
		Duration:           asset.Duration(),
		Dimensions:         asset.Dimensions(),
		CreatedAt:          asset.CreatedAt(),
		UpdatedAt:          asset.UpdatedAt(),
	}
}

// IngestResultDto 一次对象事件的处理结果
type IngestResultDto struct {
	MediaID         string   `json:"mediaId,omitempty"`
	Ignored         bool     `json:"ignored,omitempty"`
	Reason          string   `json:"reason,omitempty"`
	TranscodeStatus string   `json:"transcodeStatus,omitempty"`
	Ladder          []string `json:"ladder,omitempty"`
}

// ResetStuckDto 维护接口返回值
type ResetStuckDto struct {
	Corrected           int      `json:"corrected"`
	Scanned             int      `json:"scanned"`
	Recovered           int      `json:"recovered"`
	Failed              int      `json:"failed"`
	BackgroundRedriven  int      `json:"backgroundRedriven"`
	BackgroundCompleted int      `json:"backgroundCompleted"`
	Errors              []string `json:"errors,omitempty"`
}
