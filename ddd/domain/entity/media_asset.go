package entity

import (
	"path"
	"strings"
	"time"

	"media-transcode-service/ddd/domain/vo"
)

// MediaAsset 一个上传视频的元数据记录
type MediaAsset struct {
	id                 string
	mediaType          vo.MediaType
	sourceObjectPath   string
	storageFolder      string
	transcodeStatus    vo.TranscodeStatus
	failureReason      string
	qualityLevels      []vo.TierResult
	backgroundStatus   vo.BackgroundStatus
	backgroundTargets  []string
	failedQualities    []vo.FailedQuality
	sharedToken        string
	qualityConfigs     map[string]vo.TierConfig
	hlsBasePath        string
	masterPlaylistPath string
	duration           float64
	dimensions         vo.Dimensions
	createdAt          time.Time
	updatedAt          time.Time
}

// MediaAssetSnapshot 资产的完整字段，仅供持久化层还原/导出使用
type MediaAssetSnapshot struct {
	ID                 string
	Type               vo.MediaType
	SourceObjectPath   string
	StorageFolder      string
	TranscodeStatus    vo.TranscodeStatus
	FailureReason      string
	QualityLevels      []vo.TierResult
	BackgroundStatus   vo.BackgroundStatus
	BackgroundTargets  []string
	FailedQualities    []vo.FailedQuality
	SharedToken        string
	QualityConfigs     map[string]vo.TierConfig
	HLSBasePath        string
	MasterPlaylistPath string
	Duration           float64
	Dimensions         vo.Dimensions
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewMediaAsset 创建视频资产记录。storageFolder 为空时使用资产独占的目录：
// 源对象已在以 id 命名的目录下则取该目录，否则取 <源目录>/<id>
func NewMediaAsset(id, sourceObjectPath, storageFolder string) *MediaAsset {
	now := time.Now()
	if storageFolder == "" {
		storageFolder = DefaultStorageFolder(id, sourceObjectPath)
	}
	return &MediaAsset{
		id:               id,
		mediaType:        vo.MediaTypeVideo,
		sourceObjectPath: sourceObjectPath,
		storageFolder:    storageFolder,
		backgroundStatus: vo.BackgroundStatusNone,
		createdAt:        now,
		updatedAt:        now,
	}
}

// DefaultStorageFolder 资产默认目录，同目录下的两个上传不会共用 HLS 输出
func DefaultStorageFolder(id, sourceObjectPath string) string {
	dir := path.Dir(sourceObjectPath)
	if path.Base(dir) == id {
		return dir
	}
	return path.Join(dir, id)
}

// RestoreMediaAsset 从快照还原
func RestoreMediaAsset(s MediaAssetSnapshot) *MediaAsset {
	bg := s.BackgroundStatus
	if bg == "" {
		bg = vo.BackgroundStatusNone
	}
	return &MediaAsset{
		id:                 s.ID,
		mediaType:          s.Type,
		sourceObjectPath:   s.SourceObjectPath,
		storageFolder:      s.StorageFolder,
		transcodeStatus:    s.TranscodeStatus,
		failureReason:      s.FailureReason,
		qualityLevels:      append([]vo.TierResult(nil), s.QualityLevels...),
		backgroundStatus:   bg,
		backgroundTargets:  append([]string(nil), s.BackgroundTargets...),
		failedQualities:    append([]vo.FailedQuality(nil), s.FailedQualities...),
		sharedToken:        s.SharedToken,
		qualityConfigs:     copyConfigs(s.QualityConfigs),
		hlsBasePath:        s.HLSBasePath,
		masterPlaylistPath: s.MasterPlaylistPath,
		duration:           s.Duration,
		dimensions:         s.Dimensions,
		createdAt:          s.CreatedAt,
		updatedAt:          s.UpdatedAt,
	}
}

// Snapshot 导出完整字段（深拷贝）
func (a *MediaAsset) Snapshot() MediaAssetSnapshot {
	return MediaAssetSnapshot{
		ID:                 a.id,
		Type:               a.mediaType,
		SourceObjectPath:   a.sourceObjectPath,
		StorageFolder:      a.storageFolder,
		TranscodeStatus:    a.transcodeStatus,
		FailureReason:      a.failureReason,
		QualityLevels:      a.QualityLevels(),
		BackgroundStatus:   a.backgroundStatus,
		BackgroundTargets:  a.BackgroundTargets(),
		FailedQualities:    a.FailedQualities(),
		SharedToken:        a.sharedToken,
		QualityConfigs:     a.QualityConfigs(),
		HLSBasePath:        a.hlsBasePath,
		MasterPlaylistPath: a.masterPlaylistPath,
		Duration:           a.duration,
		Dimensions:         a.dimensions,
		CreatedAt:          a.createdAt,
		UpdatedAt:          a.updatedAt,
	}
}

func (a *MediaAsset) ID() string                            { return a.id }
func (a *MediaAsset) Type() vo.MediaType                    { return a.mediaType }
func (a *MediaAsset) SourceObjectPath() string              { return a.sourceObjectPath }
func (a *MediaAsset) StorageFolder() string                 { return a.storageFolder }
func (a *MediaAsset) TranscodeStatus() vo.TranscodeStatus   { return a.transcodeStatus }
func (a *MediaAsset) FailureReason() string                 { return a.failureReason }
func (a *MediaAsset) BackgroundStatus() vo.BackgroundStatus { return a.backgroundStatus }
func (a *MediaAsset) SharedToken() string                   { return a.sharedToken }
func (a *MediaAsset) HLSBasePath() string                   { return a.hlsBasePath }
func (a *MediaAsset) MasterPlaylistPath() string            { return a.masterPlaylistPath }
func (a *MediaAsset) Duration() float64                     { return a.duration }
func (a *MediaAsset) Dimensions() vo.Dimensions             { return a.dimensions }
func (a *MediaAsset) CreatedAt() time.Time                  { return a.createdAt }
func (a *MediaAsset) UpdatedAt() time.Time                  { return a.updatedAt }

func (a *MediaAsset) QualityLevels() []vo.TierResult {
	return append([]vo.TierResult(nil), a.qualityLevels...)
}

func (a *MediaAsset) BackgroundTargets() []string {
	return append([]string(nil), a.backgroundTargets...)
}

func (a *MediaAsset) FailedQualities() []vo.FailedQuality {
	return append([]vo.FailedQuality(nil), a.failedQualities...)
}

func (a *MediaAsset) QualityConfigs() map[string]vo.TierConfig {
	return copyConfigs(a.qualityConfigs)
}

// IsReady 是否已可播放
func (a *MediaAsset) IsReady() bool { return a.transcodeStatus == vo.TranscodeStatusReady }

// HasQuality 是否已完成某档位
func (a *MediaAsset) HasQuality(name string) bool { return vo.HasTier(a.qualityLevels, name) }

// QualityConfig 返回持久化的档位参数，缺失时回退到固定档位表
func (a *MediaAsset) QualityConfig(name string) (vo.TierConfig, bool) {
	if cfg, ok := a.qualityConfigs[name]; ok {
		return cfg, true
	}
	return vo.LookupTier(name)
}

// MissingTargets 后台目标中尚未完成的档位，保持目标顺序
func (a *MediaAsset) MissingTargets() []string {
	out := make([]string, 0, len(a.backgroundTargets))
	for _, name := range a.backgroundTargets {
		if !a.HasQuality(name) {
			out = append(out, name)
		}
	}
	return out
}

// Claims 记录登记了源对象时只认领同一个对象；未登记源对象的记录按目录认领
func (a *MediaAsset) Claims(objectName string) bool {
	source := strings.Trim(a.sourceObjectPath, "/")
	if source == "" {
		return true
	}
	name := strings.Trim(objectName, "/")
	if source == name {
		return true
	}
	return path.Base(source) == path.Base(name) &&
		(strings.HasSuffix(name, "/"+source) || strings.HasSuffix(source, "/"+name))
}

// FileName 源文件名
func (a *MediaAsset) FileName() string { return path.Base(a.sourceObjectPath) }

func copyConfigs(in map[string]vo.TierConfig) map[string]vo.TierConfig {
	if in == nil {
		return nil
	}
	out := make(map[string]vo.TierConfig, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
