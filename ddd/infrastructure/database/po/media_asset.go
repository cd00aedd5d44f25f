package po

import (
	"database/sql/driver"

	"media-transcode-service/ddd/domain/vo"
)

// MediaAsset 资产元数据持久化对象
type MediaAsset struct {
	BaseModel
	MediaUUID          string            `gorm:"column:media_uuid;type:varchar(64);uniqueIndex" json:"media_uuid"`
	MediaType          string            `gorm:"column:media_type;type:varchar(20)" json:"media_type"`
	SourceObjectPath   string            `gorm:"column:source_object_path;type:varchar(512);index" json:"source_object_path"`
	StorageFolder      string            `gorm:"column:storage_folder;type:varchar(512);index" json:"storage_folder"`
	TranscodeStatus    string            `gorm:"column:transcode_status;type:varchar(20);index" json:"transcode_status"`
	FailureReason      string            `gorm:"column:failure_reason;type:varchar(500)" json:"failure_reason"`
	QualityLevels      TierResultList    `gorm:"column:quality_levels;type:json" json:"quality_levels"`
	BackgroundStatus   string            `gorm:"column:background_status;type:varchar(20);index;default:'none'" json:"background_status"`
	BackgroundTargets  StringList        `gorm:"column:background_targets;type:json" json:"background_targets"`
	FailedQualities    FailedQualityList `gorm:"column:failed_qualities;type:json" json:"failed_qualities"`
	SharedToken        string            `gorm:"column:shared_token;type:varchar(1024)" json:"-"`
	QualityConfigs     TierConfigMap     `gorm:"column:quality_configs;type:json" json:"quality_configs"`
	HLSBasePath        string            `gorm:"column:hls_base_path;type:varchar(512)" json:"hls_base_path"`
	MasterPlaylistPath string            `gorm:"column:master_playlist_path;type:varchar(512)" json:"master_playlist_path"`
	Duration           float64           `gorm:"column:duration;type:double;default:0" json:"duration"`
	Width              int               `gorm:"column:width;type:int;default:0" json:"width"`
	Height             int               `gorm:"column:height;type:int;default:0" json:"height"`
}

// TableName 指定表名
func (MediaAsset) TableName() string {
	return "media_assets"
}

// TierResultList 已完成档位 JSON 列
type TierResultList []vo.TierResult

func (l TierResultList) Value() (driver.Value, error) { return jsonValue([]vo.TierResult(l)) }
func (l *TierResultList) Scan(value interface{}) error { return scanJSON(value, l) }

// FailedQualityList 失败档位 JSON 列
type FailedQualityList []vo.FailedQuality

func (l FailedQualityList) Value() (driver.Value, error) { return jsonValue([]vo.FailedQuality(l)) }
func (l *FailedQualityList) Scan(value interface{}) error { return scanJSON(value, l) }

// StringList 字符串数组 JSON 列
type StringList []string

func (l StringList) Value() (driver.Value, error) { return jsonValue([]string(l)) }
func (l *StringList) Scan(value interface{}) error { return scanJSON(value, l) }

// TierConfigMap 档位参数 JSON 列
type TierConfigMap map[string]vo.TierConfig

func (m TierConfigMap) Value() (driver.Value, error) { return jsonValue(map[string]vo.TierConfig(m)) }
func (m *TierConfigMap) Scan(value interface{}) error { return scanJSON(value, m) }
