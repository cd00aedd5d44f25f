package vo

// TranscodeStatus 资产转码状态
type TranscodeStatus string

const (
	// TranscodeStatusNone 尚未开始处理
	TranscodeStatusNone TranscodeStatus = ""
	// TranscodeStatusProcessing 处理中
	TranscodeStatusProcessing TranscodeStatus = "processing"
	// TranscodeStatusReady 可播放
	TranscodeStatusReady TranscodeStatus = "ready"
	// TranscodeStatusFailed 失败
	TranscodeStatusFailed TranscodeStatus = "failed"
)

func (s TranscodeStatus) String() string { return string(s) }

// IsValid 检查状态是否有效
func (s TranscodeStatus) IsValid() bool {
	switch s {
	case TranscodeStatusNone, TranscodeStatusProcessing, TranscodeStatusReady, TranscodeStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo ready 之后不再回退
func (s TranscodeStatus) CanTransitionTo(target TranscodeStatus) bool {
	switch s {
	case TranscodeStatusReady:
		return target == TranscodeStatusReady
	case TranscodeStatusNone, TranscodeStatusProcessing, TranscodeStatusFailed:
		return target.IsValid() && target != TranscodeStatusNone
	}
	return false
}

// BackgroundStatus 后台档位生成状态
type BackgroundStatus string

const (
	BackgroundStatusNone       BackgroundStatus = "none"
	BackgroundStatusProcessing BackgroundStatus = "processing"
	BackgroundStatusCompleted  BackgroundStatus = "completed"
)

func (s BackgroundStatus) String() string {
	if s == "" {
		return string(BackgroundStatusNone)
	}
	return string(s)
}

// MediaType 资产类型
type MediaType string

const (
	MediaTypeVideo MediaType = "video"
	MediaTypeImage MediaType = "image"
)

// Dimensions 源视频尺寸
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
