package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"media-transcode-service/ddd/domain/vo"
)

// TranscodeJobMessage 一个档位的转码任务，字段自包含，接收方无需额外上下文
type TranscodeJobMessage struct {
	MediaID            string        `json:"mediaId"`
	QualityLevel       string        `json:"qualityLevel"`
	FilePath           string        `json:"filePath"`
	StorageFolder      string        `json:"storageFolder"`
	HLSBasePath        string        `json:"hlsBasePath"`
	SharedToken        string        `json:"sharedToken"`
	OriginalResolution vo.Dimensions `json:"originalResolution"`
	RemainingQualities []string      `json:"remainingQualities"`
	QualityConfig      vo.TierConfig `json:"qualityConfig"`
}

// DecodeTranscodeJob 解析队列消息体
func DecodeTranscodeJob(body []byte) (*TranscodeJobMessage, error) {
	var msg TranscodeJobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("decode transcode job: %w", err)
	}
	if msg.QualityConfig.Name == "" {
		if cfg, ok := vo.LookupTier(msg.QualityLevel); ok {
			msg.QualityConfig = cfg
		}
	}
	return &msg, nil
}

// Encode 序列化为队列消息体
func (m *TranscodeJobMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Validate 检查消息完整性
func (m *TranscodeJobMessage) Validate() error {
	switch {
	case strings.TrimSpace(m.MediaID) == "":
		return fmt.Errorf("mediaId is required")
	case strings.TrimSpace(m.QualityLevel) == "":
		return fmt.Errorf("qualityLevel is required")
	case strings.TrimSpace(m.FilePath) == "":
		return fmt.Errorf("filePath is required")
	case strings.TrimSpace(m.HLSBasePath) == "":
		return fmt.Errorf("hlsBasePath is required")
	case strings.TrimSpace(m.SharedToken) == "":
		return fmt.Errorf("sharedToken is required")
	}
	if m.QualityConfig.Name != m.QualityLevel {
		return fmt.Errorf("qualityConfig %q does not match qualityLevel %q", m.QualityConfig.Name, m.QualityLevel)
	}
	return m.QualityConfig.Validate()
}

// Key 同一资产的消息共用一个分区键，保证链上顺序
func (m *TranscodeJobMessage) Key() string { return m.MediaID }

// JobID identifies one (asset, tier) unit of work.
func (m *TranscodeJobMessage) JobID() string { return m.MediaID + ":" + m.QualityLevel }

// Next 以剩余列表的队首构造下一条消息，携带同一个 sharedToken
func (m *TranscodeJobMessage) Next(cfg vo.TierConfig) (*TranscodeJobMessage, bool) {
	if len(m.RemainingQualities) == 0 {
		return nil, false
	}
	head := m.RemainingQualities[0]
	if cfg.Name != head {
		return nil, false
	}
	next := *m
	next.QualityLevel = head
	next.QualityConfig = cfg
	next.RemainingQualities = append([]string{}, m.RemainingQualities[1:]...)
	return &next, true
}

// NextQuality 剩余列表的队首
func (m *TranscodeJobMessage) NextQuality() (string, bool) {
	if len(m.RemainingQualities) == 0 {
		return "", false
	}
	return m.RemainingQualities[0], true
}
