package vo

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MandatoryTier 必须成功的最低档位，它的成败决定资产能否播放
const MandatoryTier = "720p"

// TierConfig 清晰度档位的编码参数
type TierConfig struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Resolution  string `json:"resolution"` // WxH
	ScaleFilter string `json:"scaleFilter"`
	Preset      string `json:"preset"`
	CRF         int    `json:"crf"`
	Bandwidth   int    `json:"bandwidth"` // 估算值，仅用于 master 排序
}

type tierSpec struct {
	cfg     TierConfig
	timeout time.Duration
	minW    int
	minH    int
}

// 固定档位表，按规划顺序排列
var tierTable = []tierSpec{
	{
		cfg: TierConfig{
			Name: "720p", Label: "HD", Resolution: "1280x720",
			ScaleFilter: "scale=-2:720", Preset: "veryfast", CRF: 23, Bandwidth: 2800000,
		},
		timeout: 5 * time.Minute,
	},
	{
		cfg: TierConfig{
			Name: "1080p", Label: "Full HD", Resolution: "1920x1080",
			ScaleFilter: "scale=-2:1080", Preset: "fast", CRF: 21, Bandwidth: 5000000,
		},
		timeout: 10 * time.Minute,
		minW:    1920,
		minH:    1080,
	},
	{
		cfg: TierConfig{
			Name: "2160p", Label: "4K", Resolution: "3840x2160",
			ScaleFilter: "scale=-2:2160", Preset: "medium", CRF: 20, Bandwidth: 14000000,
		},
		timeout: 20 * time.Minute,
		minW:    3840,
		minH:    2160,
	},
}

// LookupTier 按名称查找档位
func LookupTier(name string) (TierConfig, bool) {
	for _, t := range tierTable {
		if t.cfg.Name == name {
			return t.cfg, true
		}
	}
	return TierConfig{}, false
}

// TierNames returns every known tier in planning order.
func TierNames() []string {
	names := make([]string, 0, len(tierTable))
	for _, t := range tierTable {
		names = append(names, t.cfg.Name)
	}
	return names
}

// DefaultTierTimeout 档位默认超时，未知档位按最长处理
func DefaultTierTimeout(name string) time.Duration {
	longest := time.Duration(0)
	for _, t := range tierTable {
		if t.cfg.Name == name {
			return t.timeout
		}
		if t.timeout > longest {
			longest = t.timeout
		}
	}
	return longest
}

// TiersForSource 返回源尺寸应生成的档位，720p 总在第一位
func TiersForSource(width, height int) []TierConfig {
	out := make([]TierConfig, 0, len(tierTable))
	for _, t := range tierTable {
		if t.cfg.Name == MandatoryTier || width >= t.minW || height >= t.minH {
			out = append(out, t.cfg)
		}
	}
	return out
}

// IsMandatory reports whether the tier gates playability.
func (t TierConfig) IsMandatory() bool { return t.Name == MandatoryTier }

// Dimensions 解析 Resolution 字段
func (t TierConfig) Dimensions() (int, int) {
	w, h, err := ParseResolution(t.Resolution)
	if err != nil {
		return 0, 0
	}
	return w, h
}

// Validate 校验从消息中反序列化得到的档位参数
func (t TierConfig) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("tier name is empty")
	}
	if strings.TrimSpace(t.ScaleFilter) == "" {
		return fmt.Errorf("tier %s has no scale filter", t.Name)
	}
	if t.Bandwidth <= 0 {
		return fmt.Errorf("tier %s has invalid bandwidth %d", t.Name, t.Bandwidth)
	}
	if _, _, err := ParseResolution(t.Resolution); err != nil {
		return fmt.Errorf("tier %s: %w", t.Name, err)
	}
	return nil
}

// ParseResolution 解析 "1280x720"
func ParseResolution(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid resolution: %q", s)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution: %q", s)
	}
	return w, h, nil
}
