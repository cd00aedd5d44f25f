package vo

import (
	"sort"
	"time"
)

// TierResult 已完成的档位
type TierResult struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Resolution  string    `json:"resolution"`
	Bandwidth   int       `json:"bandwidth"`
	StoragePath string    `json:"storagePath"` // 档位 playlist 的对象路径
	CompletedAt time.Time `json:"completedAt"`
}

// FailureKind 失败来源
type FailureKind string

const (
	// FailureKindEncode 档位实际运行后失败，旧记录没有 kind 时也按此处理
	FailureKindEncode FailureKind = "encode"
	// FailureKindEnqueue 档位任务没能投递，档位本身没有运行
	FailureKindEnqueue FailureKind = "enqueue"
)

// FailedQuality 档位失败记录，只追加
type FailedQuality struct {
	Name     string      `json:"name"`
	Label    string      `json:"label"`
	Kind     FailureKind `json:"kind,omitempty"`
	Error    string      `json:"error"`
	FailedAt time.Time   `json:"failedAt"`
}

// IsEnqueue 是否为投递失败（链停滞，可由维护扫描重投）
func (f FailedQuality) IsEnqueue() bool { return f.Kind == FailureKindEnqueue }

// NewTierResult builds the completion record of cfg stored at storagePath.
func NewTierResult(cfg TierConfig, storagePath string, completedAt time.Time) TierResult {
	return TierResult{
		Name:        cfg.Name,
		Label:       cfg.Label,
		Resolution:  cfg.Resolution,
		Bandwidth:   cfg.Bandwidth,
		StoragePath: storagePath,
		CompletedAt: completedAt,
	}
}

// MergeTier 合并新完成的档位：按 name 去重，冲突时保留 completedAt 较晚者，
// 结果按带宽升序（同带宽按名称）排列。不修改入参。
func MergeTier(existing []TierResult, incoming TierResult) []TierResult {
	byName := make(map[string]TierResult, len(existing)+1)
	for _, t := range append(append([]TierResult(nil), existing...), incoming) {
		if t.Name == "" {
			continue
		}
		cur, ok := byName[t.Name]
		if !ok || !t.CompletedAt.Before(cur.CompletedAt) {
			byName[t.Name] = t
		}
	}
	out := make([]TierResult, 0, len(byName))
	for _, t := range byName {
		out = append(out, t)
	}
	SortByBandwidth(out)
	return out
}

// SortByBandwidth 带宽升序排序
func SortByBandwidth(tiers []TierResult) {
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].Bandwidth != tiers[j].Bandwidth {
			return tiers[i].Bandwidth < tiers[j].Bandwidth
		}
		return tiers[i].Name < tiers[j].Name
	})
}

// HasTier 是否已包含某档位
func HasTier(tiers []TierResult, name string) bool {
	for _, t := range tiers {
		if t.Name == name {
			return true
		}
	}
	return false
}
