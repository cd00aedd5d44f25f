package service

import "media-transcode-service/ddd/domain/vo"

// QualityLadderPlanner 根据源尺寸决定档位列表
type QualityLadderPlanner struct{}

// PlanLadder 返回按编码顺序排列的档位，720p 始终在首位；尺寸未知时只生成 720p
func (QualityLadderPlanner) PlanLadder(width, height int) []vo.TierConfig {
	if width <= 0 && height <= 0 {
		cfg, _ := vo.LookupTier(vo.MandatoryTier)
		return []vo.TierConfig{cfg}
	}
	return vo.TiersForSource(width, height)
}

// TierNamesOf 提取档位名称
func TierNamesOf(tiers []vo.TierConfig) []string {
	names := make([]string, 0, len(tiers))
	for _, t := range tiers {
		names = append(names, t.Name)
	}
	return names
}

// TierConfigMap 按名称索引档位参数，用于持久化到资产记录
func TierConfigMap(tiers []vo.TierConfig) map[string]vo.TierConfig {
	out := make(map[string]vo.TierConfig, len(tiers))
	for _, t := range tiers {
		out[t.Name] = t
	}
	return out
}
