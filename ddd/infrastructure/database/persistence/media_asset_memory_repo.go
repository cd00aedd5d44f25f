package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/repo"
	"media-transcode-service/ddd/domain/vo"
)

// MemoryMediaAssetRepository 进程内资产仓储，用于单机模式与测试。
// 语义与 gorm 实现一致：所有写操作在一把锁内完成字段级合并。
type MemoryMediaAssetRepository struct {
	mu     sync.RWMutex
	assets map[string]*entity.MediaAssetSnapshot
}

// NewMemoryMediaAssetRepository 创建内存仓储
func NewMemoryMediaAssetRepository() *MemoryMediaAssetRepository {
	return &MemoryMediaAssetRepository{assets: make(map[string]*entity.MediaAssetSnapshot)}
}

var _ repo.MediaAssetRepository = (*MemoryMediaAssetRepository)(nil)

func (r *MemoryMediaAssetRepository) Create(ctx context.Context, asset *entity.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := asset.Snapshot()
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	snap.UpdatedAt = time.Now()
	r.assets[snap.ID] = &snap
	return nil
}

func (r *MemoryMediaAssetRepository) Get(ctx context.Context, id string) (*entity.MediaAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.assets[id]
	if !ok {
		return nil, repo.ErrMediaNotFound
	}
	return entity.RestoreMediaAsset(*snap), nil
}

func (r *MemoryMediaAssetRepository) FindBySourcePath(ctx context.Context, sourcePath string) (*entity.MediaAsset, error) {
	return r.findLatest(func(s *entity.MediaAssetSnapshot) bool { return s.SourceObjectPath == sourcePath })
}

func (r *MemoryMediaAssetRepository) FindByStorageFolder(ctx context.Context, folder string) (*entity.MediaAsset, error) {
	return r.findLatest(func(s *entity.MediaAssetSnapshot) bool { return s.StorageFolder == folder })
}

func (r *MemoryMediaAssetRepository) ListRecent(ctx context.Context, limit int) ([]*entity.MediaAsset, error) {
	return r.list(func(*entity.MediaAssetSnapshot) bool { return true }, func(a, b *entity.MediaAssetSnapshot) bool {
		return a.CreatedAt.After(b.CreatedAt)
	}, limit), nil
}

func (r *MemoryMediaAssetRepository) ListByTranscodeStatus(ctx context.Context, status vo.TranscodeStatus, updatedBefore time.Time, limit int) ([]*entity.MediaAsset, error) {
	return r.list(func(s *entity.MediaAssetSnapshot) bool {
		return s.TranscodeStatus == status && s.UpdatedAt.Before(updatedBefore)
	}, oldestFirst, limit), nil
}

func (r *MemoryMediaAssetRepository) ListStalledBackground(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.MediaAsset, error) {
	return r.list(func(s *entity.MediaAssetSnapshot) bool {
		return s.TranscodeStatus == vo.TranscodeStatusReady &&
			s.BackgroundStatus == vo.BackgroundStatusProcessing &&
			s.UpdatedAt.Before(updatedBefore)
	}, oldestFirst, limit), nil
}

func (r *MemoryMediaAssetRepository) UpdateFields(ctx context.Context, id string, patch repo.AssetPatch) error {
	return r.mutate(id, func(s *entity.MediaAssetSnapshot) bool {
		if patch.BackgroundStatus != nil {
			s.BackgroundStatus = *patch.BackgroundStatus
		}
		if patch.BackgroundTargets != nil {
			s.BackgroundTargets = append([]string(nil), (*patch.BackgroundTargets)...)
		}
		if patch.QualityConfigs != nil {
			s.QualityConfigs = make(map[string]vo.TierConfig, len(patch.QualityConfigs))
			for k, v := range patch.QualityConfigs {
				s.QualityConfigs[k] = v
			}
		}
		if patch.HLSBasePath != nil {
			s.HLSBasePath = *patch.HLSBasePath
		}
		if patch.MasterPlaylistPath != nil {
			s.MasterPlaylistPath = *patch.MasterPlaylistPath
		}
		if patch.Duration != nil {
			s.Duration = *patch.Duration
		}
		if patch.Dimensions != nil {
			s.Dimensions = *patch.Dimensions
		}
		return true
	})
}

func (r *MemoryMediaAssetRepository) EnsureSharedToken(ctx context.Context, id, candidate string) (string, error) {
	var token string
	err := r.mutate(id, func(s *entity.MediaAssetSnapshot) bool {
		if s.SharedToken == "" {
			s.SharedToken = candidate
		}
		token = s.SharedToken
		return true
	})
	return token, err
}

func (r *MemoryMediaAssetRepository) BeginProcessing(ctx context.Context, id string) (bool, error) {
	applied := false
	err := r.mutate(id, func(s *entity.MediaAssetSnapshot) bool {
		if s.TranscodeStatus == vo.TranscodeStatusReady {
			return false
		}
		s.TranscodeStatus = vo.TranscodeStatusProcessing
		s.FailureReason = ""
		applied = true
		return true
	})
	return applied, err
}

func (r *MemoryMediaAssetRepository) MarkReady(ctx context.Context, id string) error {
	return r.mutate(id, func(s *entity.MediaAssetSnapshot) bool {
		s.TranscodeStatus = vo.TranscodeStatusReady
		s.FailureReason = ""
		return true
	})
}

func (r *MemoryMediaAssetRepository) MarkFailed(ctx context.Context, id, reason string) (bool, error) {
	applied := false
	err := r.mutate(id, func(s *entity.MediaAssetSnapshot) bool {
		if s.TranscodeStatus == vo.TranscodeStatusReady {
			return false
		}
		s.TranscodeStatus = vo.TranscodeStatusFailed
		s.FailureReason = reason
		s.QualityLevels = nil
		applied = true
		return true
	})
	return applied, err
}

func (r *MemoryMediaAssetRepository) MergeQualityLevel(ctx context.Context, id string, tier vo.TierResult) ([]vo.TierResult, error) {
	var merged []vo.TierResult
	err := r.mutate(id, func(s *entity.MediaAssetSnapshot) bool {
		merged = vo.MergeTier(s.QualityLevels, tier)
		s.QualityLevels = merged
		return true
	})
	if err != nil {
		return nil, err
	}
	return append([]vo.TierResult(nil), merged...), nil
}

func (r *MemoryMediaAssetRepository) AppendFailure(ctx context.Context, id string, failure vo.FailedQuality) error {
	return r.mutate(id, func(s *entity.MediaAssetSnapshot) bool {
		s.FailedQualities = append(s.FailedQualities, failure)
		return true
	})
}

func (r *MemoryMediaAssetRepository) CompleteBackground(ctx context.Context, id string) (bool, error) {
	applied := false
	err := r.mutate(id, func(s *entity.MediaAssetSnapshot) bool {
		if s.BackgroundStatus != vo.BackgroundStatusProcessing {
			return false
		}
		s.BackgroundStatus = vo.BackgroundStatusCompleted
		applied = true
		return true
	})
	return applied, err
}

// mutate 在写锁内修改快照，fn 返回 false 时不刷新 updatedAt
func (r *MemoryMediaAssetRepository) mutate(id string, fn func(s *entity.MediaAssetSnapshot) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.assets[id]
	if !ok {
		return repo.ErrMediaNotFound
	}
	if fn(snap) {
		snap.UpdatedAt = time.Now()
	}
	return nil
}

func (r *MemoryMediaAssetRepository) findLatest(match func(s *entity.MediaAssetSnapshot) bool) (*entity.MediaAsset, error) {
	list := r.list(match, func(a, b *entity.MediaAssetSnapshot) bool { return a.CreatedAt.After(b.CreatedAt) }, 1)
	if len(list) == 0 {
		return nil, repo.ErrMediaNotFound
	}
	return list[0], nil
}

func (r *MemoryMediaAssetRepository) list(match func(s *entity.MediaAssetSnapshot) bool, less func(a, b *entity.MediaAssetSnapshot) bool, limit int) []*entity.MediaAsset {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]*entity.MediaAssetSnapshot, 0)
	for _, s := range r.assets {
		if match(s) {
			matched = append(matched, s)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]*entity.MediaAsset, 0, len(matched))
	for _, s := range matched {
		out = append(out, entity.RestoreMediaAsset(*s))
	}
	return out
}

func oldestFirst(a, b *entity.MediaAssetSnapshot) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
