package service

import (
	"context"
	"fmt"
	"time"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/repo"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/pkg/logger"
)

// ProgressiveReadinessController 必需档完成即可播放，其余档位在后台逐个补齐
type ProgressiveReadinessController struct {
	repo     repo.MediaAssetRepository
	master   *MasterPlaylistBuilder
	chain    *JobChainOrchestrator
	recovery *FailureRecoveryService
	now      func() time.Time
}

// NewProgressiveReadinessController 创建控制器
func NewProgressiveReadinessController(r repo.MediaAssetRepository, master *MasterPlaylistBuilder, chain *JobChainOrchestrator, recovery *FailureRecoveryService) *ProgressiveReadinessController {
	return &ProgressiveReadinessController{
		repo:     r,
		master:   master,
		chain:    chain,
		recovery: recovery,
		now:      time.Now,
	}
}

// OnMandatorySuccess 发布 master、记录 720p、标记 ready，再启动后台链。
// master 发布失败时不写任何字段，返回 ErrMasterPublishFailed，由调用方走必需档失败路径。
// 后台链启动失败不影响可播放状态，只记录失败。
func (c *ProgressiveReadinessController) OnMandatorySuccess(ctx context.Context, mediaID string, tier vo.TierConfig, loc *TierManifestLocation, ladder []vo.TierConfig) error {
	if err := c.commitMandatory(ctx, mediaID, tier, loc); err != nil {
		return err
	}
	if err := c.repo.MarkReady(ctx, mediaID); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	logger.Info("media ready", logger.Fields{"media_id": mediaID, "tier": tier.Name})

	remaining := make([]vo.TierConfig, 0, len(ladder))
	for _, t := range ladder {
		if t.Name != tier.Name {
			remaining = append(remaining, t)
		}
	}
	if len(remaining) == 0 {
		return nil
	}

	bg := vo.BackgroundStatusProcessing
	targets := TierNamesOf(remaining)
	if err := c.repo.UpdateFields(ctx, mediaID, repo.AssetPatch{
		BackgroundStatus:  &bg,
		BackgroundTargets: &targets,
	}); err != nil {
		return fmt.Errorf("mark background processing: %w", err)
	}

	asset, err := c.repo.Get(ctx, mediaID)
	if err != nil {
		return err
	}
	if _, err := c.chain.Start(ctx, asset, remaining); err != nil {
		logger.Error("start background chain", logger.Fields{"media_id": mediaID, "error": err.Error()})
		if recErr := c.recovery.RecordEnqueueFailure(ctx, mediaID, remaining[0], fmt.Errorf("enqueue: %w", err)); recErr != nil {
			logger.Error("record chain failure", logger.Fields{"media_id": mediaID, "error": recErr.Error()})
		}
	}
	return nil
}

// OnMandatoryFailure 清理残留产物并标记失败，qualityLevels 保持为空
func (c *ProgressiveReadinessController) OnMandatoryFailure(ctx context.Context, asset *entity.MediaAsset, tier vo.TierConfig, cause error) error {
	if hls := asset.HLSBasePath(); hls != "" {
		if _, err := c.recovery.CleanupPartial(ctx, hls); err != nil {
			logger.Warn("cleanup after mandatory failure", logger.Fields{"media_id": asset.ID(), "error": err.Error()})
		}
	}
	if err := c.recovery.RecordFailure(ctx, asset.ID(), tier, cause); err != nil {
		logger.Warn("record mandatory failure", logger.Fields{"media_id": asset.ID(), "error": err.Error()})
	}
	applied, err := c.repo.MarkFailed(ctx, asset.ID(), UserFacingReason(cause))
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if applied {
		logger.Warn("media failed", logger.Fields{"media_id": asset.ID(), "tier": tier.Name, "error": cause.Error()})
	}
	return nil
}

// OnTierSuccess 合并后台档位并重写 master；链尾时把后台状态置为 completed
func (c *ProgressiveReadinessController) OnTierSuccess(ctx context.Context, msg *entity.TranscodeJobMessage, loc *TierManifestLocation) error {
	if _, err := c.commitTier(ctx, msg.MediaID, msg.QualityConfig, loc); err != nil {
		return err
	}
	return c.finishIfLast(ctx, msg)
}

// OnTierFailure 后台档位失败不影响可播放状态
func (c *ProgressiveReadinessController) OnTierFailure(ctx context.Context, msg *entity.TranscodeJobMessage, cause error) error {
	if err := c.recovery.RecordFailure(ctx, msg.MediaID, msg.QualityConfig, cause); err != nil {
		return err
	}
	return c.finishIfLast(ctx, msg)
}

// OnChainStalled 下一个档位投递失败：只记录，后台状态保持 processing，
// 由维护扫描重投
func (c *ProgressiveReadinessController) OnChainStalled(ctx context.Context, next *entity.TranscodeJobMessage, cause error) error {
	return c.recovery.RecordEnqueueFailure(ctx, next.MediaID, next.QualityConfig, fmt.Errorf("enqueue: %w", cause))
}

func (c *ProgressiveReadinessController) finishIfLast(ctx context.Context, msg *entity.TranscodeJobMessage) error {
	if len(msg.RemainingQualities) > 0 {
		return nil
	}
	applied, err := c.repo.CompleteBackground(ctx, msg.MediaID)
	if err != nil {
		return fmt.Errorf("complete background: %w", err)
	}
	if applied {
		logger.Info("background tiers completed", logger.Fields{"media_id": msg.MediaID})
	}
	return nil
}

// commitMandatory 先发布 master 再写 qualityLevels，失败时资产保持空的 processing
func (c *ProgressiveReadinessController) commitMandatory(ctx context.Context, mediaID string, tier vo.TierConfig, loc *TierManifestLocation) error {
	asset, err := c.repo.Get(ctx, mediaID)
	if err != nil {
		return err
	}
	result := vo.NewTierResult(tier, loc.ObjectKey, c.now().UTC())
	merged := vo.MergeTier(asset.QualityLevels(), result)
	masterKey, err := c.master.Publish(ctx, asset.HLSBasePath(), merged, asset.SharedToken())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMasterPublishFailed, err)
	}
	if _, err := c.repo.MergeQualityLevel(ctx, mediaID, result); err != nil {
		return fmt.Errorf("merge quality level %s: %w", tier.Name, err)
	}
	if asset.MasterPlaylistPath() != masterKey {
		if err := c.repo.UpdateFields(ctx, mediaID, repo.AssetPatch{MasterPlaylistPath: &masterKey}); err != nil {
			return err
		}
	}
	logger.Info("tier committed", logger.Fields{"media_id": mediaID, "tier": tier.Name, "tiers": len(merged)})
	return nil
}

// commitTier 在行锁内合并档位，并按合并结果重写 master
func (c *ProgressiveReadinessController) commitTier(ctx context.Context, mediaID string, tier vo.TierConfig, loc *TierManifestLocation) ([]vo.TierResult, error) {
	result := vo.NewTierResult(tier, loc.ObjectKey, c.now().UTC())
	merged, err := c.repo.MergeQualityLevel(ctx, mediaID, result)
	if err != nil {
		return nil, fmt.Errorf("merge quality level %s: %w", tier.Name, err)
	}
	asset, err := c.repo.Get(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	hlsBase := asset.HLSBasePath()
	masterKey, err := c.master.Publish(ctx, hlsBase, merged, asset.SharedToken())
	if err != nil {
		return nil, err
	}
	if asset.MasterPlaylistPath() != masterKey {
		if err := c.repo.UpdateFields(ctx, mediaID, repo.AssetPatch{MasterPlaylistPath: &masterKey}); err != nil {
			return nil, err
		}
	}
	logger.Info("tier committed", logger.Fields{
		"media_id": mediaID,
		"tier":     tier.Name,
		"tiers":    len(merged),
	})
	return merged, nil
}
