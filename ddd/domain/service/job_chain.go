package service

import (
	"context"
	"fmt"
	"time"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/ddd/domain/repo"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/metrics"
)

const defaultChainMarkerTTL = 24 * time.Hour

// JobChainOrchestrator 串行驱动后台档位：每次只入队一个任务，
// 当前任务结束后再入队剩余列表的队首
type JobChainOrchestrator struct {
	queue     gateway.JobQueue
	dedup     gateway.DedupStore
	repo      repo.MediaAssetRepository
	markerTTL time.Duration
}

// NewJobChainOrchestrator 创建编排器
func NewJobChainOrchestrator(queue gateway.JobQueue, dedup gateway.DedupStore, r repo.MediaAssetRepository) *JobChainOrchestrator {
	return &JobChainOrchestrator{
		queue:     queue,
		dedup:     dedup,
		repo:      r,
		markerTTL: defaultChainMarkerTTL,
	}
}

// Enqueue 直接投递一条消息
func (c *JobChainOrchestrator) Enqueue(ctx context.Context, msg *entity.TranscodeJobMessage) error {
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := c.queue.Enqueue(ctx, msg.Key(), body); err != nil {
		metrics.ChainEnqueueTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("enqueue %s: %w", msg.JobID(), err)
	}
	metrics.ChainEnqueueTotal.WithLabelValues("ok").Inc()
	logger.Info("transcode job enqueued", logger.Fields{
		"media_id":  msg.MediaID,
		"tier":      msg.QualityLevel,
		"remaining": msg.RemainingQualities,
	})
	return nil
}

// Start 以 tiers[0] 启动后台链，tiers 为必需档之后的剩余档位
func (c *JobChainOrchestrator) Start(ctx context.Context, asset *entity.MediaAsset, tiers []vo.TierConfig) (*entity.TranscodeJobMessage, error) {
	if len(tiers) == 0 {
		return nil, nil
	}
	msg := c.firstMessage(asset, tiers)
	return msg, c.enqueueOnce(ctx, msg)
}

// Redrive 重新投递链上首个缺失档位，不检查投递标记
func (c *JobChainOrchestrator) Redrive(ctx context.Context, asset *entity.MediaAsset, missing []string) (*entity.TranscodeJobMessage, error) {
	tiers := make([]vo.TierConfig, 0, len(missing))
	for _, name := range missing {
		cfg, ok := asset.QualityConfig(name)
		if !ok {
			return nil, fmt.Errorf("no quality config for tier %s", name)
		}
		tiers = append(tiers, cfg)
	}
	if len(tiers) == 0 {
		return nil, nil
	}
	msg := c.firstMessage(asset, tiers)
	return msg, c.Enqueue(ctx, msg)
}

// Continue 当前档位结束后（无论成败）入队下一个档位；没有剩余档位时返回 nil 消息
func (c *JobChainOrchestrator) Continue(ctx context.Context, current *entity.TranscodeJobMessage) (*entity.TranscodeJobMessage, error) {
	head, ok := current.NextQuality()
	if !ok {
		return nil, nil
	}
	cfg, err := c.resolveConfig(ctx, current.MediaID, head)
	if err != nil {
		return nil, err
	}
	next, ok := current.Next(cfg)
	if !ok {
		return nil, fmt.Errorf("cannot build next job for %s", head)
	}
	return next, c.enqueueOnce(ctx, next)
}

// enqueueOnce 以 (asset, tier) 标记防止重复投递导致链分叉
func (c *JobChainOrchestrator) enqueueOnce(ctx context.Context, msg *entity.TranscodeJobMessage) error {
	marker := "chain:next:" + msg.JobID()
	if c.dedup != nil {
		acquired, err := c.dedup.Acquire(ctx, marker, c.markerTTL)
		if err != nil {
			return fmt.Errorf("acquire chain marker: %w", err)
		}
		if !acquired {
			metrics.ChainEnqueueTotal.WithLabelValues("duplicate").Inc()
			logger.Info("chained job already enqueued", logger.Fields{"job": msg.JobID()})
			return nil
		}
	}
	if err := c.Enqueue(ctx, msg); err != nil {
		if c.dedup != nil {
			_ = c.dedup.Release(context.WithoutCancel(ctx), marker)
		}
		return err
	}
	return nil
}

// resolveConfig 优先使用资产上持久化的档位参数
func (c *JobChainOrchestrator) resolveConfig(ctx context.Context, mediaID, tier string) (vo.TierConfig, error) {
	asset, err := c.repo.Get(ctx, mediaID)
	if err != nil {
		return vo.TierConfig{}, err
	}
	cfg, ok := asset.QualityConfig(tier)
	if !ok {
		return vo.TierConfig{}, fmt.Errorf("no quality config for tier %s", tier)
	}
	return cfg, nil
}

func (c *JobChainOrchestrator) firstMessage(asset *entity.MediaAsset, tiers []vo.TierConfig) *entity.TranscodeJobMessage {
	rest := make([]string, 0, len(tiers)-1)
	for _, t := range tiers[1:] {
		rest = append(rest, t.Name)
	}
	return &entity.TranscodeJobMessage{
		MediaID:            asset.ID(),
		QualityLevel:       tiers[0].Name,
		FilePath:           asset.SourceObjectPath(),
		StorageFolder:      asset.StorageFolder(),
		HLSBasePath:        asset.HLSBasePath(),
		SharedToken:        asset.SharedToken(),
		OriginalResolution: asset.Dimensions(),
		RemainingQualities: rest,
		QualityConfig:      tiers[0],
	}
}
