package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/ddd/domain/repo"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/metrics"
)

const maxFailureMessage = 480

// ResetReport 一次维护扫描的结果
type ResetReport struct {
	Scanned             int      `json:"scanned"`
	Recovered           int      `json:"recovered"`
	Failed              int      `json:"failed"`
	BackgroundRedriven  int      `json:"backgroundRedriven"`
	BackgroundCompleted int      `json:"backgroundCompleted"`
	Errors              []string `json:"errors,omitempty"`
}

// Corrected 被修正的资产数
func (r ResetReport) Corrected() int {
	return r.Recovered + r.Failed + r.BackgroundRedriven + r.BackgroundCompleted
}

// FailureRecoveryService 记录档位失败、清理残留产物、修复卡住的资产
type FailureRecoveryService struct {
	repo    repo.MediaAssetRepository
	storage gateway.ObjectStorage
	master  *MasterPlaylistBuilder
	chain   *JobChainOrchestrator

	stuckAfter time.Duration
	batchSize  int
	now        func() time.Time
}

// NewFailureRecoveryService 创建恢复服务
func NewFailureRecoveryService(r repo.MediaAssetRepository, storage gateway.ObjectStorage, master *MasterPlaylistBuilder, chain *JobChainOrchestrator, cfg config.MaintenanceConfig) *FailureRecoveryService {
	stuck := cfg.StuckAfter
	if stuck <= 0 {
		stuck = 45 * time.Minute
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	return &FailureRecoveryService{
		repo:       r,
		storage:    storage,
		master:     master,
		chain:      chain,
		stuckAfter: stuck,
		batchSize:  batch,
		now:        time.Now,
	}
}

// RecordFailure 追加一条档位失败记录
func (s *FailureRecoveryService) RecordFailure(ctx context.Context, mediaID string, tier vo.TierConfig, cause error) error {
	return s.record(ctx, mediaID, tier, vo.FailureKindEncode, cause)
}

// RecordEnqueueFailure 记录档位任务投递失败；该档位仍留在维护扫描的重投范围内
func (s *FailureRecoveryService) RecordEnqueueFailure(ctx context.Context, mediaID string, tier vo.TierConfig, cause error) error {
	return s.record(ctx, mediaID, tier, vo.FailureKindEnqueue, cause)
}

func (s *FailureRecoveryService) record(ctx context.Context, mediaID string, tier vo.TierConfig, kind vo.FailureKind, cause error) error {
	msg := "unknown error"
	if cause != nil {
		msg = truncateError(cause.Error(), maxFailureMessage)
	}
	failure := vo.FailedQuality{
		Name:     tier.Name,
		Label:    tier.Label,
		Kind:     kind,
		Error:    msg,
		FailedAt: s.now().UTC(),
	}
	if err := s.repo.AppendFailure(ctx, mediaID, failure); err != nil {
		return fmt.Errorf("record failure for %s/%s: %w", mediaID, tier.Name, err)
	}
	logger.Warn("tier failure recorded", logger.Fields{
		"media_id": mediaID,
		"tier":     tier.Name,
		"kind":     string(kind),
		"error":    msg,
	})
	return nil
}

// CleanupPartial 删除 HLS 目录下的所有残留对象
func (s *FailureRecoveryService) CleanupPartial(ctx context.Context, hlsBasePath string) (int, error) {
	prefix := strings.Trim(hlsBasePath, "/")
	if prefix == "" || prefix == "." {
		return 0, errors.New("refusing to clean an empty hls base path")
	}
	removed, err := s.storage.DeletePrefix(ctx, prefix+"/")
	if err != nil {
		return removed, fmt.Errorf("cleanup %s: %w", prefix, err)
	}
	if removed > 0 {
		logger.Info("partial hls output removed", logger.Fields{"prefix": prefix, "objects": removed})
	}
	return removed, nil
}

// ResetStuck 修复长时间停在 processing 的资产与停滞的后台链
func (s *FailureRecoveryService) ResetStuck(ctx context.Context) (ResetReport, error) {
	var report ResetReport
	cutoff := s.now().Add(-s.stuckAfter)

	stuck, err := s.repo.ListByTranscodeStatus(ctx, vo.TranscodeStatusProcessing, cutoff, s.batchSize)
	if err != nil {
		return report, fmt.Errorf("list stuck media: %w", err)
	}
	for _, asset := range stuck {
		report.Scanned++
		if err := s.resetProcessing(ctx, asset, &report); err != nil {
			report.Errors = append(report.Errors, asset.ID()+": "+err.Error())
			metrics.StuckRepairTotal.WithLabelValues("error").Inc()
		}
	}

	stalled, err := s.repo.ListStalledBackground(ctx, cutoff, s.batchSize)
	if err != nil {
		return report, fmt.Errorf("list stalled background chains: %w", err)
	}
	for _, asset := range stalled {
		report.Scanned++
		if err := s.redriveBackground(ctx, asset, &report); err != nil {
			report.Errors = append(report.Errors, asset.ID()+": "+err.Error())
			metrics.StuckRepairTotal.WithLabelValues("error").Inc()
		}
	}

	logger.Info("stuck media scan finished", logger.Fields{
		"scanned":              report.Scanned,
		"recovered":            report.Recovered,
		"failed":               report.Failed,
		"background_redriven":  report.BackgroundRedriven,
		"background_completed": report.BackgroundCompleted,
		"errors":               len(report.Errors),
	})
	return report, nil
}

// resetProcessing 必需档 playlist 已存在则补记为 ready，否则判定失败并清理
func (s *FailureRecoveryService) resetProcessing(ctx context.Context, asset *entity.MediaAsset, report *ResetReport) error {
	hlsBase := asset.HLSBasePath()
	if hlsBase == "" {
		hlsBase = path.Join(asset.StorageFolder(), "hls")
	}
	key := TierPlaylistKey(hlsBase, vo.MandatoryTier)
	exists, err := s.storage.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check %s: %w", key, err)
	}

	if exists && asset.SharedToken() != "" {
		cfg, _ := asset.QualityConfig(vo.MandatoryTier)
		merged, err := s.repo.MergeQualityLevel(ctx, asset.ID(), vo.NewTierResult(cfg, key, s.now().UTC()))
		if err != nil {
			return err
		}
		masterKey, err := s.master.Publish(ctx, hlsBase, merged, asset.SharedToken())
		if err != nil {
			return err
		}
		if err := s.repo.UpdateFields(ctx, asset.ID(), repo.AssetPatch{MasterPlaylistPath: &masterKey}); err != nil {
			return err
		}
		if err := s.repo.MarkReady(ctx, asset.ID()); err != nil {
			return err
		}
		report.Recovered++
		metrics.StuckRepairTotal.WithLabelValues("ready").Inc()
		logger.Info("stuck media recovered as ready", logger.Fields{"media_id": asset.ID()})
		return nil
	}

	applied, err := s.repo.MarkFailed(ctx, asset.ID(), reasonStuck)
	if err != nil {
		return err
	}
	if !applied {
		return nil
	}
	if _, err := s.CleanupPartial(ctx, hlsBase); err != nil {
		logger.Warn("cleanup after stuck failure", logger.Fields{"media_id": asset.ID(), "error": err.Error()})
	}
	report.Failed++
	metrics.StuckRepairTotal.WithLabelValues("failed").Inc()
	logger.Info("stuck media marked failed", logger.Fields{"media_id": asset.ID()})
	return nil
}

// redriveBackground 重新投递首个既未完成也未编码失败的档位；没有可做的档位时收尾。
// 只有投递失败记录的档位从未运行过，仍需重投。
func (s *FailureRecoveryService) redriveBackground(ctx context.Context, asset *entity.MediaAsset, report *ResetReport) error {
	failed := make(map[string]bool)
	for _, f := range asset.FailedQualities() {
		if !f.IsEnqueue() {
			failed[f.Name] = true
		}
	}
	pending := make([]string, 0)
	for _, name := range asset.MissingTargets() {
		if !failed[name] {
			pending = append(pending, name)
		}
	}

	if len(pending) == 0 {
		applied, err := s.repo.CompleteBackground(ctx, asset.ID())
		if err != nil {
			return err
		}
		if applied {
			report.BackgroundCompleted++
			metrics.StuckRepairTotal.WithLabelValues("background_completed").Inc()
		}
		return nil
	}

	if _, err := s.chain.Redrive(ctx, asset, pending); err != nil {
		return err
	}
	// 刷新 updatedAt，避免下一轮扫描重复投递
	targets := asset.BackgroundTargets()
	if err := s.repo.UpdateFields(ctx, asset.ID(), repo.AssetPatch{BackgroundTargets: &targets}); err != nil {
		return err
	}
	report.BackgroundRedriven++
	metrics.StuckRepairTotal.WithLabelValues("background_redriven").Inc()
	logger.Info("stalled background chain re-driven", logger.Fields{
		"media_id": asset.ID(),
		"pending":  pending,
	})
	return nil
}
