package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-transcode-service/ddd/application/cqe"
	"media-transcode-service/ddd/application/dto"
	"media-transcode-service/ddd/domain/entity"
	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/ddd/domain/repo"
	"media-transcode-service/ddd/domain/service"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/errno"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/metrics"
)

// leaseSlack 租约在档位超时之外额外保留的时间，覆盖下载与上传
const leaseSlack = 10 * time.Minute

type TranscodeApp interface {
	// HandleObjectFinalized 处理对象写入完成事件：同步生成 720p 并标记可播放
	HandleObjectFinalized(ctx context.Context, req *cqe.ObjectFinalizedReq) (*dto.IngestResultDto, error)
	// HandleTranscodeJob 处理后台链上的一个档位任务
	HandleTranscodeJob(ctx context.Context, msg *entity.TranscodeJobMessage) error
	// ResetStuck 修复卡住的资产
	ResetStuck(ctx context.Context) (*dto.ResetStuckDto, error)
	GetMedia(ctx context.Context, mediaID string) (*dto.MediaDto, error)
	RegisterMedia(ctx context.Context, req *cqe.RegisterMediaReq) (*dto.MediaDto, error)
	// OpenPlayback 校验 token 后打开对象
	OpenPlayback(ctx context.Context, bucket, objectKey, token string) (io.ReadCloser, gateway.ObjectInfo, error)
}

// Deps 应用服务依赖
type Deps struct {
	Repo    repo.MediaAssetRepository
	Storage gateway.ObjectStorage
	Engine  gateway.MediaEngine
	Signer  gateway.URLSigner
	Queue   gateway.JobQueue
	Dedup   gateway.DedupStore
	Config  *config.Config
}

type transcodeAppImpl struct {
	repo     repo.MediaAssetRepository
	storage  gateway.ObjectStorage
	engine   gateway.MediaEngine
	signer   gateway.URLSigner
	dedup    gateway.DedupStore
	resolver *service.IngestionResolver
	planner  service.QualityLadderPlanner
	encoder  *service.TierEncoder
	chain    *service.JobChainOrchestrator
	recovery *service.FailureRecoveryService
	ready    *service.ProgressiveReadinessController

	transcodeCfg config.TranscodeConfig
}

// NewTranscodeAppWith 用给定依赖组装应用服务
func NewTranscodeAppWith(d Deps) TranscodeApp {
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	uploader := service.NewUploadRetrier(d.Storage, cfg.Upload)
	master := service.NewMasterPlaylistBuilder(d.Signer, uploader)
	chain := service.NewJobChainOrchestrator(d.Queue, d.Dedup, d.Repo)
	recovery := service.NewFailureRecoveryService(d.Repo, d.Storage, master, chain, cfg.Maintenance)
	return &transcodeAppImpl{
		repo:         d.Repo,
		storage:      d.Storage,
		engine:       d.Engine,
		signer:       d.Signer,
		dedup:        d.Dedup,
		resolver:     service.NewIngestionResolver(d.Repo, cfg.Ingestion),
		encoder:      service.NewTierEncoder(d.Engine, uploader, service.NewManifestRewriter(d.Signer), cfg.Transcode),
		chain:        chain,
		recovery:     recovery,
		ready:        service.NewProgressiveReadinessController(d.Repo, master, chain, recovery),
		transcodeCfg: cfg.Transcode,
	}
}

func (t *transcodeAppImpl) HandleObjectFinalized(ctx context.Context, req *cqe.ObjectFinalizedReq) (*dto.IngestResultDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if ok, reason := req.ShouldProcess(t.transcodeCfg.UploadPrefix); !ok {
		metrics.IngestionEventsTotal.WithLabelValues("ignored").Inc()
		logger.Debug("object event ignored", logger.Fields{"object": req.Name, "reason": reason})
		return &dto.IngestResultDto{Ignored: true, Reason: reason}, nil
	}

	asset, err := t.resolver.Resolve(ctx, req.Name, req.ObjectDir())
	if err != nil {
		metrics.IngestionEventsTotal.WithLabelValues("unresolved").Inc()
		if errors.Is(err, service.ErrAssetNotFound) {
			logger.Warn("no media record for object", logger.Fields{"object": req.Name})
			return nil, errno.NewBizError(errno.ErrMediaNotFound, err)
		}
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	mediaID := asset.ID()

	// 同一资产的重复事件在处理期间返回 409，由事件源稍后重试
	lease := "lease:ingest:" + mediaID
	ttl := t.transcodeCfg.TierTimeout(vo.MandatoryTier, vo.DefaultTierTimeout(vo.MandatoryTier)) + leaseSlack
	acquired, err := t.dedup.Acquire(ctx, lease, ttl)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}
	if !acquired {
		metrics.IngestionEventsTotal.WithLabelValues("in_progress").Inc()
		return nil, errno.NewBizError(errno.ErrJobInProgress, service.ErrJobInProgress)
	}
	defer func() {
		_ = t.dedup.Release(context.WithoutCancel(ctx), lease)
	}()

	started, err := t.repo.BeginProcessing(ctx, mediaID)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	if !started {
		metrics.IngestionEventsTotal.WithLabelValues("duplicate").Inc()
		logger.Info("media already ready, event skipped", logger.Fields{"media_id": mediaID, "object": req.Name})
		return &dto.IngestResultDto{MediaID: mediaID, Ignored: true, Reason: "already ready", TranscodeStatus: vo.TranscodeStatusReady.String()}, nil
	}
	metrics.IngestionEventsTotal.WithLabelValues("accepted").Inc()

	hls := asset.HLSBasePath()
	if hls == "" {
		hls = path.Join(asset.StorageFolder(), "hls")
	}
	candidate, err := t.signer.IssueToken(mediaID, hls)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrInternalServer, err)
	}
	token, err := t.repo.EnsureSharedToken(ctx, mediaID, candidate)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	if err := t.repo.UpdateFields(ctx, mediaID, repo.AssetPatch{HLSBasePath: &hls}); err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	if asset, err = t.repo.Get(ctx, mediaID); err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}

	logger.Info("media processing started", logger.Fields{"media_id": mediaID, "object": req.Name})
	local, cleanup, err := t.fetchSource(ctx, mediaID, req.Name)
	if err != nil {
		return t.failMandatory(ctx, asset, err)
	}
	defer cleanup()

	ladder := t.planLadder(ctx, asset, local)
	mandatory := ladder[0]

	loc, err := t.encoder.Encode(ctx, service.EncodeRequest{
		MediaID:         mediaID,
		SourceLocalPath: local,
		Tier:            mandatory,
		HLSBasePath:     hls,
		SharedToken:     token,
	})
	if err != nil {
		return t.failMandatory(ctx, asset, err)
	}
	if err := t.ready.OnMandatorySuccess(ctx, mediaID, mandatory, loc, ladder); err != nil {
		if errors.Is(err, service.ErrMasterPublishFailed) {
			return t.failMandatory(ctx, asset, err)
		}
		return nil, errno.NewBizError(errno.ErrHLSGenerationFailed, err)
	}
	return &dto.IngestResultDto{
		MediaID:         mediaID,
		TranscodeStatus: vo.TranscodeStatusReady.String(),
		Ladder:          service.TierNamesOf(ladder),
	}, nil
}

// planLadder 探测源尺寸并持久化档位参数；探测失败时只生成 720p
func (t *transcodeAppImpl) planLadder(ctx context.Context, asset *entity.MediaAsset, local string) []vo.TierConfig {
	probe, err := t.engine.Probe(ctx, local)
	if err != nil {
		logger.Warn("probe failed, planning mandatory tier only", logger.Fields{"media_id": asset.ID(), "error": err.Error()})
	}
	ladder := t.planner.PlanLadder(probe.Width, probe.Height)

	dims := vo.Dimensions{Width: probe.Width, Height: probe.Height}
	patch := repo.AssetPatch{QualityConfigs: service.TierConfigMap(ladder), Dimensions: &dims}
	if probe.Duration > 0 {
		patch.Duration = &probe.Duration
	}
	if err := t.repo.UpdateFields(ctx, asset.ID(), patch); err != nil {
		logger.Warn("persist ladder failed", logger.Fields{"media_id": asset.ID(), "error": err.Error()})
	}
	logger.Info("quality ladder planned", logger.Fields{
		"media_id": asset.ID(),
		"width":    probe.Width,
		"height":   probe.Height,
		"ladder":   service.TierNamesOf(ladder),
	})
	return ladder
}

// failMandatory 必需档失败；请求被取消时不落状态，交给维护扫描处理
func (t *transcodeAppImpl) failMandatory(ctx context.Context, asset *entity.MediaAsset, cause error) (*dto.IngestResultDto, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	mandatory, ok := asset.QualityConfig(vo.MandatoryTier)
	if !ok {
		mandatory, _ = vo.LookupTier(vo.MandatoryTier)
	}
	if err := t.ready.OnMandatoryFailure(ctx, asset, mandatory, cause); err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return &dto.IngestResultDto{
		MediaID:         asset.ID(),
		TranscodeStatus: vo.TranscodeStatusFailed.String(),
		Reason:          service.UserFacingReason(cause),
	}, nil
}

func (t *transcodeAppImpl) HandleTranscodeJob(ctx context.Context, msg *entity.TranscodeJobMessage) error {
	if err := msg.Validate(); err != nil {
		return errno.NewBizError(errno.ErrInvalidParam, err)
	}

	lease := "lease:" + msg.JobID()
	ttl := t.transcodeCfg.TierTimeout(msg.QualityLevel, vo.DefaultTierTimeout(msg.QualityLevel)) + leaseSlack
	acquired, err := t.dedup.Acquire(ctx, lease, ttl)
	if err != nil {
		return fmt.Errorf("acquire lease: %w", err)
	}
	if !acquired {
		return errno.NewBizError(errno.ErrJobInProgress, service.ErrJobInProgress)
	}
	defer func() {
		_ = t.dedup.Release(context.WithoutCancel(ctx), lease)
	}()

	asset, err := t.repo.Get(ctx, msg.MediaID)
	if err != nil {
		if errors.Is(err, repo.ErrMediaNotFound) {
			return errno.NewBizError(errno.ErrMediaNotFound, err)
		}
		return errno.NewBizError(errno.ErrDatabase, err)
	}
	if !asset.IsReady() {
		logger.Warn("chained job for non-ready media dropped", logger.Fields{
			"media_id": msg.MediaID,
			"tier":     msg.QualityLevel,
			"status":   asset.TranscodeStatus().String(),
		})
		return nil
	}

	loc, encErr := t.encodeTier(ctx, msg)
	if encErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if encErr != nil {
		if err := t.ready.OnTierFailure(ctx, msg, encErr); err != nil {
			return errno.NewBizError(errno.ErrDatabase, err)
		}
	} else if err := t.ready.OnTierSuccess(ctx, msg, loc); err != nil {
		return errno.NewBizError(errno.ErrDatabase, err)
	}

	next, err := t.chain.Continue(ctx, msg)
	if err != nil {
		logger.Error("enqueue next tier failed", logger.Fields{"media_id": msg.MediaID, "after": msg.QualityLevel, "error": err.Error()})
		if next != nil {
			// 当前档位的结果已提交；停滞的链由维护扫描重投
			if recErr := t.ready.OnChainStalled(ctx, next, err); recErr != nil {
				logger.Error("record enqueue failure", logger.Fields{"media_id": msg.MediaID, "error": recErr.Error()})
			}
		}
	}
	return nil
}

func (t *transcodeAppImpl) encodeTier(ctx context.Context, msg *entity.TranscodeJobMessage) (*service.TierManifestLocation, error) {
	local, cleanup, err := t.fetchSource(ctx, msg.MediaID, msg.FilePath)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return t.encoder.Encode(ctx, service.EncodeRequest{
		MediaID:         msg.MediaID,
		SourceLocalPath: local,
		Tier:            msg.QualityConfig,
		HLSBasePath:     msg.HLSBasePath,
		SharedToken:     msg.SharedToken,
	})
}

// fetchSource 把源文件下载到临时目录，返回本地路径与清理函数
func (t *transcodeAppImpl) fetchSource(ctx context.Context, mediaID, objectKey string) (string, func(), error) {
	dir := filepath.Join(t.transcodeCfg.FFmpeg.TempDir, "src", mediaID+"-"+uuid.NewString()[:8])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("create source dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }
	local := filepath.Join(dir, "source"+strings.ToLower(path.Ext(objectKey)))
	if err := t.storage.Download(ctx, objectKey, local); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("download source %s: %w", objectKey, err)
	}
	return local, cleanup, nil
}

func (t *transcodeAppImpl) ResetStuck(ctx context.Context) (*dto.ResetStuckDto, error) {
	report, err := t.recovery.ResetStuck(ctx)
	if err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return &dto.ResetStuckDto{
		Corrected:           report.Corrected(),
		Scanned:             report.Scanned,
		Recovered:           report.Recovered,
		Failed:              report.Failed,
		BackgroundRedriven:  report.BackgroundRedriven,
		BackgroundCompleted: report.BackgroundCompleted,
		Errors:              report.Errors,
	}, nil
}

func (t *transcodeAppImpl) GetMedia(ctx context.Context, mediaID string) (*dto.MediaDto, error) {
	if mediaID == "" {
		return nil, errno.ErrMediaIDRequired
	}
	asset, err := t.repo.Get(ctx, mediaID)
	if err != nil {
		if errors.Is(err, repo.ErrMediaNotFound) {
			return nil, errno.ErrMediaNotFound
		}
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	return dto.NewMediaDto(asset, t.masterURL(asset)), nil
}

func (t *transcodeAppImpl) RegisterMedia(ctx context.Context, req *cqe.RegisterMediaReq) (*dto.MediaDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	// 幂等：同一源对象已登记则直接返回
	if existing, err := t.repo.FindBySourcePath(ctx, req.SourcePath); err == nil {
		return dto.NewMediaDto(existing, t.masterURL(existing)), nil
	}
	id := req.MediaID
	if id == "" {
		id = uuid.NewString()
	}
	// 目录下的 HLS 输出与残留清理按资产独占，显式目录不能与其他资产共用
	if req.StorageFolder != "" {
		owner, err := t.repo.FindByStorageFolder(ctx, req.StorageFolder)
		if err == nil && owner.ID() != id {
			return nil, errno.NewBizError(errno.ErrConflict, fmt.Errorf("storage folder %s is used by media %s", req.StorageFolder, owner.ID()))
		}
		if err != nil && !errors.Is(err, repo.ErrMediaNotFound) {
			return nil, errno.NewBizError(errno.ErrDatabase, err)
		}
	}
	asset := entity.NewMediaAsset(id, req.SourcePath, req.StorageFolder)
	if err := t.repo.Create(ctx, asset); err != nil {
		return nil, errno.NewBizError(errno.ErrDatabase, err)
	}
	logger.Info("media registered", logger.Fields{"media_id": id, "source": req.SourcePath})
	return dto.NewMediaDto(asset, ""), nil
}

func (t *transcodeAppImpl) OpenPlayback(ctx context.Context, bucket, objectKey, token string) (io.ReadCloser, gateway.ObjectInfo, error) {
	objectKey = strings.TrimLeft(objectKey, "/")
	if bucket != t.storage.Bucket() || objectKey == "" {
		return nil, gateway.ObjectInfo{}, errno.ErrNotFound
	}
	if err := t.signer.Verify(token, objectKey); err != nil {
		return nil, gateway.ObjectInfo{}, errno.NewBizError(errno.ErrTokenInvalid, err)
	}
	rc, info, err := t.storage.Open(ctx, objectKey)
	if err != nil {
		if errors.Is(err, gateway.ErrObjectNotFound) {
			return nil, gateway.ObjectInfo{}, errno.ErrNotFound
		}
		return nil, gateway.ObjectInfo{}, errno.NewBizError(errno.ErrInternalServer, err)
	}
	return rc, info, nil
}

func (t *transcodeAppImpl) masterURL(asset *entity.MediaAsset) string {
	if asset.MasterPlaylistPath() == "" || asset.SharedToken() == "" {
		return ""
	}
	return t.signer.SignedURL(t.storage.Bucket(), asset.MasterPlaylistPath(), asset.SharedToken())
}
