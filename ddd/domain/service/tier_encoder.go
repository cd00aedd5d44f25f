package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/ddd/domain/vo"
	"media-transcode-service/pkg/config"
	"media-transcode-service/pkg/logger"
	"media-transcode-service/pkg/metrics"
)

const (
	// TierPlaylistName 每个档位的 playlist 文件名
	TierPlaylistName = "playlist.m3u8"
	segmentPattern   = "segment_%03d.ts"
)

// TierPlaylistKey 档位 playlist 的对象路径
func TierPlaylistKey(hlsBasePath, tier string) string {
	return path.Join(hlsBasePath, tier, TierPlaylistName)
}

// EncodeRequest 单个档位的编码请求
type EncodeRequest struct {
	MediaID         string
	SourceLocalPath string
	Tier            vo.TierConfig
	HLSBasePath     string
	SharedToken     string
	// Timeout 为 0 时使用档位默认超时
	Timeout time.Duration
}

// TierManifestLocation 已上传的档位 playlist 位置
type TierManifestLocation struct {
	ObjectKey string
	Segments  int
}

// TierEncoder 把源文件编码为一个档位的 HLS，改写 manifest 后上传全部产物
type TierEncoder struct {
	engine   gateway.MediaEngine
	uploader *UploadRetrier
	rewriter *ManifestRewriter
	bucket   string

	workDir         string
	videoCodec      string
	threads         int
	segmentDuration int
	lowestListSize  int
	timeouts        config.TranscodeConfig
}

// NewTierEncoder 创建编码器
func NewTierEncoder(engine gateway.MediaEngine, uploader *UploadRetrier, rewriter *ManifestRewriter, cfg config.TranscodeConfig) *TierEncoder {
	e := &TierEncoder{
		engine:          engine,
		uploader:        uploader,
		rewriter:        rewriter,
		bucket:          uploader.Storage().Bucket(),
		workDir:         cfg.FFmpeg.TempDir,
		videoCodec:      cfg.FFmpeg.VideoCodec,
		threads:         cfg.FFmpeg.Threads,
		segmentDuration: cfg.SegmentDuration,
		lowestListSize:  cfg.LowestTierListSize,
		timeouts:        cfg,
	}
	if e.workDir == "" {
		e.workDir = os.TempDir()
	}
	if e.videoCodec == "" {
		e.videoCodec = "libx264"
	}
	if e.segmentDuration <= 0 {
		e.segmentDuration = 6
	}
	if e.lowestListSize <= 0 {
		e.lowestListSize = 1000
	}
	return e
}

// Encode 运行编码并上传；超时返回 ErrTierTimeout，其余编码错误返回 ErrEncoderFailed
func (e *TierEncoder) Encode(ctx context.Context, req EncodeRequest) (*TierManifestLocation, error) {
	tier := req.Tier
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeouts.TierTimeout(tier.Name, vo.DefaultTierTimeout(tier.Name))
	}

	outDir := filepath.Join(e.workDir, "hls", req.MediaID, tier.Name+"-"+uuid.NewString()[:8])
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(outDir)
	}()

	start := time.Now()
	outcome := "success"
	defer func() {
		metrics.TierEncodeDuration.WithLabelValues(tier.Name, outcome).Observe(time.Since(start).Seconds())
		metrics.TierOutcomeTotal.WithLabelValues(tier.Name, outcome).Inc()
	}()

	tierCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := e.BuildArgs(req.SourceLocalPath, outDir, tier)
	logger.Info("tier encode started", logger.Fields{
		"media_id": req.MediaID,
		"tier":     tier.Name,
		"timeout":  timeout.String(),
	})
	if err := e.engine.Transcode(tierCtx, args); err != nil {
		if errors.Is(tierCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			outcome = "timeout"
			return nil, fmt.Errorf("%w: %s after %s", ErrTierTimeout, tier.Name, timeout)
		}
		if ctx.Err() != nil {
			outcome = "canceled"
			return nil, ctx.Err()
		}
		outcome = "failed"
		return nil, fmt.Errorf("%w: %s: %w", ErrEncoderFailed, tier.Name, err)
	}

	playlist := filepath.Join(outDir, TierPlaylistName)
	if _, err := os.Stat(playlist); err != nil {
		outcome = "failed"
		return nil, fmt.Errorf("%w: %s produced no playlist", ErrEncoderFailed, tier.Name)
	}

	tierBase := path.Join(req.HLSBasePath, tier.Name)
	if err := e.rewriter.Rewrite(playlist, e.bucket, tierBase, req.SharedToken); err != nil {
		outcome = "failed"
		return nil, err
	}

	segments, manifest, err := e.collectArtifacts(outDir, tierBase)
	if err != nil {
		outcome = "failed"
		return nil, err
	}
	// 先传切片再传 playlist，playlist 可见时引用的切片一定存在
	if err := e.uploader.Upload(ctx, segments); err != nil {
		outcome = "upload_failed"
		return nil, err
	}
	if err := e.uploader.UploadOne(ctx, manifest); err != nil {
		outcome = "upload_failed"
		return nil, err
	}

	logger.Info("tier encode finished", logger.Fields{
		"media_id": req.MediaID,
		"tier":     tier.Name,
		"segments": len(segments),
		"elapsed":  time.Since(start).String(),
	})
	return &TierManifestLocation{ObjectKey: manifest.ObjectKey, Segments: len(segments)}, nil
}

// BuildArgs 组装 ffmpeg 参数：固定 GOP 与强制关键帧保证切片边界对齐，
// 最低档保留完整列表，其余档位列表不截断
func (e *TierEncoder) BuildArgs(input, outDir string, tier vo.TierConfig) []string {
	seg := strconv.Itoa(e.segmentDuration)
	gop := strconv.Itoa(e.segmentDuration * 24)
	listSize := 0
	if tier.IsMandatory() {
		listSize = e.lowestListSize
	}

	args := make([]string, 0, 48)
	args = append(args,
		"-hide_banner",
		"-y",
		"-probesize", "5M",
		"-analyzeduration", "5M",
		"-i", input,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:v", e.videoCodec,
		"-preset", tier.Preset,
		"-crf", strconv.Itoa(tier.CRF),
		"-vf", tier.ScaleFilter+",format=yuv420p",
	)
	if e.threads > 0 {
		args = append(args, "-threads", strconv.Itoa(e.threads))
	}
	args = append(args,
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-ar", "48000",
		"-sc_threshold", "0",
		"-keyint_min", gop,
		"-g", gop,
		"-force_key_frames", "expr:gte(t,n_forced*"+seg+")",
		"-hls_flags", "independent_segments",
		"-hls_time", seg,
		"-hls_list_size", strconv.Itoa(listSize),
		"-hls_segment_filename", filepath.Join(outDir, segmentPattern),
		"-f", "hls",
		filepath.Join(outDir, TierPlaylistName),
	)
	return args
}

func (e *TierEncoder) collectArtifacts(outDir, tierBase string) ([]gateway.UploadObject, gateway.UploadObject, error) {
	var segments []gateway.UploadObject
	var manifest gateway.UploadObject
	err := filepath.WalkDir(outDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outDir, p)
		if err != nil {
			return err
		}
		obj := gateway.UploadObject{
			LocalPath:    p,
			ObjectKey:    path.Join(tierBase, filepath.ToSlash(rel)),
			ContentType:  ContentTypeFor(rel),
			CacheControl: gateway.CacheControlImmutable,
		}
		if rel == TierPlaylistName {
			manifest = obj
			return nil
		}
		segments = append(segments, obj)
		return nil
	})
	if err != nil {
		return nil, manifest, fmt.Errorf("collect artifacts: %w", err)
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].ObjectKey < segments[j].ObjectKey })
	return segments, manifest, nil
}

// ContentTypeFor 按扩展名推断 HLS 产物类型
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".m4s":
		return "video/iso.segment"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
