package gateway

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// ErrTransient marks storage errors worth retrying (throttling, timeouts, resets).
var ErrTransient = errors.New("transient storage error")

// CacheControlImmutable 生成的切片/播放列表内容不可变
const CacheControlImmutable = "public, max-age=31536000, immutable"

// CacheControlRevalidate master playlist 会随档位增加被重写
const CacheControlRevalidate = "no-cache"

// UploadObject 待上传对象，LocalPath 为空时上传 Data
type UploadObject struct {
	LocalPath    string
	Data         []byte
	ObjectKey    string
	ContentType  string
	CacheControl string
}

// ObjectInfo 对象元信息
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	CacheControl string
	ModTime      time.Time
}

// ObjectStorage 对象存储网关
type ObjectStorage interface {
	Bucket() string
	Upload(ctx context.Context, obj UploadObject) error
	Download(ctx context.Context, objectKey, localPath string) error
	Exists(ctx context.Context, objectKey string) (bool, error)
	// DeletePrefix removes every object under prefix and returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	Open(ctx context.Context, objectKey string) (io.ReadCloser, ObjectInfo, error)
}

// URLSigner 生成与校验带 token 的下载地址
type URLSigner interface {
	// IssueToken mints the asset's shared token scoped to the HLS base path.
	IssueToken(mediaID, scope string) (string, error)
	SignedURL(bucket, objectKey, token string) string
	// Verify checks token is valid for objectKey.
	Verify(token, objectKey string) error
}

// MediaEngine 编码引擎（ffmpeg/ffprobe）
type MediaEngine interface {
	// Transcode runs the encoder with args and blocks until it exits or ctx is done;
	// on ctx expiry the process must be terminated before returning.
	Transcode(ctx context.Context, args []string) error
	Probe(ctx context.Context, localPath string) (ProbeResult, error)
}

// ProbeResult 源视频探测结果
type ProbeResult struct {
	Width    int
	Height   int
	Duration float64
	HasAudio bool
}

// JobQueue 至少一次投递的任务队列
type JobQueue interface {
	Enqueue(ctx context.Context, key string, body []byte) error
}

// DedupStore 去重/租约存储
type DedupStore interface {
	// Acquire sets key if absent with ttl and reports whether it did.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
