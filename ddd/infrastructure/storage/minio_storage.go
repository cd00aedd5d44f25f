package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/internal/resource"
	"media-transcode-service/pkg/logger"
)

// MinioStorage MinIO存储实现
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(minioResource *resource.MinioResource) *MinioStorage {
	return NewMinioStorageWith(minioResource.GetClient(), minioResource.GetBucketName())
}

// NewMinioStorageWith 使用已有客户端创建存储
func NewMinioStorageWith(client *minio.Client, bucket string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket}
}

func (s *MinioStorage) Bucket() string { return s.bucket }

// Upload 上传本地文件或内存数据，携带 Content-Type 与 Cache-Control
func (s *MinioStorage) Upload(ctx context.Context, obj gateway.UploadObject) error {
	var (
		reader io.Reader
		size   int64
	)
	if obj.LocalPath != "" {
		file, err := os.Open(obj.LocalPath)
		if err != nil {
			return fmt.Errorf("open local file failed: %w", err)
		}
		defer file.Close()
		info, err := file.Stat()
		if err != nil {
			return fmt.Errorf("get file info failed: %w", err)
		}
		reader, size = file, info.Size()
	} else {
		reader, size = bytes.NewReader(obj.Data), int64(len(obj.Data))
	}

	contentType := obj.ContentType
	if contentType == "" {
		contentType = getContentTypeFromExtension(obj.ObjectKey)
	}
	_, err := s.client.PutObject(ctx, s.bucket, obj.ObjectKey, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: obj.CacheControl,
	})
	if err != nil {
		logger.Error("Failed to upload object to MinIO", logger.Fields{
			"object_key": obj.ObjectKey,
			"error":      err.Error(),
		})
		return classify(fmt.Errorf("upload object to minio failed: %w", err), err)
	}
	logger.Debug("Uploaded object", logger.Fields{
		"object_key": obj.ObjectKey,
		"size":       size,
	})
	return nil
}

// Download 从MinIO下载文件到本地路径
func (s *MinioStorage) Download(ctx context.Context, objectKey, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local directory failed: %w", err)
	}
	if err := s.client.FGetObject(ctx, s.bucket, objectKey, localPath, minio.GetObjectOptions{}); err != nil {
		logger.Error("Failed to download file from MinIO", logger.Fields{
			"object_key": objectKey,
			"local_path": localPath,
			"error":      err.Error(),
		})
		return classify(fmt.Errorf("download %s: %w", objectKey, err), err)
	}
	logger.Info("File downloaded successfully", logger.Fields{
		"object_key": objectKey,
		"local_path": localPath,
	})
	return nil
}

// Exists 通过 StatObject 判断对象是否存在
func (s *MinioStorage) Exists(ctx context.Context, objectKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, classify(fmt.Errorf("stat %s: %w", objectKey, err), err)
}

// DeletePrefix 批量删除前缀下的全部对象
func (s *MinioStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	objectsCh := make(chan minio.ObjectInfo)
	listErr := make(chan error, 1)
	listed := 0
	go func() {
		defer close(objectsCh)
		for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
			if obj.Err != nil {
				listErr <- obj.Err
				return
			}
			listed++
			select {
			case objectsCh <- obj:
			case <-ctx.Done():
				return
			}
		}
	}()

	var firstErr error
	failed := 0
	for rErr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if firstErr == nil {
			firstErr = fmt.Errorf("remove %s: %w", rErr.ObjectName, rErr.Err)
		}
		failed++
	}
	// RemoveObjects 在 objectsCh 关闭后才结束，此时 listed 已不再变化
	count := listed - failed
	select {
	case err := <-listErr:
		return count, classify(fmt.Errorf("list %s: %w", prefix, err), err)
	default:
	}
	return count, firstErr
}

// Open 打开对象读取流，用于播放代理
func (s *MinioStorage) Open(ctx context.Context, objectKey string) (io.ReadCloser, gateway.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectKey, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, gateway.ObjectInfo{}, gateway.ErrObjectNotFound
		}
		return nil, gateway.ObjectInfo{}, classify(err, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, gateway.ObjectInfo{}, classify(err, err)
	}
	return obj, gateway.ObjectInfo{
		Key:          objectKey,
		Size:         info.Size,
		ContentType:  info.ContentType,
		CacheControl: info.Metadata.Get("Cache-Control"),
		ModTime:      info.LastModified,
	}, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound
}

// classify 服务端限流/5xx 标记为可重试
func classify(wrapped, raw error) error {
	resp := minio.ToErrorResponse(raw)
	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests,
		resp.Code == "SlowDown", resp.Code == "RequestTimeout", resp.Code == "InternalError":
		return fmt.Errorf("%w: %w", gateway.ErrTransient, wrapped)
	}
	return wrapped
}

// getContentTypeFromExtension 根据文件扩展名获取内容类型
func getContentTypeFromExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".m4s":
		return "video/iso.segment"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
