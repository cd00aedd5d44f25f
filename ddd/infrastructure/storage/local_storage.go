package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"media-transcode-service/ddd/domain/gateway"
)

// LocalStorage 以本地目录模拟对象存储，单机开发与测试使用
type LocalStorage struct {
	root   string
	bucket string
	// cacheControl 记录上传时的 Cache-Control，重启后按扩展名推断
	cacheControl sync.Map
}

// NewLocalStorage 创建本地存储，root 不存在时创建
func NewLocalStorage(root, bucket string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStorage{root: root, bucket: bucket}, nil
}

func (s *LocalStorage) Bucket() string { return s.bucket }

func (s *LocalStorage) Upload(ctx context.Context, obj gateway.UploadObject) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := s.resolve(obj.ObjectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	data := obj.Data
	if obj.LocalPath != "" {
		if data, err = os.ReadFile(obj.LocalPath); err != nil {
			return fmt.Errorf("read %s: %w", obj.LocalPath, err)
		}
	}
	// 先写临时文件再 rename，读者不会看到半个文件
	tmp := dst + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", obj.ObjectKey, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("commit %s: %w", obj.ObjectKey, err)
	}
	if obj.CacheControl != "" {
		s.cacheControl.Store(obj.ObjectKey, obj.CacheControl)
	}
	return nil
}

func (s *LocalStorage) Download(ctx context.Context, objectKey, localPath string) error {
	src, err := s.resolve(objectKey)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", gateway.ErrObjectNotFound, objectKey)
		}
		return err
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local directory failed: %w", err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func (s *LocalStorage) Exists(ctx context.Context, objectKey string) (bool, error) {
	p, err := s.resolve(objectKey)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (s *LocalStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	base, err := s.resolve(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return 0, err
	}
	count := 0
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			count++
			if rel, relErr := filepath.Rel(s.root, p); relErr == nil {
				s.cacheControl.Delete(filepath.ToSlash(rel))
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := os.RemoveAll(base); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *LocalStorage) Open(ctx context.Context, objectKey string) (io.ReadCloser, gateway.ObjectInfo, error) {
	p, err := s.resolve(objectKey)
	if err != nil {
		return nil, gateway.ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, gateway.ObjectInfo{}, gateway.ErrObjectNotFound
		}
		return nil, gateway.ObjectInfo{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, gateway.ObjectInfo{}, err
	}
	cc := gateway.CacheControlImmutable
	if v, ok := s.cacheControl.Load(objectKey); ok {
		cc = v.(string)
	} else if path.Base(objectKey) == "master.m3u8" {
		cc = gateway.CacheControlRevalidate
	}
	return f, gateway.ObjectInfo{
		Key:          objectKey,
		Size:         info.Size(),
		ContentType:  getContentTypeFromExtension(objectKey),
		CacheControl: cc,
		ModTime:      info.ModTime(),
	}, nil
}

// resolve 将对象键映射到 root 下的路径，拒绝越界
func (s *LocalStorage) resolve(objectKey string) (string, error) {
	clean := path.Clean("/" + strings.TrimLeft(objectKey, "/"))
	if clean == "/" {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}
