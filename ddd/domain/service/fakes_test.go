package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/pkg/config"
)

type memObject struct {
	data         []byte
	contentType  string
	cacheControl string
}

// memStorage 内存对象存储，可注入上传失败
type memStorage struct {
	mu         sync.Mutex
	objects    map[string]memObject
	uploadErrs []error
	uploads    int
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string]memObject)}
}

func (s *memStorage) Bucket() string { return "media" }

func (s *memStorage) Upload(ctx context.Context, obj gateway.UploadObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if len(s.uploadErrs) > 0 {
		err := s.uploadErrs[0]
		s.uploadErrs = s.uploadErrs[1:]
		if err != nil {
			return err
		}
	}
	data := obj.Data
	if obj.LocalPath != "" {
		b, err := os.ReadFile(obj.LocalPath)
		if err != nil {
			return err
		}
		data = b
	}
	s.objects[obj.ObjectKey] = memObject{data: data, contentType: obj.ContentType, cacheControl: obj.CacheControl}
	return nil
}

func (s *memStorage) Download(ctx context.Context, key, localPath string) error {
	s.mu.Lock()
	obj, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		return gateway.ErrObjectNotFound
	}
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(localPath, obj.data, 0o644)
}

func (s *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStorage) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			delete(s.objects, k)
			n++
		}
	}
	return n, nil
}

func (s *memStorage) Open(ctx context.Context, key string) (io.ReadCloser, gateway.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, gateway.ObjectInfo{}, gateway.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), gateway.ObjectInfo{Key: key, Size: int64(len(obj.data)), ContentType: obj.contentType, CacheControl: obj.cacheControl}, nil
}

func (s *memStorage) get(key string) (memObject, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[key]
	return obj, ok
}

func (s *memStorage) keysWithPrefix(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// fakeSigner 生成可读的 URL，便于断言
type fakeSigner struct{}

func (fakeSigner) IssueToken(mediaID, scope string) (string, error) { return "tok-" + mediaID, nil }

func (fakeSigner) SignedURL(bucket, objectKey, token string) string {
	return fmt.Sprintf("https://cdn.test/%s/%s?token=%s", bucket, objectKey, token)
}

func (fakeSigner) Verify(token, objectKey string) error { return nil }

// fakeEngine 按档位模拟 ffmpeg：写出 playlist 与切片，或挂起直到超时，或直接失败
type fakeEngine struct {
	mu      sync.Mutex
	hang    map[string]bool
	fail    map[string]bool
	calls   []string
	probe   gateway.ProbeResult
	probeFn func(path string) (gateway.ProbeResult, error)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{hang: map[string]bool{}, fail: map[string]bool{}}
}

func (e *fakeEngine) Transcode(ctx context.Context, args []string) error {
	tier := tierFromArgs(args)
	e.mu.Lock()
	e.calls = append(e.calls, tier)
	hang, fail := e.hang[tier], e.fail[tier]
	e.mu.Unlock()

	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errors.New("exit status 1")
	}
	out := args[len(args)-1]
	dir := filepath.Dir(out)
	for i := 0; i < 2; i++ {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("segment_%03d.ts", i)), []byte("ts"), 0o644); err != nil {
			return err
		}
	}
	playlist := "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\nsegment_000.ts\n#EXTINF:4.0,\nsegment_001.ts\n#EXT-X-ENDLIST\n"
	return os.WriteFile(out, []byte(playlist), 0o644)
}

func (e *fakeEngine) Probe(ctx context.Context, path string) (gateway.ProbeResult, error) {
	if e.probeFn != nil {
		return e.probeFn(path)
	}
	return e.probe, nil
}

func (e *fakeEngine) callCount(tier string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c == tier {
			n++
		}
	}
	return n
}

// tierFromArgs 从 -vf scale=-2:H 推断档位
func tierFromArgs(args []string) string {
	for i, a := range args {
		if a == "-vf" && i+1 < len(args) {
			v := args[i+1]
			switch {
			case strings.Contains(v, ":720"):
				return "720p"
			case strings.Contains(v, ":1080"):
				return "1080p"
			case strings.Contains(v, ":2160"):
				return "2160p"
			}
		}
	}
	return ""
}

// recordingQueue 记录投递的消息
type recordingQueue struct {
	mu     sync.Mutex
	bodies [][]byte
	err    error
}

func (q *recordingQueue) Enqueue(ctx context.Context, key string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.bodies = append(q.bodies, append([]byte(nil), body...))
	return nil
}

func (q *recordingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.bodies)
}

func testTranscodeConfig(t *testing.T) config.TranscodeConfig {
	t.Helper()
	return config.TranscodeConfig{
		FFmpeg:             config.FFmpegConfig{TempDir: t.TempDir(), VideoCodec: "libx264"},
		UploadPrefix:       "media/",
		SegmentDuration:    6,
		LowestTierListSize: 1000,
	}
}

func testUploadConfig() config.UploadConfig {
	return config.UploadConfig{MaxAttempts: 3, BaseDelay: 1, MaxDelay: 2, Parallelism: 2}
}
