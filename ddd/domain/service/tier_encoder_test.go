package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-transcode-service/ddd/domain/gateway"
	"media-transcode-service/ddd/domain/vo"
)

func newTestEncoder(t *testing.T, engine *fakeEngine, storage *memStorage) *TierEncoder {
	t.Helper()
	uploader := NewUploadRetrier(storage, testUploadConfig())
	return NewTierEncoder(engine, uploader, NewManifestRewriter(fakeSigner{}), testTranscodeConfig(t))
}

func mustTier(t *testing.T, name string) vo.TierConfig {
	t.Helper()
	cfg, ok := vo.LookupTier(name)
	require.True(t, ok)
	return cfg
}

func sourceFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "source.mp4")
	require.NoError(t, os.WriteFile(p, []byte("mp4"), 0o644))
	return p
}

func TestEncodeUploadsRewrittenPlaylistAndSegments(t *testing.T) {
	storage := newMemStorage()
	enc := newTestEncoder(t, newFakeEngine(), storage)

	loc, err := enc.Encode(context.Background(), EncodeRequest{
		MediaID:         "m1",
		SourceLocalPath: sourceFile(t),
		Tier:            mustTier(t, "720p"),
		HLSBasePath:     "media/u1/m1/hls",
		SharedToken:     "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "media/u1/m1/hls/720p/playlist.m3u8", loc.ObjectKey)
	assert.Equal(t, 2, loc.Segments)

	keys := storage.keysWithPrefix("media/u1/m1/hls/720p/")
	assert.Equal(t, []string{
		"media/u1/m1/hls/720p/playlist.m3u8",
		"media/u1/m1/hls/720p/segment_000.ts",
		"media/u1/m1/hls/720p/segment_001.ts",
	}, keys)

	playlist, _ := storage.get(loc.ObjectKey)
	assert.Equal(t, gateway.CacheControlImmutable, playlist.cacheControl)
	assert.Equal(t, "application/vnd.apple.mpegurl", playlist.contentType)
	assert.Contains(t, string(playlist.data), "https://cdn.test/media/media/u1/m1/hls/720p/segment_000.ts?token=tok")
	assert.NotContains(t, string(playlist.data), "\nsegment_000.ts")

	seg, _ := storage.get("media/u1/m1/hls/720p/segment_000.ts")
	assert.Equal(t, "video/mp2t", seg.contentType)
}

func TestEncodeTimeout(t *testing.T) {
	storage := newMemStorage()
	engine := newFakeEngine()
	engine.hang["1080p"] = true
	enc := newTestEncoder(t, engine, storage)

	start := time.Now()
	_, err := enc.Encode(context.Background(), EncodeRequest{
		MediaID:         "m1",
		SourceLocalPath: sourceFile(t),
		Tier:            mustTier(t, "1080p"),
		HLSBasePath:     "m1/hls",
		SharedToken:     "tok",
		Timeout:         50 * time.Millisecond,
	})
	assert.ErrorIs(t, err, ErrTierTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Empty(t, storage.keysWithPrefix("m1/hls/"))
}

func TestEncodeEngineFailure(t *testing.T) {
	engine := newFakeEngine()
	engine.fail["720p"] = true
	enc := newTestEncoder(t, engine, newMemStorage())

	_, err := enc.Encode(context.Background(), EncodeRequest{
		MediaID: "m1", SourceLocalPath: sourceFile(t), Tier: mustTier(t, "720p"), HLSBasePath: "m1/hls", SharedToken: "tok",
	})
	assert.ErrorIs(t, err, ErrEncoderFailed)
	assert.NotErrorIs(t, err, ErrTierTimeout)
}

func TestEncodeParentCancelIsNotTimeout(t *testing.T) {
	engine := newFakeEngine()
	engine.hang["720p"] = true
	enc := newTestEncoder(t, engine, newMemStorage())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := enc.Encode(ctx, EncodeRequest{
		MediaID: "m1", SourceLocalPath: sourceFile(t), Tier: mustTier(t, "720p"), HLSBasePath: "m1/hls", SharedToken: "tok",
		Timeout: time.Minute,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTierTimeout)
}

func TestBuildArgsListSize(t *testing.T) {
	enc := newTestEncoder(t, newFakeEngine(), newMemStorage())

	args720 := strings.Join(enc.BuildArgs("in.mp4", "/out", mustTier(t, "720p")), " ")
	assert.Contains(t, args720, "-hls_list_size 1000")
	assert.Contains(t, args720, "-vf scale=-2:720,format=yuv420p")
	assert.Contains(t, args720, "-preset veryfast")
	assert.Contains(t, args720, "-crf 23")
	assert.Contains(t, args720, "-hls_time 6")
	assert.Contains(t, args720, "-hls_flags independent_segments")
	assert.True(t, strings.HasSuffix(args720, filepath.Join("/out", "playlist.m3u8")))

	args1080 := strings.Join(enc.BuildArgs("in.mp4", "/out", mustTier(t, "1080p")), " ")
	assert.Contains(t, args1080, "-hls_list_size 0")
	assert.Contains(t, args1080, "-c:a aac")
}
