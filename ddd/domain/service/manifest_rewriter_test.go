package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteContentSegmentsAndAttributes(t *testing.T) {
	r := NewManifestRewriter(fakeSigner{})
	in := strings.Join([]string{
		"#EXTM3U",
		"#EXT-X-VERSION:3",
		`#EXT-X-MAP:URI="init.mp4"`,
		`#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/k1",IV=0x1`,
		"",
		"#EXTINF:6.0,",
		"segment_000.ts",
		"#EXTINF:6.0,",
		"https://other.example.com/segment_001.ts",
		"/absolute/segment_002.ts",
		"#EXT-X-ENDLIST",
		"",
	}, "\n")

	out := r.RewriteContent(in, "media", "m/hls/720p", "tok")
	lines := strings.Split(out, "\n")

	assert.Equal(t, "#EXTM3U", lines[0])
	assert.Equal(t, `#EXT-X-MAP:URI="https://cdn.test/media/m/hls/720p/init.mp4?token=tok"`, lines[2])
	assert.Equal(t, `#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example.com/k1",IV=0x1`, lines[3])
	assert.Equal(t, "", lines[4])
	assert.Equal(t, "https://cdn.test/media/m/hls/720p/segment_000.ts?token=tok", lines[6])
	assert.Equal(t, "https://other.example.com/segment_001.ts", lines[8])
	assert.Equal(t, "/absolute/segment_002.ts", lines[9])
	assert.Equal(t, "#EXT-X-ENDLIST", lines[10])
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRewriteContentIsIdempotentOnAbsoluteOutput(t *testing.T) {
	r := NewManifestRewriter(fakeSigner{})
	once := r.RewriteContent("#EXTM3U\nsegment_000.ts\n", "media", "m/hls/720p", "tok")
	twice := r.RewriteContent(once, "media", "m/hls/720p", "tok")
	assert.Equal(t, once, twice)
}

func TestRewriteContentDropsQuery(t *testing.T) {
	r := NewManifestRewriter(fakeSigner{})
	out := r.RewriteContent("segment_000.ts?v=1", "media", "base", "tok")
	assert.Equal(t, "https://cdn.test/media/base/segment_000.ts?token=tok", out)
}

func TestRewriteFileInPlace(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "playlist.m3u8")
	require.NoError(t, os.WriteFile(p, []byte("#EXTM3U\n#EXTINF:6.0,\nsegment_000.ts\n"), 0o644))

	r := NewManifestRewriter(fakeSigner{})
	require.NoError(t, r.Rewrite(p, "media", "a/hls/1080p", "tok"))

	b, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(b), "https://cdn.test/media/a/hls/1080p/segment_000.ts?token=tok")
}

func TestRewriteMissingFile(t *testing.T) {
	r := NewManifestRewriter(fakeSigner{})
	assert.Error(t, r.Rewrite(filepath.Join(t.TempDir(), "nope.m3u8"), "b", "p", "t"))
}
