package cqe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldProcess(t *testing.T) {
	cases := []struct {
		name        string
		object      string
		contentType string
		want        bool
	}{
		{"mp4 under prefix", "media/u1/m1/video.mp4", "", true},
		{"content type wins", "media/u1/m1/blob", "video/quicktime", true},
		{"outside prefix", "avatars/u1.mp4", "video/mp4", false},
		{"sibling prefix", "media2/u1/m1/video.mp4", "video/mp4", false},
		{"prefix itself", "media", "video/mp4", false},
		{"generated playlist", "media/u1/m1/hls/720p/playlist.m3u8", "application/vnd.apple.mpegurl", false},
		{"generated segment", "media/u1/m1/hls/720p/segment_000.ts", "video/mp2t", false},
		{"thumbnail", "media/u1/m1/thumbnails/0.jpg", "image/jpeg", false},
		{"document", "media/u1/m1/notes.pdf", "application/pdf", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := &ObjectFinalizedReq{Name: tc.object, ContentType: tc.contentType}
			assert.NoError(t, req.Validate())
			got, _ := req.ShouldProcess("media/")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestShouldProcessPrefixWithoutSlash(t *testing.T) {
	req := &ObjectFinalizedReq{Name: "uploads/u1/a.mp4"}
	ok, _ := req.ShouldProcess("uploads")
	assert.True(t, ok)

	req = &ObjectFinalizedReq{Name: "uploads2/u1/a.mp4"}
	ok, reason := req.ShouldProcess("uploads")
	assert.False(t, ok)
	assert.Equal(t, "outside upload prefix", reason)
}

func TestValidateRequiresName(t *testing.T) {
	req := &ObjectFinalizedReq{Name: "/"}
	assert.Error(t, req.Validate())

	reg := &RegisterMediaReq{SourcePath: "/media/a.mp4", StorageFolder: "/media/"}
	assert.NoError(t, reg.Validate())
	assert.Equal(t, "media/a.mp4", reg.SourcePath)
	assert.Equal(t, "media", reg.StorageFolder)
}
