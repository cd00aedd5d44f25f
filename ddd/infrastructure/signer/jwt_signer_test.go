package signer

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-transcode-service/pkg/config"
)

func newTestSigner(t *testing.T) *JWTSigner {
	t.Helper()
	s, err := NewJWTSigner(config.SigningConfig{Secret: "test-secret", Issuer: "media-transcode-service"},
		config.PublicConfig{StorageBase: "cdn.example.com"})
	require.NoError(t, err)
	return s
}

func TestSignedURLEscapesObjectKey(t *testing.T) {
	s := newTestSigner(t)
	u := s.SignedURL("media", "media/u1/abc/hls/720p/segment_000.ts", "tok")

	assert.True(t, strings.HasPrefix(u, "http://cdn.example.com/v0/b/media/o/media%2Fu1%2Fabc%2Fhls%2F720p%2Fsegment_000.ts?"))
	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "media", parsed.Query().Get("alt"))
	assert.Equal(t, "tok", parsed.Query().Get("token"))
}

func TestVerifyScope(t *testing.T) {
	s := newTestSigner(t)
	token, err := s.IssueToken("m1", "media/u1/abc/hls")
	require.NoError(t, err)

	assert.NoError(t, s.Verify(token, "media/u1/abc/hls/720p/playlist.m3u8"))
	assert.ErrorIs(t, s.Verify(token, "media/u1/other/hls/720p/playlist.m3u8"), ErrInvalidToken)
	assert.ErrorIs(t, s.Verify(token, "media/u1/abc/hlsx/720p/playlist.m3u8"), ErrInvalidToken)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	s := newTestSigner(t)
	other, err := NewJWTSigner(config.SigningConfig{Secret: "other", Issuer: "media-transcode-service"}, config.PublicConfig{})
	require.NoError(t, err)

	token, err := other.IssueToken("m1", "media/u1/abc/hls")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Verify(token, "media/u1/abc/hls/master.m3u8"), ErrInvalidToken)
}

func TestTokensAreUniquePerIssue(t *testing.T) {
	s := newTestSigner(t)
	a, err := s.IssueToken("m1", "p")
	require.NoError(t, err)
	b, err := s.IssueToken("m1", "p")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
