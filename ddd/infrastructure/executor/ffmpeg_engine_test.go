package executor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-transcode-service/pkg/config"
)

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080},
			{"codec_type": "audio"}
		],
		"format": {"duration": "12.480000"}
	}`)
	res, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 1920, res.Width)
	assert.Equal(t, 1080, res.Height)
	assert.True(t, res.HasAudio)
	assert.InDelta(t, 12.48, res.Duration, 0.001)
}

func TestParseProbeRotated(t *testing.T) {
	out := []byte(`{"streams":[{"codec_type":"video","width":1920,"height":1080,"tags":{"rotate":"90"}}],"format":{}}`)
	res, err := parseProbe(out)
	require.NoError(t, err)
	assert.Equal(t, 1080, res.Width)
	assert.Equal(t, 1920, res.Height)
	assert.False(t, res.HasAudio)
	assert.Zero(t, res.Duration)
}

func TestParseProbeInvalid(t *testing.T) {
	_, err := parseProbe([]byte("not json"))
	assert.Error(t, err)
}

func TestTranscodeKilledOnDeadline(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	engine := NewFFmpegEngine(config.FFmpegConfig{BinaryPath: sh})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = engine.Transcode(ctx, []string{"-c", "sleep 30 & sleep 30"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestTranscodeReportsExitError(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	engine := NewFFmpegEngine(config.FFmpegConfig{BinaryPath: sh})
	err = engine.Transcode(context.Background(), []string{"-c", "echo 'Invalid data found' 1>&2; exit 1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
}
