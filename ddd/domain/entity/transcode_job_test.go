package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-transcode-service/ddd/domain/vo"
)

func sampleJob() *TranscodeJobMessage {
	cfg, _ := vo.LookupTier("1080p")
	return &TranscodeJobMessage{
		MediaID:            "m1",
		QualityLevel:       "1080p",
		FilePath:           "media/abc/clip.mp4",
		StorageFolder:      "media/abc",
		HLSBasePath:        "media/abc/hls",
		SharedToken:        "tok",
		OriginalResolution: vo.Dimensions{Width: 3840, Height: 2160},
		RemainingQualities: []string{"2160p"},
		QualityConfig:      cfg,
	}
}

func TestTranscodeJobMessage_WireFormat(t *testing.T) {
	body, err := sampleJob().Encode()
	require.NoError(t, err)

	for _, field := range []string{`"mediaId"`, `"qualityLevel"`, `"filePath"`, `"storageFolder"`, `"hlsBasePath"`,
		`"sharedToken"`, `"originalResolution"`, `"remainingQualities"`, `"qualityConfig"`, `"scaleFilter"`, `"crf"`} {
		assert.Contains(t, string(body), field)
	}

	decoded, err := DecodeTranscodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, sampleJob(), decoded)
	assert.NoError(t, decoded.Validate())
}

func TestDecodeTranscodeJob_FillsConfigFromTable(t *testing.T) {
	msg, err := DecodeTranscodeJob([]byte(`{"mediaId":"m1","qualityLevel":"2160p","filePath":"a/b.mp4","hlsBasePath":"a/hls","sharedToken":"t"}`))
	require.NoError(t, err)
	assert.Equal(t, "scale=-2:2160", msg.QualityConfig.ScaleFilter)
	assert.NoError(t, msg.Validate())
}

func TestTranscodeJobMessage_Validate(t *testing.T) {
	msg := sampleJob()
	msg.SharedToken = ""
	assert.Error(t, msg.Validate())

	msg = sampleJob()
	msg.QualityLevel = "2160p"
	assert.Error(t, msg.Validate())
}

func TestTranscodeJobMessage_Next(t *testing.T) {
	msg := sampleJob()
	cfg, _ := vo.LookupTier("2160p")

	next, ok := msg.Next(cfg)
	require.True(t, ok)
	assert.Equal(t, "2160p", next.QualityLevel)
	assert.Empty(t, next.RemainingQualities)
	assert.Equal(t, msg.SharedToken, next.SharedToken)
	assert.Equal(t, []string{"2160p"}, msg.RemainingQualities)

	_, ok = next.Next(cfg)
	assert.False(t, ok)

	wrong, _ := vo.LookupTier("720p")
	_, ok = msg.Next(wrong)
	assert.False(t, ok)
}
