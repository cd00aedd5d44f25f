package vo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tierAt(name string, at time.Time) TierResult {
	cfg, _ := LookupTier(name)
	return NewTierResult(cfg, "folder/hls/"+name+"/playlist.m3u8", at)
}

func TestMergeTier_DeduplicatesByName(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	existing := []TierResult{tierAt("720p", t0), tierAt("1080p", t0)}

	later := tierAt("1080p", t0.Add(time.Minute))
	later.StoragePath = "folder/hls/1080p/v2.m3u8"

	merged := MergeTier(existing, later)
	require.Len(t, merged, 2)
	assert.Equal(t, "720p", merged[0].Name)
	assert.Equal(t, "1080p", merged[1].Name)
	assert.Equal(t, t0.Add(time.Minute), merged[1].CompletedAt)
	assert.Equal(t, "folder/hls/1080p/v2.m3u8", merged[1].StoragePath)

	// existing slice untouched
	assert.Equal(t, t0, existing[1].CompletedAt)
}

func TestMergeTier_KeepsLaterExistingEntry(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	existing := []TierResult{tierAt("720p", t0.Add(time.Hour))}

	merged := MergeTier(existing, tierAt("720p", t0))
	require.Len(t, merged, 1)
	assert.Equal(t, t0.Add(time.Hour), merged[0].CompletedAt)
}

func TestMergeTier_Idempotent(t *testing.T) {
	t0 := time.Now()
	in := tierAt("1080p", t0)
	once := MergeTier([]TierResult{tierAt("720p", t0)}, in)
	twice := MergeTier(once, in)
	assert.Equal(t, once, twice)
}

func TestMergeTier_BandwidthOrder(t *testing.T) {
	t0 := time.Now()
	merged := MergeTier([]TierResult{tierAt("2160p", t0), tierAt("720p", t0)}, tierAt("1080p", t0))
	require.Len(t, merged, 3)
	for i := 1; i < len(merged); i++ {
		assert.LessOrEqual(t, merged[i-1].Bandwidth, merged[i].Bandwidth)
	}
	assert.Equal(t, []string{"720p", "1080p", "2160p"}, []string{merged[0].Name, merged[1].Name, merged[2].Name})
}

func TestMergeTier_CollapsesDuplicatesAlreadyPresent(t *testing.T) {
	t0 := time.Now()
	existing := []TierResult{tierAt("720p", t0), tierAt("720p", t0.Add(time.Second))}
	merged := MergeTier(existing, tierAt("1080p", t0))
	assert.Len(t, merged, 2)
	assert.True(t, HasTier(merged, "720p"))
}

func TestTranscodeStatus_Monotonic(t *testing.T) {
	assert.True(t, TranscodeStatusProcessing.CanTransitionTo(TranscodeStatusReady))
	assert.True(t, TranscodeStatusProcessing.CanTransitionTo(TranscodeStatusFailed))
	assert.False(t, TranscodeStatusReady.CanTransitionTo(TranscodeStatusProcessing))
	assert.False(t, TranscodeStatusReady.CanTransitionTo(TranscodeStatusFailed))
}

func TestTierTable(t *testing.T) {
	cfg, ok := LookupTier(MandatoryTier)
	require.True(t, ok)
	assert.True(t, cfg.IsMandatory())
	assert.NoError(t, cfg.Validate())

	w, h := cfg.Dimensions()
	assert.Equal(t, 1280, w)
	assert.Equal(t, 720, h)

	assert.Less(t, DefaultTierTimeout("720p"), DefaultTierTimeout("2160p"))
	assert.Equal(t, []string{"720p", "1080p", "2160p"}, TierNames())

	_, ok = LookupTier("480p")
	assert.False(t, ok)
}
