package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanLadder(t *testing.T) {
	var p QualityLadderPlanner
	cases := []struct {
		name   string
		w, h   int
		expect []string
	}{
		{"720p source", 1280, 720, []string{"720p"}},
		{"below 720p still gets 720p", 640, 360, []string{"720p"}},
		{"1080p source", 1920, 1080, []string{"720p", "1080p"}},
		{"portrait 1080p", 1080, 1920, []string{"720p", "1080p"}},
		{"4k source", 3840, 2160, []string{"720p", "1080p", "2160p"}},
		{"unknown dimensions", 0, 0, []string{"720p"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, TierNamesOf(p.PlanLadder(tc.w, tc.h)))
		})
	}
}

func TestTierConfigMap(t *testing.T) {
	var p QualityLadderPlanner
	m := TierConfigMap(p.PlanLadder(1920, 1080))
	assert.Len(t, m, 2)
	assert.Equal(t, "scale=-2:1080", m["1080p"].ScaleFilter)
}
