package detect

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

func TestBuildAudioPlanShortFileTailOnly(t *testing.T) {
	cfg := store.Defaults()
	plan := buildAudioPlan(300, cfg) // 5 min, below AudioThresholdMulti=600
	require.Len(t, plan, 1)
	require.Equal(t, SegmentTail, plan[0].Name)
}

func TestBuildAudioPlanLongFileAllThreeInOrder(t *testing.T) {
	cfg := store.Defaults()
	plan := buildAudioPlan(1200, cfg) // 20 min, above AudioThresholdMulti
	require.Len(t, plan, 3)
	require.Equal(t, SegmentTail, plan[0].Name)
	require.Equal(t, SegmentMid, plan[1].Name)
	require.Equal(t, SegmentHead, plan[2].Name)
}

func TestBuildAudioPlanUsesLongTailWindowPastThreshold(t *testing.T) {
	cfg := store.Defaults()
	plan := buildAudioPlan(float64(cfg.AudioThresholdLong), cfg)
	require.Equal(t, float64(cfg.AudioLenTailLong), plan[0].DurationS)
}

func TestBuildAudioPlanTailStartNeverNegative(t *testing.T) {
	cfg := store.Defaults()
	plan := buildAudioPlan(10, cfg) // shorter than AudioLenTail
	require.GreaterOrEqual(t, plan[0].StartS, 0.0)
}

func TestContainsStr(t *testing.T) {
	require.True(t, containsStr([]string{SegmentTail, SegmentHead}, SegmentTail))
	require.False(t, containsStr([]string{SegmentHead}, SegmentMid))
	require.False(t, containsStr(nil, SegmentTail))
}
