package media

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFFmpegPosition(t *testing.T) {
	got := ffmpegPosition(90*time.Second + 500*time.Millisecond)
	require.Equal(t, "90.500", got)
}

func TestSmartAudioMapSkipsLeadingFLAC(t *testing.T) {
	streams := []AudioStream{
		{Index: 0, Codec: "flac"},
		{Index: 1, Codec: "aac"},
	}
	require.Equal(t, 1, SmartAudioMap(streams))
}

func TestSmartAudioMapKeepsFLACWhenOnlyStream(t *testing.T) {
	streams := []AudioStream{{Index: 0, Codec: "flac"}}
	require.Equal(t, 0, SmartAudioMap(streams))
}

func TestSmartAudioMapEmpty(t *testing.T) {
	require.Equal(t, 0, SmartAudioMap(nil))
}

func TestScanUploadLogEmitsProgress(t *testing.T) {
	lines := strings.Join([]string{
		`{"stats":{"bytes":50,"totalBytes":200,"speed":1048576,"eta":30}}`,
		`not json, ignored`,
		`{"stats":{"bytes":200,"totalBytes":200,"speed":2097152,"eta":0}}`,
	}, "\n")

	var seen []UploadProgress
	scanUploadLog(strings.NewReader(lines), func(p UploadProgress) {
		seen = append(seen, p)
	})

	require.Len(t, seen, 2)
	require.Equal(t, 25, seen[0].Percent)
	require.Equal(t, 100, seen[1].Percent)
	require.Equal(t, 0, seen[1].ETA)
}

func TestHumanSecondsZeroIsDash(t *testing.T) {
	require.Equal(t, "-", HumanSeconds(0))
	require.NotEqual(t, "-", HumanSeconds(30))
}
