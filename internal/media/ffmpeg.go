package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/asticode/go-astisub"
)

func ffmpegPosition(d time.Duration) string {
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%d.%d", s, ms)
}

// ExtractSubtitleWebVTT extracts one subtitle track as WebVTT text (spec
// §4.1). An empty result means extract failed or the track is empty,
// which is non-fatal — the caller treats it as "nothing to scan".
func (m *Toolkit) ExtractSubtitleWebVTT(ctx context.Context, path string, streamIdx int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	out, err := os.CreateTemp("", "mediagate_sub_*.vtt")
	if err != nil {
		return "", err
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	_, _, err = m.cmd.run(ctx, m.ffmpeg, "-loglevel", "error", "-y",
		"-i", path, "-map", fmt.Sprintf("0:s:%d", streamIdx), outPath)
	if err != nil {
		// Extraction failure is non-fatal at this layer; the caller
		// treats empty text the same as an empty track (spec §4.1).
		return "", nil
	}

	data, err := os.ReadFile(outPath)
	if err != nil || len(data) == 0 {
		return "", nil
	}

	subs, err := astisub.ReadFromWebVTT(bytes.NewReader(data))
	if err != nil {
		return "", nil
	}
	return subtitleText(subs), nil
}

func subtitleText(subs *astisub.Subtitles) string {
	var sb []byte
	for _, item := range subs.Items {
		for _, line := range item.Lines {
			for _, li := range line.Items {
				sb = append(sb, li.Text...)
				sb = append(sb, '\n')
			}
		}
	}
	return string(sb)
}

// ExtractAudioSegment extracts a single window of 16kHz mono 16-bit PCM
// audio from an audio track (spec §4.1), using the smart audio map
// selection computed by the caller.
func (m *Toolkit) ExtractAudioSegment(ctx context.Context, path string, startS, durationS float64, outWav string, audioMapIdx int) error {
	start := time.Duration(startS * float64(time.Second))
	dur := time.Duration(durationS * float64(time.Second))

	args := []string{
		"-loglevel", "error", "-y",
		"-ss", ffmpegPosition(start),
		"-t", ffmpegPosition(dur),
		"-i", path,
		"-map", fmt.Sprintf("0:a:%d", audioMapIdx),
		"-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le",
		outWav,
	}
	_, _, err := m.cmd.run(ctx, m.ffmpeg, args...)
	return err
}

// RewriteContainer copies streams per mapSpec without re-encoding,
// optionally stripping all metadata, and verifies the output before
// returning its path (spec §4.1: "must verify output integrity (file
// exists, ≥1 KiB, probe duration > 0) before replacing").
func (m *Toolkit) RewriteContainer(ctx context.Context, path string, mapSpec []string, metadataStrip bool, outPath string) (string, error) {
	args := []string{"-loglevel", "error", "-y", "-i", path}
	args = append(args, mapSpec...)
	args = append(args, "-c", "copy")
	if metadataStrip {
		args = append(args, "-map_metadata", "-1")
		args = append(args, "-fflags", "+bitexact")
	}
	args = append(args, outPath)

	if _, _, err := m.cmd.run(ctx, m.ffmpeg, args...); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("rewrite container: %w", err)
	}

	if err := m.verifyIntegrity(ctx, outPath); err != nil {
		os.Remove(outPath)
		return "", err
	}
	return outPath, nil
}

func (m *Toolkit) verifyIntegrity(ctx context.Context, path string) error {
	size, err := fileSize(path)
	if err != nil {
		return fmt.Errorf("rewritten output missing: %w", err)
	}
	if size < 1024 {
		return fmt.Errorf("rewritten output too small (%d bytes)", size)
	}
	if d := m.ProbeDuration(ctx, path); d <= 0 {
		return fmt.Errorf("rewritten output has no detectable duration")
	}
	return nil
}
