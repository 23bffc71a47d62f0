package detect

import (
	"context"
	"fmt"
	"os"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/apperr"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/keyword"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/media"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/transcribe"
)

// segmentPlan is one named audio window to scan (spec §4.3 step 5).
type segmentPlan struct {
	Name      string
	StartS    float64
	DurationS float64
}

// buildAudioPlan computes the up-to-three segments in tail→mid→head
// execution order (spec §4.3 step 5: "tail is the most likely ad
// location; check it first so violations short-circuit").
func buildAudioPlan(duration float64, cfg store.Settings) []segmentPlan {
	var plan []segmentPlan

	tailLen := float64(cfg.AudioLenTail)
	if duration >= float64(cfg.AudioThresholdLong) {
		tailLen = float64(cfg.AudioLenTailLong)
	}
	tailStart := duration - tailLen
	if tailStart < 0 {
		tailStart = 0
	}
	plan = append(plan, segmentPlan{Name: SegmentTail, StartS: tailStart, DurationS: tailLen})

	if duration > float64(cfg.AudioThresholdMulti) {
		midLen := float64(cfg.AudioLenMid)
		midStart := duration/2 - midLen/2
		if midStart < 0 {
			midStart = 0
		}
		plan = append(plan, segmentPlan{Name: SegmentMid, StartS: midStart, DurationS: midLen})

		plan = append(plan, segmentPlan{Name: SegmentHead, StartS: 0, DurationS: float64(cfg.AudioLenHead)})
	}

	return plan
}

// scanAudio implements spec §4.3 steps 5-6. Returns a non-empty Result
// only when scanning concluded the file's fate (dirty, or an engine
// error); an empty Result with nil error means "audio was clean or
// skipped, continue the pipeline".
func (e *Engine) scanAudio(ctx context.Context, path string, cfg store.Settings, audioKeywords []string, passed []string, retryCount int, hooks Hooks) (Result, error) {
	duration := e.Media.ProbeDuration(ctx, path)
	if duration == 0 {
		return Result{}, nil
	}

	plan := buildAudioPlan(duration, cfg)

	for _, seg := range plan {
		if containsStr(passed, seg.Name) {
			continue
		}
		if err := checkStopped(ctx); err != nil {
			return Result{}, err
		}

		dirty, reason, err := e.scanSegment(ctx, path, seg, cfg, audioKeywords, retryCount)
		if err != nil {
			return Result{}, reclassify(ctx, err)
		}
		if dirty {
			return Result{Status: store.StatusDirty, Reason: reason}, nil
		}

		if hooks.OnCheckpoint != nil {
			hooks.OnCheckpoint(seg.Name)
		}
	}

	return Result{}, nil
}

func (e *Engine) scanSegment(ctx context.Context, path string, seg segmentPlan, cfg store.Settings, audioKeywords []string, retryCount int) (dirty bool, reason string, err error) {
	streams, err := e.Media.ProbeAudioStreams(ctx, path)
	if err != nil {
		return false, "", fmt.Errorf("probe audio streams: %w", err)
	}
	if len(streams) == 0 {
		return false, "", nil
	}
	audioMap := media.SmartAudioMap(streams)

	wav, err := os.CreateTemp("", "mediagate_seg_*.wav")
	if err != nil {
		return false, "", fmt.Errorf("create segment wav: %w", err)
	}
	wavPath := wav.Name()
	wav.Close()
	defer os.Remove(wavPath)

	if err := e.Media.ExtractAudioSegment(ctx, path, seg.StartS, seg.DurationS, wavPath, audioMap); err != nil {
		return false, "", fmt.Errorf("extract segment %s: %w", seg.Name, err)
	}

	useLocal := retryCount >= retryLimit
	text, _, err := e.Transcriber.Transcribe(ctx, wavPath, transcribe.Config{
		CloudURL:     cfg.CloudSTTURL,
		CloudKey:     cfg.CloudSTTKey,
		CloudModel:   cfg.CloudSTTModel,
		LocalEnabled: cfg.EnableLocalModel,
	}, useLocal)
	if err != nil {
		if !useLocal && retryCount < retryLimit {
			return false, "", apperr.Retryable("cloud_exhausted", err)
		}
		return false, "", apperr.Retryable("transcribe_failed", err)
	}

	if hit, ok := keyword.MatchAny(text, audioKeywords); ok {
		return true, "命中: " + hit, nil
	}
	return false, "", nil
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
