// Package detect implements the Detection Engine (spec §4.3, C3): for
// one file, orchestrates metadata scrub, subtitle scrub, the audio
// sampling plan, keyword matching, checkpoint emission, and rename
// emission.
package detect

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/apperr"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/keyword"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/media"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/transcribe"
)

// recognizedVideoExts is the set of extensions the engine will inspect;
// anything else (subtitles, archives, images accidentally dropped in
// the scan root, already-muxed outputs) passes straight to upload.
var recognizedVideoExts = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".ts": true, ".m2ts": true, ".wmv": true, ".flv": true,
	".webm": true, ".rmvb": true, ".rm": true,
}

const retryLimit = 3

// Segment names, per GLOSSARY.
const (
	SegmentTail = "片尾"
	SegmentMid  = "中间"
	SegmentHead = "片头"
)

// Result is the outcome of one Process call.
type Result struct {
	Status  store.Status
	Reason  string
	NewPath string
}

// Hooks lets the caller observe checkpoints and renames as they happen,
// so a worker can persist Task.Overrides/_passed and Task.Filepath
// without the engine knowing about the store directly.
type Hooks struct {
	OnCheckpoint func(segmentName string)
	OnRename     func(newPath string)
}

// Engine runs the 7-step pipeline against one file.
type Engine struct {
	Media       *media.Toolkit
	Transcriber *transcribe.Transcriber
}

// New returns a detection Engine bound to the given Media Toolkit and
// Transcriber.
func New(m *media.Toolkit, t *transcribe.Transcriber) *Engine {
	return &Engine{Media: m, Transcriber: t}
}

// Process runs the pipeline (spec §4.3). path is the current on-disk
// location of the file (may change mid-run via subtitle scrub rename);
// cfg is the resolved per-task settings; keywords is the type-filtered
// enabled keyword snapshot; passed is the task's `_passed` checkpoint
// set; retryCount is the task's current retry_count, used to gate the
// cloud→local fallback decision in step 6b.
func (e *Engine) Process(ctx context.Context, path string, cfg store.Settings, keywords keyword.Lists, passed []string, retryCount int, directUpload bool, hooks Hooks) (Result, error) {
	if directUpload {
		return Result{Status: store.StatusPendingUpload, NewPath: path}, nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !recognizedVideoExts[ext] {
		return Result{Status: store.StatusPendingUpload, NewPath: path}, nil
	}

	if err := checkStopped(ctx); err != nil {
		return Result{}, err
	}

	if cfg.SanitizeMetadata {
		newPath, err := e.scrubMetadata(ctx, path, ext, keywords.Meta)
		if err != nil {
			return Result{}, err
		}
		if newPath != "" {
			path = newPath
		}
	}

	if err := checkStopped(ctx); err != nil {
		return Result{}, err
	}

	if cfg.CheckSubtitles {
		newPath, dirty, err := e.scrubSubtitles(ctx, path, keywords.Subtitle)
		if err != nil {
			return Result{}, err
		}
		if newPath != "" {
			path = newPath
			if hooks.OnRename != nil {
				hooks.OnRename(newPath)
			}
		}
		_ = dirty // subtitle hits only drive which tracks are dropped, not file status
	}

	if err := checkStopped(ctx); err != nil {
		return Result{}, err
	}

	if cfg.CheckAudio {
		res, err := e.scanAudio(ctx, path, cfg, keywords.Audio, passed, retryCount, hooks)
		if err != nil || res.Status != "" {
			if res.NewPath == "" {
				res.NewPath = path
			}
			return res, err
		}
	}

	return Result{Status: store.StatusPendingUpload, NewPath: path}, nil
}

func checkStopped(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return apperr.Cancelled("stopped")
	default:
		return nil
	}
}

// reclassify maps a lower-level media/transcribe error to the cancelled
// class when the context was the actual cause (spec §4.3 "Cancellation").
func reclassify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return apperr.Cancelled("stopped")
	}
	return err
}
