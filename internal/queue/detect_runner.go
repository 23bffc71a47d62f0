package queue

import (
	"context"
	"path/filepath"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/apperr"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/detect"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/keyword"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/media"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/transcribe"
)

// DetectRunner adapts the Detection Engine (C3) to the Runner interface
// the detect Pool drives.
type DetectRunner struct {
	Store       *store.Store
	Transcriber *transcribe.Transcriber
	FFmpegPath  string
	FFprobePath string
	RclonePath  string
}

// Run loads keywords/settings for task and runs the 7-step pipeline,
// persisting checkpoints/renames as the engine reports them.
func (r *DetectRunner) Run(ctx context.Context, task store.Task, register func(Killer)) error {
	toolkit := media.New(r.FFmpegPath, r.FFprobePath, r.RclonePath)
	register(toolkit)

	engine := detect.New(toolkit, r.Transcriber)

	persisted, err := r.Store.GetConfig(ctx)
	if err != nil {
		return apperr.Fatal("config_load_failed", err)
	}
	cfg := store.Resolve(persisted, task.Overrides.Settings)

	kws, err := keyword.Load(ctx, r.Store)
	if err != nil {
		return apperr.Fatal("keyword_load_failed", err)
	}

	hooks := detect.Hooks{
		OnCheckpoint: func(segment string) {
			_ = r.Store.AddPassed(ctx, task.ID, segment)
		},
		OnRename: func(newPath string) {
			_ = r.Store.SetFilepath(ctx, task.ID, newPath)
			_ = r.Store.AppendLog(ctx, task.ID, "renamed to "+filepath.Base(newPath))
		},
	}

	res, err := engine.Process(ctx, task.Filepath, cfg, kws, task.Overrides.Passed, task.RetryCount, task.Overrides.DirectUpload, hooks)
	if err != nil {
		return err
	}

	switch res.Status {
	case store.StatusDirty:
		return apperr.Dirty(res.Reason)
	case store.StatusPendingUpload:
		if res.NewPath != "" && res.NewPath != task.Filepath {
			_ = r.Store.SetFilepath(ctx, task.ID, res.NewPath)
		}
		if err := r.Store.SetStatus(ctx, task.ID, store.StatusPendingUpload, store.StageUpload); err != nil {
			return apperr.Fatal("persist_status_failed", err)
		}
		return nil
	default:
		return apperr.Fatal("unexpected_detect_result", nil)
	}
}
