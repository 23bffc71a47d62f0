package queue

import (
	"context"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/apperr"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/media"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

// UploadRunner adapts the rclone-backed Upload stage to the Runner
// interface the upload Pool drives.
type UploadRunner struct {
	Store       *store.Store
	FFmpegPath  string
	FFprobePath string
	RclonePath  string
	ScanRoot    string
	RemoteDest  func(task store.Task) string
	// Notify, if set, fires on a successful upload (spec §4.6
	// notify_upload_success) — dirty/error outcomes are dispatched by
	// the owning Pool instead, since those are common to both stages.
	Notify Notify
}

// Run uploads task.Filepath to its configured remote destination,
// persisting progress/speed/ETA as rclone reports them, and marking the
// task uploaded on success.
func (r *UploadRunner) Run(ctx context.Context, task store.Task, register func(Killer)) error {
	toolkit := media.New(r.FFmpegPath, r.FFprobePath, r.RclonePath)
	register(toolkit)

	dest := r.RemoteDest(task)

	err := toolkit.Upload(ctx, task.Filepath, dest, func(p media.UploadProgress) {
		_ = r.Store.SetProgress(ctx, task.ID, p.Percent)
		_ = r.Store.SetUploadStats(ctx, task.ID, p.Speed, p.ETA)
	})
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Cancelled("upload interrupted")
		}
		return apperr.Retryable("upload_failed", err)
	}

	_ = media.GCEmptyDirs(task.Filepath, r.ScanRoot)

	if err := r.Store.SetStatus(ctx, task.ID, store.StatusUploaded, ""); err != nil {
		return apperr.Fatal("persist_status_failed", err)
	}
	if r.Notify != nil {
		r.Notify(task.ID, task.Filename, "uploaded", "")
	}
	return nil
}
