// Package supervisor implements the startup recovery, configuration
// resolution plumbing, and notification dispatch of spec §4.6 (C6): it is
// the component that owns both Pools and re-enqueues whatever the Task
// Store says was interrupted by the previous process exit.
package supervisor

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

// Supervisor owns the detect/upload Pools and the recovery/notification
// logic around them.
type Supervisor struct {
	Store    *store.Store
	Detect   *queue.Pool
	Upload   *queue.Pool
	Notifier Notifier
	Log      zerolog.Logger
}

// New wires a Supervisor around already-constructed pools.
func New(s *store.Store, detect, upload *queue.Pool, notifier Notifier, log zerolog.Logger) *Supervisor {
	return &Supervisor{Store: s, Detect: detect, Upload: upload, Notifier: notifier, Log: log}
}

// Start seeds the default keyword lists on first run, recovers
// interrupted tasks from the previous run (spec §4.4 "Durable FIFO for
// workers"), then starts both pools and blocks until ctx is cancelled.
func (sv *Supervisor) Start(ctx context.Context) error {
	if err := sv.seedKeywords(ctx); err != nil {
		sv.Log.Error().Err(err).Msg("keyword seeding failed")
	}
	if err := sv.recover(ctx); err != nil {
		sv.Log.Error().Err(err).Msg("startup recovery failed")
	}

	errCh := make(chan error, 2)
	go func() { errCh <- sv.Detect.Run(ctx) }()
	go func() { errCh <- sv.Upload.Run(ctx) }()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// recover rewrites interrupted statuses to their restartable equivalent
// and re-enqueues them, exactly as spec §4.4 requires: {processing,
// pending} → pending → detect queue; {uploading, pending_upload} →
// pending_upload → upload queue.
func (sv *Supervisor) recover(ctx context.Context) error {
	detectTasks, err := sv.Store.ListByStatus(ctx, store.StatusProcessing, store.StatusPending)
	if err != nil {
		return err
	}
	for _, t := range detectTasks {
		if err := sv.Store.SetStatus(ctx, t.ID, store.StatusPending, store.StageDetect); err != nil {
			sv.Log.Error().Int("task_id", t.ID).Err(err).Msg("recovery: set status failed")
			continue
		}
		if err := sv.Detect.Queue.Enqueue(ctx, t.ID); err != nil {
			sv.Log.Error().Int("task_id", t.ID).Err(err).Msg("recovery: enqueue failed")
		}
	}

	uploadTasks, err := sv.Store.ListByStatus(ctx, store.StatusUploading, store.StatusPendingUpload)
	if err != nil {
		return err
	}
	for _, t := range uploadTasks {
		if err := sv.Store.SetStatus(ctx, t.ID, store.StatusPendingUpload, store.StageUpload); err != nil {
			sv.Log.Error().Int("task_id", t.ID).Err(err).Msg("recovery: set status failed")
			continue
		}
		if err := sv.Upload.Queue.Enqueue(ctx, t.ID); err != nil {
			sv.Log.Error().Int("task_id", t.ID).Err(err).Msg("recovery: enqueue failed")
		}
	}

	sv.Log.Info().Int("detect", len(detectTasks)).Int("upload", len(uploadTasks)).Msg("startup recovery complete")
	return nil
}
