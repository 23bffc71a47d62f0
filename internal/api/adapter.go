// Package api implements the External API Adapter (spec §4.7, C7): a
// transport-agnostic set of operations over the Task Store and Queues.
// The one concrete transport SPEC_FULL wires is the §6 trigger protocol,
// in server.go; callers embedding mediagate directly (the cmd/ CLI) use
// Adapter's methods without going through HTTP at all.
package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

// Adapter implements every inbound operation of spec §4.7 over a Store
// and the two Pools.
type Adapter struct {
	Store  *store.Store
	Detect *queue.Pool
	Upload *queue.Pool
	Log    zerolog.Logger
}

// New returns an Adapter wired to s and the two pools.
func New(s *store.Store, detect, upload *queue.Pool, log zerolog.Logger) *Adapter {
	return &Adapter{Store: s, Detect: detect, Upload: upload, Log: log}
}

// Submit creates a Task for path and enqueues it into the detect queue
// (spec §4.7 submit).
func (a *Adapter) Submit(ctx context.Context, path string) (store.Task, error) {
	filename := filepath.Base(path)
	task, err := a.Store.CreateCancellable(ctx, filename, path, store.Overrides{}, a.cancelRunning)
	if err != nil {
		return store.Task{}, err
	}
	if err := a.enqueueDetect(ctx, task.ID); err != nil {
		return task, err
	}
	return task, nil
}

// DirectUpload creates a Task for path with the direct_upload override
// set, short-circuiting detection (spec §4.7 direct_upload, §4.3 step 1).
func (a *Adapter) DirectUpload(ctx context.Context, path string) (store.Task, error) {
	filename := filepath.Base(path)
	task, err := a.Store.CreateCancellable(ctx, filename, path, store.Overrides{DirectUpload: true}, a.cancelRunning)
	if err != nil {
		return store.Task{}, err
	}
	if err := a.enqueueDetect(ctx, task.ID); err != nil {
		return task, err
	}
	return task, nil
}

// Retry resets id's checkpoint state and re-enqueues it into whichever
// stage it was previously in, per spec §4.5 "Manual retry": the explicit
// Stage column (§9 open-question resolution) replaces the source's
// log-substring heuristic.
func (a *Adapter) Retry(ctx context.Context, id int) error {
	task, err := a.Store.Load(ctx, id)
	if err != nil {
		return err
	}
	status, stage := retryTarget(task.Stage)
	if err := a.Store.ResetForRetry(ctx, id, status, stage, true); err != nil {
		return err
	}
	return a.enqueueStage(ctx, id, stage)
}

// AdjustAndRetry merges settings into id's overrides, then retries it
// exactly as Retry does (spec §4.7 adjust_and_retry).
func (a *Adapter) AdjustAndRetry(ctx context.Context, id int, settings map[string]string) error {
	if err := a.Store.AdjustOverrides(ctx, id, settings); err != nil {
		return err
	}
	return a.Retry(ctx, id)
}

// Cancel stops id's in-flight worker (if any) and marks it cancelled
// (spec §4.7 cancel). A queued task that no worker owns yet is marked
// cancelled too; a task already in a terminal status is left as-is.
func (a *Adapter) Cancel(ctx context.Context, id int) error {
	a.cancelRunning(id)
	task, err := a.Store.Load(ctx, id)
	if err != nil {
		return err
	}
	if task.Status.Terminal() {
		return nil
	}
	return a.Store.SetStatus(ctx, id, store.StatusCancelled, "")
}

// BatchTarget selects which stage a batch operation (spec §4.7 batch)
// applies to.
type BatchTarget string

const (
	BatchDetect BatchTarget = "detect"
	BatchUpload BatchTarget = "upload"
)

// BatchAction is retry or stop, applied to every task currently in the
// given stage (spec §4.7 batch).
type BatchAction string

const (
	BatchRetry BatchAction = "retry"
	BatchStop  BatchAction = "stop"
)

// Batch applies action to every non-terminal task whose Stage matches
// target, per spec §4.7. Stage classification uses the explicit
// Task.Stage column (§9 open-question resolution) rather than the
// source's log-substring heuristic.
func (a *Adapter) Batch(ctx context.Context, action BatchAction, target BatchTarget) (int, error) {
	var stage store.Stage
	switch target {
	case BatchDetect:
		stage = store.StageDetect
	case BatchUpload:
		stage = store.StageUpload
	default:
		return 0, fmt.Errorf("unknown batch target %q", target)
	}

	tasks, err := a.Store.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, t := range tasks {
		if t.Stage != stage || t.Status.Terminal() {
			continue
		}
		switch action {
		case BatchRetry:
			if err := a.Retry(ctx, t.ID); err != nil {
				a.Log.Warn().Int("task_id", t.ID).Err(err).Msg("batch retry failed")
				continue
			}
		case BatchStop:
			if err := a.Cancel(ctx, t.ID); err != nil {
				a.Log.Warn().Int("task_id", t.ID).Err(err).Msg("batch stop failed")
				continue
			}
		default:
			return n, fmt.Errorf("unknown batch action %q", action)
		}
		n++
	}
	return n, nil
}

// Delete cancels id if running, removes its on-disk file and known
// `_clean`/`_clean_meta` siblings, then deletes the row (spec §4.7
// delete).
func (a *Adapter) Delete(ctx context.Context, id int) error {
	a.cancelRunning(id)
	task, err := a.Store.Load(ctx, id)
	if err != nil {
		return err
	}

	for _, p := range siblingPaths(task.Filepath) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			a.Log.Warn().Str("path", p).Err(err).Msg("delete: failed removing sibling file")
		}
	}

	return a.Store.Delete(ctx, id)
}

// ClearFinished deletes every task in a terminal status (spec §4.7
// clear_finished).
func (a *Adapter) ClearFinished(ctx context.Context) (int, error) {
	return a.Store.ClearFinished(ctx)
}

func (a *Adapter) cancelRunning(id int) {
	if a.Detect != nil {
		a.Detect.Stop(id)
	}
	if a.Upload != nil {
		a.Upload.Stop(id)
	}
}

func (a *Adapter) enqueueDetect(ctx context.Context, id int) error {
	return a.enqueueStage(ctx, id, store.StageDetect)
}

func (a *Adapter) enqueueStage(ctx context.Context, id int, stage store.Stage) error {
	if stage == store.StageUpload {
		return a.Upload.Queue.Enqueue(ctx, id)
	}
	return a.Detect.Queue.Enqueue(ctx, id)
}

func retryTarget(stage store.Stage) (store.Status, store.Stage) {
	if stage == store.StageUpload {
		return store.StatusPendingUpload, store.StageUpload
	}
	return store.StatusPending, store.StageDetect
}

// siblingPaths returns path plus its `_clean`/`_clean_meta` sibling
// filenames, per spec §4.7 delete. The subtitle scrub writes the `_clean`
// sibling; the metadata scrub rewrites the file in place.
func siblingPaths(path string) []string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	return []string{
		path,
		stem + "_clean" + ext,
		stem + "_clean_meta" + ext,
	}
}
