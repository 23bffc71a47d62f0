package queue

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/apperr"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
	"golang.org/x/sync/errgroup"
)

// RetryLimit is the spec's RETRY_LIMIT (§4.3 step 6b, §4.5): a detect
// task gets 3 re-queues on a retryable failure before going terminal.
const RetryLimit = 3

// Runner performs one stage's work for one task. It returns the error
// classification the pool switches on; a nil error means the stage
// succeeded and runner has already called the appropriate
// store.SetStatus itself (pending_upload after detect, uploaded after
// upload) — Pool handles the dirty/retry/error/cancelled paths common
// to both stages.
type Runner interface {
	// Run performs the stage's work for task. register, if called,
	// attaches a Killer the pool can invoke on Stop; a Runner whose
	// stage spawns an external subprocess (media.Toolkit) should call
	// register with it as soon as it's constructed.
	Run(ctx context.Context, task store.Task, register func(Killer)) error
}

// Notify, if set, is called on a task's dirty/error outcome so a
// caller (the supervisor) can dispatch an operator notification (spec
// §4.6). A nil Notify is a no-op — notification is optional, detection
// and upload aren't gated on it.
type Notify func(taskID int, filename, kind, reason string)

// Pool is one of the two independent worker pools (spec §4.5): N
// workers draining a Queue, each running Runner against one task at a
// time, registering itself in Running before work begins and
// unregistering on every exit path.
type Pool struct {
	Name    string
	Store   *store.Store
	Queue   *Queue
	Runner  Runner
	Workers int
	Stage   store.Stage
	Log     zerolog.Logger
	Notify  Notify

	running *running
}

// NewPool returns a Pool with workers clamped to a minimum of 1 (spec
// §4.5: "minimum 1").
func NewPool(name string, s *store.Store, q *Queue, r Runner, workers int, stage store.Stage, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		Name: name, Store: s, Queue: q, Runner: r,
		Workers: workers, Stage: stage, Log: log,
		running: newRunning(),
	}
}

// Stop cancels a running task's worker and kills its in-flight
// subprocess (spec §4.7 cancel/batch). Returns false if the task isn't
// currently owned by this pool.
func (p *Pool) Stop(id int) bool { return p.running.Stop(id) }

// RunningIDs returns the ids this pool currently owns.
func (p *Pool) RunningIDs() []int { return p.running.IDs() }

// Run starts Workers goroutines and blocks until ctx is cancelled, at
// which point it waits for in-flight work to observe cancellation and
// exit (errgroup, from ManuGH-xg2g's supervision pattern).
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.Workers; i++ {
		workerID := i
		g.Go(func() error {
			p.worker(gctx, workerID)
			return nil
		})
	}
	return g.Wait()
}

func (p *Pool) worker(ctx context.Context, workerID int) {
	for {
		id, ok := p.Queue.Take(ctx)
		if !ok {
			return
		}
		p.process(ctx, id, workerID)
	}
}

func (p *Pool) process(parent context.Context, id int, workerID int) {
	task, err := p.Store.Load(parent, id)
	if err != nil {
		p.Log.Debug().Int("task_id", id).Err(err).Msg("task vanished before worker could start it, skipping")
		return
	}
	if task.Status == store.StatusCancelled || task.Status.Terminal() {
		return
	}

	// attempt_id lets log lines from concurrent retries of the same
	// task_id be told apart.
	attemptID := uuid.NewString()
	log := p.Log.With().Int("task_id", id).Str("attempt_id", attemptID).Logger()

	taskCtx, cancel := context.WithCancel(parent)
	p.running.insert(id, cancel, nil)
	defer func() {
		cancel()
		p.running.remove(id)
	}()

	inProgress := store.StatusProcessing
	if p.Stage == store.StageUpload {
		inProgress = store.StatusUploading
	}
	if err := p.Store.SetStatus(parent, id, inProgress, p.Stage); err != nil {
		log.Debug().Err(err).Msg("task vanished before in-progress status could be persisted, skipping")
		return
	}
	log.Debug().Str("stage", string(p.Stage)).Int("worker", workerID).Msg("task started")

	err = p.Runner.Run(taskCtx, task, func(k Killer) { p.running.setKiller(id, k) })
	p.handleOutcome(parent, id, task, err)
}

func (p *Pool) handleOutcome(ctx context.Context, id int, task store.Task, err error) {
	if err == nil {
		return
	}

	classified, ok := apperr.As(err)
	if !ok {
		classified = apperr.Retryable("unclassified", err)
	}

	switch classified.Class {
	case apperr.ClassCancelled:
		_ = p.Store.AppendLog(ctx, id, fmt.Sprintf("cancelled: %s", classified.Reason))
		_ = p.Store.SetStatus(ctx, id, store.StatusCancelled, "")

	case apperr.ClassDirty:
		_ = p.Store.AppendLog(ctx, id, fmt.Sprintf("dirty: %s", classified.Reason))
		if cur, err := p.Store.Load(ctx, id); err == nil {
			if err := os.Remove(cur.Filepath); err != nil && !os.IsNotExist(err) {
				_ = p.Store.AppendLog(ctx, id, fmt.Sprintf("remove dirty file: %v", err))
			}
		}
		_ = p.Store.SetStatus(ctx, id, store.StatusDirty, "")
		p.notify(id, task.Filename, "dirty", classified.Reason)

	case apperr.ClassFatal:
		_ = p.Store.AppendLog(ctx, id, fmt.Sprintf("error: %s", classified.Error()))
		_ = p.Store.SetStatus(ctx, id, store.StatusError, "")
		p.notify(id, task.Filename, "error", classified.Error())

	case apperr.ClassRetryable:
		p.handleRetryable(ctx, id, task, classified)
	}
}

// handleRetryable implements spec §4.5's retry policy. Detect-stage
// tasks get RetryLimit re-queues, preserving _passed so verified
// segments aren't rescanned; upload-stage failures have no internal
// retry and go straight to error (spec §4.5: "upload stage single-
// failure-to-error with no internal retry").
func (p *Pool) handleRetryable(ctx context.Context, id int, task store.Task, classified *apperr.Error) {
	_ = p.Store.AppendLog(ctx, id, fmt.Sprintf("retryable: %s", classified.Error()))

	if p.Stage == store.StageUpload {
		_ = p.Store.SetStatus(ctx, id, store.StatusError, "")
		p.notify(id, task.Filename, "error", classified.Error())
		return
	}

	if task.RetryCount >= RetryLimit {
		_ = p.Store.SetStatus(ctx, id, store.StatusError, "")
		p.notify(id, task.Filename, "error", classified.Error())
		return
	}

	_ = p.Store.SetRetryCount(ctx, id, task.RetryCount+1)
	_ = p.Store.SetStatus(ctx, id, store.StatusPending, store.StageDetect)
	_ = p.Queue.Enqueue(ctx, id)
}

func (p *Pool) notify(id int, filename, kind, reason string) {
	if p.Notify == nil {
		return
	}
	p.Notify(id, filename, kind, reason)
}
