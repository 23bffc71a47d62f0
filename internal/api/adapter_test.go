package api

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

func newTestAdapter(t *testing.T) (*Adapter, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	detect := queue.NewPool("detect", s, queue.NewQueue(8), nil, 1, store.StageDetect, zerolog.Nop())
	upload := queue.NewPool("upload", s, queue.NewQueue(8), nil, 1, store.StageUpload, zerolog.Nop())
	return New(s, detect, upload, zerolog.Nop()), s
}

func TestSubmitCreatesTaskAndEnqueues(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestAdapter(t)

	task, err := a.Submit(ctx, "/scan/show/episode.mkv")
	require.NoError(t, err)
	require.Equal(t, "episode.mkv", task.Filename)
	require.Equal(t, store.StatusPending, task.Status)
	require.Equal(t, store.StageDetect, task.Stage)

	id, ok := a.Detect.Queue.Take(ctx)
	require.True(t, ok)
	require.Equal(t, task.ID, id)
}

func TestDirectUploadSetsOverrideAndStillGoesThroughDetect(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAdapter(t)

	task, err := a.DirectUpload(ctx, "/scan/show/episode.mkv")
	require.NoError(t, err)

	reloaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, reloaded.Overrides.DirectUpload)
	require.Equal(t, store.StageDetect, reloaded.Stage)

	id, ok := a.Detect.Queue.Take(ctx)
	require.True(t, ok)
	require.Equal(t, task.ID, id)
}

func TestRetryRoutesByStage(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAdapter(t)

	task, err := a.Submit(ctx, "/scan/a.mkv")
	require.NoError(t, err)
	_, ok := a.Detect.Queue.Take(ctx)
	require.True(t, ok)

	require.NoError(t, s.SetStatus(ctx, task.ID, store.StatusPendingUpload, store.StageUpload))
	require.NoError(t, a.Retry(ctx, task.ID))

	reloaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusPendingUpload, reloaded.Status)
	require.Equal(t, store.StageUpload, reloaded.Stage)

	id, ok := a.Upload.Queue.Take(ctx)
	require.True(t, ok)
	require.Equal(t, task.ID, id)
}

func TestAdjustAndRetryMergesOverrides(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAdapter(t)

	task, err := a.Submit(ctx, "/scan/a.mkv")
	require.NoError(t, err)
	_, ok := a.Detect.Queue.Take(ctx)
	require.True(t, ok)

	require.NoError(t, a.AdjustAndRetry(ctx, task.ID, map[string]string{"sensitivity": "high"}))

	reloaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, "high", reloaded.Overrides.Settings["sensitivity"])
}

func TestCancelMarksNonTerminalTaskCancelled(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAdapter(t)

	task, err := a.Submit(ctx, "/scan/a.mkv")
	require.NoError(t, err)

	require.NoError(t, a.Cancel(ctx, task.ID))

	reloaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusCancelled, reloaded.Status)
}

func TestCancelLeavesTerminalTaskAlone(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAdapter(t)

	task, err := a.Submit(ctx, "/scan/a.mkv")
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, task.ID, store.StatusUploaded, ""))

	require.NoError(t, a.Cancel(ctx, task.ID))

	reloaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusUploaded, reloaded.Status)
}

func TestBatchOnlyTouchesMatchingStage(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAdapter(t)

	detectTask, err := a.Submit(ctx, "/scan/detect.mkv")
	require.NoError(t, err)
	_, ok := a.Detect.Queue.Take(ctx)
	require.True(t, ok)

	uploadTask, err := a.Submit(ctx, "/scan/upload.mkv")
	require.NoError(t, err)
	_, ok = a.Detect.Queue.Take(ctx)
	require.True(t, ok)
	require.NoError(t, s.SetStatus(ctx, uploadTask.ID, store.StatusPendingUpload, store.StageUpload))

	n, err := a.Batch(ctx, BatchStop, BatchUpload)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	upload, err := s.Load(ctx, uploadTask.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusCancelled, upload.Status)

	detect, err := s.Load(ctx, detectTask.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusPending, detect.Status)
}

func TestDeleteRemovesRow(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAdapter(t)

	task, err := a.Submit(ctx, "/scan/a.mkv")
	require.NoError(t, err)

	require.NoError(t, a.Delete(ctx, task.ID))

	_, err = s.Load(ctx, task.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestClearFinishedDeletesOnlyTerminalTasks(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAdapter(t)

	pending, err := a.Submit(ctx, "/scan/pending.mkv")
	require.NoError(t, err)
	done, err := a.Submit(ctx, "/scan/done.mkv")
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, done.ID, store.StatusUploaded, ""))

	n, err := a.ClearFinished(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Load(ctx, pending.ID)
	require.NoError(t, err)
	_, err = s.Load(ctx, done.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}
