package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/apperr"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

type fakeRunner struct {
	result func(task store.Task) error
	calls  int32
}

func (f *fakeRunner) Run(ctx context.Context, task store.Task, register func(Killer)) error {
	atomic.AddInt32(&f.calls, 1)
	return f.result(task)
}

func newTestPool(t *testing.T, r Runner, stage store.Stage) (*Pool, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	q := NewQueue(8)
	p := NewPool("test", s, q, r, 1, stage, zerolog.Nop())
	return p, s
}

func TestRetryableRequeuesUntilLimitThenErrors(t *testing.T) {
	r := &fakeRunner{result: func(store.Task) error { return apperr.Retryable("boom", errors.New("x")) }}
	p, s := newTestPool(t, r, store.StageDetect)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := s.Create(ctx, "f.mp4", "/x/f.mp4", store.Overrides{})
	require.NoError(t, err)
	require.NoError(t, p.Queue.Enqueue(ctx, task.ID))

	go p.Run(ctx)

	require.Eventually(t, func() bool {
		got, err := s.Load(ctx, task.ID)
		return err == nil && got.Status == store.StatusError
	}, 2*time.Second, 10*time.Millisecond)

	final, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusError, final.Status)
	require.Equal(t, RetryLimit, final.RetryCount)
}

func TestUploadRetryableGoesStraightToError(t *testing.T) {
	r := &fakeRunner{result: func(store.Task) error { return apperr.Retryable("upload_failed", errors.New("x")) }}
	p, s := newTestPool(t, r, store.StageUpload)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := s.Create(ctx, "f.mp4", "/x/f.mp4", store.Overrides{})
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, task.ID, store.StatusPendingUpload, store.StageUpload))
	require.NoError(t, p.Queue.Enqueue(ctx, task.ID))

	go p.Run(ctx)

	require.Eventually(t, func() bool {
		got, err := s.Load(ctx, task.ID)
		return err == nil && got.Status == store.StatusError
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, int32(1), atomic.LoadInt32(&r.calls))
}

func TestDirtyGoesTerminalImmediately(t *testing.T) {
	r := &fakeRunner{result: func(store.Task) error { return apperr.Dirty("命中: 测试") }}
	p, s := newTestPool(t, r, store.StageDetect)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := s.Create(ctx, "f.mp4", "/x/f.mp4", store.Overrides{})
	require.NoError(t, err)
	require.NoError(t, p.Queue.Enqueue(ctx, task.ID))

	go p.Run(ctx)

	require.Eventually(t, func() bool {
		got, err := s.Load(ctx, task.ID)
		return err == nil && got.Status == store.StatusDirty
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStopCancelsRunningTask(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	r := &fakeRunner{}
	r.result = func(store.Task) error {
		close(started)
		<-release
		return apperr.Cancelled("stopped")
	}
	p, s := newTestPool(t, r, store.StageDetect)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	task, err := s.Create(ctx, "f.mp4", "/x/f.mp4", store.Overrides{})
	require.NoError(t, err)
	require.NoError(t, p.Queue.Enqueue(ctx, task.ID))

	go p.Run(ctx)
	<-started

	require.True(t, p.Stop(task.ID))
	close(release)

	require.Eventually(t, func() bool {
		got, err := s.Load(ctx, task.ID)
		return err == nil && got.Status == store.StatusCancelled
	}, 2*time.Second, 10*time.Millisecond)
}
