package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	task, err := s.Create(ctx, "movie.mp4", "/scan/movie.mp4", Overrides{})
	require.NoError(t, err)
	require.Equal(t, 1, task.ID)
	require.Equal(t, StatusPending, task.Status)
	require.Equal(t, StageDetect, task.Stage)

	loaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, task.Filename, loaded.Filename)

	_, err = s.Load(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestNextIDWrapsAndRecyclesRow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// Force the counter near the wraparound boundary.
	require.NoError(t, s.SetConfig(ctx, idCounterKey, "9999"))

	id, err := s.NextID(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, id)

	// Create a row at id 1, then force allocation to hit it again and
	// confirm the prior row is cancelled-and-deleted before reuse.
	require.NoError(t, s.SetConfig(ctx, idCounterKey, "9999"))
	_, err = s.Create(ctx, "a.mp4", "/a.mp4", Overrides{})
	require.NoError(t, err)

	require.NoError(t, s.SetConfig(ctx, idCounterKey, "9999"))
	var cancelledID int
	id2, err := s.NextIDCancel(ctx, func(id int) { cancelledID = id })
	require.NoError(t, err)
	require.Equal(t, 1, id2)
	require.Equal(t, 1, cancelledID)

	_, err = s.Load(ctx, 1)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatusResetsProgressOnStageChange(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	task, err := s.Create(ctx, "a.mp4", "/a.mp4", Overrides{})
	require.NoError(t, err)

	require.NoError(t, s.SetProgress(ctx, task.ID, 80))
	require.NoError(t, s.SetStatus(ctx, task.ID, StatusPendingUpload, StageUpload))

	reloaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, 0, reloaded.Progress)
	require.Equal(t, StageUpload, reloaded.Stage)

	require.NoError(t, s.SetProgress(ctx, task.ID, 42))
	require.NoError(t, s.SetStatus(ctx, task.ID, StatusUploading, ""))
	reloaded, err = s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, 42, reloaded.Progress, "same-stage transition must not reset progress")

	require.NoError(t, s.SetStatus(ctx, task.ID, StatusUploaded, ""))
	reloaded, err = s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.FinishedAt)
}

func TestAppendLogCapsGrowth(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	task, err := s.Create(ctx, "a.mp4", "/a.mp4", Overrides{})
	require.NoError(t, err)

	line := strings.Repeat("x", 100)
	for i := 0; i < 300; i++ {
		require.NoError(t, s.AppendLog(ctx, task.ID, line))
	}
	reloaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.LessOrEqual(t, len(reloaded.Log), maxLogBytes)
}

func TestAddPassedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	task, err := s.Create(ctx, "a.mp4", "/a.mp4", Overrides{})
	require.NoError(t, err)

	require.NoError(t, s.AddPassed(ctx, task.ID, "片尾"))
	require.NoError(t, s.AddPassed(ctx, task.ID, "片尾"))

	reloaded, err := s.Load(ctx, task.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"片尾"}, reloaded.Overrides.Passed)
}

func TestResolveDefaultsPersistedOverrides(t *testing.T) {
	persisted := map[string]string{"concurrency_detect": "5", "check_audio": "false"}
	overrides := map[string]string{"check_audio": "true"}

	s := Resolve(persisted, overrides)
	require.Equal(t, 5, s.ConcurrencyDetect)
	require.True(t, s.CheckAudio, "task override must win over persisted config")
	require.Equal(t, Defaults().AudioThresholdMulti, s.AudioThresholdMulti, "unset keys fall back to defaults")
}

func TestClearFinished(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a, err := s.Create(ctx, "a.mp4", "/a.mp4", Overrides{})
	require.NoError(t, err)
	b, err := s.Create(ctx, "b.mp4", "/b.mp4", Overrides{})
	require.NoError(t, err)

	require.NoError(t, s.SetStatus(ctx, a.ID, StatusUploaded, ""))
	n, err := s.ClearFinished(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = s.Load(ctx, a.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Load(ctx, b.ID)
	require.NoError(t, err)
}
