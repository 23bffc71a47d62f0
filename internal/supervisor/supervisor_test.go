package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

type noopRunner struct{}

func (noopRunner) Run(ctx context.Context, task store.Task, register func(queue.Killer)) error {
	return nil
}

func newTestSupervisor(t *testing.T) (*Supervisor, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	dq := queue.NewQueue(8)
	uq := queue.NewQueue(8)
	detect := queue.NewPool("detect", s, dq, noopRunner{}, 1, store.StageDetect, zerolog.Nop())
	upload := queue.NewPool("upload", s, uq, noopRunner{}, 1, store.StageUpload, zerolog.Nop())
	return New(s, detect, upload, nil, zerolog.Nop()), s
}

func TestSeedKeywordsOnlyOnFirstRun(t *testing.T) {
	sv, s := newTestSupervisor(t)
	ctx := context.Background()

	require.NoError(t, sv.seedKeywords(ctx))
	n, err := s.CountKeywords(ctx)
	require.NoError(t, err)
	require.Greater(t, n, 0)

	require.NoError(t, s.AddKeyword(ctx, store.KeywordAudio, "custom"))
	require.NoError(t, sv.seedKeywords(ctx))
	n2, err := s.CountKeywords(ctx)
	require.NoError(t, err)
	require.Equal(t, n+1, n2)
}

func TestRecoverRewritesInterruptedStatuses(t *testing.T) {
	sv, s := newTestSupervisor(t)
	ctx := context.Background()

	processing, err := s.Create(ctx, "a.mp4", "/x/a.mp4", store.Overrides{})
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, processing.ID, store.StatusProcessing, store.StageDetect))

	uploading, err := s.Create(ctx, "b.mp4", "/x/b.mp4", store.Overrides{})
	require.NoError(t, err)
	require.NoError(t, s.SetStatus(ctx, uploading.ID, store.StatusUploading, store.StageUpload))

	require.NoError(t, sv.recover(ctx))

	got, err := s.Load(ctx, processing.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusPending, got.Status)

	id, ok := sv.Detect.Queue.Take(ctx)
	require.True(t, ok)
	require.Equal(t, processing.ID, id)

	got2, err := s.Load(ctx, uploading.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusPendingUpload, got2.Status)

	id2, ok := sv.Upload.Queue.Take(ctx)
	require.True(t, ok)
	require.Equal(t, uploading.ID, id2)
}

func TestWebhookNotifierPostsJSON(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev Event
		_ = json.NewDecoder(r.Body).Decode(&ev)
		w.WriteHeader(http.StatusOK)
		received <- ev
	}))
	defer srv.Close()

	n := NewWebhookNotifier(srv.URL)
	err := n.Notify(context.Background(), Event{TaskID: 1, Kind: "dirty", Reason: "命中: 加群"})
	require.NoError(t, err)

	select {
	case ev := <-received:
		require.Equal(t, Event{TaskID: 1, Kind: "dirty", Reason: "命中: 加群"}, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestDispatchSwallowsNotifierFailure(t *testing.T) {
	sv, _ := newTestSupervisor(t)
	sv.Notifier = NewWebhookNotifier("http://127.0.0.1:0")
	sv.Dispatch(context.Background(), Event{TaskID: 1, Kind: "error"})
}
