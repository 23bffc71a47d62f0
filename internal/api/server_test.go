package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/queue"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

func newTestServer(t *testing.T, token string) *Server {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	detect := queue.NewPool("detect", s, queue.NewQueue(8), nil, 1, store.StageDetect, zerolog.Nop())
	upload := queue.NewPool("upload", s, queue.NewQueue(8), nil, 1, store.StageUpload, zerolog.Nop())
	adapter := New(s, detect, upload, zerolog.Nop())

	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Token = token

	srv, err := NewServer(cfg, adapter, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	t.Cleanup(func() { srv.Shutdown() })
	return srv
}

func post(t *testing.T, srv *Server, path, token string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	url := fmt.Sprintf("http://127.0.0.1:%d%s", srv.GetPort(), path)
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(b))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, "secret")
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", srv.GetPort()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSubmitRequiresBearerToken(t *testing.T) {
	srv := newTestServer(t, "secret")
	resp := post(t, srv, "/trigger/submit", "", map[string]string{"path": "/scan/a.mkv"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubmitRejectsWrongToken(t *testing.T) {
	srv := newTestServer(t, "secret")
	resp := post(t, srv, "/trigger/submit", "wrong", map[string]string{"path": "/scan/a.mkv"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubmitDisabledWithoutConfiguredToken(t *testing.T) {
	srv := newTestServer(t, "")
	resp := post(t, srv, "/trigger/submit", "anything", map[string]string{"path": "/scan/a.mkv"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSubmitRejectsMissingPath(t *testing.T) {
	srv := newTestServer(t, "secret")
	resp := post(t, srv, "/trigger/submit", "secret", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitReturnsTaskID(t *testing.T) {
	srv := newTestServer(t, "secret")
	resp := post(t, srv, "/trigger/submit", "secret", map[string]string{"path": "/scan/show/episode.mkv"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, float64(200), out["code"])
	require.Equal(t, float64(1), out["task_id"])
}
