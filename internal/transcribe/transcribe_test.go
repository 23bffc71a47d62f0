package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsSupplementaryPlane(t *testing.T) {
	in := "广告内容🎵𝄞test"
	got := Normalize(in)
	require.Equal(t, "广告内容test", got)
}

func TestNormalizeKeepsBMPText(t *testing.T) {
	in := "正常中文文本 with ascii"
	require.Equal(t, in, Normalize(in))
}

func TestCloudProviderTranscribeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world"}`))
	}))
	defer srv.Close()

	tmp := t.TempDir() + "/seg.wav"
	require.NoError(t, os.WriteFile(tmp, []byte("RIFF....WAVEfmt "), 0644))

	p := NewCloudProvider(3, 5*time.Second)
	text, err := p.Transcribe(context.Background(), tmp, Config{CloudURL: srv.URL, CloudModel: "whisper-1"})
	require.NoError(t, err)
	require.Equal(t, "hello world", text)
}

func TestCloudProviderTranscribeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	tmp := t.TempDir() + "/seg.wav"
	require.NoError(t, os.WriteFile(tmp, []byte("data"), 0644))

	p := NewCloudProvider(1, 2*time.Second)
	_, err := p.Transcribe(context.Background(), tmp, Config{CloudURL: srv.URL})
	require.Error(t, err)
}

func TestTranscriberNoProviderConfigured(t *testing.T) {
	tr := New(nil, nil)
	_, _, err := tr.Transcribe(context.Background(), "x.wav", Config{}, true)
	require.True(t, errors.Is(err, ErrNoProvider))
}
