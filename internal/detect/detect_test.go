package detect

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/keyword"
	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

func TestProcessDirectUploadShortCircuits(t *testing.T) {
	e := &Engine{}
	res, err := e.Process(context.Background(), "/x/movie.mp4", store.Defaults(), keyword.Lists{}, nil, 0, true, Hooks{})
	require.NoError(t, err)
	require.Equal(t, store.StatusPendingUpload, res.Status)
}

func TestProcessNonVideoExtensionSkipsInspection(t *testing.T) {
	e := &Engine{}
	res, err := e.Process(context.Background(), "/x/readme.txt", store.Defaults(), keyword.Lists{}, nil, 0, false, Hooks{})
	require.NoError(t, err)
	require.Equal(t, store.StatusPendingUpload, res.Status)
}

func TestProcessCancelledContextBetweenStages(t *testing.T) {
	e := &Engine{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := store.Defaults()
	cfg.SanitizeMetadata = false
	cfg.CheckSubtitles = false
	cfg.CheckAudio = false
	_, err := e.Process(ctx, "/x/movie.mp4", cfg, keyword.Lists{}, nil, 0, false, Hooks{})
	require.Error(t, err)
}
