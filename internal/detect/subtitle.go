package detect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/keyword"
)

// scrubSubtitles implements spec §4.3 step 4. Returns the new sibling
// path if a rewrite happened (dirty tracks were dropped), or "" if every
// track was clean and the file was left untouched.
func (e *Engine) scrubSubtitles(ctx context.Context, path string, subKeywords []string) (newPath string, dirty bool, err error) {
	indices, err := e.Media.ProbeSubtitleIndices(ctx, path)
	if err != nil {
		return "", false, fmt.Errorf("probe subtitle streams: %w", err)
	}
	if len(indices) == 0 {
		return "", false, nil
	}

	var cleanIdx []int
	anyDirty := false
	for _, idx := range indices {
		text, err := e.Media.ExtractSubtitleWebVTT(ctx, path, idx)
		if err != nil {
			return "", false, fmt.Errorf("extract subtitle track %d: %w", idx, err)
		}
		if _, hit := keyword.MatchAny(text, subKeywords); hit {
			anyDirty = true
			continue
		}
		cleanIdx = append(cleanIdx, idx)
	}

	if !anyDirty {
		return "", false, nil
	}

	audioStreams, err := e.Media.ProbeAudioStreams(ctx, path)
	if err != nil {
		return "", false, fmt.Errorf("probe audio streams for subtitle scrub: %w", err)
	}

	mapSpec := []string{"-map", "0:v:0"}
	if len(audioStreams) > 0 {
		mapSpec = append(mapSpec, "-map", "0:a?")
	}
	for _, idx := range cleanIdx {
		mapSpec = append(mapSpec, "-map", fmt.Sprintf("0:s:%d", idx))
	}

	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	outPath := stem + "_clean" + ext

	out, err := e.Media.RewriteContainer(ctx, path, mapSpec, false, outPath)
	if err != nil {
		return "", true, fmt.Errorf("subtitle scrub rewrite: %w", err)
	}

	if err := os.Remove(path); err != nil {
		os.Remove(out)
		return "", true, fmt.Errorf("remove original after subtitle scrub: %w", err)
	}
	return out, true, nil
}
