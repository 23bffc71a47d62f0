package detect

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/keyword"
)

// scrubMetadata implements spec §4.3 step 3. Returns the new path when a
// rewrite happened, or "" if the file was left untouched.
func (e *Engine) scrubMetadata(ctx context.Context, path, ext string, metaKeywords []string) (string, error) {
	if ext == ".rmvb" {
		return "", nil
	}

	tags, err := e.Media.ProbeFormatTags(ctx, path)
	if err != nil {
		return "", fmt.Errorf("probe format tags: %w", err)
	}

	if _, hit := keyword.MatchAny(tags, metaKeywords); !hit {
		return "", nil
	}

	audioStreams, err := e.Media.ProbeAudioStreams(ctx, path)
	if err != nil {
		return "", fmt.Errorf("probe audio streams for metadata scrub: %w", err)
	}
	subtitleIdx, err := e.Media.ProbeSubtitleIndices(ctx, path)
	if err != nil {
		return "", fmt.Errorf("probe subtitle streams for metadata scrub: %w", err)
	}

	mapSpec := []string{"-map", "0:v:0"}
	if len(audioStreams) > 0 {
		mapSpec = append(mapSpec, "-map", "0:a?")
	}
	if len(subtitleIdx) > 0 {
		mapSpec = append(mapSpec, "-map", "0:s?")
	}

	tmp := path + ".scrub.tmp" + filepath.Ext(path)
	out, err := e.Media.RewriteContainer(ctx, path, mapSpec, true, tmp)
	if err != nil {
		return "", fmt.Errorf("metadata scrub rewrite: %w", err)
	}

	if err := os.Rename(out, path); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("atomically replace source after metadata scrub: %w", err)
	}
	return path, nil
}
