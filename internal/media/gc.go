package media

import (
	"os"
	"path/filepath"
)

// GCEmptyDirs removes path's parent directory if it is empty, then each
// ancestor above it while that is empty, stopping at the first non-empty
// directory and never removing scanRoot itself — spec §5
// "Filesystem": "on accept, Upload removes the source and then walks up,
// removing empty parent directories up to but not crossing the
// configured scan root".
func GCEmptyDirs(path, scanRoot string) error {
	root := filepath.Clean(scanRoot)
	dir := filepath.Dir(filepath.Clean(path))

	for dir != root && dir != "." && dir != string(filepath.Separator) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil
		}
		if len(entries) > 0 {
			return nil
		}
		if err := os.Remove(dir); err != nil {
			return nil
		}
		dir = filepath.Dir(dir)
	}
	return nil
}
