package api

import (
	"fmt"
	"path/filepath"

	"github.com/tassa-yoniso-manasi-karoto/mediagate/internal/store"
)

// RemoteDest returns the rclone upload-remote naming function spec §6
// specifies: "remote prefix = folder_name if folder_name ≠ root_basename
// and non-empty else cfg.rclone_remote; remote target =
// <prefix>:<filename>". folder_name is the path component immediately
// under scanRoot.
func RemoteDest(scanRoot, defaultRemote string) func(task store.Task) string {
	root := filepath.Clean(scanRoot)
	rootBase := filepath.Base(root)

	return func(task store.Task) string {
		folder := topLevelFolder(root, task.Filepath)
		prefix := defaultRemote
		if folder != "" && folder != rootBase {
			prefix = folder
		}
		return fmt.Sprintf("%s:%s", prefix, task.Filename)
	}
}

// topLevelFolder returns the name of the directory immediately under
// root that contains path, or "" if path sits directly in root.
func topLevelFolder(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil {
		return ""
	}
	dir := filepath.Dir(rel)
	if dir == "." || dir == ".." {
		return ""
	}
	return splitFirst(dir)
}

func splitFirst(rel string) string {
	for i := 0; i < len(rel); i++ {
		if rel[i] == filepath.Separator {
			return rel[:i]
		}
	}
	return rel
}
