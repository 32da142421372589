package workflowstate

import (
	"os"
	"path/filepath"
)

// writeFileAtomic writes data to a file atomically by writing to a temporary
// file first and then renaming it into place, preventing corruption from a
// crash mid-write. Grounded on the teacher's internal/state/atomic.go.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ensureDir creates dir (and parents) if it does not already exist.
func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}

func statePath(artifactsDir string) string {
	return filepath.Join(artifactsDir, "state.json")
}
