package dataset

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// AtomicWrite writes content to a temp file in the target directory and
// renames it into place.
func AtomicWrite(path string, content []byte, mode fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		os.Remove(tmpName)
		return err
	}

	err = os.Rename(tmpName, path)
	if err != nil && runtime.GOOS == "windows" {
		// Windows refuses to rename over an open or existing file; retry briefly.
		for i := 0; i < 5 && err != nil; i++ {
			time.Sleep(50 * time.Millisecond)
			_ = os.Remove(path)
			err = os.Rename(tmpName, path)
		}
	}
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
