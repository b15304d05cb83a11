package infra

import (
	"fmt"
	"os"
	"path/filepath"
)

// atomicWrite writes data to a temp file next to path, then renames it into place.
// The result keeps the owner of the file it replaces, or takes the directory's
// owner when path is new.
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	// Unique per process to avoid races between writers
	tmpPath := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.%d.tmp", filepath.Base(path), os.Getpid()))

	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	ownerRef := path
	if _, err := os.Stat(path); err != nil {
		ownerRef = filepath.Dir(path)
	}
	if err := matchOwner(tmpPath, ownerRef); err != nil {
		os.Remove(tmpPath)
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}
