package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
)

// Save writes data to path atomically: temp file in the same directory,
// fsync, rename, directory sync. An existing snapshot at path is first
// rotated to path+".prev" so one generation survives for rollback.
func Save(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0o644)

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Rotate the live generation before installing the new one.
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+PrevSuffix); err != nil {
			return fmt.Errorf("failed to rotate previous snapshot: %w", err)
		}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""

	// Make the renames durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Load reads the snapshot bytes at path.
func Load(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// DropPrev removes the rolled-back generation, if any. Removing a missing
// generation is not an error.
func DropPrev(path string) error {
	err := os.Remove(path + PrevSuffix)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
