package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/varshith-Git/valori/snapshot"
	"github.com/varshith-Git/valori/wal"
)

// Checkpoint snapshots the current state and rotates the log, bounding
// recovery time. The sequence is crash-safe at every step; an interruption
// is resolved by resolveInterruptedCheckpoint on the next open:
//
//  1. encode state and stage it at snapshot.val.tmp (fsynced)
//  2. rotate events.log to events.log.prev
//  3. create a fresh events.log for the new epoch
//  4. publish the staged snapshot, keeping the old one as .prev
//  5. archive the superseded generations when configured
//
// Writers and readers are blocked for the duration; apply is CPU-bound and
// encoding is linear in the configured capacities, so the pause is bounded.
func (e *Engine) Checkpoint() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}

	version := e.kern.Version()

	buf, err := e.codec.Encode(e.kern, nil)
	if err != nil {
		return err
	}

	tmpPath := filepath.Join(e.dir, snapshotTmpName)
	if err := writeFileSync(tmpPath, buf); err != nil {
		return err
	}
	if err := syncDir(e.dir); err != nil {
		return err
	}

	// Rotate the log. From here on an interruption is completed forward by
	// recovery, because the staged snapshot is durable.
	if err := e.log.Close(); err != nil {
		return err
	}
	logPath := e.logPath()
	if err := os.Rename(logPath, logPath+wal.PrevSuffix); err != nil {
		return err
	}
	if err := syncDir(e.dir); err != nil {
		return err
	}

	fresh, err := wal.Create(logPath, e.kern.Config().Dim)
	if err != nil {
		return err
	}
	e.log = fresh

	// Publish the staged snapshot.
	snapPath := e.snapshotPath()
	if _, err := os.Stat(snapPath); err == nil {
		if err := os.Rename(snapPath, snapPath+snapshot.PrevSuffix); err != nil {
			return err
		}
	}
	if err := os.Rename(tmpPath, snapPath); err != nil {
		return err
	}
	if err := syncDir(e.dir); err != nil {
		return err
	}

	if e.opts.Archive != nil {
		if err := archiveGenerations(e.opts.Archive, uint64(version),
			snapPath+snapshot.PrevSuffix, logPath+wal.PrevSuffix); err != nil {
			return fmt.Errorf("archive: %w", err)
		}
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // G304: path is configuration
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
