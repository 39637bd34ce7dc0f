package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/varshith-Git/valori/kernel"
	"github.com/varshith-Git/valori/model"
	"github.com/varshith-Git/valori/snapshot"
	"github.com/varshith-Git/valori/wal"
)

// snapshotTmpName is the fixed staging name used by checkpoints. Its
// presence on startup means a checkpoint was interrupted; recovery either
// completes or discards it depending on how far the rotation got.
const snapshotTmpName = snapshot.DefaultFileName + ".tmp"

// recoverState rebuilds the kernel from disk and returns it together with
// the log opened for appending.
//
// The log starts fresh per snapshot epoch: a checkpoint rotates the live
// log away before publishing the new snapshot, so the snapshot plus the
// whole live log always describe one consistent history and no frame
// skipping is needed. Recovery is fail-closed on a corrupt snapshot, a
// corrupt log frame or any apply error during replay.
func recoverState(dir string, cfg kernel.Config, codec *snapshot.Codec) (*kernel.Kernel, *wal.Log, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, nil, err
	}
	if err := resolveInterruptedCheckpoint(dir); err != nil {
		return nil, nil, err
	}

	snapPath := filepath.Join(dir, snapshot.DefaultFileName)
	logPath := filepath.Join(dir, wal.DefaultFileName)

	kern := kernel.New(cfg)
	if data, err := snapshot.Load(snapPath); err == nil {
		restored, err := codec.Decode(data)
		if err != nil {
			return nil, nil, fmt.Errorf("snapshot recovery: %w", err)
		}
		kern = restored
	} else if !os.IsNotExist(err) {
		return nil, nil, err
	}

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		log, err := wal.Create(logPath, cfg.Dim)
		if err != nil {
			return nil, nil, err
		}
		return kern, log, nil
	}

	if err := replayLog(logPath, kern); err != nil {
		return nil, nil, err
	}

	log, err := wal.Open(logPath, cfg.Dim)
	if err != nil {
		return nil, nil, err
	}
	return kern, log, nil
}

// replayLog applies every committed frame of the log to kern in order. A
// torn tail ends replay cleanly at the last fully committed command.
func replayLog(path string, kern *kernel.Kernel) error {
	r, err := wal.OpenReader(path)
	if err != nil {
		return fmt.Errorf("log recovery: %w", err)
	}
	defer r.Close()

	if err := r.Replay(func(cmd model.Command) error {
		if _, err := kern.Apply(cmd); err != nil {
			return fmt.Errorf("replay apply (%s): %w", cmd.Type, err)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("log recovery: %w", err)
	}
	return nil
}

// resolveInterruptedCheckpoint handles the crash windows of the checkpoint
// sequence (see Checkpoint): the staged snapshot file exists only while a
// checkpoint is in flight.
//
// The staged snapshot was fully synced before any rotation started, so:
//   - if the log was already rotated away (fresh or missing live log, with
//     a previous generation present), the checkpoint is completed by
//     publishing the staged snapshot;
//   - otherwise the rotation never began and the staged file is discarded;
//     normal recovery proceeds against the old snapshot and full log.
func resolveInterruptedCheckpoint(dir string) error {
	tmpPath := filepath.Join(dir, snapshotTmpName)
	if _, err := os.Stat(tmpPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	logPath := filepath.Join(dir, wal.DefaultFileName)
	prevLogPath := logPath + wal.PrevSuffix

	rotated, err := logRotationHappened(logPath, prevLogPath)
	if err != nil {
		return err
	}
	if !rotated {
		return os.Remove(tmpPath)
	}

	snapPath := filepath.Join(dir, snapshot.DefaultFileName)
	if _, err := os.Stat(snapPath); err == nil {
		if err := os.Rename(snapPath, snapPath+snapshot.PrevSuffix); err != nil {
			return err
		}
	}
	if err := os.Rename(tmpPath, snapPath); err != nil {
		return err
	}
	return syncDir(dir)
}

// logRotationHappened reports whether the checkpoint got as far as rotating
// the live log: the previous generation exists and the live log is missing
// or still empty (header only).
func logRotationHappened(logPath, prevLogPath string) (bool, error) {
	if _, err := os.Stat(prevLogPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	st, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return st.Size() <= wal.HeaderSize, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir) //nolint:gosec // G304: path is configuration
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
