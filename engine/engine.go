// Package engine wraps the pure kernel in its durability envelope: a
// single-writer commit pipeline (shadow-validate → persist → apply), crash
// recovery from snapshot plus log replay, and checkpointing with log
// rotation. All blocking I/O lives here; the kernel itself never suspends.
package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/index"
	"github.com/varshith-Git/valori/kernel"
	"github.com/varshith-Git/valori/model"
	"github.com/varshith-Git/valori/snapshot"
	"github.com/varshith-Git/valori/wal"
)

// ErrClosed is returned after Close or after a commit left the engine in an
// indeterminate state.
var ErrClosed = errors.New("engine is closed")

// Options configures the durability envelope.
type Options struct {
	// Archive enables at-rest archival of superseded generations after a
	// later checkpoint succeeds. Nil disables archival.
	Archive *ArchiveOptions

	// IngestLimit bounds accepted commands per second at the pipeline
	// boundary. Zero disables limiting. The limit never affects what is
	// committed, only when.
	IngestLimit rate.Limit
	IngestBurst int
}

// Engine is the durable store: one logical writer, shared readers.
type Engine struct {
	mu      sync.RWMutex
	kern    *kernel.Kernel
	log     *wal.Log
	codec   *snapshot.Codec
	dir     string
	opts    Options
	limiter *rate.Limiter
	closed  bool
}

// Open recovers the engine state under dir: it resolves any interrupted
// checkpoint, decodes the latest snapshot, replays the committed log tail
// and opens the log for appending. Recovery is fail-closed: a corrupt
// frame, a hash mismatch or an apply error refuses to open.
func Open(dir string, cfg kernel.Config, opts Options) (*Engine, error) {
	e := &Engine{
		codec: snapshot.NewCodec(cfg),
		dir:   dir,
		opts:  opts,
	}
	if opts.IngestLimit > 0 {
		burst := opts.IngestBurst
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(opts.IngestLimit, burst)
	}

	kern, log, err := recoverState(dir, cfg, e.codec)
	if err != nil {
		return nil, err
	}
	e.kern = kern
	e.log = log
	return e, nil
}

func (e *Engine) snapshotPath() string { return filepath.Join(e.dir, snapshot.DefaultFileName) }
func (e *Engine) logPath() string      { return filepath.Join(e.dir, wal.DefaultFileName) }

// Apply commits a single command. Equivalent to ApplyBatch with one
// element.
func (e *Engine) Apply(ctx context.Context, cmd model.Command) (model.Assignment, error) {
	asns, err := e.ApplyBatch(ctx, []model.Command{cmd})
	if err != nil {
		return model.NoAssignment(), err
	}
	return asns[0], nil
}

// ApplyBatch commits a batch atomically.
//
// The batch is applied to a clone of the kernel first; if any command
// fails, the clone is discarded and the live kernel, version and log are
// untouched. Once every command is validated the events are appended to
// the log as one frame group with a durable sync, and the validated clone
// is swapped in as the live kernel — apply-by-move, so the publish step
// cannot fail halfway.
func (e *Engine) ApplyBatch(ctx context.Context, cmds []model.Command) ([]model.Assignment, error) {
	if len(cmds) == 0 {
		return nil, nil
	}
	if e.limiter != nil {
		// WaitN rejects n > burst, so large batches wait in burst-sized
		// chunks.
		for n := len(cmds); n > 0; {
			chunk := n
			if burst := e.limiter.Burst(); chunk > burst {
				chunk = burst
			}
			if err := e.limiter.WaitN(ctx, chunk); err != nil {
				return nil, err
			}
			n -= chunk
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	// Shadow validate.
	shadow := e.kern.Clone()
	asns := make([]model.Assignment, len(cmds))
	for i, cmd := range cmds {
		asn, err := shadow.Apply(cmd)
		if err != nil {
			return nil, fmt.Errorf("batch command %d (%s): %w", i, cmd.Type, err)
		}
		asns[i] = asn
	}

	// Persist. A torn write here is dropped on the next open; nothing was
	// acknowledged and the live kernel is untouched.
	if err := e.log.AppendBatch(cmds); err != nil {
		// The log tail is unknown after a failed append: refuse further
		// commits so nothing is ever written after a partial frame group.
		e.closed = true
		_ = e.log.Close()
		return nil, err
	}

	// Apply by move.
	e.kern = shadow
	return asns, nil
}

// Search returns the k nearest active records under a consistent read lock.
func (e *Engine) Search(query fxp.Vector, k int, filter index.Filter) ([]model.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.kern.Search(query, k, filter)
}

// SearchByTag searches among records whose tag equals tag.
func (e *Engine) SearchByTag(query fxp.Vector, k int, tag uint64) ([]model.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.kern.Search(query, k, e.kern.TagFilter(tag))
}

// GetRecord returns a copy of the record, tombstones included.
func (e *Engine) GetRecord(id core.RecordID) (model.Record, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.GetRecord(id)
}

// GetNode returns a copy of the live node.
func (e *Engine) GetNode(id core.NodeID) (model.GraphNode, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.GetNode(id)
}

// OutgoingEdges returns the node's out-edges in reverse creation order.
func (e *Engine) OutgoingEdges(id core.NodeID) ([]model.GraphEdge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.OutgoingEdges(id)
}

// GetMetadata returns the metadata stored for id, if any.
func (e *Engine) GetMetadata(id core.RecordID) ([]byte, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.GetMetadata(id)
}

// StateHash returns the canonical BLAKE3-256 fingerprint of the state.
func (e *Engine) StateHash() [kernel.HashSize]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.StateHash()
}

// Version returns the number of committed commands.
func (e *Engine) Version() core.Version {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.Version()
}

// RecordCount returns the number of live, non-deleted records.
func (e *Engine) RecordCount() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.RecordCount()
}

// NodeCount returns the number of live nodes.
func (e *Engine) NodeCount() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.NodeCount()
}

// EdgeCount returns the number of live edges.
func (e *Engine) EdgeCount() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.EdgeCount()
}

// CheckInvariants verifies the kernel's structural invariants.
func (e *Engine) CheckInvariants() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kern.CheckInvariants()
}

// SnapshotEncode appends the canonical snapshot of the current state to
// dst. The encoding holds the read lock for its duration.
func (e *Engine) SnapshotEncode(dst []byte) ([]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.codec.Encode(e.kern, dst)
}

// LogHash computes BLAKE3-256 over the entire live log file.
func (e *Engine) LogHash() ([32]byte, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return [32]byte{}, ErrClosed
	}
	return wal.HashFile(e.logPath())
}

// Close releases the log handle. Committed state stays on disk.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.log.Close()
}
