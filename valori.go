// Package valori provides a deterministic embedded memory engine for Go: a
// fixed-dimension vector store fused with a small knowledge graph, designed
// so the same command sequence produces a bit-identical state hash on any
// CPU architecture.
//
// The core properties:
//
//   - Q16.16 fixed-point vector math; no floating point touches state
//   - Static slotted pools for records, graph nodes and edges; IDs equal
//     slot indices and allocation order is a pure function of history
//   - Exact brute-force k-NN with strict (score asc, id asc) ordering
//   - BLAKE3-256 canonical state hashing, empty slots included
//   - Append-only event log with atomic batch commit
//     (shadow-validate → persist → apply) and fail-closed crash recovery
//   - Canonical snapshots with atomic rename and one rollback generation
//
// # Quick start
//
//	db, err := valori.Open("./data", valori.Config{
//	    Dim:        4,
//	    CapRecords: 1024,
//	    CapNodes:   1024,
//	    CapEdges:   4096,
//	})
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	ctx := context.Background()
//	id, err := db.InsertFloat32(ctx, []float32{1, 0, 0, 0}, 7, nil)
//	results, err := db.SearchFloat32(ctx, []float32{1, 0, 0, 0}, 10)
//
// Commands can also be batched atomically:
//
//	asns, err := db.ApplyBatch(ctx, []model.Command{
//	    model.InsertRecord(vec, 0, nil),
//	    model.CreateNode(1, 0),
//	})
//
// The kernel itself never logs, retries or reads the clock; logging and
// metrics here wrap around it at the API boundary.
package valori

import (
	"context"
	"time"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/engine"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/index"
	"github.com/varshith-Git/valori/kernel"
	"github.com/varshith-Git/valori/model"
)

// Config fixes the shape of the engine. It is an alias of the kernel
// configuration; see kernel.Config.
type Config = kernel.Config

// Valori is the public handle: a durable engine plus the ambient logging
// and metrics collaborators the kernel itself is not allowed to have.
type Valori struct {
	engine  *engine.Engine
	logger  *Logger
	metrics MetricsCollector
}

// Open recovers (or creates) the engine state under dir.
func Open(dir string, cfg Config, optFns ...Option) (*Valori, error) {
	opts := applyOptions(optFns)

	start := time.Now()
	eng, err := engine.Open(dir, cfg, opts.engine)
	opts.logger.LogRecovery(dir, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	return &Valori{
		engine:  eng,
		logger:  opts.logger,
		metrics: opts.metrics,
	}, nil
}

// Apply commits one command and returns any assigned IDs.
func (v *Valori) Apply(ctx context.Context, cmd model.Command) (model.Assignment, error) {
	start := time.Now()
	asn, err := v.engine.Apply(ctx, cmd)
	v.metrics.RecordApply(time.Since(start), err)
	v.logger.LogApply(cmd.Type.String(), err)
	return asn, err
}

// ApplyBatch commits cmds atomically: either every command is applied and
// durable, or none is.
func (v *Valori) ApplyBatch(ctx context.Context, cmds []model.Command) ([]model.Assignment, error) {
	start := time.Now()
	asns, err := v.engine.ApplyBatch(ctx, cmds)
	v.metrics.RecordBatch(len(cmds), time.Since(start), err)
	v.logger.LogBatch(len(cmds), err)
	return asns, err
}

// Insert commits a single InsertRecord command.
func (v *Valori) Insert(ctx context.Context, vec fxp.Vector, tag uint64, metadata []byte) (core.RecordID, error) {
	asn, err := v.Apply(ctx, model.InsertRecord(vec, tag, metadata))
	if err != nil {
		return 0, err
	}
	return asn.Record, nil
}

// InsertFloat32 converts vec at the API boundary and inserts it. The
// conversion result, not the floats, is what enters the hashed state.
func (v *Valori) InsertFloat32(ctx context.Context, vec []float32, tag uint64, metadata []byte) (core.RecordID, error) {
	converted, err := VectorFromFloat32(vec)
	if err != nil {
		return 0, err
	}
	return v.Insert(ctx, converted, tag, metadata)
}

// SoftDelete commits a SoftDeleteRecord command.
func (v *Valori) SoftDelete(ctx context.Context, id core.RecordID) error {
	_, err := v.Apply(ctx, model.SoftDeleteRecord(id))
	return err
}

// SetMetadata replaces the metadata bytes of a record (≤ 64 KiB).
func (v *Valori) SetMetadata(ctx context.Context, id core.RecordID, data []byte) error {
	_, err := v.Apply(ctx, model.SetMetadata(id, data))
	return err
}

// GetMetadata returns the metadata stored for id, if any.
func (v *Valori) GetMetadata(id core.RecordID) ([]byte, bool) {
	return v.engine.GetMetadata(id)
}

// Search returns the k nearest active records, ordered (score asc, id asc).
func (v *Valori) Search(ctx context.Context, query fxp.Vector, k int, filter index.Filter) ([]model.SearchResult, error) {
	start := time.Now()
	results, err := v.engine.Search(query, k, filter)
	v.metrics.RecordSearch(k, time.Since(start), err)
	v.logger.LogSearch(k, len(results), err)
	return results, err
}

// SearchByTag searches among records whose tag equals tag.
func (v *Valori) SearchByTag(ctx context.Context, query fxp.Vector, k int, tag uint64) ([]model.SearchResult, error) {
	start := time.Now()
	results, err := v.engine.SearchByTag(query, k, tag)
	v.metrics.RecordSearch(k, time.Since(start), err)
	v.logger.LogSearch(k, len(results), err)
	return results, err
}

// SearchFloat32 converts the query at the API boundary and searches.
func (v *Valori) SearchFloat32(ctx context.Context, query []float32, k int) ([]model.SearchResult, error) {
	converted, err := VectorFromFloat32(query)
	if err != nil {
		return nil, err
	}
	return v.Search(ctx, converted, k, nil)
}

// GetRecord returns a copy of the record, tombstones included.
func (v *Valori) GetRecord(id core.RecordID) (model.Record, error) {
	return v.engine.GetRecord(id)
}

// GetNode returns a copy of the live node.
func (v *Valori) GetNode(id core.NodeID) (model.GraphNode, error) {
	return v.engine.GetNode(id)
}

// OutgoingEdges returns the node's out-edges in reverse creation order.
func (v *Valori) OutgoingEdges(id core.NodeID) ([]model.GraphEdge, error) {
	return v.engine.OutgoingEdges(id)
}

// StateHash returns the canonical BLAKE3-256 fingerprint of the state.
func (v *Valori) StateHash() [kernel.HashSize]byte { return v.engine.StateHash() }

// LogHash returns BLAKE3-256 over the entire live event log file.
func (v *Valori) LogHash() ([32]byte, error) { return v.engine.LogHash() }

// Version returns the number of committed commands.
func (v *Valori) Version() core.Version { return v.engine.Version() }

// RecordCount returns the number of live, non-deleted records.
func (v *Valori) RecordCount() uint32 { return v.engine.RecordCount() }

// NodeCount returns the number of live nodes.
func (v *Valori) NodeCount() uint32 { return v.engine.NodeCount() }

// EdgeCount returns the number of live edges.
func (v *Valori) EdgeCount() uint32 { return v.engine.EdgeCount() }

// CheckInvariants verifies the kernel's structural invariants.
func (v *Valori) CheckInvariants() error { return v.engine.CheckInvariants() }

// SnapshotEncode appends the canonical snapshot of the current state.
func (v *Valori) SnapshotEncode(dst []byte) ([]byte, error) {
	return v.engine.SnapshotEncode(dst)
}

// Checkpoint snapshots the state and rotates the event log.
func (v *Valori) Checkpoint() error {
	start := time.Now()
	err := v.engine.Checkpoint()
	v.metrics.RecordCheckpoint(time.Since(start), err)
	v.logger.LogCheckpoint(time.Since(start), err)
	return err
}

// Close releases the engine. Committed state stays on disk.
func (v *Valori) Close() error { return v.engine.Close() }

// VectorFromFloat32 converts a float32 slice to a fixed-point vector.
// Boundary conversion only; values outside the Q16.16 safe range error.
func VectorFromFloat32(vals []float32) (fxp.Vector, error) {
	out := make(fxp.Vector, len(vals))
	for i, f := range vals {
		s, err := fxp.FromFloat32(f)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// VectorToFloat32 converts a fixed-point vector to float32 values.
func VectorToFloat32(vec fxp.Vector) []float32 {
	out := make([]float32, len(vec))
	for i, s := range vec {
		out[i] = fxp.ToFloat32(s)
	}
	return out
}
