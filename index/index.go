// Package index defines the narrow capability set a vector index must
// implement to plug into the kernel. An index is a pure accelerator: it
// holds record IDs only, never entity references, and its search output is
// required to be a deterministic function of the command history.
package index

import (
	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/model"
	"github.com/varshith-Git/valori/pool"
)

// Filter is an optional per-record search predicate.
type Filter func(id core.RecordID) bool

// Index is the contract every pluggable index honors.
//
// Search must return results ordered by (score asc, id asc) of length
// min(k, active records passing the filter), identically for identical
// histories on any target. Implementations backed by probabilistic layer
// assignment must derive it from record content, never from an RNG.
type Index interface {
	// Scheme identifies the snapshot encoding of this index. A restorer
	// that does not recognize the scheme rebuilds via Rebuild.
	Scheme() string

	// OnInsert and OnDelete are called by the kernel after the record pool
	// has been mutated.
	OnInsert(id core.RecordID, vec fxp.Vector)
	OnDelete(id core.RecordID)

	// Search scans for the k nearest records to query by squared L2.
	// It reads only; it never mutates the index or the pool.
	Search(records *pool.RecordPool, query fxp.Vector, k int, filter Filter) []model.SearchResult

	// Snapshot appends the index's deterministic snapshot section to dst.
	// An empty section is valid and forces a rebuild on restore.
	Snapshot(dst []byte) []byte

	// Restore loads a snapshot section previously produced by Snapshot.
	Restore(data []byte, records *pool.RecordPool) error

	// Clone returns an independent copy for shadow validation.
	Clone() Index
}

// Rebuild repopulates idx from the live records in ascending ID order by
// replaying OnInsert. Used when a snapshot's index section is empty or of
// an unrecognized scheme.
func Rebuild(idx Index, records *pool.RecordPool) {
	records.Each(func(r *model.Record) bool {
		if !r.Deleted {
			idx.OnInsert(r.ID, r.Vector)
		}
		return true
	})
}
