// Package bruteforce implements the exact k-NN index: a linear scan of the
// record pool with a bounded top-k heap and strict (score asc, id asc)
// ordering. O(N·D) per query, byte-identical results on every target.
package bruteforce

import (
	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/index"
	"github.com/varshith-Git/valori/model"
	"github.com/varshith-Git/valori/pool"
)

// Scheme is the snapshot scheme tag of this index.
const Scheme = "bruteforce"

// Compile-time check that BruteForce satisfies the index contract.
var _ index.Index = (*BruteForce)(nil)

// BruteForce scans the record pool directly, so the only state it carries
// is the active-record count kept by OnInsert/OnDelete; Search does not
// read it.
type BruteForce struct {
	active int
}

// New creates an empty brute-force index.
func New() *BruteForce { return &BruteForce{} }

// Scheme returns the snapshot scheme tag.
func (*BruteForce) Scheme() string { return Scheme }

// OnInsert records one more active vector.
func (b *BruteForce) OnInsert(core.RecordID, fxp.Vector) { b.active++ }

// OnDelete records one less active vector.
func (b *BruteForce) OnDelete(core.RecordID) { b.active-- }

// Search scans active records in ascending ID order and keeps the best k
// by squared L2 distance. The scan order plus the heap's exact tie-break
// make the output independent of anything but the history.
func (b *BruteForce) Search(records *pool.RecordPool, query fxp.Vector, k int, filter index.Filter) []model.SearchResult {
	if k <= 0 {
		return nil
	}
	heap := newTopK(k)
	records.Each(func(r *model.Record) bool {
		if r.Deleted {
			return true
		}
		if filter != nil && !filter(r.ID) {
			return true
		}
		heap.offer(candidate{score: fxp.SquaredL2(query, r.Vector), id: r.ID})
		return true
	})

	ranked := heap.drain()
	results := make([]model.SearchResult, len(ranked))
	for i, c := range ranked {
		results[i] = model.SearchResult{Score: c.score, ID: c.id}
	}
	return results
}

// Snapshot emits an empty section: the scan has no structure worth
// persisting, and an empty section makes the restorer rebuild the count
// from live records.
func (*BruteForce) Snapshot(dst []byte) []byte { return dst }

// Restore handles the empty section by recounting from the pool.
func (b *BruteForce) Restore(data []byte, records *pool.RecordPool) error {
	b.active = 0
	if len(data) == 0 {
		index.Rebuild(b, records)
		return nil
	}
	return &core.CorruptError{Location: "index section"}
}

// Clone returns an independent copy.
func (b *BruteForce) Clone() index.Index {
	cp := *b
	return &cp
}
