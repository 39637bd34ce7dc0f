// Package kernel implements the deterministic state machine at the heart of
// the engine: record, node and edge pools, the pluggable vector index, the
// per-record metadata map and the monotonic version counter. The kernel is
// pure — it never performs I/O, never logs, never reads the clock — so the
// same command sequence produces a bit-identical state on any target.
package kernel

import (
	"github.com/tidwall/btree"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/index"
	"github.com/varshith-Git/valori/index/bruteforce"
	"github.com/varshith-Git/valori/model"
	"github.com/varshith-Git/valori/pool"
)

// FormatVersion identifies the canonicalization protocol fed to the state
// hash and the snapshot codec. Any change to either is a breaking protocol
// change and must bump this value.
const FormatVersion uint32 = 1

// Config fixes the shape of a kernel instance. All values are build-time
// constants of the instance: they never change after construction and must
// match exactly on snapshot restore.
type Config struct {
	Dim        int
	CapRecords int
	CapNodes   int
	CapEdges   int

	// NewIndex constructs the vector index. Nil selects brute force.
	NewIndex func() index.Index
}

// Kernel owns all pools exclusively; everything outside holds IDs only.
type Kernel struct {
	cfg     Config
	records *pool.RecordPool
	nodes   *pool.NodePool
	edges   *pool.EdgePool
	idx     index.Index
	meta    *btree.Map[core.RecordID, []byte]
	tags    *tagIndex
	version core.Version
}

// New constructs an empty kernel for the given configuration.
func New(cfg Config) *Kernel {
	newIndex := cfg.NewIndex
	if newIndex == nil {
		newIndex = func() index.Index { return bruteforce.New() }
	}
	return &Kernel{
		cfg:     cfg,
		records: pool.NewRecordPool(cfg.CapRecords, cfg.Dim),
		nodes:   pool.NewNodePool(cfg.CapNodes),
		edges:   pool.NewEdgePool(cfg.CapEdges),
		idx:     newIndex(),
		meta:    btree.NewMap[core.RecordID, []byte](0),
		tags:    newTagIndex(),
	}
}

// Config returns the kernel's immutable configuration.
func (k *Kernel) Config() Config { return k.cfg }

// Version returns the number of successfully applied commands.
func (k *Kernel) Version() core.Version { return k.version }

// RecordCount returns the number of live, non-deleted records.
func (k *Kernel) RecordCount() uint32 { return uint32(k.records.ActiveCount()) } //nolint:gosec

// NodeCount returns the number of live nodes.
func (k *Kernel) NodeCount() uint32 { return uint32(k.nodes.Len()) } //nolint:gosec

// EdgeCount returns the number of live edges.
func (k *Kernel) EdgeCount() uint32 { return uint32(k.edges.Len()) } //nolint:gosec

// GetRecord returns a copy of the record, tombstones included.
func (k *Kernel) GetRecord(id core.RecordID) (model.Record, error) {
	r, err := k.records.Get(id)
	if err != nil {
		return model.Record{}, err
	}
	return r.Clone(), nil
}

// GetNode returns a copy of the live node.
func (k *Kernel) GetNode(id core.NodeID) (model.GraphNode, error) {
	n, err := k.nodes.Get(id)
	if err != nil {
		return model.GraphNode{}, err
	}
	return *n, nil
}

// GetEdge returns a copy of the live edge.
func (k *Kernel) GetEdge(id core.EdgeID) (model.GraphEdge, error) {
	e, err := k.edges.Get(id)
	if err != nil {
		return model.GraphEdge{}, err
	}
	return *e, nil
}

// OutgoingEdges returns the node's out-edges in list order, i.e. reverse
// creation order. That ordering is contractual.
func (k *Kernel) OutgoingEdges(id core.NodeID) ([]model.GraphEdge, error) {
	var out []model.GraphEdge
	err := pool.OutEdges(k.nodes, k.edges, id, func(e *model.GraphEdge) bool {
		out = append(out, *e)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetMetadata returns the metadata bytes stored for id, if any.
func (k *Kernel) GetMetadata(id core.RecordID) ([]byte, bool) {
	v, ok := k.meta.Get(id)
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// Search returns the k nearest active records to query by squared L2,
// ordered (score asc, id asc). The read is pure.
func (k *Kernel) Search(query fxp.Vector, kNearest int, filter index.Filter) ([]model.SearchResult, error) {
	if len(query) != k.cfg.Dim {
		return nil, &core.DimMismatchError{Expected: k.cfg.Dim, Actual: len(query)}
	}
	return k.idx.Search(k.records, query, kNearest, filter), nil
}

// TagFilter returns a filter matching records inserted with exactly tag.
func (k *Kernel) TagFilter(tag uint64) index.Filter {
	return k.tags.filter(tag)
}

// Apply executes one command. On success the version advances by exactly
// one and the assignment reports any allocated IDs; on error the state is
// untouched — every validation happens before the first mutation.
func (k *Kernel) Apply(cmd model.Command) (model.Assignment, error) {
	asn := model.NoAssignment()

	switch cmd.Type {
	case model.CmdInsertRecord:
		if len(cmd.Metadata) > model.MaxMetadataLen {
			return asn, &core.InvariantViolationError{Detail: "metadata exceeds 64 KiB"}
		}
		id, err := k.records.Insert(cmd.Vector, cmd.Tag)
		if err != nil {
			return asn, err
		}
		if len(cmd.Metadata) > 0 {
			k.meta.Set(id, append([]byte(nil), cmd.Metadata...))
		}
		k.tags.add(cmd.Tag, id)
		k.idx.OnInsert(id, cmd.Vector)
		asn.Record = id

	case model.CmdSoftDeleteRecord:
		r, err := k.records.Get(cmd.Record)
		if err != nil {
			return asn, err
		}
		if r.Deleted {
			return asn, &core.NotFoundError{Kind: core.ResourceRecords, ID: uint32(cmd.Record)}
		}
		tag := r.Tag
		if err := k.records.SoftDelete(cmd.Record); err != nil {
			return asn, err
		}
		k.tags.remove(tag, cmd.Record)
		k.idx.OnDelete(cmd.Record)

	case model.CmdCreateNode:
		record := core.NoRecord
		if cmd.HasRecord {
			if _, err := k.records.Get(cmd.Record); err != nil {
				return asn, err
			}
			record = cmd.Record
		}
		id, err := k.nodes.Insert(cmd.Kind, record)
		if err != nil {
			return asn, err
		}
		asn.Node = id

	case model.CmdDeleteNode:
		if _, err := k.nodes.Get(cmd.Node); err != nil {
			return asn, err
		}
		if incident := k.hasIncidentEdge(cmd.Node); incident {
			return asn, &core.InvariantViolationError{Detail: "node has incident edges"}
		}
		if err := k.nodes.Delete(cmd.Node); err != nil {
			return asn, err
		}

	case model.CmdCreateEdge:
		id, err := pool.AddEdge(k.nodes, k.edges, cmd.Kind, cmd.From, cmd.To)
		if err != nil {
			return asn, err
		}
		asn.Edge = id

	case model.CmdDeleteEdge:
		if err := pool.RemoveEdge(k.nodes, k.edges, cmd.Edge); err != nil {
			return asn, err
		}

	case model.CmdSetMetadata:
		if len(cmd.Metadata) > model.MaxMetadataLen {
			return asn, &core.InvariantViolationError{Detail: "metadata exceeds 64 KiB"}
		}
		if _, err := k.records.Get(cmd.Record); err != nil {
			return asn, err
		}
		if len(cmd.Metadata) == 0 {
			k.meta.Delete(cmd.Record)
		} else {
			k.meta.Set(cmd.Record, append([]byte(nil), cmd.Metadata...))
		}

	default:
		return asn, &core.InvariantViolationError{Detail: "unknown command type"}
	}

	k.version = k.version.Next()
	return asn, nil
}

// hasIncidentEdge reports whether any live edge touches node id, incoming
// or outgoing. O(E) scan; edge capacities are static and modest.
func (k *Kernel) hasIncidentEdge(id core.NodeID) bool {
	found := false
	k.edges.Each(func(e *model.GraphEdge) bool {
		if e.From == id || e.To == id {
			found = true
			return false
		}
		return true
	})
	return found
}

// Clone deep-copies the kernel for shadow validation. The metadata map is
// a copy-on-write B-tree copy; pools and index copy eagerly.
func (k *Kernel) Clone() *Kernel {
	return &Kernel{
		cfg:     k.cfg,
		records: k.records.Clone(),
		nodes:   k.nodes.Clone(),
		edges:   k.edges.Clone(),
		idx:     k.idx.Clone(),
		meta:    k.meta.Copy(),
		tags:    k.tags.clone(),
		version: k.version,
	}
}

// CheckInvariants walks the full state and verifies the structural
// invariants. It is optional to run — apply preserves them — but useful in
// tests and recovery verification.
func (k *Kernel) CheckInvariants() error {
	var firstErr error
	fail := func(err error) bool {
		if firstErr == nil {
			firstErr = err
		}
		return false
	}

	k.nodes.Each(func(n *model.GraphNode) bool {
		if n.Record != core.NoRecord {
			if _, err := k.records.Get(n.Record); err != nil {
				return fail(&core.InvariantViolationError{Detail: "node references missing record"})
			}
		}
		// The adjacency chain must terminate, stay loop-free and contain
		// only edges leaving this node. Chain length is bounded by the
		// edge capacity, which doubles as the loop detector.
		steps := 0
		cur := n.FirstOut
		for cur != core.NoEdge {
			edge, err := k.edges.Get(cur)
			if err != nil {
				return fail(&core.InvariantViolationError{Detail: "adjacency chain references dead edge"})
			}
			if edge.From != n.ID {
				return fail(&core.InvariantViolationError{Detail: "adjacency chain crosses nodes"})
			}
			steps++
			if steps > k.edges.Capacity() {
				return fail(&core.InvariantViolationError{Detail: "adjacency chain contains a cycle"})
			}
			cur = edge.NextOut
		}
		return true
	})
	if firstErr != nil {
		return firstErr
	}

	k.edges.Each(func(e *model.GraphEdge) bool {
		if _, err := k.nodes.Get(e.From); err != nil {
			return fail(&core.InvariantViolationError{Detail: "edge from dead node"})
		}
		if _, err := k.nodes.Get(e.To); err != nil {
			return fail(&core.InvariantViolationError{Detail: "edge to dead node"})
		}
		return true
	})
	return firstErr
}

// Records exposes the record pool to the snapshot codec and index rebuild.
func (k *Kernel) Records() *pool.RecordPool { return k.records }

// Nodes exposes the node pool to the snapshot codec.
func (k *Kernel) Nodes() *pool.NodePool { return k.nodes }

// Edges exposes the edge pool to the snapshot codec.
func (k *Kernel) Edges() *pool.EdgePool { return k.edges }

// Index exposes the vector index to the snapshot codec.
func (k *Kernel) Index() index.Index { return k.idx }

// EachMetadata visits metadata entries in ascending record-ID order.
func (k *Kernel) EachMetadata(fn func(id core.RecordID, data []byte) bool) {
	k.meta.Scan(fn)
}

// MetadataCount returns the number of records carrying metadata.
func (k *Kernel) MetadataCount() int { return k.meta.Len() }

// RestoreMetadata, RestoreVersion and RebuildDerived are used by the
// snapshot decoder, which reconstructs a kernel field by field.

// RestoreMetadata installs decoded metadata without copying.
func (k *Kernel) RestoreMetadata(id core.RecordID, data []byte) {
	k.meta.Set(id, data)
}

// RestoreVersion installs the decoded version counter.
func (k *Kernel) RestoreVersion(v core.Version) { k.version = v }

// RebuildDerived reconstructs the tag index from the record pool. The tag
// index is derived state: it is never hashed or persisted.
func (k *Kernel) RebuildDerived() {
	k.tags = newTagIndex()
	k.records.Each(func(r *model.Record) bool {
		if !r.Deleted {
			k.tags.add(r.Tag, r.ID)
		}
		return true
	})
}
