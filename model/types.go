// Package model defines the entities stored by the kernel and the command
// schema that mutates them. Commands double as the event-log wire schema, so
// their binary encoding here is canonical: little-endian, no padding, and
// stable across releases of the same format version.
package model

import (
	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
)

// Record is a stored vector with its identity and lifecycle flag.
// Soft-deleted records keep their slot and ID; they are excluded from
// search and hashed as tombstones.
type Record struct {
	ID      core.RecordID
	Vector  fxp.Vector
	Tag     uint64
	Deleted bool
}

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	r.Vector = r.Vector.Clone()
	return r
}

// GraphNode is a vertex of the knowledge graph. Kind is an opaque small
// integer whose semantics live above the kernel. Record optionally anchors
// the node to a record (core.NoRecord when absent). FirstOut heads the
// node's singly linked list of outgoing edges (core.NoEdge when empty).
type GraphNode struct {
	ID       core.NodeID
	Kind     uint8
	Record   core.RecordID
	FirstOut core.EdgeID
}

// GraphEdge is a directed edge. NextOut chains the out-edge list of the
// From node (core.NoEdge terminates the chain).
type GraphEdge struct {
	ID      core.EdgeID
	Kind    uint8
	From    core.NodeID
	To      core.NodeID
	NextOut core.EdgeID
}

// SearchResult is one k-NN hit. Results order by (Score asc, ID asc).
type SearchResult struct {
	Score fxp.Scalar
	ID    core.RecordID
}

// Assignment reports the IDs a command allocated. Fields not assigned by
// the command hold their No* sentinel.
type Assignment struct {
	Record core.RecordID
	Node   core.NodeID
	Edge   core.EdgeID
}

// NoAssignment is the zero result for commands that allocate nothing.
func NoAssignment() Assignment {
	return Assignment{Record: core.NoRecord, Node: core.NoNode, Edge: core.NoEdge}
}
