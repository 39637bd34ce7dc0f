package pool

import (
	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/model"
)

// NodePool stores graph nodes in fixed slots; a nil slot is free.
type NodePool struct {
	slots []*model.GraphNode
	live  int
}

// NewNodePool creates a node pool with the given capacity.
func NewNodePool(capacity int) *NodePool {
	return &NodePool{slots: make([]*model.GraphNode, capacity)}
}

// Capacity returns the slot count.
func (p *NodePool) Capacity() int { return len(p.slots) }

// Len returns the number of live nodes.
func (p *NodePool) Len() int { return p.live }

// Insert places a node with the given attributes in the smallest free slot.
func (p *NodePool) Insert(kind uint8, record core.RecordID) (core.NodeID, error) {
	for i, slot := range p.slots {
		if slot != nil {
			continue
		}
		id := core.NodeID(i) //nolint:gosec // capacity bounded below 2^32
		p.slots[i] = &model.GraphNode{ID: id, Kind: kind, Record: record, FirstOut: core.NoEdge}
		p.live++
		return id, nil
	}
	return 0, &core.CapacityExceededError{Resource: core.ResourceNodes}
}

// Delete frees the node's slot. The caller must have emptied its adjacency
// list first; the kernel enforces that invariant.
func (p *NodePool) Delete(id core.NodeID) error {
	if _, err := p.Get(id); err != nil {
		return err
	}
	p.slots[id] = nil
	p.live--
	return nil
}

// Get returns the live node or NotFound.
func (p *NodePool) Get(id core.NodeID) (*model.GraphNode, error) {
	if int(id) >= len(p.slots) || p.slots[id] == nil {
		return nil, &core.NotFoundError{Kind: core.ResourceNodes, ID: uint32(id)}
	}
	return p.slots[id], nil
}

// Slot returns the occupant of slot i, or nil when free.
func (p *NodePool) Slot(i int) *model.GraphNode { return p.slots[i] }

// SetSlot installs a decoded node into slot i. Snapshot decode only.
func (p *NodePool) SetSlot(i int, n *model.GraphNode) {
	if p.slots[i] != nil {
		p.live--
	}
	p.slots[i] = n
	if n != nil {
		p.live++
	}
}

// Each calls fn for every live node in ascending ID order.
func (p *NodePool) Each(fn func(*model.GraphNode) bool) {
	for _, n := range p.slots {
		if n == nil {
			continue
		}
		if !fn(n) {
			return
		}
	}
}

// Clone deep-copies the pool.
func (p *NodePool) Clone() *NodePool {
	out := &NodePool{slots: make([]*model.GraphNode, len(p.slots)), live: p.live}
	for i, n := range p.slots {
		if n != nil {
			cp := *n
			out.slots[i] = &cp
		}
	}
	return out
}

// EdgePool stores directed edges in fixed slots; a nil slot is free.
type EdgePool struct {
	slots []*model.GraphEdge
	live  int
}

// NewEdgePool creates an edge pool with the given capacity.
func NewEdgePool(capacity int) *EdgePool {
	return &EdgePool{slots: make([]*model.GraphEdge, capacity)}
}

// Capacity returns the slot count.
func (p *EdgePool) Capacity() int { return len(p.slots) }

// Len returns the number of live edges.
func (p *EdgePool) Len() int { return p.live }

// Get returns the live edge or NotFound.
func (p *EdgePool) Get(id core.EdgeID) (*model.GraphEdge, error) {
	if int(id) >= len(p.slots) || p.slots[id] == nil {
		return nil, &core.NotFoundError{Kind: core.ResourceEdges, ID: uint32(id)}
	}
	return p.slots[id], nil
}

// Slot returns the occupant of slot i, or nil when free.
func (p *EdgePool) Slot(i int) *model.GraphEdge { return p.slots[i] }

// SetSlot installs a decoded edge into slot i. Snapshot decode only.
func (p *EdgePool) SetSlot(i int, e *model.GraphEdge) {
	if p.slots[i] != nil {
		p.live--
	}
	p.slots[i] = e
	if e != nil {
		p.live++
	}
}

// Each calls fn for every live edge in ascending ID order.
func (p *EdgePool) Each(fn func(*model.GraphEdge) bool) {
	for _, e := range p.slots {
		if e == nil {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// Clone deep-copies the pool.
func (p *EdgePool) Clone() *EdgePool {
	out := &EdgePool{slots: make([]*model.GraphEdge, len(p.slots)), live: p.live}
	for i, e := range p.slots {
		if e != nil {
			cp := *e
			out.slots[i] = &cp
		}
	}
	return out
}

// AddEdge links a new directed edge onto from's out-edge list.
//
// The edge is pushed at the head, so OutEdges visits edges in reverse
// creation order for a given node. That ordering is part of the contract:
// it feeds the state hash through each node's FirstOut and each edge's
// NextOut field.
func AddEdge(nodes *NodePool, edges *EdgePool, kind uint8, from, to core.NodeID) (core.EdgeID, error) {
	fromNode, err := nodes.Get(from)
	if err != nil {
		return 0, err
	}
	if _, err := nodes.Get(to); err != nil {
		return 0, err
	}

	for i, slot := range edges.slots {
		if slot != nil {
			continue
		}
		id := core.EdgeID(i) //nolint:gosec // capacity bounded below 2^32
		edges.slots[i] = &model.GraphEdge{
			ID:      id,
			Kind:    kind,
			From:    from,
			To:      to,
			NextOut: fromNode.FirstOut,
		}
		edges.live++
		fromNode.FirstOut = id
		return id, nil
	}
	return 0, &core.CapacityExceededError{Resource: core.ResourceEdges}
}

// RemoveEdge unlinks the edge from its From node's list and frees its slot.
func RemoveEdge(nodes *NodePool, edges *EdgePool, id core.EdgeID) error {
	edge, err := edges.Get(id)
	if err != nil {
		return err
	}
	fromNode, err := nodes.Get(edge.From)
	if err != nil {
		return err
	}

	if fromNode.FirstOut == id {
		fromNode.FirstOut = edge.NextOut
	} else {
		cur := fromNode.FirstOut
		for cur != core.NoEdge {
			curEdge, err := edges.Get(cur)
			if err != nil {
				return err
			}
			if curEdge.NextOut == id {
				curEdge.NextOut = edge.NextOut
				break
			}
			cur = curEdge.NextOut
		}
	}

	edges.slots[id] = nil
	edges.live--
	return nil
}

// OutEdges walks node's adjacency list in list order (reverse creation
// order) and calls fn for each edge. Iteration stops if fn returns false.
func OutEdges(nodes *NodePool, edges *EdgePool, id core.NodeID, fn func(*model.GraphEdge) bool) error {
	node, err := nodes.Get(id)
	if err != nil {
		return err
	}
	cur := node.FirstOut
	for cur != core.NoEdge {
		edge, err := edges.Get(cur)
		if err != nil {
			return err
		}
		if !fn(edge) {
			return nil
		}
		cur = edge.NextOut
	}
	return nil
}
