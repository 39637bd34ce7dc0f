// Package pool implements the fixed-capacity slotted pools that back the
// kernel. A pool never allocates outside an explicit mutation, IDs equal
// slot indices, and free slots are always claimed in ascending index order
// so identical command histories produce identical ID assignment.
package pool

import (
	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/model"
)

// RecordPool stores records in a fixed number of slots. A nil slot is
// empty; a slot holding a soft-deleted record is still occupied and its ID
// is not reusable.
type RecordPool struct {
	dim    int
	slots  []*model.Record
	live   int // occupied slots, tombstones included
	active int // occupied minus soft-deleted
}

// NewRecordPool creates a pool with the given capacity and vector dimension.
func NewRecordPool(capacity, dim int) *RecordPool {
	return &RecordPool{
		dim:   dim,
		slots: make([]*model.Record, capacity),
	}
}

// Capacity returns the slot count.
func (p *RecordPool) Capacity() int { return len(p.slots) }

// Dim returns the vector dimension shared by all records.
func (p *RecordPool) Dim() int { return p.dim }

// Len returns the number of occupied slots, tombstones included.
func (p *RecordPool) Len() int { return p.live }

// ActiveCount returns the number of live, non-deleted records.
func (p *RecordPool) ActiveCount() int { return p.active }

// Insert stores vec in the smallest empty slot and returns the assigned ID.
func (p *RecordPool) Insert(vec fxp.Vector, tag uint64) (core.RecordID, error) {
	if len(vec) != p.dim {
		return 0, &core.DimMismatchError{Expected: p.dim, Actual: len(vec)}
	}
	for i, slot := range p.slots {
		if slot != nil {
			continue
		}
		id := core.RecordID(i) //nolint:gosec // capacity bounded below 2^32
		p.slots[i] = &model.Record{ID: id, Vector: vec.Clone(), Tag: tag}
		p.live++
		p.active++
		return id, nil
	}
	return 0, &core.CapacityExceededError{Resource: core.ResourceRecords}
}

// SoftDelete marks the record as deleted. The slot stays occupied so the
// ID is never reassigned; replays of the same history stay identical.
func (p *RecordPool) SoftDelete(id core.RecordID) error {
	r, err := p.lookup(id)
	if err != nil {
		return err
	}
	if r.Deleted {
		return &core.NotFoundError{Kind: core.ResourceRecords, ID: uint32(id)}
	}
	r.Deleted = true
	p.active--
	return nil
}

// HardDelete frees the slot entirely. Reserved for internal cascades; the
// slot's ID becomes reusable by later inserts.
func (p *RecordPool) HardDelete(id core.RecordID) error {
	r, err := p.lookup(id)
	if err != nil {
		return err
	}
	if !r.Deleted {
		p.active--
	}
	p.slots[id] = nil
	p.live--
	return nil
}

// Get returns the record, soft-deleted tombstones included.
func (p *RecordPool) Get(id core.RecordID) (*model.Record, error) {
	return p.lookup(id)
}

func (p *RecordPool) lookup(id core.RecordID) (*model.Record, error) {
	if int(id) >= len(p.slots) || p.slots[id] == nil {
		return nil, &core.NotFoundError{Kind: core.ResourceRecords, ID: uint32(id)}
	}
	return p.slots[id], nil
}

// Slot returns the occupant of slot i, or nil when empty. Used by the
// hash and snapshot canonicalizers, which must see empty slots too.
func (p *RecordPool) Slot(i int) *model.Record { return p.slots[i] }

// SetSlot installs a decoded record into slot i, replacing any occupant.
// Snapshot decode only.
func (p *RecordPool) SetSlot(i int, r *model.Record) {
	old := p.slots[i]
	if old != nil {
		p.live--
		if !old.Deleted {
			p.active--
		}
	}
	p.slots[i] = r
	if r != nil {
		p.live++
		if !r.Deleted {
			p.active++
		}
	}
}

// Each calls fn for every occupied slot in ascending ID order, tombstones
// included. Iteration stops if fn returns false.
func (p *RecordPool) Each(fn func(*model.Record) bool) {
	for _, r := range p.slots {
		if r == nil {
			continue
		}
		if !fn(r) {
			return
		}
	}
}

// Clone deep-copies the pool. Used by the shadow-validate stage.
func (p *RecordPool) Clone() *RecordPool {
	out := &RecordPool{
		dim:    p.dim,
		slots:  make([]*model.Record, len(p.slots)),
		live:   p.live,
		active: p.active,
	}
	for i, r := range p.slots {
		if r != nil {
			cp := r.Clone()
			out.slots[i] = &cp
		}
	}
	return out
}
