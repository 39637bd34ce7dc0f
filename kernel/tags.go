package kernel

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/index"
)

// tagIndex maps a record tag to the bitmap of active records carrying it.
// Derived state: rebuilt from the record pool on restore, never hashed.
type tagIndex struct {
	postings map[uint64]*roaring.Bitmap
}

func newTagIndex() *tagIndex {
	return &tagIndex{postings: make(map[uint64]*roaring.Bitmap)}
}

func (t *tagIndex) add(tag uint64, id core.RecordID) {
	bm, ok := t.postings[tag]
	if !ok {
		bm = roaring.New()
		t.postings[tag] = bm
	}
	bm.Add(uint32(id))
}

func (t *tagIndex) remove(tag uint64, id core.RecordID) {
	bm, ok := t.postings[tag]
	if !ok {
		return
	}
	bm.Remove(uint32(id))
	if bm.IsEmpty() {
		delete(t.postings, tag)
	}
}

// filter returns an equality predicate over the tag's posting bitmap.
// A tag with no postings yields a filter that matches nothing.
func (t *tagIndex) filter(tag uint64) index.Filter {
	bm, ok := t.postings[tag]
	if !ok {
		return func(core.RecordID) bool { return false }
	}
	return func(id core.RecordID) bool { return bm.Contains(uint32(id)) }
}

func (t *tagIndex) clone() *tagIndex {
	out := newTagIndex()
	for tag, bm := range t.postings {
		out.postings[tag] = bm.Clone()
	}
	return out
}
