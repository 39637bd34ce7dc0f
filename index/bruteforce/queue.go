package bruteforce

import (
	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
)

// candidate is one entry of the bounded top-k heap.
type candidate struct {
	score fxp.Scalar
	id    core.RecordID
}

// worse orders candidates by (score desc, id desc): the heap root is the
// candidate that leaves the result set first. The inverse of the result
// ordering (score asc, id asc) keeps the tie-break exact under eviction.
func worse(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.id > b.id
}

// topK is a bounded max-heap of the best k candidates seen so far.
// Value-based storage, no allocations beyond the backing slice.
type topK struct {
	items []candidate
	cap   int
}

func newTopK(k int) *topK {
	return &topK{items: make([]candidate, 0, k), cap: k}
}

// offer inserts c if the heap has room or c beats the current worst.
func (h *topK) offer(c candidate) {
	if len(h.items) < h.cap {
		h.items = append(h.items, c)
		h.siftUp(len(h.items) - 1)
		return
	}
	if h.cap == 0 || !worse(h.items[0], c) {
		return
	}
	h.items[0] = c
	h.siftDown(0)
}

// drain empties the heap into a slice ordered (score asc, id asc).
func (h *topK) drain() []candidate {
	out := make([]candidate, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		out[i] = h.items[0]
		last := len(h.items) - 1
		h.items[0] = h.items[last]
		h.items = h.items[:last]
		if len(h.items) > 0 {
			h.siftDown(0)
		}
	}
	return out
}

func (h *topK) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !worse(h.items[i], h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *topK) siftDown(i int) {
	n := len(h.items)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && worse(h.items[right], h.items[left]) {
			child = right
		}
		if !worse(h.items[child], h.items[i]) {
			break
		}
		h.items[i], h.items[child] = h.items[child], h.items[i]
		i = child
	}
}
