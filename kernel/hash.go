package kernel

import (
	"encoding/binary"

	"lukechampine.com/blake3"

	"github.com/varshith-Git/valori/core"
)

// emptySlotSentinel marks an unoccupied slot in the canonical stream.
// Empty slots participate in the hash so that [A,_] and [_,A] differ.
const emptySlotSentinel = 0xFF

// flagDeleted marks a soft-deleted record in the canonical stream.
const flagDeleted = 0x01

// HashSize is the length of the state hash in bytes.
const HashSize = 32

// StateHash computes the BLAKE3-256 fingerprint of the full kernel state.
//
// The canonical stream is: every record slot in ascending index order, then
// every node slot, then every edge slot — occupied slots with their full
// field encoding, empty slots as (index, sentinel) — followed by the
// canonicalization format version and the command version, all
// little-endian. Any change to this stream is a breaking protocol change.
func (k *Kernel) StateHash() [HashSize]byte {
	h := blake3.New(HashSize, nil)
	w := hashWriter{h: h}

	for i := 0; i < k.records.Capacity(); i++ {
		w.u32(uint32(i)) //nolint:gosec
		r := k.records.Slot(i)
		if r == nil {
			w.u8(emptySlotSentinel)
			continue
		}
		var flags uint8
		if r.Deleted {
			flags |= flagDeleted
		}
		w.u8(flags)
		for _, s := range r.Vector {
			w.u32(uint32(int32(s)))
		}
		w.u64(r.Tag)
		meta, _ := k.meta.Get(r.ID)
		w.u32(uint32(len(meta))) //nolint:gosec
		w.bytes(meta)
	}

	for i := 0; i < k.nodes.Capacity(); i++ {
		w.u32(uint32(i)) //nolint:gosec
		n := k.nodes.Slot(i)
		if n == nil {
			w.u8(emptySlotSentinel)
			continue
		}
		w.u8(n.Kind)
		w.u32(uint32(n.Record))
		w.u32(uint32(n.FirstOut))
	}

	for i := 0; i < k.edges.Capacity(); i++ {
		w.u32(uint32(i)) //nolint:gosec
		e := k.edges.Slot(i)
		if e == nil {
			w.u8(emptySlotSentinel)
			continue
		}
		w.u8(e.Kind)
		w.u32(uint32(e.From))
		w.u32(uint32(e.To))
		w.u32(uint32(e.NextOut))
	}

	w.u32(FormatVersion)
	w.u64(uint64(k.version))

	var out [HashSize]byte
	h.Sum(out[:0])
	return out
}

// VerifyHash recomputes the state hash and compares it to expected.
func (k *Kernel) VerifyHash(expected [HashSize]byte) error {
	if k.StateHash() != expected {
		return core.ErrHashMismatch
	}
	return nil
}

type hashWriter struct {
	h   *blake3.Hasher
	buf [8]byte
}

func (w *hashWriter) u8(v uint8) {
	w.buf[0] = v
	w.h.Write(w.buf[:1])
}

func (w *hashWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.h.Write(w.buf[:4])
}

func (w *hashWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[:8], v)
	w.h.Write(w.buf[:8])
}

func (w *hashWriter) bytes(p []byte) {
	if len(p) > 0 {
		w.h.Write(p)
	}
}
