package snapshot

import (
	"encoding/binary"
	"fmt"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
	"github.com/varshith-Git/valori/index"
	"github.com/varshith-Git/valori/kernel"
	"github.com/varshith-Git/valori/model"
)

// Codec encodes and decodes snapshots for one kernel configuration.
type Codec struct {
	cfg kernel.Config
}

// NewCodec creates a codec bound to cfg. Decoded kernels are constructed
// with cfg, including its index factory.
func NewCodec(cfg kernel.Config) *Codec {
	return &Codec{cfg: cfg}
}

func sameShape(a, b kernel.Config) bool {
	return a.Dim == b.Dim &&
		a.CapRecords == b.CapRecords &&
		a.CapNodes == b.CapNodes &&
		a.CapEdges == b.CapEdges
}

// Encode appends the canonical snapshot of k to dst and returns the
// extended slice. It refuses to emit if k's shape differs from the codec's
// configuration.
func (c *Codec) Encode(k *kernel.Kernel, dst []byte) ([]byte, error) {
	if !sameShape(k.Config(), c.cfg) {
		return nil, ErrConfigMismatch
	}

	dst = append(dst, Magic...)
	dst = binary.LittleEndian.AppendUint32(dst, FormatVersion)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(c.cfg.Dim))        //nolint:gosec
	dst = binary.LittleEndian.AppendUint32(dst, uint32(c.cfg.CapRecords)) //nolint:gosec
	dst = binary.LittleEndian.AppendUint32(dst, uint32(c.cfg.CapNodes))   //nolint:gosec
	dst = binary.LittleEndian.AppendUint32(dst, uint32(c.cfg.CapEdges))   //nolint:gosec
	dst = binary.LittleEndian.AppendUint64(dst, uint64(k.Version()))

	records := k.Records()
	for i := 0; i < records.Capacity(); i++ {
		r := records.Slot(i)
		if r == nil {
			dst = append(dst, slotEmpty)
			continue
		}
		dst = append(dst, slotOccupied)
		var flags uint8
		if r.Deleted {
			flags |= 0x01
		}
		dst = append(dst, flags)
		for _, s := range r.Vector {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(s)))
		}
		dst = binary.LittleEndian.AppendUint64(dst, r.Tag)
	}

	nodes := k.Nodes()
	for i := 0; i < nodes.Capacity(); i++ {
		n := nodes.Slot(i)
		if n == nil {
			dst = append(dst, slotEmpty)
			continue
		}
		dst = append(dst, slotOccupied)
		dst = append(dst, n.Kind)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(n.Record))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(n.FirstOut))
	}

	edges := k.Edges()
	for i := 0; i < edges.Capacity(); i++ {
		e := edges.Slot(i)
		if e == nil {
			dst = append(dst, slotEmpty)
			continue
		}
		dst = append(dst, slotOccupied)
		dst = append(dst, e.Kind)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(e.From))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(e.To))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(e.NextOut))
	}

	dst = binary.LittleEndian.AppendUint32(dst, uint32(k.MetadataCount())) //nolint:gosec
	k.EachMetadata(func(id core.RecordID, data []byte) bool {
		dst = binary.LittleEndian.AppendUint32(dst, uint32(id))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(data))) //nolint:gosec
		dst = append(dst, data...)
		return true
	})

	scheme := k.Index().Scheme()
	dst = append(dst, uint8(len(scheme))) //nolint:gosec // scheme names are short
	dst = append(dst, scheme...)
	section := k.Index().Snapshot(nil)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(section))) //nolint:gosec
	dst = append(dst, section...)

	hash := k.StateHash()
	dst = append(dst, hash[:]...)
	return dst, nil
}

// Decode reconstructs a kernel from buf. It verifies the magic and format
// version, requires the embedded shape to match the codec configuration,
// and recomputes the state hash against the trailer, rejecting on mismatch.
func (c *Codec) Decode(buf []byte) (*kernel.Kernel, error) {
	r := &sliceReader{buf: buf}

	magic, err := r.take(4)
	if err != nil {
		return nil, corrupt("header", err)
	}
	if string(magic) != Magic {
		return nil, corrupt("header", ErrBadMagic)
	}
	formatVersion, err := r.u32()
	if err != nil {
		return nil, corrupt("header", err)
	}
	if formatVersion != FormatVersion {
		return nil, fmt.Errorf("snapshot format %d: %w", formatVersion, core.ErrVersionMismatch)
	}

	var shape [4]uint32
	for i := range shape {
		if shape[i], err = r.u32(); err != nil {
			return nil, corrupt("header", err)
		}
	}
	embedded := kernel.Config{
		Dim:        int(shape[0]),
		CapRecords: int(shape[1]),
		CapNodes:   int(shape[2]),
		CapEdges:   int(shape[3]),
	}
	if !sameShape(embedded, c.cfg) {
		return nil, ErrConfigMismatch
	}

	version, err := r.u64()
	if err != nil {
		return nil, corrupt("header", err)
	}

	k := kernel.New(c.cfg)

	records := k.Records()
	for i := 0; i < c.cfg.CapRecords; i++ {
		tag, err := r.u8()
		if err != nil {
			return nil, corrupt("records section", err)
		}
		switch tag {
		case slotEmpty:
		case slotOccupied:
			flags, err := r.u8()
			if err != nil {
				return nil, corrupt("records section", err)
			}
			vec := make(fxp.Vector, c.cfg.Dim)
			for j := range vec {
				raw, err := r.u32()
				if err != nil {
					return nil, corrupt("records section", err)
				}
				vec[j] = fxp.Scalar(int32(raw))
			}
			recTag, err := r.u64()
			if err != nil {
				return nil, corrupt("records section", err)
			}
			records.SetSlot(i, &model.Record{
				ID:      core.RecordID(i), //nolint:gosec
				Vector:  vec,
				Tag:     recTag,
				Deleted: flags&0x01 != 0,
			})
		default:
			return nil, corrupt("records section", fmt.Errorf("invalid slot tag %d", tag))
		}
	}

	nodes := k.Nodes()
	for i := 0; i < c.cfg.CapNodes; i++ {
		tag, err := r.u8()
		if err != nil {
			return nil, corrupt("nodes section", err)
		}
		switch tag {
		case slotEmpty:
		case slotOccupied:
			kind, err := r.u8()
			if err != nil {
				return nil, corrupt("nodes section", err)
			}
			record, err := r.u32()
			if err != nil {
				return nil, corrupt("nodes section", err)
			}
			firstOut, err := r.u32()
			if err != nil {
				return nil, corrupt("nodes section", err)
			}
			nodes.SetSlot(i, &model.GraphNode{
				ID:       core.NodeID(i), //nolint:gosec
				Kind:     kind,
				Record:   core.RecordID(record),
				FirstOut: core.EdgeID(firstOut),
			})
		default:
			return nil, corrupt("nodes section", fmt.Errorf("invalid slot tag %d", tag))
		}
	}

	edges := k.Edges()
	for i := 0; i < c.cfg.CapEdges; i++ {
		tag, err := r.u8()
		if err != nil {
			return nil, corrupt("edges section", err)
		}
		switch tag {
		case slotEmpty:
		case slotOccupied:
			kind, err := r.u8()
			if err != nil {
				return nil, corrupt("edges section", err)
			}
			var refs [3]uint32
			for j := range refs {
				if refs[j], err = r.u32(); err != nil {
					return nil, corrupt("edges section", err)
				}
			}
			edges.SetSlot(i, &model.GraphEdge{
				ID:      core.EdgeID(i), //nolint:gosec
				Kind:    kind,
				From:    core.NodeID(refs[0]),
				To:      core.NodeID(refs[1]),
				NextOut: core.EdgeID(refs[2]),
			})
		default:
			return nil, corrupt("edges section", fmt.Errorf("invalid slot tag %d", tag))
		}
	}

	metaCount, err := r.u32()
	if err != nil {
		return nil, corrupt("metadata section", err)
	}
	var prevID int64 = -1
	for i := uint32(0); i < metaCount; i++ {
		id, err := r.u32()
		if err != nil {
			return nil, corrupt("metadata section", err)
		}
		if int64(id) <= prevID {
			return nil, corrupt("metadata section", fmt.Errorf("ids not strictly ascending"))
		}
		prevID = int64(id)
		data, err := r.lenBytes()
		if err != nil {
			return nil, corrupt("metadata section", err)
		}
		k.RestoreMetadata(core.RecordID(id), data)
	}

	schemeLen, err := r.u8()
	if err != nil {
		return nil, corrupt("index section", err)
	}
	scheme, err := r.take(int(schemeLen))
	if err != nil {
		return nil, corrupt("index section", err)
	}
	section, err := r.lenBytes()
	if err != nil {
		return nil, corrupt("index section", err)
	}
	if string(scheme) == k.Index().Scheme() && len(section) > 0 {
		if err := k.Index().Restore(section, records); err != nil {
			return nil, err
		}
	} else {
		// Empty or unrecognized scheme: rebuild from live records.
		index.Rebuild(k.Index(), records)
	}

	trailer, err := r.take(kernel.HashSize)
	if err != nil {
		return nil, corrupt("trailer", err)
	}
	if r.remaining() != 0 {
		return nil, corrupt("trailer", fmt.Errorf("%d trailing bytes", r.remaining()))
	}

	k.RestoreVersion(core.Version(version))
	k.RebuildDerived()

	var expected [kernel.HashSize]byte
	copy(expected[:], trailer)
	if err := k.VerifyHash(expected); err != nil {
		return nil, err
	}
	return k, nil
}

func corrupt(location string, err error) error {
	return &core.CorruptError{Location: "snapshot " + location, Err: err}
}

type sliceReader struct {
	buf []byte
	off int
}

func (r *sliceReader) remaining() int { return len(r.buf) - r.off }

func (r *sliceReader) take(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, fmt.Errorf("truncated at offset %d", r.off)
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *sliceReader) u8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *sliceReader) u32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *sliceReader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *sliceReader) lenBytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
