package model

import (
	"encoding/binary"
	"fmt"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/fxp"
)

// CommandType enumerates the state transitions the kernel accepts.
// The values are part of the on-disk event schema and must never change.
type CommandType uint8

const (
	CmdInsertRecord CommandType = iota + 1
	CmdSoftDeleteRecord
	CmdCreateNode
	CmdDeleteNode
	CmdCreateEdge
	CmdDeleteEdge
	CmdSetMetadata
)

func (t CommandType) String() string {
	switch t {
	case CmdInsertRecord:
		return "InsertRecord"
	case CmdSoftDeleteRecord:
		return "SoftDeleteRecord"
	case CmdCreateNode:
		return "CreateNode"
	case CmdDeleteNode:
		return "DeleteNode"
	case CmdCreateEdge:
		return "CreateEdge"
	case CmdDeleteEdge:
		return "DeleteEdge"
	case CmdSetMetadata:
		return "SetMetadata"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(t))
	}
}

// MaxMetadataLen bounds the metadata payload of InsertRecord and
// SetMetadata commands.
const MaxMetadataLen = 64 * 1024

// Command is a single state transition. One struct covers every variant;
// only the fields of the active Type are meaningful. IDs are never carried
// for create commands: allocation is a deterministic function of history,
// so replay reassigns identical IDs.
type Command struct {
	Type CommandType

	// InsertRecord
	Vector   fxp.Vector
	Tag      uint64
	Metadata []byte // also SetMetadata payload

	// SoftDeleteRecord, SetMetadata, CreateNode record anchor
	Record    core.RecordID
	HasRecord bool // CreateNode: whether Record is set

	// CreateNode / CreateEdge kinds
	Kind uint8

	// DeleteNode
	Node core.NodeID

	// CreateEdge
	From core.NodeID
	To   core.NodeID

	// DeleteEdge
	Edge core.EdgeID
}

// InsertRecord builds an insert command. tag and metadata may be zero/nil.
func InsertRecord(vector fxp.Vector, tag uint64, metadata []byte) Command {
	return Command{Type: CmdInsertRecord, Vector: vector, Tag: tag, Metadata: metadata}
}

// SoftDeleteRecord builds a soft-delete command.
func SoftDeleteRecord(id core.RecordID) Command {
	return Command{Type: CmdSoftDeleteRecord, Record: id}
}

// CreateNode builds a node-creation command. Pass core.NoRecord for an
// unanchored node.
func CreateNode(kind uint8, record core.RecordID) Command {
	return Command{Type: CmdCreateNode, Kind: kind, Record: record, HasRecord: record != core.NoRecord}
}

// DeleteNode builds a node-deletion command.
func DeleteNode(id core.NodeID) Command {
	return Command{Type: CmdDeleteNode, Node: id}
}

// CreateEdge builds an edge-creation command.
func CreateEdge(kind uint8, from, to core.NodeID) Command {
	return Command{Type: CmdCreateEdge, Kind: kind, From: from, To: to}
}

// DeleteEdge builds an edge-deletion command.
func DeleteEdge(id core.EdgeID) Command {
	return Command{Type: CmdDeleteEdge, Edge: id}
}

// SetMetadata builds a metadata-replacement command for a record.
func SetMetadata(id core.RecordID, metadata []byte) Command {
	return Command{Type: CmdSetMetadata, Record: id, Metadata: metadata}
}

// Encode appends the canonical little-endian encoding of c to dst and
// returns the extended slice. The layout per variant:
//
//	InsertRecord     [type][dim:u32][dim × i32][tag:u64][metaLen:u32][meta]
//	SoftDeleteRecord [type][id:u32]
//	CreateNode       [type][kind:u8][hasRecord:u8][record:u32]?
//	DeleteNode       [type][id:u32]
//	CreateEdge       [type][kind:u8][from:u32][to:u32]
//	DeleteEdge       [type][id:u32]
//	SetMetadata      [type][id:u32][len:u32][bytes]
func (c Command) Encode(dst []byte) []byte {
	dst = append(dst, byte(c.Type))
	switch c.Type {
	case CmdInsertRecord:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(c.Vector)))
		for _, s := range c.Vector {
			dst = binary.LittleEndian.AppendUint32(dst, uint32(int32(s)))
		}
		dst = binary.LittleEndian.AppendUint64(dst, c.Tag)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(c.Metadata)))
		dst = append(dst, c.Metadata...)
	case CmdSoftDeleteRecord:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(c.Record))
	case CmdCreateNode:
		dst = append(dst, c.Kind)
		if c.HasRecord {
			dst = append(dst, 1)
			dst = binary.LittleEndian.AppendUint32(dst, uint32(c.Record))
		} else {
			dst = append(dst, 0)
		}
	case CmdDeleteNode:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(c.Node))
	case CmdCreateEdge:
		dst = append(dst, c.Kind)
		dst = binary.LittleEndian.AppendUint32(dst, uint32(c.From))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(c.To))
	case CmdDeleteEdge:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(c.Edge))
	case CmdSetMetadata:
		dst = binary.LittleEndian.AppendUint32(dst, uint32(c.Record))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(len(c.Metadata)))
		dst = append(dst, c.Metadata...)
	}
	return dst
}

// DecodeCommand parses one command from buf. The entire buffer must be
// consumed; trailing bytes are a framing error.
func DecodeCommand(buf []byte) (Command, error) {
	c, n, err := decodeCommand(buf)
	if err != nil {
		return Command{}, err
	}
	if n != len(buf) {
		return Command{}, fmt.Errorf("command payload has %d trailing bytes", len(buf)-n)
	}
	return c, nil
}

func decodeCommand(buf []byte) (Command, int, error) {
	if len(buf) < 1 {
		return Command{}, 0, fmt.Errorf("empty command payload")
	}
	c := Command{Type: CommandType(buf[0])}
	r := reader{buf: buf, off: 1}

	switch c.Type {
	case CmdInsertRecord:
		dim, err := r.u32()
		if err != nil {
			return Command{}, 0, err
		}
		if uint64(dim)*4 > uint64(len(buf)) {
			return Command{}, 0, fmt.Errorf("vector length %d exceeds payload", dim)
		}
		c.Vector = make(fxp.Vector, dim)
		for i := range c.Vector {
			raw, err := r.u32()
			if err != nil {
				return Command{}, 0, err
			}
			c.Vector[i] = fxp.Scalar(int32(raw))
		}
		if c.Tag, err = r.u64(); err != nil {
			return Command{}, 0, err
		}
		if c.Metadata, err = r.bytes(); err != nil {
			return Command{}, 0, err
		}
	case CmdSoftDeleteRecord:
		id, err := r.u32()
		if err != nil {
			return Command{}, 0, err
		}
		c.Record = core.RecordID(id)
	case CmdCreateNode:
		kind, err := r.u8()
		if err != nil {
			return Command{}, 0, err
		}
		c.Kind = kind
		has, err := r.u8()
		if err != nil {
			return Command{}, 0, err
		}
		switch has {
		case 0:
			c.Record = core.NoRecord
		case 1:
			c.HasRecord = true
			id, err := r.u32()
			if err != nil {
				return Command{}, 0, err
			}
			c.Record = core.RecordID(id)
		default:
			return Command{}, 0, fmt.Errorf("invalid record presence tag %d", has)
		}
	case CmdDeleteNode:
		id, err := r.u32()
		if err != nil {
			return Command{}, 0, err
		}
		c.Node = core.NodeID(id)
	case CmdCreateEdge:
		kind, err := r.u8()
		if err != nil {
			return Command{}, 0, err
		}
		c.Kind = kind
		from, err := r.u32()
		if err != nil {
			return Command{}, 0, err
		}
		to, err := r.u32()
		if err != nil {
			return Command{}, 0, err
		}
		c.From, c.To = core.NodeID(from), core.NodeID(to)
	case CmdDeleteEdge:
		id, err := r.u32()
		if err != nil {
			return Command{}, 0, err
		}
		c.Edge = core.EdgeID(id)
	case CmdSetMetadata:
		id, err := r.u32()
		if err != nil {
			return Command{}, 0, err
		}
		c.Record = core.RecordID(id)
		if c.Metadata, err = r.bytes(); err != nil {
			return Command{}, 0, err
		}
	default:
		return Command{}, 0, fmt.Errorf("unknown command type %d", buf[0])
	}
	return c, r.off, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) u8() (uint8, error) {
	if r.off+1 > len(r.buf) {
		return 0, fmt.Errorf("truncated command payload at offset %d", r.off)
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, fmt.Errorf("truncated command payload at offset %d", r.off)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.off+8 > len(r.buf) {
		return 0, fmt.Errorf("truncated command payload at offset %d", r.off)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if uint64(r.off)+uint64(n) > uint64(len(r.buf)) {
		return nil, fmt.Errorf("truncated command payload at offset %d", r.off)
	}
	out := make([]byte, n)
	copy(out, r.buf[r.off:r.off+int(n)])
	r.off += int(n)
	return out, nil
}
