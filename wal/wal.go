// Package wal implements the append-only event log that makes kernel
// commands durable. Each file carries a fixed header followed by
// length-prefixed frames, one frame per command, written in batches with a
// single durable sync per batch. The reader treats a truncated trailing
// frame as never committed and any malformed frame as fatal corruption.
package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"lukechampine.com/blake3"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/model"
)

const (
	// Magic identifies Valori event log files.
	Magic = "VALL"

	// FormatVersion is the log layout version.
	FormatVersion uint32 = 1

	// EncodingCommandV1 tags the canonical command encoding of the frame
	// payloads.
	EncodingCommandV1 uint32 = 1

	// FrameVersion prefixes every frame.
	FrameVersion byte = 0x01

	// HeaderSize is the byte length of the per-file header:
	// magic + format_version + encoding + dim + cksum_len.
	HeaderSize = 4 + 4 + 4 + 4 + 4

	headerLen = HeaderSize

	// frameHeaderLen is the frame version byte plus the length prefix.
	frameHeaderLen = 1 + 4

	// cksumLen is the length of the log/state hashes referenced by the
	// header. Fixed at BLAKE3-256.
	cksumLen uint32 = 32
)

// ErrIncomplete reports a truncated trailing frame. The tail was never
// committed; readers stop cleanly before it.
var ErrIncomplete = errors.New("incomplete trailing frame")

// DefaultFileName is the live event log file name.
const DefaultFileName = "events.log"

// PrevSuffix is appended to the rotated generation kept per checkpoint.
const PrevSuffix = ".prev"

// Log is the single-writer append handle.
type Log struct {
	mu   sync.Mutex
	file *os.File
	path string
	dim  int
}

// Create creates a fresh log at path for the given vector dimension,
// truncating any existing file, and makes the header durable.
func Create(path string, dim int) (*Log, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o600) //nolint:gosec // G304: path is configuration
	if err != nil {
		return nil, fmt.Errorf("failed to create log: %w", err)
	}

	var hdr [headerLen]byte
	copy(hdr[0:4], Magic)
	binary.LittleEndian.PutUint32(hdr[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], EncodingCommandV1)
	binary.LittleEndian.PutUint32(hdr[12:16], uint32(dim)) //nolint:gosec
	binary.LittleEndian.PutUint32(hdr[16:20], cksumLen)

	if _, err := file.Write(hdr[:]); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write log header: %w", err)
	}
	if err := fdatasync(file); err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Log{file: file, path: path, dim: dim}, nil
}

// Open opens an existing log for appending. The header must match dim.
// A truncated trailing frame left by a crash is dropped before the first
// append; a malformed interior frame is fatal.
func Open(path string, dim int) (*Log, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0o600) //nolint:gosec // G304: path is configuration
	if err != nil {
		return nil, err
	}

	hdr, err := readHeader(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if hdr.dim != dim {
		_ = file.Close()
		return nil, &core.DimMismatchError{Expected: dim, Actual: hdr.dim}
	}

	// Find the end of the last complete frame.
	end, err := scanFrames(file)
	if err != nil && !errors.Is(err, ErrIncomplete) {
		_ = file.Close()
		return nil, err
	}
	if err := file.Truncate(end); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to drop torn tail: %w", err)
	}
	if _, err := file.Seek(end, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Log{file: file, path: path, dim: dim}, nil
}

// Path returns the log's file path.
func (l *Log) Path() string { return l.path }

// AppendBatch encodes cmds as one contiguous frame group, appends it with a
// single write and makes it durable with one sync. Either the whole group
// becomes part of the committed prefix or, on a crash mid-write, the torn
// tail is dropped on the next open.
func (l *Log) AppendBatch(cmds []model.Command) error {
	if len(cmds) == 0 {
		return nil
	}

	var buf []byte
	for _, cmd := range cmds {
		payload := cmd.Encode(nil)
		buf = append(buf, FrameVersion)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload))) //nolint:gosec
		buf = append(buf, payload...)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(buf); err != nil {
		return fmt.Errorf("failed to append frame group: %w", err)
	}
	return fdatasync(l.file)
}

// Size returns the current file size in bytes.
func (l *Log) Size() (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.file.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

// Close releases the file handle.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

type header struct {
	formatVersion uint32
	encoding      uint32
	dim           int
	cksumLen      uint32
}

func readHeader(f *os.File) (header, error) {
	var hdr [headerLen]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return header{}, &core.CorruptError{Location: "log header", Err: err}
	}
	if string(hdr[0:4]) != Magic {
		return header{}, &core.CorruptError{Location: "log header", Err: errors.New("bad magic")}
	}
	h := header{
		formatVersion: binary.LittleEndian.Uint32(hdr[4:8]),
		encoding:      binary.LittleEndian.Uint32(hdr[8:12]),
		dim:           int(binary.LittleEndian.Uint32(hdr[12:16])),
		cksumLen:      binary.LittleEndian.Uint32(hdr[16:20]),
	}
	if h.formatVersion != FormatVersion {
		return header{}, fmt.Errorf("log format %d: %w", h.formatVersion, core.ErrVersionMismatch)
	}
	if h.encoding != EncodingCommandV1 {
		return header{}, &core.CorruptError{Location: "log header", Err: fmt.Errorf("unknown encoding %d", h.encoding)}
	}
	return h, nil
}

// scanFrames walks the frame stream and returns the offset just past the
// last complete frame. ErrIncomplete flags a torn tail; a malformed frame
// returns Corrupt.
func scanFrames(f *os.File) (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := st.Size()
	off := int64(headerLen)

	var fh [frameHeaderLen]byte
	for off < size {
		if size-off < frameHeaderLen {
			return off, ErrIncomplete
		}
		if _, err := f.ReadAt(fh[:], off); err != nil {
			return off, &core.CorruptError{Location: "log frame", Err: err}
		}
		if fh[0] != FrameVersion {
			return off, &core.CorruptError{Location: "log frame", Err: fmt.Errorf("unknown frame version %d", fh[0])}
		}
		payloadLen := int64(binary.LittleEndian.Uint32(fh[1:5]))
		if size-off-frameHeaderLen < payloadLen {
			return off, ErrIncomplete
		}
		off += frameHeaderLen + payloadLen
	}
	return off, nil
}

// HashFile computes BLAKE3-256 over the entire file content, header
// included, so header tampering is detectable.
func HashFile(path string) ([32]byte, error) {
	var out [32]byte
	f, err := os.Open(path) //nolint:gosec // G304: path is configuration
	if err != nil {
		return out, err
	}
	defer f.Close()

	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return out, err
	}
	h.Sum(out[:0])
	return out, nil
}
