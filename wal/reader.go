package wal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/varshith-Git/valori/core"
	"github.com/varshith-Git/valori/model"
)

// Reader iterates the committed frames of a log file in order.
type Reader struct {
	file *os.File
	hdr  header
	size int64
	off  int64
}

// OpenReader opens path for iteration and validates the file header.
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path) //nolint:gosec // G304: path is configuration
	if err != nil {
		return nil, err
	}
	hdr, err := readHeader(file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	st, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	return &Reader{file: file, hdr: hdr, size: st.Size(), off: headerLen}, nil
}

// Dim returns the vector dimension recorded in the header.
func (r *Reader) Dim() int { return r.hdr.dim }

// Next returns the next command. io.EOF signals a clean end, ErrIncomplete
// a truncated trailing frame (treat the tail as never committed), and a
// CorruptError a malformed frame, which must abort recovery.
func (r *Reader) Next() (model.Command, error) {
	if r.off >= r.size {
		return model.Command{}, io.EOF
	}
	if r.size-r.off < frameHeaderLen {
		return model.Command{}, ErrIncomplete
	}

	var fh [frameHeaderLen]byte
	if _, err := r.file.ReadAt(fh[:], r.off); err != nil {
		return model.Command{}, &core.CorruptError{Location: "log frame", Err: err}
	}
	if fh[0] != FrameVersion {
		return model.Command{}, &core.CorruptError{Location: "log frame", Err: fmt.Errorf("unknown frame version %d", fh[0])}
	}
	payloadLen := int64(binary.LittleEndian.Uint32(fh[1:5]))
	if r.size-r.off-frameHeaderLen < payloadLen {
		return model.Command{}, ErrIncomplete
	}

	payload := make([]byte, payloadLen)
	if _, err := r.file.ReadAt(payload, r.off+frameHeaderLen); err != nil {
		return model.Command{}, &core.CorruptError{Location: "log frame", Err: err}
	}
	cmd, err := model.DecodeCommand(payload)
	if err != nil {
		return model.Command{}, &core.CorruptError{Location: "log frame payload", Err: err}
	}

	r.off += frameHeaderLen + payloadLen
	return cmd, nil
}

// Replay calls fn for each committed command in order. It returns nil on a
// clean end or a torn tail, and the corrupt/apply error otherwise.
func (r *Reader) Replay(fn func(model.Command) error) error {
	for {
		cmd, err := r.Next()
		if errors.Is(err, io.EOF) || errors.Is(err, ErrIncomplete) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(cmd); err != nil {
			return err
		}
	}
}

// Close releases the file handle.
func (r *Reader) Close() error { return r.file.Close() }
