package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/errgroup"
)

// ArchiveCodec selects the at-rest compression for archived generations.
type ArchiveCodec string

const (
	// ArchiveZstd compresses archives with zstd (default).
	ArchiveZstd ArchiveCodec = "zstd"
	// ArchiveLZ4 compresses archives with lz4, cheaper but larger.
	ArchiveLZ4 ArchiveCodec = "lz4"
)

// ArchiveOptions configures archival of superseded snapshot and log
// generations. Archives are at-rest copies only; they never participate in
// the canonical byte streams or their hashes.
type ArchiveOptions struct {
	// Dir receives the compressed generation files.
	Dir string

	// Codec selects the compression. Empty selects zstd.
	Codec ArchiveCodec
}

// archiveGenerations compresses the superseded snapshot and log into the
// archive directory, named by the checkpoint version. The two files are
// independent, so they compress concurrently; this is durability-boundary
// parallelism and never touches kernel state.
func archiveGenerations(opts *ArchiveOptions, version uint64, paths ...string) error {
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return err
	}
	codec := opts.Codec
	if codec == "" {
		codec = ArchiveZstd
	}

	var g errgroup.Group
	for _, path := range paths {
		g.Go(func() error {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				return nil
			}
			name := fmt.Sprintf("%s.v%d.%s", filepath.Base(path), version, codec)
			return compressFile(path, filepath.Join(opts.Dir, name), codec)
		})
	}
	return g.Wait()
}

func compressFile(src, dst string, codec ArchiveCodec) error {
	in, err := os.Open(src) //nolint:gosec // G304: path is configuration
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) //nolint:gosec // G304: path is configuration
	if err != nil {
		return err
	}

	var cw io.WriteCloser
	switch codec {
	case ArchiveZstd:
		zw, err := zstd.NewWriter(out)
		if err != nil {
			_ = out.Close()
			return err
		}
		cw = zw
	case ArchiveLZ4:
		cw = lz4.NewWriter(out)
	default:
		_ = out.Close()
		return fmt.Errorf("unknown archive codec %q", codec)
	}

	if _, err := io.Copy(cw, in); err != nil {
		_ = cw.Close()
		_ = out.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
