// Package prefixer is the streaming front end over pkg/zipoffset: it
// prepends one or more sources of raw bytes to a ZIP archive and
// repairs every structural offset so the result remains a valid
// archive.
//
// ApplyPrefixes never modifies path in place. It streams prefixes and
// the original archive into a sibling temporary file, corrects that
// file's offsets, and renames it over path only once every prior step
// has succeeded; any failure along the way leaves path untouched.
package prefixer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-zipper/zipprefix/internal/catseek"
	"github.com/go-zipper/zipprefix/pkg/zipoffset"
)

// Source is anything that can be streamed as a prefix. The two
// implementations below cover raw bytes and a file on disk; a source
// needs only be anything openable for one sequential read.
type Source interface {
	open() (io.ReadCloser, int64, error)
}

// Bytes is a Source backed by an in-memory byte slice.
type Bytes []byte

func (b Bytes) open() (io.ReadCloser, int64, error) {
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

// FilePath is a Source backed by a file on disk, opened and sized
// lazily when streaming begins.
type FilePath string

func (p FilePath) open() (io.ReadCloser, int64, error) {
	f, err := os.Open(string(p))
	if err != nil {
		return nil, 0, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// ApplyPrefixes prepends prefixes (in order) to the archive at path,
// then adjusts every structural offset inside it by the total prefix
// length so the result remains readable as a ZIP archive.
//
// ctx governs only the streaming-copy phase; the underlying offset
// walker runs single-threaded to completion once invoked and has no
// cancellation point of its own.
func ApplyPrefixes(ctx context.Context, path string, prefixes []Source) error {
	if len(prefixes) == 0 {
		return nil
	}

	original, err := os.Open(path)
	if err != nil {
		return err
	}
	originalInfo, err := original.Stat()
	if err != nil {
		original.Close()
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".zipprefix-*.tmp")
	if err != nil {
		original.Close()
		return err
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	var builder catseek.Builder
	var totalPrefixLen int64
	var closers []io.Closer
	for _, src := range prefixes {
		rc, size, err := src.open()
		if err != nil {
			original.Close()
			cleanup()
			closeAll(closers)
			return err
		}
		closers = append(closers, rc)
		builder.AddReader(rc, size)
		totalPrefixLen += size
	}
	builder.AddReader(original, originalInfo.Size())
	closers = append(closers, original)

	if err := copyWithContext(ctx, tmp, builder.Build()); err != nil {
		cleanup()
		closeAll(closers)
		return err
	}
	closeAll(closers)

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := zipoffset.AdjustOffsets(tmpPath, totalPrefixLen); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("prefixer: adjusting offsets: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(dst, src)
		done <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
