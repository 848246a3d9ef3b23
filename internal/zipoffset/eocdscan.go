package zipoffset

import (
	"io"

	"github.com/valyala/bytebufferpool"
)

// chunkReaderAt serves positioned reads that fall entirely within a
// single pre-fetched window from an in-memory buffer, falling back to
// the underlying ReaderAt for anything outside it. It turns the
// backward EOCDR scan's up-to-512KiB worth of single-record probes
// into one bulk read plus in-memory slicing.
type chunkReaderAt struct {
	ra    io.ReaderAt
	base  int64
	chunk []byte
}

func (c *chunkReaderAt) ReadAt(p []byte, off int64) (int, error) {
	rel := off - c.base
	if rel >= 0 && rel+int64(len(p)) <= int64(len(c.chunk)) {
		return copy(p, c.chunk[rel:rel+int64(len(p))]), nil
	}
	return c.ra.ReadAt(p, off)
}

// withEOCDScanWindow pre-fetches the tail of the file that the
// backward EOCDR scan can possibly reach into a pooled buffer and
// invokes fn with a ReaderAt backed by it. The pooled buffer is
// returned before withEOCDScanWindow returns.
func withEOCDScanWindow(ra io.ReaderAt, size int64, fn func(io.ReaderAt) error) error {
	windowSize := backwardScanLimit + eocdSpec.Size()
	if windowSize > size {
		windowSize = size
	}
	base := size - windowSize

	bb := bytebufferpool.Get()
	defer bytebufferpool.Put(bb)

	if int64(cap(bb.B)) < windowSize {
		bb.B = make([]byte, windowSize)
	} else {
		bb.B = bb.B[:windowSize]
	}
	if _, err := ra.ReadAt(bb.B, base); err != nil {
		return err
	}

	return fn(&chunkReaderAt{ra: ra, base: base, chunk: bb.B})
}
