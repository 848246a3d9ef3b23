// Package zipoffset is the public surface of the ZIP offset-rewriting
// core: ValidateOffsets checks that a ZIP archive's structural offsets
// are internally consistent; AdjustOffsets shifts every one of them by
// a signed displacement, writing nothing until every offset has been
// located and checked.
//
// Neither function rebuilds, re-encodes, or validates anything beyond
// what's needed to walk offsets: payloads, CRCs, filenames,
// compression methods and encryption headers are never inspected.
package zipoffset

import (
	"os"

	"github.com/go-zipper/zipprefix/internal/zipoffset"
)

// Kind classifies a structural failure. See Error.
type Kind = zipoffset.Kind

const (
	// NotAZip means the EOCDR wasn't found within the backward search
	// window: the file isn't a ZIP archive, or is a badly broken one.
	NotAZip = zipoffset.NotAZip
	// StructuralZip means a structural record (CFH, LFH, ZIP64
	// EOCDL/EOCDR, ZIP64 EIEF) was missing where the central directory
	// said it would be, or a ZIP64 EIEF was too small for its fields,
	// or the displacement would make a 32-bit offset negative.
	StructuralZip = zipoffset.StructuralZip
	// Overflow means a 32-bit offset would reach the 0xFFFFFFFF
	// sentinel or no longer fit in 32 bits after the requested
	// displacement.
	Overflow = zipoffset.Overflow
)

// Error is returned for every non-IO structural failure. Use
// errors.As to recover the Kind.
type Error = zipoffset.Error

// ValidateOffsets walks path's structural offsets without modifying
// it, failing with a typed *Error on any structural problem. It is
// equivalent to AdjustOffsets(path, 0).
func ValidateOffsets(path string) error {
	return AdjustOffsets(path, 0)
}

// AdjustOffsets shifts every structural offset field in the ZIP
// archive at path by displacement bytes. displacement == 0 performs a
// validate-only pass with no writes.
//
// The read phase fully precedes any write: AdjustOffsets never writes
// a single byte until every offset in the archive has been located
// and checked. A structural or IO failure during the read phase
// leaves path byte-identical. A write-phase IO failure may leave path
// partially rewritten; callers that need atomicity across the
// boundary use pkg/prefixer, which only ever calls AdjustOffsets on a
// sibling temporary file.
func AdjustOffsets(path string, displacement int64) error {
	reader, err := os.Open(path)
	if err != nil {
		return err
	}
	info, err := reader.Stat()
	if err != nil {
		reader.Close()
		return err
	}

	queue, walkErr := zipoffset.Walk(reader, info.Size(), displacement, zipoffset.DefaultOptions())
	if closeErr := reader.Close(); walkErr == nil {
		walkErr = closeErr
	}
	if walkErr != nil {
		return walkErr
	}
	if queue.Len() == 0 {
		return nil
	}

	writer, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer writer.Close()
	return queue.Apply(writer)
}
