// Package zipoffset implements the ZIP offset-rewriting walker: it
// locates the EOCDR, resolves ZIP64 if present, walks the central
// directory cross-validating every Local File Header's presence, and
// produces (or, in validate mode, merely verifies) the single set of
// pending writes that displace every offset field by a signed amount.
//
// The walker never touches a byte until the entire read phase has
// succeeded: Walk returns before any write happens: commit is the
// caller's (pkg/zipoffset's) job.
package zipoffset

import (
	"io"

	"github.com/go-zipper/zipprefix/internal/binrecord"
)

// backwardScanLimit bounds the EOCDR backward scan. The EOCDR's
// comment is at most 65535 bytes; 512 KiB is generous headroom and
// protects against a runaway scan on a non-ZIP file.
const backwardScanLimit = 512 * 1024

// Options controls optional hardening behavior the walker's core
// algorithm does not strictly require.
type Options struct {
	// CommentLengthCheck rejects an EOCDR candidate during the
	// backward scan unless its declared commentLength reaches exactly
	// end of file, tightening the backward-from-EOF search against a
	// forged signature hiding inside the archive comment that follows
	// the real EOCDR.
	CommentLengthCheck bool
}

// DefaultOptions is the option set ValidateOffsets/AdjustOffsets use:
// CommentLengthCheck on. See DESIGN.md's Open Question log for why.
func DefaultOptions() Options {
	return Options{CommentLengthCheck: true}
}

// Walk runs the walker against ra (size bytes long) with the given
// signed displacement. displacement == 0 is validate mode: every
// structural cross-check still runs, but the returned queue is always
// empty. displacement != 0 is adjust mode: the returned queue holds
// one pending write per offset field that needs to change.
//
// Walk performs only reads; it never writes to ra. The caller commits
// the returned queue (WriteQueue.Apply) only after Walk returns
// successfully.
func Walk(ra io.ReaderAt, size int64, displacement int64, opts Options) (*binrecord.WriteQueue, error) {
	queue := &binrecord.WriteQueue{}
	adjusting := displacement != 0

	eocd, err := locateEOCDR(ra, size, opts)
	if err != nil {
		return nil, err
	}

	cdOffset, numEntries, loc64, eocd64, err := resolveZip64(ra, eocd, displacement)
	if err != nil {
		return nil, err
	}

	if err := scheduleEOCDWrites(queue, adjusting, displacement, eocd, loc64, eocd64); err != nil {
		return nil, err
	}

	cdPhysical, err := cdPhysicalStart(eocd, eocd64, displacement)
	if err != nil {
		return nil, err
	}

	if err := walkCentralDirectory(ra, queue, adjusting, displacement, cdPhysical, numEntries); err != nil {
		return nil, err
	}

	return queue, nil
}

// locateEOCDR scans backward from end of file for the End of Central
// Directory Record, the entry point for every other structure in a
// ZIP archive.
func locateEOCDR(ra io.ReaderAt, size int64, opts Options) (*binrecord.Instance, error) {
	if size < eocdSpec.Size() {
		return nil, newError(NotAZip, "file is smaller than an EOCDR (%d bytes)", size)
	}

	var extra binrecord.MatchFunc
	if opts.CommentLengthCheck {
		extra = func(in *binrecord.Instance) bool {
			commentLen := in.Uint16(eocdCommentLength)
			return in.Position()+eocdSpec.Size()+int64(commentLen) == size
		}
	}

	var eocd *binrecord.Instance
	err := withEOCDScanWindow(ra, size, func(windowed io.ReaderAt) error {
		start := size - eocdSpec.Size()
		found, ok, err := binrecord.SeekBackwardMatching(eocdSpec, windowed, size, start, backwardScanLimit, extra)
		if err != nil {
			return err
		}
		if !ok {
			return newError(NotAZip, "no EOCDR found within %d bytes of end of file", backwardScanLimit)
		}
		eocd = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return eocd, nil
}

// resolveZip64 decides whether ZIP64 is in play and returns the
// authoritative central-directory offset and entry count, plus the
// ZIP64 records if used (nil otherwise). The ZIP64 EOCDR is read where
// it physically sits: the locator's recorded offset plus displacement.
func resolveZip64(ra io.ReaderAt, eocd *binrecord.Instance, displacement int64) (cdOffset uint64, numEntries uint64, loc64, eocd64 *binrecord.Instance, err error) {
	cdOffset32 := eocd.Uint32(eocdCDOffset)
	entries16 := eocd.Uint16(eocdEntriesThisDisk)
	zip64Required := cdOffset32 == sentinel32 || entries16 == sentinel16

	loc64Pos := eocd.Position() - loc64Spec.Size()
	var loc64Present bool
	if loc64Pos >= 0 {
		loc64, loc64Present, err = binrecord.Read(loc64Spec, ra, loc64Pos)
		if err != nil {
			return 0, 0, nil, nil, err
		}
	}

	if zip64Required && !loc64Present {
		return 0, 0, nil, nil, newError(StructuralZip, "archive lacks a ZIP64 EOCDL that is required")
	}
	if !loc64Present {
		return uint64(cdOffset32), uint64(entries16), nil, nil, nil
	}

	eocd64Pos := int64(loc64.Uint64(loc64EOCDR64Offset)) + displacement
	var eocd64Present bool
	eocd64, eocd64Present, err = binrecord.Read(eocd64Spec, ra, eocd64Pos)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	if !eocd64Present {
		return 0, 0, nil, nil, newError(StructuralZip, "ZIP64 EOCDR not found at offset %d", eocd64Pos)
	}

	// The ZIP64 EOCDR's counts are authoritative whenever the ZIP64
	// path is active: the legacy EOCDR's count is only ever consulted
	// above, to decide whether ZIP64 is required in the first place.
	return eocd64.Uint64(eocd64CDOffset), eocd64.Uint64(eocd64EntriesThisDisk), loc64, eocd64, nil
}

// scheduleEOCDWrites stages the displacement for every offset field
// carried by the EOCDR family.
func scheduleEOCDWrites(queue *binrecord.WriteQueue, adjusting bool, displacement int64, eocd, loc64, eocd64 *binrecord.Instance) error {
	cdOffset32 := eocd.Uint32(eocdCDOffset)
	if cdOffset32 != sentinel32 {
		adjusted, err := displaceUint32Field(cdOffset32, displacement)
		if err != nil {
			return err
		}
		if adjusting {
			eocd.WriteUint32(queue, eocdCDOffset, uint32(adjusted))
		}
	}

	if loc64 != nil {
		newLocOffset := uint64(int64(loc64.Uint64(loc64EOCDR64Offset)) + displacement)
		if adjusting {
			loc64.WriteUint64(queue, loc64EOCDR64Offset, newLocOffset)
		}
	}
	if eocd64 != nil {
		newCDOffset := uint64(int64(eocd64.Uint64(eocd64CDOffset)) + displacement)
		if adjusting {
			eocd64.WriteUint64(queue, eocd64CDOffset, newCDOffset)
		}
	}
	return nil
}

// cdPhysicalStart computes where the central directory actually sits
// on disk right now: the recorded (stale, pre-prefix) offset plus the
// displacement the prepend applied.
func cdPhysicalStart(eocd, eocd64 *binrecord.Instance, displacement int64) (int64, error) {
	if eocd64 != nil {
		return int64(eocd64.Uint64(eocd64CDOffset)) + displacement, nil
	}
	cdOffset32 := eocd.Uint32(eocdCDOffset)
	adjusted, err := displaceUint32Field(cdOffset32, displacement)
	if err != nil {
		return 0, err
	}
	return adjusted, nil
}

// walkCentralDirectory reads one CFH per entry, cross-validated
// against its LFH, using a sequential cursor (not the possibly-stale
// per-entry offsets) to advance.
func walkCentralDirectory(ra io.ReaderAt, queue *binrecord.WriteQueue, adjusting bool, displacement int64, cursor int64, numEntries uint64) error {
	for i := uint64(0); i < numEntries; i++ {
		cfh, ok, err := binrecord.Read(cfhSpec, ra, cursor)
		if err != nil {
			return err
		}
		if !ok {
			return newError(StructuralZip, "central file header not where it should be (entry %d at offset %d)", i, cursor)
		}

		fileNameLen := int64(cfh.Uint16(cfhFileNameLength))
		extraLen := int64(cfh.Uint16(cfhExtraFieldLength))
		commentLen := int64(cfh.Uint16(cfhFileCommentLength))

		lfhPhysical, err := resolveLocalHeaderOffset(ra, queue, adjusting, displacement, cfh, cursor, fileNameLen, extraLen)
		if err != nil {
			return err
		}

		if _, ok, err := binrecord.Read(lfhSpec, ra, lfhPhysical); err != nil {
			return err
		} else if !ok {
			return newError(StructuralZip, "local file header not where it should be (entry %d at offset %d)", i, lfhPhysical)
		}

		cursor += cfhSpec.Size() + fileNameLen + extraLen + commentLen
	}
	return nil
}

// resolveLocalHeaderOffset returns the physical offset of an entry's
// Local File Header: either the CFH's own 32-bit offset field is
// authoritative, or (if it's the sentinel) the ZIP64 EIEF in the CFH's
// extra-field area is located and its 8-byte offset field is used
// instead.
func resolveLocalHeaderOffset(ra io.ReaderAt, queue *binrecord.WriteQueue, adjusting bool, displacement int64, cfh *binrecord.Instance, cursor, fileNameLen, extraLen int64) (int64, error) {
	recorded := cfh.Uint32(cfhLocalHeaderOffset)
	if recorded != sentinel32 {
		adjusted, err := displaceUint32Field(recorded, displacement)
		if err != nil {
			return 0, err
		}
		if adjusting {
			cfh.WriteUint32(queue, cfhLocalHeaderOffset, uint32(adjusted))
		}
		return adjusted, nil
	}

	shape := eiefShape{
		uncompressedSize: cfh.Uint32(cfhUncompressedSize) == sentinel32,
		compressedSize:   cfh.Uint32(cfhCompressedSize) == sentinel32,
	}

	extraStart := cursor + cfhSpec.Size() + fileNameLen
	extraEnd := extraStart + extraLen

	headerMatch := func(in *binrecord.Instance) bool { return in.Uint16(eiefHeaderID) == zip64ExtraID }
	headerStep := func(in *binrecord.Instance) int64 { return 4 + int64(in.Uint16(eiefHeaderSize)) }

	header, found, err := binrecord.SeekWithStep(eiefHeaderSpec, ra, extraStart, headerMatch, headerStep, extraStart, extraEnd)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, newError(StructuralZip, "ZIP64 extra field not found for entry with escaped local header offset")
	}

	declaredSize := header.Uint16(eiefHeaderSize)
	needed := minEIEFDataSize(shape)
	if int(declaredSize) < needed {
		return 0, newError(StructuralZip, "ZIP64 extra fields too small: declared %d bytes, need at least %d", declaredSize, needed)
	}

	eiefSpec := buildEIEFSpec(shape)
	eief, err := binrecord.ReadUnvalidated(eiefSpec, ra, header.Position())
	if err != nil {
		return 0, err
	}

	rawOffset := eief.Uint64(eiefLocalHeaderOffset)
	adjusted := uint64(int64(rawOffset) + displacement)
	if adjusting {
		eief.WriteUint64(queue, eiefLocalHeaderOffset, adjusted)
	}
	return int64(adjusted), nil
}

// displaceUint32Field applies displacement to a non-sentinel 32-bit
// offset field, enforcing the overflow bound: the result must stay
// strictly below the sentinel, i.e. at most 2^32-2.
func displaceUint32Field(recorded uint32, displacement int64) (int64, error) {
	adjusted := int64(recorded) + displacement
	if adjusted < 0 {
		return 0, newError(StructuralZip, "displacement %d would make offset %d negative", displacement, recorded)
	}
	if adjusted > int64(sentinel32)-1 {
		return 0, newError(Overflow, "offset %d would reach or exceed the 4 GiB limit after a displacement of %d", recorded, displacement)
	}
	return adjusted, nil
}
