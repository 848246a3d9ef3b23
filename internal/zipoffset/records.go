package zipoffset

import "github.com/go-zipper/zipprefix/internal/binrecord"

// Field identifiers, one closed enumeration per record kind, checked
// at compile time rather than looked up in a runtime name->field
// dictionary.
const (
	eocdSignature FieldID = iota
	eocdDiskNumber
	eocdDiskWithCD
	eocdEntriesThisDisk
	eocdEntriesTotal
	eocdCDSize
	eocdCDOffset
	eocdCommentLength
)

const (
	loc64Signature FieldID = iota
	loc64DiskWithEOCDR64
	loc64EOCDR64Offset
	loc64TotalDisks
)

const (
	eocd64Signature FieldID = iota
	eocd64RecordSize
	eocd64VersionMadeBy
	eocd64VersionNeeded
	eocd64DiskNumber
	eocd64DiskWithCD
	eocd64EntriesThisDisk
	eocd64EntriesTotal
	eocd64CDSize
	eocd64CDOffset
)

const (
	cfhSignature FieldID = iota
	cfhVersionMadeBy
	cfhVersionNeeded
	cfhFlags
	cfhMethod
	cfhModTime
	cfhModDate
	cfhCRC32
	cfhCompressedSize
	cfhUncompressedSize
	cfhFileNameLength
	cfhExtraFieldLength
	cfhFileCommentLength
	cfhDiskNumberStart
	cfhInternalAttrs
	cfhExternalAttrs
	cfhLocalHeaderOffset
)

const (
	lfhSignature FieldID = iota
	lfhVersionNeeded
	lfhFlags
	lfhMethod
	lfhModTime
	lfhModDate
	lfhCRC32
	lfhCompressedSize
	lfhUncompressedSize
	lfhFileNameLength
	lfhExtraFieldLength
)

// eiefHeader identifies the 4-byte header-id/size pair that precedes
// every extra-field sub-record (ZIP64 EIEF included), and eiefFull
// identifies the fields of a ZIP64 EIEF once its shape (which
// conditional 8-byte fields are present) is known. Both groups are
// combined into buildEIEFSpec's Spec, so they share one iota block to
// keep every ID in that Spec unique. Not every Spec built from these
// IDs uses all of eiefFull's fields; buildEIEFSpec only includes the
// fields this archive's CFH entry actually escaped.
const (
	eiefHeaderID FieldID = iota
	eiefHeaderSize
	eiefUncompressedSize
	eiefCompressedSize
	eiefLocalHeaderOffset
)

// FieldID re-exports binrecord.FieldID so callers of this package's
// exported helpers never need to import binrecord directly.
type FieldID = binrecord.FieldID

var (
	eocdMagic   = []byte{0x50, 0x4b, 0x05, 0x06}
	loc64Magic  = []byte{0x50, 0x4b, 0x06, 0x07}
	eocd64Magic = []byte{0x50, 0x4b, 0x06, 0x06}
	cfhMagic    = []byte{0x50, 0x4b, 0x01, 0x02}
	lfhMagic    = []byte{0x50, 0x4b, 0x03, 0x04}
)

const zip64ExtraID = uint16(0x0001)

const (
	sentinel16 = 0xffff
	sentinel32 = uint32(0xffffffff)
)

// eocdSpec is the fixed 22-byte portion of the End of Central
// Directory Record.
var eocdSpec = binrecord.NewSpec("EOCDR",
	binrecord.Field{ID: eocdSignature, Width: 4, Magic: eocdMagic},
	binrecord.Field{ID: eocdDiskNumber, Width: 2},
	binrecord.Field{ID: eocdDiskWithCD, Width: 2},
	binrecord.Field{ID: eocdEntriesThisDisk, Width: 2},
	binrecord.Field{ID: eocdEntriesTotal, Width: 2},
	binrecord.Field{ID: eocdCDSize, Width: 4},
	binrecord.Field{ID: eocdCDOffset, Width: 4},
	binrecord.Field{ID: eocdCommentLength, Width: 2},
)

// loc64Spec is the 20-byte ZIP64 End of Central Directory Locator.
var loc64Spec = binrecord.NewSpec("ZIP64_EOCDL",
	binrecord.Field{ID: loc64Signature, Width: 4, Magic: loc64Magic},
	binrecord.Field{ID: loc64DiskWithEOCDR64, Width: 4},
	binrecord.Field{ID: loc64EOCDR64Offset, Width: 8},
	binrecord.Field{ID: loc64TotalDisks, Width: 4},
)

// eocd64Spec is the fixed 56-byte portion of the ZIP64 End of Central
// Directory Record.
var eocd64Spec = binrecord.NewSpec("ZIP64_EOCDR",
	binrecord.Field{ID: eocd64Signature, Width: 4, Magic: eocd64Magic},
	binrecord.Field{ID: eocd64RecordSize, Width: 8},
	binrecord.Field{ID: eocd64VersionMadeBy, Width: 2},
	binrecord.Field{ID: eocd64VersionNeeded, Width: 2},
	binrecord.Field{ID: eocd64DiskNumber, Width: 4},
	binrecord.Field{ID: eocd64DiskWithCD, Width: 4},
	binrecord.Field{ID: eocd64EntriesThisDisk, Width: 8},
	binrecord.Field{ID: eocd64EntriesTotal, Width: 8},
	binrecord.Field{ID: eocd64CDSize, Width: 8},
	binrecord.Field{ID: eocd64CDOffset, Width: 8},
)

// cfhSpec is the fixed 46-byte portion of a Central File Header.
var cfhSpec = binrecord.NewSpec("CFH",
	binrecord.Field{ID: cfhSignature, Width: 4, Magic: cfhMagic},
	binrecord.Field{ID: cfhVersionMadeBy, Width: 2},
	binrecord.Field{ID: cfhVersionNeeded, Width: 2},
	binrecord.Field{ID: cfhFlags, Width: 2},
	binrecord.Field{ID: cfhMethod, Width: 2},
	binrecord.Field{ID: cfhModTime, Width: 2},
	binrecord.Field{ID: cfhModDate, Width: 2},
	binrecord.Field{ID: cfhCRC32, Width: 4},
	binrecord.Field{ID: cfhCompressedSize, Width: 4},
	binrecord.Field{ID: cfhUncompressedSize, Width: 4},
	binrecord.Field{ID: cfhFileNameLength, Width: 2},
	binrecord.Field{ID: cfhExtraFieldLength, Width: 2},
	binrecord.Field{ID: cfhFileCommentLength, Width: 2},
	binrecord.Field{ID: cfhDiskNumberStart, Width: 2},
	binrecord.Field{ID: cfhInternalAttrs, Width: 2},
	binrecord.Field{ID: cfhExternalAttrs, Width: 4},
	binrecord.Field{ID: cfhLocalHeaderOffset, Width: 4},
)

// lfhSpec is the fixed 30-byte portion of a Local File Header. Its
// content beyond the magic is never validated: the walker only needs
// to confirm the LFH is present where the central directory says it
// is, not re-derive or cross-check its fields.
var lfhSpec = binrecord.NewSpec("LFH",
	binrecord.Field{ID: lfhSignature, Width: 4, Magic: lfhMagic},
	binrecord.Field{ID: lfhVersionNeeded, Width: 2},
	binrecord.Field{ID: lfhFlags, Width: 2},
	binrecord.Field{ID: lfhMethod, Width: 2},
	binrecord.Field{ID: lfhModTime, Width: 2},
	binrecord.Field{ID: lfhModDate, Width: 2},
	binrecord.Field{ID: lfhCRC32, Width: 4},
	binrecord.Field{ID: lfhCompressedSize, Width: 4},
	binrecord.Field{ID: lfhUncompressedSize, Width: 4},
	binrecord.Field{ID: lfhFileNameLength, Width: 2},
	binrecord.Field{ID: lfhExtraFieldLength, Width: 2},
)

// eiefHeaderSpec is the 4-byte header-id/size pair every extra-field
// sub-record begins with (including, but not limited to, the ZIP64
// EIEF).
var eiefHeaderSpec = binrecord.NewSpec("extraFieldHeader",
	binrecord.Field{ID: eiefHeaderID, Width: 2},
	binrecord.Field{ID: eiefHeaderSize, Width: 2},
)

// eiefShape describes which conditional 8-byte fields a ZIP64 EIEF is
// expected to carry, derived from which of the CFH's 32-bit size/offset
// fields held the sentinel.
type eiefShape struct {
	uncompressedSize bool
	compressedSize   bool
	// localHeaderOffset is always true: a non-sentinel CFH local
	// header offset never sends the walker into the EIEF at all, so
	// every EIEF this package reads carries at least that field.
}

// buildEIEFSpec constructs the record descriptor for a ZIP64 EIEF
// whose fields match shape, in APPNOTE.TXT's mandated order: sizes
// precede offsets.
func buildEIEFSpec(shape eiefShape) *binrecord.Spec {
	fields := []binrecord.Field{
		{ID: eiefHeaderID, Width: 2, Magic: []byte{0x01, 0x00}},
		{ID: eiefHeaderSize, Width: 2},
	}
	if shape.uncompressedSize {
		fields = append(fields, binrecord.Field{ID: eiefUncompressedSize, Width: 8})
	}
	if shape.compressedSize {
		fields = append(fields, binrecord.Field{ID: eiefCompressedSize, Width: 8})
	}
	fields = append(fields, binrecord.Field{ID: eiefLocalHeaderOffset, Width: 8})
	return binrecord.NewSpec("ZIP64_EIEF", fields...)
}

// minEIEFDataSize is the minimum value the EIEF's declared size field
// must hold for shape: 8 bytes for each conditionally-present 8-byte
// field, not counting the 4-byte header itself.
func minEIEFDataSize(shape eiefShape) int {
	n := 1 // local header offset, always present
	if shape.uncompressedSize {
		n++
	}
	if shape.compressedSize {
		n++
	}
	return 8 * n
}
