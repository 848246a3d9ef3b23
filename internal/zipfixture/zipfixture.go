// Package zipfixture builds minimal ZIP archives in memory for
// internal/zipoffset's tests: the walker needs archives with known,
// controllable offsets, including ones that force the ZIP64 path
// without actually writing gigabytes of data.
//
// The record-encoding helpers here (a little-endian writeBuf,
// timeToMsDosTime and detectUTF8) build a whole archive up front in a
// byte slice rather than streaming one entry at a time.
package zipfixture

import (
	"encoding/binary"
	"hash/crc32"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	lfhSignature  = 0x04034b50
	cfhSignature  = 0x02014b50
	eocdSignature = 0x06054b50
	loc64Sig      = 0x07064b50
	eocd64Sig     = 0x06064b50

	lfhLen   = 30
	cfhLen   = 46
	eocdLen  = 22
	loc64Len = 20
	eocd64Len = 56

	zip64ExtraID = 0x0001

	zipVersion20 = 20
	zipVersion45 = 45

	sentinel16 = 0xffff
	sentinel32 = 0xffffffff
)

// referenceModTime is the fixed modification time every fixture entry
// carries, chosen arbitrarily; nothing in this repository inspects it.
var referenceModTime = time.Date(2024, time.January, 2, 3, 4, 6, 0, time.UTC)

// Entry describes one file to place in a built archive.
type Entry struct {
	Name string
	Data []byte

	// ForceZip64 makes this entry's CFH and LFH report sentinel
	// size/offset fields and carry a ZIP64 extra field with the real
	// values, exercising internal/zipoffset's ZIP64 local-header-offset
	// path regardless of how small Data actually is.
	ForceZip64 bool
}

// Options controls whole-archive properties.
type Options struct {
	// ForceZip64EOCD makes the EOCDR report sentinel entry-count/offset
	// fields and appends a ZIP64 EOCDL+EOCDR carrying the real values.
	ForceZip64EOCD bool
	// Comment is the EOCDR comment, appended after the EOCDR with its
	// length recorded in the EOCDR's comment-length field.
	Comment string
}

type writeBuf []byte

func (b *writeBuf) uint8(v uint8) { (*b)[0] = v; *b = (*b)[1:] }
func (b *writeBuf) uint16(v uint16) {
	binary.LittleEndian.PutUint16(*b, v)
	*b = (*b)[2:]
}
func (b *writeBuf) uint32(v uint32) {
	binary.LittleEndian.PutUint32(*b, v)
	*b = (*b)[4:]
}
func (b *writeBuf) uint64(v uint64) {
	binary.LittleEndian.PutUint64(*b, v)
	*b = (*b)[8:]
}

// timeToMsDosTime converts t to an MS-DOS date/time pair, 2s
// resolution, per the DOS date/time encoding APPNOTE.TXT specifies.
func timeToMsDosTime(t time.Time) (fDate, fTime uint16) {
	fDate = uint16(t.Day() + int(t.Month())<<5 + (t.Year()-1980)<<9)
	fTime = uint16(t.Second()/2 + t.Minute()<<5 + t.Hour()<<11)
	return
}

// detectUTF8 reports whether s is valid UTF-8 and whether it requires
// the UTF-8 flag to round-trip through CP-437-assuming readers.
func detectUTF8(s string) (valid, require bool) {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r < 0x20 || r > 0x7d || r == 0x5c {
			if !utf8.ValidRune(r) || (r == utf8.RuneError && size == 1) {
				return false, false
			}
			require = true
		}
	}
	return true, require
}

func zip64ExtraField(uncompressed, compressed uint64, offset uint64, includeSizes bool) []byte {
	var buf []byte
	if includeSizes {
		buf = make([]byte, 4+8+8+8)
	} else {
		buf = make([]byte, 4+8)
	}
	b := writeBuf(buf)
	b.uint16(zip64ExtraID)
	b.uint16(uint16(len(buf) - 4))
	if includeSizes {
		b.uint64(uncompressed)
		b.uint64(compressed)
	}
	b.uint64(offset)
	return buf
}

// Build assembles a complete ZIP archive: one LFH+data per entry in
// order, then the central directory, then the end record(s), and
// returns the archive's bytes.
func Build(entries []Entry, opts Options) []byte {
	var out []byte
	type placed struct {
		entry  Entry
		offset uint64
		flags  uint16
	}
	placedEntries := make([]placed, 0, len(entries))
	modDate, modTime := timeToMsDosTime(referenceModTime)

	for _, e := range entries {
		offset := uint64(len(out))
		_, require := detectUTF8(e.Name)
		var flags uint16
		if require {
			flags |= 0x800
		}

		var extra []byte
		if e.ForceZip64 {
			extra = zip64ExtraField(uint64(len(e.Data)), uint64(len(e.Data)), offset, true)
		}

		buf := make([]byte, lfhLen)
		b := writeBuf(buf)
		b.uint32(lfhSignature)
		if e.ForceZip64 {
			b.uint16(zipVersion45)
		} else {
			b.uint16(zipVersion20)
		}
		b.uint16(flags)
		b.uint16(0) // Store
		b.uint16(modTime)
		b.uint16(modDate)
		b.uint32(crc32Of(e.Data))
		if e.ForceZip64 {
			b.uint32(sentinel32)
			b.uint32(sentinel32)
		} else {
			b.uint32(uint32(len(e.Data)))
			b.uint32(uint32(len(e.Data)))
		}
		b.uint16(uint16(len(e.Name)))
		b.uint16(uint16(len(extra)))
		out = append(out, buf...)
		out = append(out, e.Name...)
		out = append(out, extra...)
		out = append(out, e.Data...)

		placedEntries = append(placedEntries, placed{entry: e, offset: offset, flags: flags})
	}

	cdStart := uint64(len(out))
	for _, p := range placedEntries {
		e := p.entry
		var extra []byte
		var sizes32, offset32 uint32
		cfhOffset := p.offset
		if e.ForceZip64 || cfhOffset >= sentinel32 {
			extra = zip64ExtraField(uint64(len(e.Data)), uint64(len(e.Data)), cfhOffset, true)
			sizes32 = sentinel32
			offset32 = sentinel32
		} else {
			sizes32 = uint32(len(e.Data))
			offset32 = uint32(cfhOffset)
		}

		buf := make([]byte, cfhLen)
		b := writeBuf(buf)
		b.uint32(cfhSignature)
		b.uint16(zipVersion20<<8 | zipVersion20)
		if e.ForceZip64 {
			b.uint16(zipVersion45)
		} else {
			b.uint16(zipVersion20)
		}
		b.uint16(p.flags)
		b.uint16(0) // Store
		b.uint16(modTime)
		b.uint16(modDate)
		b.uint32(crc32Of(e.Data))
		b.uint32(sizes32)
		b.uint32(sizes32)
		b.uint16(uint16(len(e.Name)))
		b.uint16(uint16(len(extra)))
		b.uint16(0) // comment length
		b.uint16(0) // disk number start
		b.uint16(0) // internal attrs
		b.uint32(0) // external attrs
		b.uint32(offset32)
		out = append(out, buf...)
		out = append(out, e.Name...)
		out = append(out, extra...)
	}
	cdSize := uint64(len(out)) - cdStart

	if opts.ForceZip64EOCD || len(entries) >= sentinel16 || cdSize >= sentinel32 || cdStart >= sentinel32 {
		buf := make([]byte, eocd64Len)
		b := writeBuf(buf)
		b.uint32(eocd64Sig)
		b.uint64(eocd64Len - 12)
		b.uint16(zipVersion45)
		b.uint16(zipVersion45)
		b.uint32(0)
		b.uint32(0)
		b.uint64(uint64(len(entries)))
		b.uint64(uint64(len(entries)))
		b.uint64(cdSize)
		b.uint64(cdStart)
		eocd64Offset := uint64(len(out))
		out = append(out, buf...)

		locBuf := make([]byte, loc64Len)
		lb := writeBuf(locBuf)
		lb.uint32(loc64Sig)
		lb.uint32(0)
		lb.uint64(eocd64Offset)
		lb.uint32(1)
		out = append(out, locBuf...)
	}

	entriesField := uint16(len(entries))
	cdSizeField := uint32(cdSize)
	cdStartField := uint32(cdStart)
	if opts.ForceZip64EOCD || len(entries) >= sentinel16 {
		entriesField = sentinel16
	}
	if cdSize >= sentinel32 {
		cdSizeField = sentinel32
	}
	if cdStart >= sentinel32 || opts.ForceZip64EOCD {
		cdStartField = sentinel32
	}

	buf := make([]byte, eocdLen)
	b := writeBuf(buf)
	b.uint32(eocdSignature)
	b.uint16(0)
	b.uint16(0)
	b.uint16(entriesField)
	b.uint16(entriesField)
	b.uint32(cdSizeField)
	b.uint32(cdStartField)
	b.uint16(uint16(len(opts.Comment)))
	out = append(out, buf...)
	out = append(out, opts.Comment...)

	return out
}

func crc32Of(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// Prepend simulates what pkg/prefixer does before AdjustOffsets runs:
// it returns prefix+archive concatenated, with every offset field
// inside archive left exactly as Build wrote it (i.e. stale, relative
// to archive alone). Walking the result with displacement ==
// len(prefix) is what's expected to make it a valid archive again.
func Prepend(prefix []byte, archive []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(archive))
	out = append(out, prefix...)
	out = append(out, archive...)
	return out
}

// ForgedSignatureComment builds an EOCDR comment of totalLen bytes
// with a forged EOCDR magic planted at byte offset forgedAt within it —
// used to test CommentLengthCheck hardening, since a backward magic
// scan without it would stop at the forged signature instead of the
// real EOCDR that precedes the whole comment.
func ForgedSignatureComment(totalLen, forgedAt int) []byte {
	comment := []byte(strings.Repeat("A", totalLen))
	copy(comment[forgedAt:], []byte{0x50, 0x4b, 0x05, 0x06})
	return comment
}
