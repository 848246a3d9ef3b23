package zipfixture

import (
	"io"

	"go4.org/readerutil"
)

// sameBytes is an io.ReaderAt that reads as an infinite run of the
// same byte, without ever allocating its apparent length: paired with
// io.NewSectionReader, it synthesizes a multi-gigabyte entry's content
// on read instead of holding it in memory.
type sameBytes struct {
	b byte
}

func (s *sameBytes) ReadAt(p []byte, off int64) (int, error) {
	for i := range p {
		p[i] = s.b
	}
	return len(p), nil
}

// sizedBytes adapts a byte slice to readerutil.SizeReaderAt, since
// bytes.Reader itself exposes Len but not Size.
type sizedBytes []byte

func (s sizedBytes) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(s)) {
		return 0, io.EOF
	}
	n := copy(p, s[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s sizedBytes) Size() int64 { return int64(len(s)) }

// BuildHugeEntryArchive returns a ReaderAt presenting a one-entry ZIP
// archive whose content is size zero bytes, without ever allocating
// size bytes of real memory: the content is synthesized on read via a
// repeating-byte reader and stitched to the real structural records
// with readerutil.NewMultiReaderAt, driving the ZIP64 path past the
// 4 GiB mark without allocating real gigabytes.
//
// CRC32 is left 0; nothing in this repository validates entry content,
// only the structural offset fields this fixture places for real.
func BuildHugeEntryArchive(name string, size int64) readerutil.SizeReaderAt {
	modDate, modTime := timeToMsDosTime(referenceModTime)

	lfhExtra := zip64ExtraField(uint64(size), uint64(size), 0, true)
	lfh := make([]byte, lfhLen)
	b := writeBuf(lfh)
	b.uint32(lfhSignature)
	b.uint16(zipVersion45)
	b.uint16(0)
	b.uint16(0) // Store
	b.uint16(modTime)
	b.uint16(modDate)
	b.uint32(0) // crc32, unvalidated here
	b.uint32(sentinel32)
	b.uint32(sentinel32)
	b.uint16(uint16(len(name)))
	b.uint16(uint16(len(lfhExtra)))

	lfhOffset := int64(0)
	lfhBlock := append(append(append([]byte{}, lfh...), name...), lfhExtra...)
	content := io.NewSectionReader(&sameBytes{b: 0}, 0, size)
	contentOffset := lfhOffset + int64(len(lfhBlock))

	cdExtra := zip64ExtraField(uint64(size), uint64(size), uint64(lfhOffset), true)
	cfh := make([]byte, cfhLen)
	cb := writeBuf(cfh)
	cb.uint32(cfhSignature)
	cb.uint16(zipVersion20<<8 | zipVersion20)
	cb.uint16(zipVersion45)
	cb.uint16(0)
	cb.uint16(0) // Store
	cb.uint16(modTime)
	cb.uint16(modDate)
	cb.uint32(0) // crc32
	cb.uint32(sentinel32)
	cb.uint32(sentinel32)
	cb.uint16(uint16(len(name)))
	cb.uint16(uint16(len(cdExtra)))
	cb.uint16(0)
	cb.uint16(0)
	cb.uint16(0)
	cb.uint32(0)
	cb.uint32(sentinel32)
	cdBlock := append(append(append([]byte{}, cfh...), name...), cdExtra...)

	cdOffset := contentOffset + size
	cdSize := int64(len(cdBlock))

	eocd64 := make([]byte, eocd64Len)
	eb := writeBuf(eocd64)
	eb.uint32(eocd64Sig)
	eb.uint64(eocd64Len - 12)
	eb.uint16(zipVersion45)
	eb.uint16(zipVersion45)
	eb.uint32(0)
	eb.uint32(0)
	eb.uint64(1)
	eb.uint64(1)
	eb.uint64(uint64(cdSize))
	eb.uint64(uint64(cdOffset))
	eocd64Offset := cdOffset + cdSize

	loc64 := make([]byte, loc64Len)
	lb := writeBuf(loc64)
	lb.uint32(loc64Sig)
	lb.uint32(0)
	lb.uint64(uint64(eocd64Offset))
	lb.uint32(1)

	eocd := make([]byte, eocdLen)
	eob := writeBuf(eocd)
	eob.uint32(eocdSignature)
	eob.uint16(0)
	eob.uint16(0)
	eob.uint16(sentinel16)
	eob.uint16(sentinel16)
	eob.uint32(sentinel32)
	eob.uint32(sentinel32)
	eob.uint16(0)

	tail := append(append(append([]byte{}, eocd64...), loc64...), eocd...)

	return readerutil.NewMultiReaderAt(
		sizedBytes(lfhBlock),
		content,
		sizedBytes(cdBlock),
		sizedBytes(tail),
	)
}
