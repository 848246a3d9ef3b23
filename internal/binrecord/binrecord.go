// Package binrecord is a small declarative engine for reading and
// staging writes to fixed-layout binary records: a magic, a sequence
// of fixed-width little-endian fields, random-access positioned
// reads, and writes that are staged into a queue rather than applied
// immediately.
//
// The package knows nothing about ZIP; it is driven entirely by the
// field/record descriptors its caller supplies.
package binrecord

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FieldID identifies a field within a Spec. Callers define their own
// closed enumeration (typically an iota block per record kind); an ID
// has no meaning outside the Spec it was registered with.
type FieldID int

// Field describes one fixed-width field of a record.
type Field struct {
	ID FieldID
	// Width is the field size in bytes: 1, 2, 4 or 8.
	Width int
	// Magic, if non-nil, is the exact byte sequence this field must
	// hold for a record to be considered present. len(Magic) must
	// equal Width.
	Magic []byte
}

type fieldMeta struct {
	field  Field
	offset int
}

// Spec is an ordered sequence of fields, little-endian, describing a
// fixed-size record. Build one with NewSpec and reuse it across reads.
type Spec struct {
	Name  string
	metas []fieldMeta
	byID  map[FieldID]fieldMeta
	size  int
}

// NewSpec builds a Spec from fields in on-disk order. Each field's
// offset within the record is implied by its position in fields, not
// stated explicitly.
func NewSpec(name string, fields ...Field) *Spec {
	s := &Spec{Name: name, byID: make(map[FieldID]fieldMeta, len(fields))}
	offset := 0
	for _, f := range fields {
		if f.Magic != nil && len(f.Magic) != f.Width {
			panic(fmt.Sprintf("binrecord: field %v in %s has magic of wrong width", f.ID, name))
		}
		if _, dup := s.byID[f.ID]; dup {
			panic(fmt.Sprintf("binrecord: field %v appears more than once in %s", f.ID, name))
		}
		m := fieldMeta{field: f, offset: offset}
		s.metas = append(s.metas, m)
		s.byID[f.ID] = m
		offset += f.Width
	}
	s.size = offset
	return s
}

// Size is the total byte size of a record described by s.
func (s *Spec) Size() int64 { return int64(s.size) }

func (s *Spec) meta(id FieldID) fieldMeta {
	m, ok := s.byID[id]
	if !ok {
		panic(fmt.Sprintf("binrecord: %s has no field %v", s.Name, id))
	}
	return m
}

// Instance is a Spec together with the absolute file position it was
// read from and a private copy of its bytes. Later writes staged
// through an Instance never corrupt the buffer another Instance read
// earlier.
type Instance struct {
	spec     *Spec
	position int64
	buf      []byte
}

// Position is the absolute file offset this instance was read from.
func (in *Instance) Position() int64 { return in.position }

// Spec is the descriptor this instance was read with.
func (in *Instance) Spec() *Spec { return in.spec }

func (in *Instance) validateMagic() bool {
	for _, m := range in.spec.metas {
		if m.field.Magic == nil {
			continue
		}
		got := in.buf[m.offset : m.offset+m.field.Width]
		for i, want := range m.field.Magic {
			if got[i] != want {
				return false
			}
		}
	}
	return true
}

// Read positions ra at position, reads exactly spec.Size() bytes, and
// returns an Instance if every field with a declared Magic matches.
// ok is false (with a nil error) if the bytes were read successfully
// but did not match.
func Read(spec *Spec, ra io.ReaderAt, position int64) (instance *Instance, ok bool, err error) {
	in, err := ReadUnvalidated(spec, ra, position)
	if err != nil {
		return nil, false, err
	}
	if !in.validateMagic() {
		return nil, false, nil
	}
	return in, true, nil
}

// ReadUnvalidated is like Read but skips the magic check.
func ReadUnvalidated(spec *Spec, ra io.ReaderAt, position int64) (*Instance, error) {
	buf := make([]byte, spec.size)
	if _, err := ra.ReadAt(buf, position); err != nil {
		return nil, err
	}
	return &Instance{spec: spec, position: position, buf: buf}, nil
}

// SeekBackward attempts reads at start, start-1, start-2, ... stopping
// at the first instance whose magic matches, or when the candidate
// position leaves [0, fileSize-spec.Size()], or, if maxDistance > 0,
// once it has moved maxDistance bytes back from start (maxDistance+1
// attempts in all). This is the "backward-from-EOF" form;
// the ZIP walker never needs a forward scan.
func SeekBackward(spec *Spec, ra io.ReaderAt, fileSize int64, start int64, maxDistance int64) (*Instance, bool, error) {
	return SeekBackwardMatching(spec, ra, fileSize, start, maxDistance, nil)
}

// SeekBackwardMatching is SeekBackward with an additional caller
// predicate: a candidate whose magic validates is accepted only if
// extra also reports true (or extra is nil). This lets a caller add
// hardening against a forged magic sequence appearing earlier in the
// scan window (for example, requiring a trailing length field to
// reach exactly EOF) without special-casing it in the engine.
func SeekBackwardMatching(spec *Spec, ra io.ReaderAt, fileSize int64, start int64, maxDistance int64, extra MatchFunc) (*Instance, bool, error) {
	maxStart := fileSize - spec.Size()
	pos := start
	if pos > maxStart {
		pos = maxStart
	}
	steps := int64(0)
	for pos >= 0 {
		in, ok, err := Read(spec, ra, pos)
		if err != nil {
			return nil, false, err
		}
		if ok && (extra == nil || extra(in)) {
			return in, true, nil
		}
		pos--
		steps++
		if maxDistance > 0 && steps > maxDistance {
			return nil, false, nil
		}
	}
	return nil, false, nil
}

// StepFunc inspects a non-matching instance read during SeekWithStep
// and returns how many bytes to advance before the next attempt. A
// return of 0 terminates the search without a match.
type StepFunc func(in *Instance) int64

// MatchFunc reports whether an instance read during SeekWithStep
// should be considered a match.
type MatchFunc func(in *Instance) bool

// SeekWithStep generalises SeekBackward for records whose next
// candidate position isn't a fixed stride away: at each candidate
// position it reads spec unvalidated, asks match whether this is the
// record being sought, and if not asks step how far to advance. It is
// used to walk the variable-length extra-field area of a CFH, where
// each sub-record is prefixed by header-id(2)/size(2) and the next
// sub-record starts 4+size bytes later.
func SeekWithStep(spec *Spec, ra io.ReaderAt, start int64, match MatchFunc, step StepFunc, minPos, maxPos int64) (*Instance, bool, error) {
	pos := start
	for {
		if pos < minPos || pos+spec.Size() > maxPos {
			return nil, false, nil
		}
		in, err := ReadUnvalidated(spec, ra, pos)
		if err != nil {
			return nil, false, err
		}
		if match(in) {
			return in, true, nil
		}
		advance := step(in)
		if advance <= 0 {
			return nil, false, nil
		}
		pos += advance
	}
}

// Uint16 decodes a little-endian unsigned 16-bit field.
func (in *Instance) Uint16(id FieldID) uint16 {
	m := in.spec.meta(id)
	if m.field.Width < 2 {
		panic(fmt.Sprintf("binrecord: field %v is %d bytes wide, cannot read as uint16", id, m.field.Width))
	}
	return binary.LittleEndian.Uint16(in.buf[m.offset:])
}

// Uint32 decodes a little-endian unsigned 32-bit field. The result is
// never sign-extended.
func (in *Instance) Uint32(id FieldID) uint32 {
	m := in.spec.meta(id)
	if m.field.Width < 4 {
		panic(fmt.Sprintf("binrecord: field %v is %d bytes wide, cannot read as uint32", id, m.field.Width))
	}
	return binary.LittleEndian.Uint32(in.buf[m.offset:])
}

// Uint64 decodes a little-endian unsigned 64-bit field.
func (in *Instance) Uint64(id FieldID) uint64 {
	m := in.spec.meta(id)
	if m.field.Width < 8 {
		panic(fmt.Sprintf("binrecord: field %v is %d bytes wide, cannot read as uint64", id, m.field.Width))
	}
	return binary.LittleEndian.Uint64(in.buf[m.offset:])
}

// Int16 decodes a little-endian field as a signed 16-bit value.
func (in *Instance) Int16(id FieldID) int16 {
	return int16(in.Uint16(id))
}

// Int32 decodes a little-endian field as a signed 32-bit value.
func (in *Instance) Int32(id FieldID) int32 {
	return int32(in.Uint32(id))
}

// Int64 decodes a little-endian field as a signed 64-bit value.
func (in *Instance) Int64(id FieldID) int64 {
	return int64(in.Uint64(id))
}

// Bytes returns a copy of the raw bytes backing field id.
func (in *Instance) Bytes(id FieldID) []byte {
	m := in.spec.meta(id)
	out := make([]byte, m.field.Width)
	copy(out, in.buf[m.offset:m.offset+m.field.Width])
	return out
}

// offsetOf returns the absolute file position of field id within in.
func (in *Instance) offsetOf(id FieldID) int64 {
	m := in.spec.meta(id)
	return in.position + int64(m.offset)
}
