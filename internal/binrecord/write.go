package binrecord

import (
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// PendingWrite is an absolute file position and the bytes to place
// there. Writes accumulate in a WriteQueue ordered by ascending
// position; the caller producing them must never produce overlapping
// writes (behavior of overlap is undefined).
type PendingWrite struct {
	Position int64
	Data     []byte
}

// WriteQueue accumulates PendingWrite values and commits them in
// ascending-position order. The zero value is ready to use.
type WriteQueue struct {
	writes []PendingWrite
}

// Len reports how many writes are queued.
func (q *WriteQueue) Len() int { return len(q.writes) }

// Writes returns the queued writes in the order they were added (not
// necessarily position order; Apply sorts before committing).
func (q *WriteQueue) Writes() []PendingWrite { return q.writes }

func (q *WriteQueue) push(position int64, data []byte) {
	q.writes = append(q.writes, PendingWrite{Position: position, Data: data})
}

// WriteUint16 stages a little-endian uint16 write at field id's
// position within in.
func (in *Instance) WriteUint16(q *WriteQueue, id FieldID, v uint16) {
	m := in.spec.meta(id)
	if m.field.Width != 2 {
		panic(fmt.Sprintf("binrecord: field %v is %d bytes wide, cannot write uint16", id, m.field.Width))
	}
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	q.push(in.offsetOf(id), buf)
}

// WriteUint32 stages a little-endian uint32 write at field id's
// position within in.
func (in *Instance) WriteUint32(q *WriteQueue, id FieldID, v uint32) {
	m := in.spec.meta(id)
	if m.field.Width != 4 {
		panic(fmt.Sprintf("binrecord: field %v is %d bytes wide, cannot write uint32", id, m.field.Width))
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	q.push(in.offsetOf(id), buf)
}

// WriteUint64 stages a little-endian uint64 write at field id's
// position within in.
func (in *Instance) WriteUint64(q *WriteQueue, id FieldID, v uint64) {
	m := in.spec.meta(id)
	if m.field.Width != 8 {
		panic(fmt.Sprintf("binrecord: field %v is %d bytes wide, cannot write uint64", id, m.field.Width))
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	q.push(in.offsetOf(id), buf)
}

// WriteByte stages a single-byte write at field id's position.
func (in *Instance) WriteByte(q *WriteQueue, id FieldID, v byte) {
	m := in.spec.meta(id)
	if m.field.Width != 1 {
		panic(fmt.Sprintf("binrecord: field %v is %d bytes wide, cannot write a byte", id, m.field.Width))
	}
	q.push(in.offsetOf(id), []byte{v})
}

// WriteBytes stages a raw write of exactly field id's width at its
// position within in.
func (in *Instance) WriteBytes(q *WriteQueue, id FieldID, v []byte) {
	m := in.spec.meta(id)
	if len(v) != m.field.Width {
		panic(fmt.Sprintf("binrecord: field %v is %d bytes wide, got %d", id, m.field.Width, len(v)))
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	q.push(in.offsetOf(id), cp)
}

// Apply commits the queued writes to w in ascending position order.
// It does not clear the queue.
func (q *WriteQueue) Apply(w io.WriterAt) error {
	ordered := make([]PendingWrite, len(q.writes))
	copy(ordered, q.writes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	for _, pw := range ordered {
		if _, err := w.WriteAt(pw.Data, pw.Position); err != nil {
			return err
		}
	}
	return nil
}
