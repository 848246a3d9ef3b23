package binrecord

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

const (
	fID FieldID = iota
	fMagic
	fU16
	fU32
	fU64
)

func testSpec() *Spec {
	return NewSpec("test",
		Field{ID: fMagic, Width: 4, Magic: []byte{0x50, 0x4b, 0x01, 0x02}},
		Field{ID: fU16, Width: 2},
		Field{ID: fU32, Width: 4},
		Field{ID: fU64, Width: 8},
	)
}

func TestSpec_Size(t *testing.T) {
	s := testSpec()
	if got, want := s.Size(), int64(18); got != want {
		t.Errorf("Size() = %d, want %d", got, want)
	}
}

func TestRead(t *testing.T) {
	tests := []struct {
		name       string
		buf        []byte
		wantOK     bool
		wantErrStr string
	}{
		{
			name:   "matches",
			buf:    append([]byte{0x50, 0x4b, 0x01, 0x02}, make([]byte, 14)...),
			wantOK: true,
		},
		{
			name:   "magic mismatch",
			buf:    append([]byte{0x50, 0x4b, 0x03, 0x04}, make([]byte, 14)...),
			wantOK: false,
		},
		{
			name:       "short read",
			buf:        []byte{0x50, 0x4b},
			wantErrStr: "EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra := bytes.NewReader(tt.buf)
			in, ok, err := Read(testSpec(), ra, 0)
			if tt.wantErrStr != "" {
				if err == nil || !errors.Is(err, io.EOF) {
					t.Fatalf("err = %v, want %s", err, tt.wantErrStr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && in == nil {
				t.Fatal("ok but instance is nil")
			}
		})
	}
}

func TestInstance_FieldAccessors(t *testing.T) {
	buf := make([]byte, 18)
	copy(buf[0:4], []byte{0x50, 0x4b, 0x01, 0x02})
	buf[4], buf[5] = 0x34, 0x12
	buf[6], buf[7], buf[8], buf[9] = 0x78, 0x56, 0x34, 0x12
	for i := 0; i < 8; i++ {
		buf[10+i] = byte(i + 1)
	}

	in, ok, err := Read(testSpec(), bytes.NewReader(buf), 0)
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v, %v", in, ok, err)
	}
	if got, want := in.Uint16(fU16), uint16(0x1234); got != want {
		t.Errorf("Uint16() = %#x, want %#x", got, want)
	}
	if got, want := in.Uint32(fU32), uint32(0x12345678); got != want {
		t.Errorf("Uint32() = %#x, want %#x", got, want)
	}
	if got, want := in.Uint64(fU64), uint64(0x0807060504030201); got != want {
		t.Errorf("Uint64() = %#x, want %#x", got, want)
	}
}

func TestInstance_Uint32_NoSignExtension(t *testing.T) {
	buf := make([]byte, 18)
	copy(buf[0:4], []byte{0x50, 0x4b, 0x01, 0x02})
	buf[6], buf[7], buf[8], buf[9] = 0xff, 0xff, 0xff, 0xff

	in, ok, err := Read(testSpec(), bytes.NewReader(buf), 0)
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v, %v", in, ok, err)
	}
	if got, want := in.Uint32(fU32), uint32(0xffffffff); got != want {
		t.Errorf("Uint32() = %#x, want %#x", got, want)
	}
}

func TestInstance_FieldAccessor_TooNarrowPanics(t *testing.T) {
	buf := make([]byte, 18)
	copy(buf[0:4], []byte{0x50, 0x4b, 0x01, 0x02})
	in, ok, err := Read(testSpec(), bytes.NewReader(buf), 0)
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v, %v", in, ok, err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic reading a 2-byte field as uint32")
		}
	}()
	in.Uint32(fU16)
}

func TestInstance_UnknownField_Panics(t *testing.T) {
	buf := make([]byte, 18)
	copy(buf[0:4], []byte{0x50, 0x4b, 0x01, 0x02})
	in, ok, err := Read(testSpec(), bytes.NewReader(buf), 0)
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v, %v", in, ok, err)
	}

	const unknown FieldID = 999
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic looking up an unknown field")
		}
	}()
	in.Uint16(unknown)
}

// TestInstance_BufferIsPrivateCopy verifies that staging a write
// through an Instance never mutates the bytes that Instance already
// read.
func TestInstance_BufferIsPrivateCopy(t *testing.T) {
	buf := make([]byte, 18)
	copy(buf[0:4], []byte{0x50, 0x4b, 0x01, 0x02})

	ra := bytes.NewReader(buf)
	first, ok, err := Read(testSpec(), ra, 0)
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v, %v", first, ok, err)
	}
	before := first.Uint32(fU32)

	var q WriteQueue
	first.WriteUint32(&q, fU32, 0xdeadbeef)

	if got := first.Uint32(fU32); got != before {
		t.Errorf("staging a write mutated the read instance's buffer: got %#x, want %#x", got, before)
	}
}

func TestSeekBackward(t *testing.T) {
	size := int64(40)
	buf := make([]byte, size)
	copy(buf[22:26], []byte{0x50, 0x4b, 0x01, 0x02})

	spec := testSpec()
	in, ok, err := SeekBackward(spec, bytes.NewReader(buf), size, size-spec.Size(), 0)
	if err != nil {
		t.Fatalf("SeekBackward() error = %v", err)
	}
	if !ok {
		t.Fatal("SeekBackward() did not find the record")
	}
	if got, want := in.Position(), int64(22); got != want {
		t.Errorf("Position() = %d, want %d", got, want)
	}
}

func TestSeekBackward_NotFound(t *testing.T) {
	size := int64(40)
	buf := make([]byte, size)

	spec := testSpec()
	_, ok, err := SeekBackward(spec, bytes.NewReader(buf), size, size-spec.Size(), 0)
	if err != nil {
		t.Fatalf("SeekBackward() error = %v", err)
	}
	if ok {
		t.Fatal("SeekBackward() unexpectedly found a record")
	}
}

func TestSeekBackward_MaxDistance(t *testing.T) {
	size := int64(40)
	buf := make([]byte, size)
	copy(buf[0:4], []byte{0x50, 0x4b, 0x01, 0x02})

	spec := testSpec()
	_, ok, err := SeekBackward(spec, bytes.NewReader(buf), size, size-spec.Size(), 4)
	if err != nil {
		t.Fatalf("SeekBackward() error = %v", err)
	}
	if ok {
		t.Fatal("SeekBackward() should have given up before reaching position 0")
	}
}

func TestSeekWithStep(t *testing.T) {
	// Two 4-byte sub-records (id uint16, size uint16, no payload),
	// the second one tagged 0x0001.
	subSpec := NewSpec("sub", Field{ID: fID, Width: 2}, Field{ID: fU16, Width: 2})
	buf := []byte{
		0x02, 0x00, 0x00, 0x00, // id=2, size=0
		0x01, 0x00, 0x00, 0x00, // id=1, size=0
	}

	match := func(in *Instance) bool { return in.Uint16(fID) == 1 }
	step := func(in *Instance) int64 { return 4 + int64(in.Uint16(fU16)) }

	in, ok, err := SeekWithStep(subSpec, bytes.NewReader(buf), 0, match, step, 0, int64(len(buf)))
	if err != nil {
		t.Fatalf("SeekWithStep() error = %v", err)
	}
	if !ok {
		t.Fatal("SeekWithStep() did not find the tagged sub-record")
	}
	if got, want := in.Position(), int64(4); got != want {
		t.Errorf("Position() = %d, want %d", got, want)
	}
}

func TestSeekWithStep_ZeroStepTerminates(t *testing.T) {
	subSpec := NewSpec("sub", Field{ID: fID, Width: 2}, Field{ID: fU16, Width: 2})
	buf := []byte{0x02, 0x00, 0x00, 0x00}

	match := func(in *Instance) bool { return false }
	step := func(in *Instance) int64 { return 0 }

	_, ok, err := SeekWithStep(subSpec, bytes.NewReader(buf), 0, match, step, 0, int64(len(buf)))
	if err != nil {
		t.Fatalf("SeekWithStep() error = %v", err)
	}
	if ok {
		t.Fatal("SeekWithStep() should not have matched")
	}
}

func TestWriteQueue_Apply_OrdersByPosition(t *testing.T) {
	spec := testSpec()
	buf := make([]byte, 100+18)
	copy(buf[100:104], []byte{0x50, 0x4b, 0x01, 0x02})
	in, ok, err := Read(spec, bytes.NewReader(buf), 100)
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v, %v", in, ok, err)
	}

	var q WriteQueue
	in.WriteUint64(&q, fU64, 0x0102030405060708)
	in.WriteUint16(&q, fU16, 0xabcd)
	in.WriteUint32(&q, fU32, 0x11223344)

	target := &fakeWriterAt{buf: make([]byte, 200)}
	if err := q.Apply(target); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	positions := target.writesInOrder
	for i := 1; i < len(positions); i++ {
		if positions[i] < positions[i-1] {
			t.Fatalf("writes applied out of order: %v", positions)
		}
	}
}

// fakeWriterAt is a minimal io.WriterAt that also records the order
// writes were applied in, for TestWriteQueue_Apply_OrdersByPosition.
type fakeWriterAt struct {
	buf           []byte
	writesInOrder []int64
}

func (f *fakeWriterAt) WriteAt(p []byte, off int64) (int, error) {
	f.writesInOrder = append(f.writesInOrder, off)
	copy(f.buf[off:], p)
	return len(p), nil
}
