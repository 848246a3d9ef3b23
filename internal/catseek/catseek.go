// Package catseek provides a forward-only io.Reader that streams
// several sources back to back: one or more prefixes, then the
// original archive. It never buffers more than one source's worth of
// data at a time.
package catseek

import (
	"fmt"
	"io"
)

type part struct {
	length  int64
	content io.Reader
}

// Concat is an io.Reader that reads each part's content in order,
// presenting their concatenation as a single stream. Nothing downstream
// needs to seek within the concatenation, so there is no offset
// bookkeeping or binary search over parts, only a current-part cursor.
type Concat struct {
	parts []part
	index int
}

// Builder accumulates parts for a Concat.
type Builder struct {
	parts []part
}

// AddReader appends a source of exactly length bytes. It panics if
// content is nil and length is non-zero, a defensive check against a
// builder bug that would otherwise surface as a silent short read much
// later.
func (b *Builder) AddReader(content io.Reader, length int64) {
	if length == 0 {
		return
	}
	if content == nil {
		panic(fmt.Sprintf("catseek: content is nil, but length is %d", length))
	}
	b.parts = append(b.parts, part{length: length, content: content})
}

// AddBytes appends a fixed byte slice as a source.
func (b *Builder) AddBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	b.parts = append(b.parts, part{length: int64(len(data)), content: &byteSource{data: data}})
}

// Build returns the Concat reader over every part added so far.
func (b *Builder) Build() *Concat {
	return &Concat{parts: b.parts}
}

func (c *Concat) Read(p []byte) (int, error) {
	for c.index < len(c.parts) {
		n, err := c.parts[c.index].content.Read(p)
		if n > 0 || err == nil {
			return n, nil
		}
		if err != io.EOF {
			return n, err
		}
		c.index++
	}
	return 0, io.EOF
}

// byteSource is a minimal io.Reader over a fixed slice, used instead
// of bytes.Reader so AddBytes doesn't pull in extra Seek/Len surface
// this package never needs.
type byteSource struct {
	data []byte
	pos  int
}

func (b *byteSource) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}
