// Package fast is a minimal byte cursor for trusted, in-process decoding.
// Reads are not bounds checked: reading past the end panics, and callers
// recover from it.
package fast

type Reader struct {
	buf    []byte
	offset int
}

type Writer struct {
	buf []byte
}

func NewReader(bb []byte) *Reader {
	return &Reader{buf: bb}
}

// NewWriter appends to bb, pass a slice with spare capacity to avoid copies.
func NewWriter(bb []byte) *Writer {
	return &Writer{buf: bb}
}

func (b *Writer) WriteByte(v byte) {
	b.buf = append(b.buf, v)
}

func (b *Writer) Write(v []byte) {
	b.buf = append(b.buf, v...)
}

// Read returns the next n bytes. The result aliases the buffer.
func (b *Reader) Read(n int) []byte {
	res := b.buf[b.offset : b.offset+n]
	b.offset += n
	return res
}

func (b *Reader) ReadByte() byte {
	res := b.buf[b.offset]
	b.offset++
	return res
}

// Position is the number of bytes consumed.
func (b *Reader) Position() int {
	return b.offset
}

func (b *Writer) Bytes() []byte {
	return b.buf
}

// Empty tells whether every byte was consumed.
func (b *Reader) Empty() bool {
	return len(b.buf) == b.offset
}
