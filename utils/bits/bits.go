// Package bits reads and writes unaligned bit fields. Values are packed
// least significant bit first, filling each byte before the next one is
// started.
package bits

type (
	// Array holds a packed bit stream.
	Array struct {
		Bytes []byte
	}

	// Writer appends bit fields to an Array.
	Writer struct {
		*Array
		bitOffset int // next free bit of the last byte, 0 when a new byte is due
	}

	// Reader consumes bit fields from an Array.
	Reader struct {
		*Array
		byteOffset int
		bitOffset  int
	}
)

func NewWriter(arr *Array) *Writer {
	return &Writer{Array: arr}
}

func NewReader(arr *Array) *Reader {
	return &Reader{Array: arr}
}

// lowBits keeps the lowest n bits of v, n in [0, 8].
func lowBits(v uint, n int) uint {
	return v & (uint(0xff) >> (8 - n))
}

// Write appends the lowest n bits of v.
func (a *Writer) Write(n int, v uint) {
	for n > 0 {
		if a.bitOffset == 0 {
			a.Bytes = append(a.Bytes, 0)
		}
		free := 8 - a.bitOffset
		chunk := n
		if chunk > free {
			chunk = free
		}
		a.Bytes[len(a.Bytes)-1] |= byte(lowBits(v, chunk) << a.bitOffset)
		a.bitOffset = (a.bitOffset + chunk) % 8
		v >>= chunk
		n -= chunk
	}
}

// Read consumes n bits. It panics past the end of the stream.
func (a *Reader) Read(n int) (v uint) {
	for shift := 0; n > 0; {
		free := 8 - a.bitOffset
		chunk := n
		if chunk > free {
			chunk = free
		}
		part := lowBits(uint(a.Bytes[a.byteOffset])>>a.bitOffset, chunk)
		v |= part << shift
		shift += chunk
		n -= chunk
		a.bitOffset += chunk
		if a.bitOffset == 8 {
			a.bitOffset = 0
			a.byteOffset++
		}
	}
	return v
}

// NonReadBytes counts the bytes not fully consumed, including a partly read one.
func (a *Reader) NonReadBytes() int {
	return len(a.Bytes) - a.byteOffset
}

// NonReadBits counts the bits not consumed yet.
func (a *Reader) NonReadBits() int {
	return a.NonReadBytes()*8 - a.bitOffset
}
