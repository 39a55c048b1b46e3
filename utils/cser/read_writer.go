// Package cser is a compact canonical binary encoding. Integers are split
// across two streams: their minimal little-endian bytes go to the body and
// their byte count goes to a side bit stream, next to small flags written
// through BitsW. Decoding
// rejects any value not packed minimally, so every value has exactly one
// encoding.
package cser

import (
	"errors"
	"math/big"

	"github.com/rony4d/go-ethrelay/utils/bits"
	"github.com/rony4d/go-ethrelay/utils/fast"
)

var (
	ErrNonCanonicalEncoding = errors.New("non canonical encoding")
	ErrMalformedEncoding    = errors.New("malformed encoding")
	ErrTooLargeAlloc        = errors.New("too large allocation")
)

// maxBigIntBytes bounds decoded big integers.
const maxBigIntBytes = 512

type Writer struct {
	BitsW  *bits.Writer
	BytesW *fast.Writer
}

type Reader struct {
	BitsR  *bits.Reader
	BytesR *fast.Reader
}

func NewWriter() *Writer {
	return &Writer{
		BitsW:  bits.NewWriter(&bits.Array{Bytes: make([]byte, 0, 32)}),
		BytesW: fast.NewWriter(make([]byte, 0, 200)),
	}
}

// writeUint64Compact writes 7 bits per byte, the last byte flagged by its
// top bit.
func writeUint64Compact(bytesW *fast.Writer, v uint64) {
	for {
		chunk := v & 0x7f
		v >>= 7
		if v == 0 {
			bytesW.WriteByte(byte(chunk | 0x80))
			return
		}
		bytesW.WriteByte(byte(chunk))
	}
}

func readUint64Compact(bytesR *fast.Reader) uint64 {
	var v uint64
	for i := 0; ; i++ {
		chunk := uint64(bytesR.ReadByte())
		word := chunk & 0x7f
		v |= word << (7 * i)
		if chunk&0x80 != 0 {
			if i > 0 && word == 0 {
				panic(ErrNonCanonicalEncoding)
			}
			return v
		}
	}
}

// writeUint64BitCompact writes v little-endian in as few bytes as possible,
// but at least minSize.
func writeUint64BitCompact(bytesW *fast.Writer, v uint64, minSize int) (size int) {
	for size < minSize || v != 0 {
		bytesW.WriteByte(byte(v))
		size++
		v >>= 8
	}
	return size
}

func readUint64BitCompact(bytesR *fast.Reader, size int) uint64 {
	var v uint64
	buf := bytesR.Read(size)
	for i, b := range buf {
		v |= uint64(b) << uint(8*i)
	}
	if size > 1 && buf[size-1] == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return v
}

// writeU64Bits puts the byte count of v, minus minSize, in sizeBits bits.
func (w *Writer) writeU64Bits(minSize int, sizeBits int, v uint64) {
	size := writeUint64BitCompact(w.BytesW, v, minSize)
	w.BitsW.Write(sizeBits, uint(size-minSize))
}

func (r *Reader) readU64Bits(minSize int, sizeBits int) uint64 {
	size := int(r.BitsR.Read(sizeBits)) + minSize
	return readUint64BitCompact(r.BytesR, size)
}

func (w *Writer) U8(v uint8) {
	w.BytesW.WriteByte(v)
}

func (r *Reader) U8() uint8 {
	return r.BytesR.ReadByte()
}

func (w *Writer) U64(v uint64) {
	w.writeU64Bits(1, 3, v)
}

func (r *Reader) U64() uint64 {
	return r.readU64Bits(1, 3)
}

// U56 encodes lengths, zero takes no body bytes.
func (w *Writer) U56(v uint64) {
	const max = 1<<(8*7) - 1
	if v > max {
		panic("cser: U56 overflow")
	}
	w.writeU64Bits(0, 3, v)
}

func (r *Reader) U56() uint64 {
	return r.readU64Bits(0, 3)
}

func (w *Writer) FixedBytes(v []byte) {
	w.BytesW.Write(v)
}

func (r *Reader) FixedBytes(v []byte) {
	copy(v, r.BytesR.Read(len(v)))
}

// SliceBytes writes a length-prefixed byte slice.
func (w *Writer) SliceBytes(v []byte) {
	w.U56(uint64(len(v)))
	w.FixedBytes(v)
}

func (r *Reader) SliceBytes(maxLen int) []byte {
	size := r.U56()
	if size > uint64(maxLen) {
		panic(ErrTooLargeAlloc)
	}
	buf := make([]byte, size)
	r.FixedBytes(buf)
	return buf
}

// BigInt writes the magnitude of a non-negative integer. Nil encodes as zero.
func (w *Writer) BigInt(v *big.Int) {
	if v == nil || v.Sign() == 0 {
		w.SliceBytes(nil)
		return
	}
	w.SliceBytes(v.Bytes())
}

func (r *Reader) BigInt() *big.Int {
	buf := r.SliceBytes(maxBigIntBytes)
	if len(buf) > 0 && buf[0] == 0 {
		panic(ErrNonCanonicalEncoding)
	}
	return new(big.Int).SetBytes(buf)
}
