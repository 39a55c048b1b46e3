package cser

import (
	"github.com/rony4d/go-ethrelay/utils/bits"
	"github.com/rony4d/go-ethrelay/utils/fast"
)

// MarshalBinaryAdapter runs marshalCser over a fresh Writer and packs both
// of its streams into one slice:
//
//	[ body bytes ][ bit stream ][ reversed varint(len(bit stream)) ]
func MarshalBinaryAdapter(marshalCser func(*Writer) error) ([]byte, error) {
	w := NewWriter()
	if err := marshalCser(w); err != nil {
		return nil, err
	}
	return binaryFromCSER(w.BitsW.Array, w.BytesW.Bytes())
}

func binaryFromCSER(bbits *bits.Array, bbytes []byte) ([]byte, error) {
	body := fast.NewWriter(bbytes)
	body.Write(bbits.Bytes)

	size := fast.NewWriter(make([]byte, 0, 4))
	writeUint64Compact(size, uint64(len(bbits.Bytes)))
	body.Write(reversed(size.Bytes()))
	return body.Bytes(), nil
}

// binaryToCSER splits raw into its bit stream and body, reading the size
// suffix from the end.
func binaryToCSER(raw []byte) (bbits *bits.Array, bbytes []byte, err error) {
	sizeReader := fast.NewReader(reversed(tail(raw, 9)))
	bitsSize := readUint64Compact(sizeReader)
	raw = raw[:len(raw)-sizeReader.Position()]

	if uint64(len(raw)) < bitsSize {
		return nil, nil, ErrMalformedEncoding
	}
	split := uint64(len(raw)) - bitsSize
	// cap the body so reads past its end panic instead of reaching the bit stream
	return &bits.Array{Bytes: raw[split:]}, raw[:split:split], nil
}

// UnmarshalBinaryAdapter runs unmarshalCser over the streams packed in raw.
// Truncated input fails with ErrMalformedEncoding, input left unconsumed or
// padded with non-zero bits fails with ErrNonCanonicalEncoding.
func UnmarshalBinaryAdapter(raw []byte, unmarshalCser func(reader *Reader) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && (e == ErrNonCanonicalEncoding || e == ErrTooLargeAlloc) {
				err = e
				return
			}
			err = ErrMalformedEncoding
		}
	}()

	bbits, bbytes, err := binaryToCSER(raw)
	if err != nil {
		return err
	}
	r := &Reader{
		BitsR:  bits.NewReader(bbits),
		BytesR: fast.NewReader(bbytes),
	}
	if err := unmarshalCser(r); err != nil {
		return err
	}

	if r.BitsR.NonReadBytes() > 1 {
		return ErrNonCanonicalEncoding
	}
	if r.BitsR.Read(r.BitsR.NonReadBits()) != 0 {
		return ErrNonCanonicalEncoding
	}
	if !r.BytesR.Empty() {
		return ErrNonCanonicalEncoding
	}
	return nil
}

func tail(b []byte, n int) []byte {
	if len(b) > n {
		return b[len(b)-n:]
	}
	return b
}

func reversed(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
