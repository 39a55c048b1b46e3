package bits

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testWord struct {
	bits int
	v    uint
}

func bytesToFit(bits int) int {
	return (bits + 7) / 8
}

func genTestWords(r *rand.Rand, maxCount int, maxBits int) []testWord {
	words := make([]testWord, r.Intn(maxCount))
	for i := range words {
		words[i].bits = 1
		if maxBits > 1 {
			words[i].bits += r.Intn(maxBits - 1)
		}
		words[i].v = uint(r.Intn(1 << words[i].bits))
	}
	return words
}

// testBitArray writes words, reads them back and checks the cursor
// accounting, the zero padding and the end of the stream.
func testBitArray(t *testing.T, words []testWord, name string) {
	arr := Array{make([]byte, 0, 100)}
	writer := NewWriter(&arr)
	reader := NewReader(&arr)

	written := 0
	for _, w := range words {
		writer.Write(w.bits, w.v)
		written += w.bits
	}
	assert.Equalf(t, bytesToFit(written), len(arr.Bytes), "%s: byte length", name)

	read := 0
	for _, w := range words {
		assert.Equalf(t, bytesToFit(written)*8-read, reader.NonReadBits(), "%s: NonReadBits", name)
		assert.Equalf(t, bytesToFit(reader.NonReadBits()), reader.NonReadBytes(), "%s: NonReadBytes", name)
		assert.EqualValuesf(t, w.v, reader.Read(w.bits), "%s: value", name)
		read += w.bits
	}

	assert.Panicsf(t, func() {
		reader.Read(reader.NonReadBits() + 1)
	}, "%s: read past the end", name)
	assert.EqualValuesf(t, 0, reader.Read(reader.NonReadBits()), "%s: padding", name)
	assert.Equalf(t, 0, reader.NonReadBits(), "%s: bits left", name)
	assert.Equalf(t, 0, reader.NonReadBytes(), "%s: bytes left", name)
}

func TestBitArray(t *testing.T) {
	tests := []struct {
		name  string
		words []testWord
	}{
		{"empty", nil},
		{"b0", []testWord{{1, 0}}},
		{"b1", []testWord{{1, 1}}},
		{"9 bits", []testWord{{9, 0b010101010}}},
		{"17 bits", []testWord{{17, 0b01010101010101010}}},
		{"aligned byte", []testWord{{8, 0xff}}},
		{"byte then nibble", []testWord{{8, 0xff}, {4, 0xa}}},
		{"nibble then byte", []testWord{{4, 0xa}, {8, 0xff}}},
		{"16 bits", []testWord{{16, 0xffff}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			testBitArray(t, tc.words, tc.name)
		})
	}
}

func TestBitArray_random(t *testing.T) {
	r := rand.New(rand.NewSource(0))
	for _, maxBits := range []int{1, 8, 17} {
		for i := 0; i < 50; i++ {
			testBitArray(t, genTestWords(r, 60, maxBits), fmt.Sprintf("%d bits, case#%d", maxBits, i))
		}
	}
}

func TestBitArray_highBitsIgnored(t *testing.T) {
	arr := Array{}
	NewWriter(&arr).Write(3, 0xff)
	assert.Equal(t, []byte{0b111}, arr.Bytes)
}

func TestReader_remaining(t *testing.T) {
	arr := Array{}
	writer := NewWriter(&arr)
	writer.Write(8, 0xaa)
	writer.Write(3, 0b101)

	reader := NewReader(&arr)
	assert.Equal(t, 16, reader.NonReadBits())
	assert.EqualValues(t, 0xaa, reader.Read(8))
	assert.Equal(t, 1, reader.NonReadBytes())
	assert.EqualValues(t, 0b101, reader.Read(3))
	assert.Equal(t, 1, reader.NonReadBytes())
	assert.Equal(t, 5, reader.NonReadBits())
	assert.EqualValues(t, 0, reader.Read(5))
	assert.Equal(t, 0, reader.NonReadBytes())
}

func BenchmarkArray_write(b *testing.B) {
	for bits := 1; bits <= 9; bits++ {
		b.Run(fmt.Sprintf("%d bits", bits), func(b *testing.B) {
			arr := Array{make([]byte, 0, bytesToFit(bits*b.N))}
			writer := NewWriter(&arr)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				writer.Write(bits, 0xff)
			}
		})
	}
}
