// Copyright 2017 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package ethash

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

const (
	mixBytes     = 128 // Width of mix
	mixWords     = mixBytes / 4
	loopAccesses = 64 // Number of accesses in hashimoto loop
)

// LoopAccesses is the number of dataset rows one seal check reads.
const LoopAccesses = loopAccesses

// rowReader returns the 32 words of a dataset row for the i-th access.
type rowReader func(access int, row uint32) ([]uint32, error)

// keccak512 hashes data with the legacy (pre-standard) Keccak-512.
func keccak512(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak512()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// keccak256 hashes data with the legacy Keccak-256.
func keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// fnv is an algorithm inspired by the FNV hash, which in some cases is used as
// a non-associative substitute for XOR. Note that we multiply the prime with
// the full 32-bit input, in contrast with plain FNV-1 which multiplies the
// prime with one byte (octet) in turn.
func fnv(a, b uint32) uint32 {
	return a*0x01000193 ^ b
}

// fnvHash mixes in data into mix using the ethash fnv method.
func fnvHash(mix []uint32, data []uint32) {
	for i := 0; i < len(mix); i++ {
		mix[i] = mix[i]*0x01000193 ^ data[i]
	}
}

// hashimoto aggregates data from the full dataset in order to produce our final
// value for a particular header hash and nonce. Rows are read through lookup,
// which may fail when a row cannot be authenticated.
//
// Returns:
//   - digest: the mix digest a valid header carries in MixDigest
//   - result: the value compared against the difficulty target
func hashimoto(hash []byte, nonce uint64, rows uint32, lookup rowReader) (digest []byte, result []byte, err error) {
	// Combine header+nonce into a 64 byte seed
	seed := make([]byte, 40)
	copy(seed, hash)
	binary.LittleEndian.PutUint64(seed[32:], nonce)

	seed = keccak512(seed)
	seedHead := binary.LittleEndian.Uint32(seed)

	// Start the mix with replicated seed
	mix := make([]uint32, mixWords)
	for i := 0; i < len(mix); i++ {
		mix[i] = binary.LittleEndian.Uint32(seed[i%16*4:])
	}
	// Mix in random dataset nodes
	for i := 0; i < loopAccesses; i++ {
		row := fnv(uint32(i)^seedHead, mix[i%len(mix)]) % rows
		temp, err := lookup(i, row)
		if err != nil {
			return nil, nil, err
		}
		fnvHash(mix, temp)
	}
	// Compress mix
	for i := 0; i < len(mix); i += 4 {
		mix[i/4] = fnv(fnv(fnv(mix[i], mix[i+1]), mix[i+2]), mix[i+3])
	}
	mix = mix[:len(mix)/4]

	digest = make([]byte, common.HashLength)
	for i, val := range mix {
		binary.LittleEndian.PutUint32(digest[i*4:], val)
	}
	return digest, keccak256(seed, digest), nil
}

// elementWords converts a 128-byte dataset row into little-endian words.
func elementWords(element []byte) []uint32 {
	words := make([]uint32, mixWords)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(element[i*4:])
	}
	return words
}
