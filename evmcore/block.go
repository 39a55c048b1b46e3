// Copyright 2015 The go-ethereum Authors
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

// Package evmcore adapts source-chain (Ethereum format) blocks to the relay.
// It decodes and encodes raw headers, converts them into relay records and
// produces transaction-trie inclusion proofs.
//
// Key concepts:
//   - EvmBlock: a source-chain header with the transactions it commits to
//   - Conversion functions: raw RLP header -> types.Header -> inter.RelayedHeader
//   - Proofs: Merkle-Patricia proofs of a transaction under header.TxHash
//
// Usage:
//   header, err := DecodeHeader(raw)
//   relayed := ToRelayedHeader(header, raw)
//
// FakeChain (fake_chain.go) is a self-contained source chain producer used by
// tests and the fake network.

package evmcore

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/rony4d/go-ethrelay/inter"
)

// EvmBlock is a source-chain block: a header and the transactions whose trie
// root is the header's TxHash.
type EvmBlock struct {
	Header       *types.Header      // sealed header
	Transactions types.Transactions // transactions in trie order
}

// NewEvmBlock constructs a new EvmBlock from a header and transaction list.
// It computes the transaction root hash (TxHash) using a Merkle trie.
//
// Parameters:
//   - h: Block header (copied, the caller's header is not modified)
//   - txs: List of transactions to include in the block
//
// Returns:
//   - Pointer to a new EvmBlock with TxHash computed
func NewEvmBlock(h *types.Header, txs types.Transactions) *EvmBlock {
	b := &EvmBlock{
		Header:       types.CopyHeader(h),
		Transactions: txs,
	}

	if len(txs) == 0 {
		// Empty block: use empty root hash (standard Ethereum convention)
		b.Header.TxHash = types.EmptyRootHash
	} else {
		// StackTrie is a memory-efficient trie implementation for one-time hashing
		b.Header.TxHash = types.DeriveSha(txs, trie.NewStackTrie(nil))
	}
	return b
}

// NumberU64 returns the block number.
func (b *EvmBlock) NumberU64() uint64 {
	return b.Header.Number.Uint64()
}

// DecodeHeader parses a raw RLP header and checks the fields every relay
// check depends on are present.
//
// Returns:
//   - error: RLP decoding failed, or Number/Difficulty are missing
func DecodeHeader(raw []byte) (*types.Header, error) {
	header := new(types.Header)
	if err := rlp.DecodeBytes(raw, header); err != nil {
		return nil, err
	}
	if header.Number == nil || header.Difficulty == nil {
		return nil, fmt.Errorf("header without number or difficulty")
	}
	if !header.Number.IsUint64() {
		return nil, fmt.Errorf("header number %v out of range", header.Number)
	}
	return header, nil
}

// EncodeHeader returns the raw RLP form of a header, the bytes whose
// keccak256 is the header hash.
func EncodeHeader(h *types.Header) ([]byte, error) {
	return rlp.EncodeToBytes(h)
}

// ToRelayedHeader converts a decoded header into the relay's record. Relay
// bookkeeping (submitter, lock times, state, total difficulty) is left to
// the caller.
//
// Key conversions:
//   - h.Hash() (keccak256 of the RLP header) -> Hash
//   - h.Number -> idx.Block
//   - raw is kept as submitted, for read-back
func ToRelayedHeader(h *types.Header, raw []byte) *inter.RelayedHeader {
	return &inter.RelayedHeader{
		Number:     idx.Block(h.Number.Uint64()),
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Difficulty: h.Difficulty,
		Time:       h.Time,
		GasLimit:   h.GasLimit,
		TxHash:     h.TxHash,
		Raw:        raw,
	}
}
