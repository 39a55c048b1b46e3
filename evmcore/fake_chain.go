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

package evmcore

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rony4d/go-ethrelay/ethash"
	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/inter"
)

// FakeGenesisTime is the default timestamp (seconds) of fake genesis headers.
// Timestamp: 1608600000 seconds since Unix epoch (December 22, 2020)
const FakeGenesisTime uint64 = 1608600000

// FakeGasLimit is the gas limit of every fake header.
const FakeGasLimit uint64 = 8000000

// maxMiningTries bounds the nonce search of a single fake block.
const maxMiningTries = 1 << 24

// FakeChain is a locally mined source chain. Headers are sealed against a
// fake Ethash dataset so the relay can verify them exactly as it verifies
// real ones, and each block keeps the lookup its seal needs.
//
// Competing branches are made with Fork, which shares the history up to a
// given number.
type FakeChain struct {
	rules   ethrelay.Rules
	dataset *ethash.Dataset
	signer  types.Signer

	blocks  []*EvmBlock                         // blocks[0] is the genesis
	lookups map[common.Hash]inter.DatasetLookup // seal lookups by header hash
}

// NewFakeChain creates a chain whose genesis is the given number, time and
// difficulty. The genesis is not mined, the relay trusts it by configuration.
//
// Parameters:
//   - rules: Network rules (difficulty adjustment, chain ID for signing)
//   - dataset: Fake dataset of the epoch every block of the chain lives in
//   - number, time, difficulty: Genesis header fields
func NewFakeChain(rules ethrelay.Rules, dataset *ethash.Dataset, number, time uint64, difficulty *big.Int) *FakeChain {
	genesis := &types.Header{
		ParentHash:  common.Hash{},
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    FakeAddress(0),
		Root:        types.EmptyRootHash,
		ReceiptHash: types.EmptyRootHash,
		Difficulty:  new(big.Int).Set(difficulty),
		Number:      new(big.Int).SetUint64(number),
		GasLimit:    FakeGasLimit,
		Time:        time,
		Extra:       []byte("fake genesis"),
	}
	return &FakeChain{
		rules:   rules,
		dataset: dataset,
		signer:  rules.Signer(),
		blocks:  []*EvmBlock{NewEvmBlock(genesis, nil)},
		lookups: make(map[common.Hash]inter.DatasetLookup),
	}
}

// Genesis returns the genesis header.
func (c *FakeChain) Genesis() *types.Header {
	return c.blocks[0].Header
}

// Head returns the latest block.
func (c *FakeChain) Head() *EvmBlock {
	return c.blocks[len(c.blocks)-1]
}

// Block returns the block at number, nil if the chain does not reach it.
func (c *FakeChain) Block(number uint64) *EvmBlock {
	first := c.Genesis().Number.Uint64()
	if number < first || number-first >= uint64(len(c.blocks)) {
		return nil
	}
	return c.blocks[number-first]
}

// Lookup returns the dataset lookup sealing a header.
func (c *FakeChain) Lookup(hash common.Hash) inter.DatasetLookup {
	return c.lookups[hash]
}

// RawHeader returns the RLP encoding of the header at number.
func (c *FakeChain) RawHeader(number uint64) []byte {
	b := c.Block(number)
	if b == nil {
		return nil
	}
	raw, err := EncodeHeader(b.Header)
	if err != nil {
		panic(err)
	}
	return raw
}

// AddBlock mines a new head on top of the chain.
//
// Parameters:
//   - txs: Transactions to include, already signed
//   - gap: Seconds since the parent; smaller gaps raise the difficulty
//   - extra: Header extra data, handy to tell forks apart
//
// Returns:
//   - *EvmBlock: The new head
//   - error: The head left the dataset's epoch, or no nonce was found
func (c *FakeChain) AddBlock(txs types.Transactions, gap uint64, extra []byte) (*EvmBlock, error) {
	parent := c.Head().Header
	number := parent.Number.Uint64() + 1
	if epoch := c.rules.Epoch(number); epoch != uint64(c.dataset.Epoch) {
		return nil, fmt.Errorf("block %d is in epoch %d, dataset covers %d", number, epoch, c.dataset.Epoch)
	}

	var gasUsed uint64
	for _, tx := range txs {
		gasUsed += tx.Gas()
	}
	if gasUsed > parent.GasLimit {
		return nil, fmt.Errorf("transactions use %d gas, limit %d", gasUsed, parent.GasLimit)
	}
	time := parent.Time + gap
	header := &types.Header{
		ParentHash:  parent.Hash(),
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    parent.Coinbase,
		Root:        parent.Root,
		ReceiptHash: types.EmptyRootHash,
		Number:      new(big.Int).SetUint64(number),
		GasLimit:    parent.GasLimit,
		GasUsed:     gasUsed,
		Time:        time,
		Extra:       common.CopyBytes(extra),
		Difficulty:  ethash.CalcDifficulty(c.rules.Ethash, time, parent),
	}
	block := NewEvmBlock(header, txs)

	nonce, mix, lookup, ok := c.dataset.Mine(ethash.SealHash(block.Header), block.Header.Difficulty, 0, maxMiningTries)
	if !ok {
		return nil, fmt.Errorf("no seal found for block %d", number)
	}
	block.Header.Nonce = types.EncodeNonce(nonce)
	block.Header.MixDigest = mix

	c.blocks = append(c.blocks, block)
	c.lookups[block.Header.Hash()] = lookup
	return block, nil
}

// Fork returns a chain sharing this chain's blocks up to and including number.
func (c *FakeChain) Fork(number uint64) *FakeChain {
	first := c.Genesis().Number.Uint64()
	fork := &FakeChain{
		rules:   c.rules,
		dataset: c.dataset,
		signer:  c.signer,
		blocks:  append([]*EvmBlock(nil), c.blocks[:number-first+1]...),
		lookups: make(map[common.Hash]inter.DatasetLookup, len(c.lookups)),
	}
	for hash, lookup := range c.lookups {
		fork.lookups[hash] = lookup
	}
	return fork
}

// SignTx signs a transaction for the chain's network.
func (c *FakeChain) SignTx(key *ecdsa.PrivateKey, txdata types.TxData) *types.Transaction {
	tx, err := types.SignTx(types.NewTx(txdata), c.signer, key)
	if err != nil {
		panic(err)
	}
	return tx
}

// FakeKey generates a deterministic fake private key for testing purposes.
//
// The key is derived from the hash of n, so the same input always yields the
// same key regardless of the platform's random source.
//
// Parameters:
//   - n: The seed/index for key generation (deterministic: same n = same key)
//
// Returns:
//   - *ecdsa.PrivateKey: A deterministic ECDSA private key using secp256k1 curve
func FakeKey(n int) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte(fmt.Sprintf("ethrelay fake key %d", n))))
	if err != nil {
		panic(err)
	}
	return key
}

// FakeAddress returns the address of FakeKey(n).
func FakeAddress(n int) common.Address {
	return crypto.PubkeyToAddress(FakeKey(n).PublicKey)
}
