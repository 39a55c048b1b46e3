// Package genesis defines the trusted starting point of a relay: the
// source-chain header every relayed header descends from, and the total
// difficulty accumulated up to it.
//
// Key concepts:
//   - Genesis: the raw trusted header plus its total difficulty
//   - The genesis header is installed as Final at relay construction, it is
//     never checked against the PoW rules
//
// Usage:
//
//	gen, err := genesis.LoadFile("genesis.json")
//	header, err := gen.Decode()
//
// The genesis file is JSON, in the same hex encoding go-ethereum uses for
// its own genesis specs.
package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rony4d/go-ethrelay/evmcore"
)

// Genesis is the trusted header a relay starts from.
type Genesis struct {
	Network         string                `json:"network"`         // rules preset the genesis belongs to
	Number          math.HexOrDecimal64   `json:"number"`          // block number of Header
	Header          hexutil.Bytes         `json:"header"`          // RLP-encoded source-chain header
	TotalDifficulty *math.HexOrDecimal256 `json:"totalDifficulty"` // TD including Header's own difficulty
}

// FromHeader builds a genesis from a decoded header.
func FromHeader(network string, h *types.Header, td *big.Int) (*Genesis, error) {
	raw, err := evmcore.EncodeHeader(h)
	if err != nil {
		return nil, err
	}
	g := &Genesis{
		Network:         network,
		Number:          math.HexOrDecimal64(h.Number.Uint64()),
		Header:          raw,
		TotalDifficulty: (*math.HexOrDecimal256)(new(big.Int).Set(td)),
	}
	return g, g.Validate()
}

// Decode parses the genesis header.
func (g *Genesis) Decode() (*types.Header, error) {
	return evmcore.DecodeHeader(g.Header)
}

// TD returns the total difficulty of the genesis header.
func (g *Genesis) TD() *big.Int {
	if g.TotalDifficulty == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(g.TotalDifficulty))
}

// Validate checks the genesis is self-consistent.
//
// Returns:
//   - error: header undecodable, number mismatch, or a total difficulty
//     below the header's difficulty or above 256 bits
func (g *Genesis) Validate() error {
	h, err := g.Decode()
	if err != nil {
		return fmt.Errorf("genesis header: %w", err)
	}
	if h.Number.Uint64() != uint64(g.Number) {
		return fmt.Errorf("genesis number %d, header has %d", g.Number, h.Number)
	}
	td := g.TD()
	if td == nil {
		return fmt.Errorf("genesis total difficulty missing")
	}
	if td.Cmp(h.Difficulty) < 0 {
		return fmt.Errorf("genesis total difficulty %v below header difficulty %v", td, h.Difficulty)
	}
	if td.BitLen() > 256 {
		return fmt.Errorf("genesis total difficulty %v exceeds 256 bits", td)
	}
	return nil
}

// LoadFile reads and validates a JSON genesis file.
func LoadFile(path string) (*Genesis, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	g := new(Genesis)
	if err := json.NewDecoder(f).Decode(g); err != nil {
		return nil, fmt.Errorf("invalid genesis file %s: %w", path, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// WriteFile stores the genesis as indented JSON.
func (g *Genesis) WriteFile(path string) error {
	enc, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, enc, 0644)
}
