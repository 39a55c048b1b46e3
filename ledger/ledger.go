// Package ledger is the destination-side asset ledger the undo protocol moves
// funds on. The relay only depends on the Ledger interface; MemoryLedger is
// the in-process implementation used by the node and by tests.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"
)

// NativeAsset identifies the ledger's native coin. Token assets are
// identified by their source-chain contract address.
var NativeAsset = common.Address{}

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// Move is one leg of a batch transfer.
type Move struct {
	Asset  common.Address
	From   common.Address
	To     common.Address
	Amount *big.Int
}

// Reverse returns the moves that undo moves, last leg first.
func Reverse(moves []Move) []Move {
	out := make([]Move, len(moves))
	for i, m := range moves {
		out[len(moves)-1-i] = Move{Asset: m.Asset, From: m.To, To: m.From, Amount: m.Amount}
	}
	return out
}

// Ledger moves assets between accounts.
type Ledger interface {
	// Transfer moves amount of asset from one account to another, atomically.
	Transfer(asset, from, to common.Address, amount *big.Int) error
	// TransferBatch applies every move in order, or none of them. No reader
	// observes a batch half applied.
	TransferBatch(moves []Move) error
	// BalanceOf returns the balance of an account in asset.
	BalanceOf(asset, addr common.Address) (*big.Int, error)
}

// MemoryLedger keeps balances in memory as 256-bit integers.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[common.Address]map[common.Address]*uint256.Int // asset -> account -> balance

	log log.Logger
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		log:      log.New("module", "ledger"),
	}
}

func toAmount(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

func (l *MemoryLedger) balance(asset, addr common.Address) *uint256.Int {
	accounts, ok := l.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*uint256.Int)
		l.balances[asset] = accounts
	}
	b, ok := accounts[addr]
	if !ok {
		b = new(uint256.Int)
		accounts[addr] = b
	}
	return b
}

// Mint credits amount of asset to an account.
func (l *MemoryLedger) Mint(asset, to common.Address, amount *big.Int) error {
	v, err := toAmount(amount)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.balance(asset, to)
	if _, overflow := new(uint256.Int).AddOverflow(b, v); overflow {
		return ErrBalanceOverflow
	}
	b.Add(b, v)
	return nil
}

// Transfer implements Ledger.
func (l *MemoryLedger) Transfer(asset, from, to common.Address, amount *big.Int) error {
	return l.TransferBatch([]Move{{Asset: asset, From: from, To: to, Amount: amount}})
}

type account struct {
	asset common.Address
	addr  common.Address
}

// TransferBatch implements Ledger. Moves are applied to scratch copies of the
// touched balances, which replace the live ones only once every move passed.
func (l *MemoryLedger) TransferBatch(moves []Move) error {
	amounts := make([]*uint256.Int, len(moves))
	for i, m := range moves {
		v, err := toAmount(m.Amount)
		if err != nil {
			return err
		}
		amounts[i] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	scratch := make(map[account]*uint256.Int)
	get := func(asset, addr common.Address) *uint256.Int {
		key := account{asset, addr}
		b, ok := scratch[key]
		if !ok {
			b = new(uint256.Int)
			if live, ok := l.balances[asset][addr]; ok {
				b.Set(live)
			}
			scratch[key] = b
		}
		return b
	}
	for i, m := range moves {
		v := amounts[i]
		src := get(m.Asset, m.From)
		if src.Lt(v) {
			return fmt.Errorf("%w: %x has %s, needs %s", ErrInsufficientBalance, m.From, src.ToBig(), m.Amount)
		}
		if m.From == m.To {
			continue
		}
		dst := get(m.Asset, m.To)
		if _, overflow := new(uint256.Int).AddOverflow(dst, v); overflow {
			return ErrBalanceOverflow
		}
		src.Sub(src, v)
		dst.Add(dst, v)
	}
	for key, b := range scratch {
		l.balance(key.asset, key.addr).Set(b)
	}
	for _, m := range moves {
		l.log.Trace("Ledger transfer", "asset", m.Asset, "from", m.From, "to", m.To, "amount", m.Amount)
	}
	return nil
}

// BalanceOf implements Ledger.
func (l *MemoryLedger) BalanceOf(asset, addr common.Address) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if b, ok := l.balances[asset][addr]; ok {
		return b.ToBig(), nil
	}
	return new(big.Int), nil
}
