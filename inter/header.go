// Package inter defines the records the relay keeps about the source chain:
// relayed headers and their finality state, PoW dataset metadata, transaction
// proofs with their metadata, and undo markers. Every record is RLP-encodable
// so the storage layer can persist it as-is.
//
// Key concepts:
//   - RelayedHeader: a source-chain header plus relay bookkeeping (lock, state)
//   - HeaderState: Pending -> Final, or Pending -> Disputed
//   - EpochMeta: per-epoch cursor over the submitted dataset nodes
//   - TxRecord: a proven transaction and the metadata attached to it
//   - UndoRecord: the consumed marker written by a successful undo
//
// The events emitted by relay components are declared in events.go.
package inter

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// HeaderState is the finality state of a relayed header.
type HeaderState uint8

const (
	// Pending headers wait for their lock period to pass.
	Pending HeaderState = iota
	// Final headers can anchor transaction proofs. Terminal.
	Final
	// Disputed headers lost a total-difficulty comparison, or descend from
	// a header that did. Terminal.
	Disputed
)

func (s HeaderState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Final:
		return "final"
	case Disputed:
		return "disputed"
	default:
		return "unknown"
	}
}

// RelayedHeader is a source-chain header accepted by the relay.
type RelayedHeader struct {
	Number     idx.Block   // source-chain block number
	Hash       common.Hash // header hash (keccak256 of the RLP header)
	ParentHash common.Hash // hash of the header at Number-1

	Difficulty      *big.Int // header difficulty
	TotalDifficulty *big.Int // parent TD + Difficulty, always fits in 256 bits

	Time     uint64      // source-chain timestamp (seconds)
	GasLimit uint64      // source-chain gas limit, parent of the next gas-limit check
	TxHash   common.Hash // transactions root that anchors inclusion proofs

	Submitter   common.Address // who relayed the header
	SubmittedAt Timestamp      // relay time of submission
	LockedUntil Timestamp      // earliest relay time at which Finalize may succeed
	FinalizedAt Timestamp      // relay time of finalization, zero until Final

	State HeaderState
	Raw   []byte // the RLP header as submitted
}

// TD returns the total difficulty as a 256-bit integer.
func (h *RelayedHeader) TD() *uint256.Int {
	td, _ := uint256.FromBig(h.TotalDifficulty)
	return td
}

// Beats reports whether h takes precedence over other at the same height:
// a higher total difficulty wins and equal totals fall back to the lower hash,
// so the outcome never depends on arrival order.
func (h *RelayedHeader) Beats(other *RelayedHeader) bool {
	switch h.TotalDifficulty.Cmp(other.TotalDifficulty) {
	case 1:
		return true
	case -1:
		return false
	}
	return h.Hash.Big().Cmp(other.Hash.Big()) < 0
}
