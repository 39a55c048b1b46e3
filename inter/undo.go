package inter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// UndoTicket is a request to reverse a proven inbound transfer.
type UndoTicket struct {
	TxHash      common.Hash
	Amount      *big.Int
	RequestedBy common.Address
}

// UndoRecord is the consumed marker of a transaction hash. Its presence alone
// blocks any further undo of the same transaction.
type UndoRecord struct {
	TxHash      common.Hash
	Asset       common.Address // asset moved back, zero address for native value
	Amount      *big.Int
	RequestedBy common.Address
	FeePaid     *big.Int
	At          Timestamp
}
