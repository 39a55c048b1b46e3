package inter

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
)

// Events are emitted once per committed state transition, in commit order.

type SubmittedBlock struct {
	Number    idx.Block
	Hash      common.Hash
	Submitter common.Address
}

type HeaderFinalized struct {
	Number idx.Block
	Hash   common.Hash
}

type HeaderDisputed struct {
	Number idx.Block
	Hash   common.Hash
	Winner common.Hash // header that won the TD comparison at the fork point
}

type SubmittedTx struct {
	TxHash      common.Hash
	BlockNumber idx.Block
}

type UndoSucceeded struct {
	TxHash      common.Hash
	Amount      *big.Int
	RequestedBy common.Address
}

type UndoFailed struct {
	TxHash      common.Hash
	RequestedBy common.Address
	Reason      string
}
