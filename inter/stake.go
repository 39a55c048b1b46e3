package inter

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StakeDeposit is the collateral a submitter locked for relaying headers.
// Deposits are consumed block by block and never refunded.
type StakeDeposit struct {
	Submitter     common.Address
	Amount        *big.Int // total deposited
	CoveredBlocks uint64   // headers accepted from this submitter
}
