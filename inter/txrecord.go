package inter

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// TxProof is a Merkle-Patricia inclusion proof of a transaction in the
// transactions trie of a relayed header.
type TxProof struct {
	TxHash      common.Hash     `json:"txHash"`
	BlockNumber idx.Block       `json:"blockNumber"`
	Value       hexutil.Bytes   `json:"value"` // canonical transaction encoding
	Path        hexutil.Bytes   `json:"path"`  // trie key, rlp(index)
	Nodes       []hexutil.Bytes `json:"nodes"` // RLP trie nodes along the path
}

// TxMetadata is the sender/recipient/payload triple attached to a proof.
type TxMetadata struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Input hexutil.Bytes  `json:"input"`
}

// TxRecord is what the relay remembers about a proven transaction.
type TxRecord struct {
	TxHash      common.Hash
	BlockNumber idx.Block
	Value       []byte // proven transaction bytes
	Proven      bool   // value proven included under the header's tx root
	HasMetadata bool
	From        common.Address
	To          common.Address
	Input       []byte
	FeePaid     *big.Int // verification fee paid by the undo, zero before
}

// Metadata returns the attached metadata.
func (r *TxRecord) Metadata() TxMetadata {
	return TxMetadata{From: r.From, To: r.To, Input: common.CopyBytes(r.Input)}
}
