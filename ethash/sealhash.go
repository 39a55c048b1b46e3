package ethash

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// SealHash returns the hash of a block prior to it being sealed, i.e. the
// header without MixDigest and Nonce.
func SealHash(header *types.Header) (hash common.Hash) {
	enc := []interface{}{
		header.ParentHash,
		header.UncleHash,
		header.Coinbase,
		header.Root,
		header.TxHash,
		header.ReceiptHash,
		header.Bloom,
		header.Difficulty,
		header.Number,
		header.GasLimit,
		header.GasUsed,
		header.Time,
		header.Extra,
	}
	if header.BaseFee != nil {
		enc = append(enc, header.BaseFee)
	}
	b, err := rlp.EncodeToBytes(enc)
	if err != nil {
		panic("can't encode: " + err.Error())
	}
	copy(hash[:], keccak256(b))
	return hash
}
