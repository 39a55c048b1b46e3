package evmcore

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/rony4d/go-ethrelay/inter"
)

// ErrKeyNotInTrie is returned by VerifyProof for a valid proof of absence.
var ErrKeyNotInTrie = errors.New("key not in trie")

// proofList collects trie nodes in the order Prove emits them, root first.
type proofList [][]byte

func (n *proofList) Put(key []byte, value []byte) error {
	*n = append(*n, common.CopyBytes(value))
	return nil
}

func (n *proofList) Delete(key []byte) error {
	panic("not supported")
}

// TxTrieKey is the transaction trie key of the index-th transaction.
func TxTrieKey(index int) []byte {
	key, _ := rlp.EncodeToBytes(uint(index))
	return key
}

// ProveTx builds the inclusion proof of txs[index] under the transactions
// root of b.
//
// Returns:
//   - *inter.TxProof: value, path and nodes of the proof, BlockNumber set
//   - error: index out of range or the trie root differs from the header
func (b *EvmBlock) ProveTx(index int) (*inter.TxProof, error) {
	if index < 0 || index >= len(b.Transactions) {
		return nil, fmt.Errorf("transaction index %d out of range", index)
	}
	tr, err := trie.New(common.Hash{}, trie.NewDatabase(memorydb.New()))
	if err != nil {
		return nil, err
	}
	var target []byte
	for i, tx := range b.Transactions {
		enc, err := tx.MarshalBinary()
		if err != nil {
			return nil, err
		}
		if err := tr.TryUpdate(TxTrieKey(i), enc); err != nil {
			return nil, err
		}
		if i == index {
			target = enc
		}
	}
	if root := tr.Hash(); root != b.Header.TxHash {
		return nil, fmt.Errorf("transaction root mismatch: have %x, want %x", root, b.Header.TxHash)
	}

	var nodes proofList
	path := TxTrieKey(index)
	if err := tr.Prove(path, 0, &nodes); err != nil {
		return nil, err
	}
	proof := &inter.TxProof{
		TxHash:      b.Transactions[index].Hash(),
		BlockNumber: idx.Block(b.NumberU64()),
		Value:       target,
		Path:        path,
		Nodes:       make([]hexutil.Bytes, len(nodes)),
	}
	for i, node := range nodes {
		proof.Nodes[i] = node
	}
	return proof, nil
}

// VerifyProof walks a Merkle-Patricia proof from root along path and returns
// the value stored there. Nodes may be given in any order, they are looked up
// by hash.
func VerifyProof(root common.Hash, path []byte, nodes []hexutil.Bytes) ([]byte, error) {
	db := memorydb.New()
	for _, node := range nodes {
		if err := db.Put(crypto.Keccak256(node), node); err != nil {
			return nil, err
		}
	}
	value, err := trie.VerifyProof(root, path, db)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, ErrKeyNotInTrie
	}
	return value, nil
}

// DecodeTx parses the proven bytes of a transaction.
func DecodeTx(enc []byte) (*types.Transaction, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(enc); err != nil {
		return nil, err
	}
	return tx, nil
}
