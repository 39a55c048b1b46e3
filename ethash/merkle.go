package ethash

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ElementSize is the size of one dataset row, the unit hashimoto reads.
const ElementSize = mixBytes

// LeafHash is the Merkle leaf of a dataset row.
func LeafHash(element []byte) common.Hash {
	return crypto.Keccak256Hash(element)
}

// hashPair is the Merkle parent of two nodes.
func hashPair(left, right common.Hash) common.Hash {
	return crypto.Keccak256Hash(left.Bytes(), right.Bytes())
}

// BranchRoot folds a Merkle branch from the leaf of row upwards. The result
// is the stored node covering row, i.e. node row >> len(branch).
func BranchRoot(leaf common.Hash, row uint64, branch []common.Hash) common.Hash {
	node := leaf
	for _, sibling := range branch {
		if row&1 == 0 {
			node = hashPair(node, sibling)
		} else {
			node = hashPair(sibling, node)
		}
		row >>= 1
	}
	return node
}
