package inter

import (
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// DatasetChunk is one bounded slice of an epoch's Merkle nodes.
type DatasetChunk struct {
	Epoch                   idx.Epoch
	FullSizeIn128Resolution uint64        // dataset rows of 128 bytes
	BranchDepth             uint64        // levels between a row leaf and its stored node
	Nodes                   []common.Hash // stored nodes, in index order
	Start                   uint64        // index of Nodes[0]
	Count                   uint64        // must equal len(Nodes)
}

// EpochMeta is the per-epoch cursor kept by the dataset store.
type EpochMeta struct {
	Epoch                   idx.Epoch
	FullSizeIn128Resolution uint64
	BranchDepth             uint64
	Expected                uint64 // nodes needed for a complete dataset
	Stored                  uint64 // next expected start index
}

// Complete reports whether every node of the epoch has been stored.
func (m *EpochMeta) Complete() bool {
	return m.Stored == m.Expected
}

// ExpectedNodes returns ceil(rows / 2^branchDepth), the number of stored
// nodes a dataset of the given geometry needs.
func ExpectedNodes(rows, branchDepth uint64) uint64 {
	span := uint64(1) << branchDepth
	return (rows + span - 1) / span
}

// DatasetElement is one dataset row read by hashimoto together with the
// Merkle branch binding it to a stored node.
type DatasetElement struct {
	Data   hexutil.Bytes `json:"data"`   // 128-byte row
	Branch []common.Hash `json:"branch"` // siblings from the leaf upwards
}

// DatasetLookup holds one element per hashimoto access, in access order.
type DatasetLookup []DatasetElement
