package ethash

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"

	"github.com/rony4d/go-ethrelay/inter"
)

// Dataset is the producer side of the relay's dataset handling: it holds the
// rows of one epoch, builds the Merkle tree the relay stores the top of, and
// answers seal lookups with authenticated rows. Meant for off-chain provers
// and tests, the relay itself never holds a Dataset.
type Dataset struct {
	Epoch       idx.Epoch
	BranchDepth uint64

	rows   [][]byte
	levels [][]common.Hash // levels[0] are the padded leaves, levels[BranchDepth] the stored nodes
}

// SeedHash is the seed to use for generating a verification cache and the
// mining dataset of an epoch.
func SeedHash(epoch idx.Epoch) []byte {
	seed := make([]byte, 32)
	for i := 0; i < int(epoch); i++ {
		seed = keccak256(seed)
	}
	return seed
}

// NewDataset builds the Merkle tree over the given rows.
func NewDataset(epoch idx.Epoch, rows [][]byte, branchDepth uint64) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	if branchDepth > maxBranchDepth {
		return nil, fmt.Errorf("branch depth %d out of range", branchDepth)
	}
	for i, row := range rows {
		if len(row) != ElementSize {
			return nil, fmt.Errorf("row %d: %d bytes, want %d", i, len(row), ElementSize)
		}
	}
	nodes := inter.ExpectedNodes(uint64(len(rows)), branchDepth)
	leaves := make([]common.Hash, nodes<<branchDepth)
	for i, row := range rows {
		leaves[i] = LeafHash(row)
	}
	levels := [][]common.Hash{leaves}
	for l := uint64(0); l < branchDepth; l++ {
		below := levels[l]
		level := make([]common.Hash, len(below)/2)
		for i := range level {
			level[i] = hashPair(below[2*i], below[2*i+1])
		}
		levels = append(levels, level)
	}
	return &Dataset{
		Epoch:       epoch,
		BranchDepth: branchDepth,
		rows:        rows,
		levels:      levels,
	}, nil
}

// NewFakeDataset generates a deterministic dataset of numRows pseudo-random
// rows derived from the epoch seed.
func NewFakeDataset(epoch idx.Epoch, numRows, branchDepth uint64) *Dataset {
	seed := SeedHash(epoch)
	rows := make([][]byte, numRows)
	var counter [9]byte
	for i := range rows {
		binary.LittleEndian.PutUint64(counter[:8], uint64(i))
		counter[8] = 0
		lo := keccak512(seed, counter[:])
		counter[8] = 1
		hi := keccak512(seed, counter[:])
		rows[i] = append(lo, hi...)
	}
	ds, err := NewDataset(epoch, rows, branchDepth)
	if err != nil {
		panic(err)
	}
	return ds
}

// Rows returns the dataset size in 128-byte rows.
func (d *Dataset) Rows() uint64 {
	return uint64(len(d.rows))
}

// Nodes returns the Merkle nodes the relay stores for this dataset.
func (d *Dataset) Nodes() []common.Hash {
	return d.levels[d.BranchDepth]
}

// Chunks splits the stored nodes into chunks of at most size nodes.
func (d *Dataset) Chunks(size int) []inter.DatasetChunk {
	nodes := d.Nodes()
	var chunks []inter.DatasetChunk
	for start := 0; start < len(nodes); start += size {
		end := start + size
		if end > len(nodes) {
			end = len(nodes)
		}
		chunks = append(chunks, inter.DatasetChunk{
			Epoch:                   d.Epoch,
			FullSizeIn128Resolution: d.Rows(),
			BranchDepth:             d.BranchDepth,
			Nodes:                   nodes[start:end],
			Start:                   uint64(start),
			Count:                   uint64(end - start),
		})
	}
	return chunks
}

// Branch returns the siblings binding row to its stored node, leaf first.
func (d *Dataset) Branch(row uint64) []common.Hash {
	branch := make([]common.Hash, d.BranchDepth)
	for l := range branch {
		branch[l] = d.levels[l][(row>>uint(l))^1]
	}
	return branch
}

// Element returns a row together with its Merkle branch.
func (d *Dataset) Element(row uint64) inter.DatasetElement {
	return inter.DatasetElement{
		Data:   common.CopyBytes(d.rows[row]),
		Branch: d.Branch(row),
	}
}

// Hashimoto runs the seal computation over the full dataset and records the
// rows it read.
func (d *Dataset) Hashimoto(sealHash common.Hash, nonce uint64) (common.Hash, []byte, inter.DatasetLookup) {
	lookup := make(inter.DatasetLookup, 0, loopAccesses)
	read := func(access int, row uint32) ([]uint32, error) {
		lookup = append(lookup, d.Element(uint64(row)))
		return elementWords(d.rows[row]), nil
	}
	digest, result, _ := hashimoto(sealHash.Bytes(), nonce, uint32(len(d.rows)), read)
	return common.BytesToHash(digest), result, lookup
}

// Mine searches nonces from start until the seal meets difficulty or tries
// are exhausted.
func (d *Dataset) Mine(sealHash common.Hash, difficulty *big.Int, start uint64, tries int) (nonce uint64, mix common.Hash, lookup inter.DatasetLookup, ok bool) {
	target := new(big.Int).Div(two256, difficulty)
	read := func(access int, row uint32) ([]uint32, error) {
		return elementWords(d.rows[row]), nil
	}
	for i := 0; i < tries; i++ {
		nonce = start + uint64(i)
		_, result, _ := hashimoto(sealHash.Bytes(), nonce, uint32(len(d.rows)), read)
		if new(big.Int).SetBytes(result).Cmp(target) <= 0 {
			mix, _, lookup = d.Hashimoto(sealHash, nonce)
			return nonce, mix, lookup, true
		}
	}
	return 0, common.Hash{}, nil, false
}
