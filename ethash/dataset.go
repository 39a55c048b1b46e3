package ethash

import (
	"math"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/relaydb"
	"github.com/rony4d/go-ethrelay/relayerr"
)

var (
	chunkMeter     = metrics.NewRegisteredMeter("ethash/dataset/chunks", nil)
	nodeCounter    = metrics.NewRegisteredCounter("ethash/dataset/nodes", nil)
	completedEpoch = metrics.NewRegisteredCounter("ethash/dataset/epochs", nil)
)

// maxBranchDepth keeps 2^branchDepth inside a uint64.
const maxBranchDepth = 63

// DatasetStore accumulates the Merkle nodes of each epoch's dataset. Chunks
// of one epoch must arrive in order and the epoch only becomes usable for
// seal checks once every node is present.
type DatasetStore struct {
	store *relaydb.Store
	log   log.Logger
}

// NewDatasetStore creates a dataset store on top of the shared relay store.
func NewDatasetStore(store *relaydb.Store) *DatasetStore {
	return &DatasetStore{
		store: store,
		log:   log.New("module", "dataset"),
	}
}

// SubmitChunk appends a chunk of nodes to its epoch.
//
// Returns:
//   - nil: chunk applied, or an identical chunk was already applied
//   - ErrOutOfOrderChunk: wrong offset, wrong count or a geometry change
//   - ErrEpochAlreadyComplete: the epoch holds every node already
func (d *DatasetStore) SubmitChunk(chunk inter.DatasetChunk) error {
	return d.store.Update(func(txn relaydb.Txn) error {
		return d.submitChunk(txn, &chunk)
	})
}

func (d *DatasetStore) submitChunk(txn relaydb.Txn, chunk *inter.DatasetChunk) error {
	if chunk.Count != uint64(len(chunk.Nodes)) {
		return relayerr.Wrap(ErrOutOfOrderChunk, "count %d, have %d nodes", chunk.Count, len(chunk.Nodes))
	}
	if chunk.Count == 0 {
		return relayerr.Wrap(ErrOutOfOrderChunk, "empty chunk")
	}
	if chunk.FullSizeIn128Resolution == 0 || chunk.FullSizeIn128Resolution > math.MaxUint32 {
		return relayerr.Wrap(ErrOutOfOrderChunk, "dataset rows %d out of range", chunk.FullSizeIn128Resolution)
	}
	if chunk.BranchDepth > maxBranchDepth {
		return relayerr.Wrap(ErrOutOfOrderChunk, "branch depth %d out of range", chunk.BranchDepth)
	}
	meta, err := relaydb.ReadEpochMeta(txn, chunk.Epoch)
	if err != nil {
		return err
	}
	if meta == nil {
		meta = &inter.EpochMeta{
			Epoch:                   chunk.Epoch,
			FullSizeIn128Resolution: chunk.FullSizeIn128Resolution,
			BranchDepth:             chunk.BranchDepth,
			Expected:                inter.ExpectedNodes(chunk.FullSizeIn128Resolution, chunk.BranchDepth),
		}
	} else if meta.FullSizeIn128Resolution != chunk.FullSizeIn128Resolution || meta.BranchDepth != chunk.BranchDepth {
		return relayerr.Wrap(ErrOutOfOrderChunk, "epoch %d geometry is %d rows at depth %d",
			chunk.Epoch, meta.FullSizeIn128Resolution, meta.BranchDepth)
	}
	if meta.Complete() {
		return relayerr.Wrap(ErrEpochAlreadyComplete, "epoch %d", chunk.Epoch)
	}
	end := chunk.Start + chunk.Count
	if end < chunk.Start || end > meta.Expected {
		return relayerr.Wrap(ErrOutOfOrderChunk, "chunk [%d, %d) past %d nodes", chunk.Start, end, meta.Expected)
	}
	if chunk.Start < meta.Stored {
		// Only an exact replay of applied nodes is tolerated.
		if end <= meta.Stored {
			same, err := sameNodes(txn, chunk)
			if err != nil {
				return err
			}
			if same {
				return nil
			}
		}
		return relayerr.Wrap(ErrOutOfOrderChunk, "start %d, expected %d", chunk.Start, meta.Stored)
	}
	if chunk.Start != meta.Stored {
		return relayerr.Wrap(ErrOutOfOrderChunk, "start %d, expected %d", chunk.Start, meta.Stored)
	}

	for i, node := range chunk.Nodes {
		if err := relaydb.WriteDatasetNode(txn, chunk.Epoch, chunk.Start+uint64(i), node); err != nil {
			return err
		}
	}
	meta.Stored = end
	if err := relaydb.WriteEpochMeta(txn, meta); err != nil {
		return err
	}

	complete := meta.Complete()
	txn.OnCommit(func() {
		chunkMeter.Mark(1)
		nodeCounter.Inc(int64(chunk.Count))
		if complete {
			completedEpoch.Inc(1)
			d.log.Info("Epoch dataset complete", "epoch", chunk.Epoch, "nodes", meta.Expected)
		} else {
			d.log.Debug("Dataset chunk stored", "epoch", chunk.Epoch, "start", chunk.Start, "count", chunk.Count)
		}
	})
	return nil
}

func sameNodes(r relaydb.Reader, chunk *inter.DatasetChunk) (bool, error) {
	for i, node := range chunk.Nodes {
		stored, ok, err := relaydb.ReadDatasetNode(r, chunk.Epoch, chunk.Start+uint64(i))
		if err != nil {
			return false, err
		}
		if !ok || stored != node {
			return false, nil
		}
	}
	return true, nil
}

// Epoch returns the dataset cursor of an epoch, nil if no chunk arrived yet.
func (d *DatasetStore) Epoch(epoch idx.Epoch) (meta *inter.EpochMeta, err error) {
	err = d.store.View(func(r relaydb.Reader) error {
		meta, err = relaydb.ReadEpochMeta(r, epoch)
		return err
	})
	return meta, err
}

// IsComplete reports whether an epoch's dataset can back seal checks.
func (d *DatasetStore) IsComplete(epoch idx.Epoch) (bool, error) {
	meta, err := d.Epoch(epoch)
	if err != nil || meta == nil {
		return false, err
	}
	return meta.Complete(), nil
}

// Node returns one stored node of an epoch.
func (d *DatasetStore) Node(epoch idx.Epoch, index uint64) (node common.Hash, ok bool, err error) {
	err = d.store.View(func(r relaydb.Reader) error {
		node, ok, err = relaydb.ReadDatasetNode(r, epoch, index)
		return err
	})
	return node, ok, err
}
