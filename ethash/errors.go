package ethash

import "github.com/rony4d/go-ethrelay/relayerr"

var (
	// ErrOutOfOrderChunk is returned when a chunk does not start at the next
	// expected offset of its epoch, or disagrees with the epoch's geometry.
	ErrOutOfOrderChunk = relayerr.New(relayerr.InputRejected, "OutOfOrderChunk", "out-of-order dataset chunk")

	// ErrEpochAlreadyComplete is returned for chunks past a complete dataset.
	ErrEpochAlreadyComplete = relayerr.New(relayerr.Replay, "EpochAlreadyComplete", "epoch dataset already complete")

	// ErrIncompleteDataset is returned when a seal is checked against an
	// epoch whose dataset is missing nodes.
	ErrIncompleteDataset = relayerr.New(relayerr.ProofRejected, "IncompleteDataset", "epoch dataset incomplete")

	// ErrInvalidMerkleBranch is returned when a dataset element does not
	// hash up to its stored node.
	ErrInvalidMerkleBranch = relayerr.New(relayerr.ProofRejected, "InvalidMerkleBranch", "invalid dataset merkle branch")

	// ErrInvalidMixDigest is returned when the recomputed mix differs from the header's.
	ErrInvalidMixDigest = relayerr.New(relayerr.ProofRejected, "InvalidMixDigest", "invalid mix digest")

	// ErrPowTooWeak is returned when the seal result exceeds 2^256/difficulty.
	ErrPowTooWeak = relayerr.New(relayerr.ProofRejected, "PowTooWeak", "proof-of-work too weak")
)
