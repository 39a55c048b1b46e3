package ethash

import (
	"math/big"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/relaydb"
	"github.com/rony4d/go-ethrelay/relayerr"
)

var (
	// two256 is a big integer representing 2^256
	two256 = new(big.Int).Exp(big.NewInt(2), big.NewInt(256), big.NewInt(0))

	sealTimer    = metrics.NewRegisteredTimer("ethash/verify/time", nil)
	sealRejected = metrics.NewRegisteredMeter("ethash/verify/rejected", nil)
)

// Verifier checks Ethash seals against the datasets held by the relay store.
// It never touches a full dataset: every row hashimoto reads is supplied by
// the caller and authenticated against the stored Merkle nodes.
type Verifier struct {
	store *relaydb.Store
	rules ethrelay.EthashRules
	log   log.Logger
}

// NewVerifier creates a seal verifier for the given Ethash rules.
func NewVerifier(store *relaydb.Store, rules ethrelay.EthashRules) *Verifier {
	return &Verifier{
		store: store,
		rules: rules,
		log:   log.New("module", "ethash"),
	}
}

// Epoch returns the dataset epoch of a block number.
func (v *Verifier) Epoch(number uint64) idx.Epoch {
	return idx.Epoch(number / v.rules.EpochLength)
}

// VerifyPoW checks a seal against the committed store state.
func (v *Verifier) VerifyPoW(number uint64, sealHash common.Hash, nonce uint64, mixDigest common.Hash, difficulty *big.Int, lookup inter.DatasetLookup) error {
	return v.store.View(func(r relaydb.Reader) error {
		return v.VerifyPoWAt(r, number, sealHash, nonce, mixDigest, difficulty, lookup)
	})
}

// VerifySeal checks the seal of a decoded header, reading through r.
func (v *Verifier) VerifySeal(r relaydb.Reader, header *types.Header, lookup inter.DatasetLookup) error {
	return v.VerifyPoWAt(r, header.Number.Uint64(), SealHash(header), header.Nonce.Uint64(), header.MixDigest, header.Difficulty, lookup)
}

// VerifyPoWAt recomputes hashimoto for (sealHash, nonce) using the rows in
// lookup, one per access in access order.
//
// Returns:
//   - ErrIncompleteDataset: the block's epoch dataset is missing nodes
//   - ErrInvalidMerkleBranch: a row does not hash up to its stored node
//   - ErrInvalidMixDigest: the recomputed mix differs from mixDigest
//   - ErrPowTooWeak: the result is above 2^256/difficulty
func (v *Verifier) VerifyPoWAt(r relaydb.Reader, number uint64, sealHash common.Hash, nonce uint64, mixDigest common.Hash, difficulty *big.Int, lookup inter.DatasetLookup) error {
	defer sealTimer.UpdateSince(time.Now())

	err := v.verify(r, number, sealHash, nonce, mixDigest, difficulty, lookup)
	if err != nil {
		sealRejected.Mark(1)
		v.log.Trace("Seal rejected", "number", number, "sealhash", sealHash, "err", err)
	}
	return err
}

func (v *Verifier) verify(r relaydb.Reader, number uint64, sealHash common.Hash, nonce uint64, mixDigest common.Hash, difficulty *big.Int, lookup inter.DatasetLookup) error {
	if difficulty == nil || difficulty.Sign() <= 0 {
		return relayerr.Wrap(ErrPowTooWeak, "non-positive difficulty")
	}
	epoch := v.Epoch(number)
	meta, err := relaydb.ReadEpochMeta(r, epoch)
	if err != nil {
		return err
	}
	if meta == nil || !meta.Complete() {
		return relayerr.Wrap(ErrIncompleteDataset, "epoch %d", epoch)
	}
	if len(lookup) != loopAccesses {
		return relayerr.Wrap(ErrInvalidMerkleBranch, "have %d elements, want %d", len(lookup), loopAccesses)
	}

	rows := uint32(meta.FullSizeIn128Resolution)
	depth := meta.BranchDepth
	read := func(access int, row uint32) ([]uint32, error) {
		el := lookup[access]
		if len(el.Data) != ElementSize || uint64(len(el.Branch)) != depth {
			return nil, relayerr.Wrap(ErrInvalidMerkleBranch, "access %d: malformed element", access)
		}
		index := uint64(row) >> depth
		node, ok, err := relaydb.ReadDatasetNode(r, epoch, index)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, relayerr.Wrap(ErrIncompleteDataset, "epoch %d node %d", epoch, index)
		}
		if BranchRoot(LeafHash(el.Data), uint64(row), el.Branch) != node {
			return nil, relayerr.Wrap(ErrInvalidMerkleBranch, "access %d: row %d", access, row)
		}
		return elementWords(el.Data), nil
	}

	digest, result, err := hashimoto(sealHash.Bytes(), nonce, rows, read)
	if err != nil {
		return err
	}
	if common.BytesToHash(digest) != mixDigest {
		return relayerr.Wrap(ErrInvalidMixDigest, "have %x, want %x", mixDigest, digest)
	}
	target := new(big.Int).Div(two256, difficulty)
	if new(big.Int).SetBytes(result).Cmp(target) > 0 {
		return relayerr.Wrap(ErrPowTooWeak, "difficulty %v", difficulty)
	}
	return nil
}
