// Package relay keeps the relayed source-chain headers. Headers are accepted
// one at a time on top of the canonical chain, checked for continuity, stake,
// timestamp, gas, difficulty and proof-of-work, then held Pending through a
// lock period before an explicit Finalize makes them Final.
//
// A valid header competing with a stored one at the same number is settled
// by total difficulty. The loser, and every canonical descendant of a losing
// canonical header, is Disputed. Final headers can no longer be contested.
package relay

import (
	"bytes"
	"fmt"
	"math/big"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/rony4d/go-ethrelay/ethash"
	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/ethrelay/genesis"
	"github.com/rony4d/go-ethrelay/evmcore"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/relaydb"
	"github.com/rony4d/go-ethrelay/relayerr"
	"github.com/rony4d/go-ethrelay/utils/clock"
)

var (
	headerAcceptMeter = metrics.NewRegisteredMeter("relay/headers/accepted", nil)
	headerRejectMeter = metrics.NewRegisteredMeter("relay/headers/rejected", nil)
	headerFinalCount  = metrics.NewRegisteredCounter("relay/headers/finalized", nil)
	headerDisputes    = metrics.NewRegisteredCounter("relay/headers/disputed", nil)
	headerSubmitTimer = metrics.NewRegisteredTimer("relay/headers/submit", nil)
)

// HeaderRelay is the header state machine of the relay.
type HeaderRelay struct {
	store    *relaydb.Store
	rules    ethrelay.Rules
	verifier *ethash.Verifier
	stakes   *StakeLedger
	clock    clock.Clock
	genesis  idx.Block

	submittedFeed event.Feed
	finalizedFeed event.Feed
	disputedFeed  event.Feed
	scope         event.SubscriptionScope

	log log.Logger
}

// New opens the header relay. On an empty store the genesis header is
// installed as Final and the rules are persisted; on a used store both must
// match what was persisted.
//
// Parameters:
//   - store: Shared relay store
//   - rules: Network rules; the store refuses to reopen with different ones
//   - gen: Trusted genesis header and total difficulty
//   - verifier: Seal verifier backed by the same store
//   - stakes: Stake ledger backed by the same store
//   - clk: Relay time source
func New(store *relaydb.Store, rules ethrelay.Rules, gen *genesis.Genesis, verifier *ethash.Verifier, stakes *StakeLedger, clk clock.Clock) (*HeaderRelay, error) {
	if err := gen.Validate(); err != nil {
		return nil, err
	}
	header, err := gen.Decode()
	if err != nil {
		return nil, err
	}
	rulesEnc, err := rlp.EncodeToBytes(&rules)
	if err != nil {
		return nil, err
	}

	r := &HeaderRelay{
		store:    store,
		rules:    rules,
		verifier: verifier,
		stakes:   stakes,
		clock:    clk,
		genesis:  idx.Block(header.Number.Uint64()),
		log:      log.New("module", "relay"),
	}

	err = store.Update(func(txn relaydb.Txn) error {
		stored, err := relaydb.ReadRulesRLP(txn)
		if err != nil {
			return err
		}
		if stored != nil {
			if !bytes.Equal(stored, rulesEnc) {
				return fmt.Errorf("%w: rules %s", errIncompatibleStore, rules.Name)
			}
			hash, ok, err := relaydb.ReadCanonicalHash(txn, r.genesis)
			if err != nil {
				return err
			}
			if !ok || hash != header.Hash() {
				return fmt.Errorf("%w: genesis %d", errIncompatibleStore, r.genesis)
			}
			return nil
		}

		now := clk.Now()
		rec := evmcore.ToRelayedHeader(header, gen.Header)
		rec.TotalDifficulty = gen.TD()
		rec.SubmittedAt = now
		rec.LockedUntil = now
		rec.FinalizedAt = now
		rec.State = inter.Final

		if err := relaydb.WriteRulesRLP(txn, rulesEnc); err != nil {
			return err
		}
		if err := relaydb.WriteGenesisNumber(txn, r.genesis); err != nil {
			return err
		}
		if err := r.storeCanonical(txn, rec); err != nil {
			return err
		}
		txn.OnCommit(func() {
			r.log.Info("Installed genesis header", "number", rec.Number, "hash", rec.Hash, "td", rec.TotalDifficulty)
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Rules returns the network rules the relay checks against.
func (r *HeaderRelay) Rules() ethrelay.Rules {
	return r.rules
}

// Stakes returns the stake ledger gating submissions.
func (r *HeaderRelay) Stakes() *StakeLedger {
	return r.stakes
}

// GenesisNumber returns the number of the trusted genesis header.
func (r *HeaderRelay) GenesisNumber() idx.Block {
	return r.genesis
}

// SubmitHeader checks a raw header and stores it as Pending.
//
// A header extending the canonical head is appended. A header at an
// already-stored number competes with the canonical header there: the one
// with higher total difficulty (lower hash on ties) stays canonical, the
// other is stored as Disputed. Either way the submission succeeds.
//
// Parameters:
//   - submitter: Address charged one covered stake block
//   - number: Claimed block number, must match the decoded header
//   - raw: RLP-encoded header
//   - lookup: Dataset rows and branches sealing the header
func (r *HeaderRelay) SubmitHeader(submitter common.Address, number idx.Block, raw []byte, lookup inter.DatasetLookup) error {
	defer headerSubmitTimer.UpdateSince(time.Now())

	err := r.store.Update(func(txn relaydb.Txn) error {
		return r.submitHeader(txn, submitter, number, raw, lookup)
	})
	if err != nil {
		headerRejectMeter.Mark(1)
		r.log.Debug("Header rejected", "number", number, "submitter", submitter, "err", err)
	}
	return err
}

func (r *HeaderRelay) submitHeader(txn relaydb.Txn, submitter common.Address, number idx.Block, raw []byte, lookup inter.DatasetLookup) error {
	header, err := evmcore.DecodeHeader(raw)
	if err != nil {
		return relayerr.Wrap(ErrMalformedHeader, "%v", err)
	}
	if header.Number.Uint64() != uint64(number) {
		return relayerr.Wrap(ErrNotContiguous, "header number %v, claimed %d", header.Number, number)
	}

	// Continuity
	last, err := relaydb.ReadLastStored(txn)
	if err != nil {
		return err
	}
	if number <= r.genesis || number > last+1 {
		return relayerr.Wrap(ErrNotContiguous, "number %d, last stored %d", number, last)
	}
	parent, err := relaydb.ReadCanonicalHeader(txn, number-1)
	if err != nil {
		return err
	}
	if parent == nil || parent.Hash != header.ParentHash {
		return relayerr.Wrap(ErrNotContiguous, "parent %x is not canonical at %d", header.ParentHash, number-1)
	}

	// Competition at a stored number
	hash := header.Hash()
	var rival *inter.RelayedHeader
	if number <= last {
		rival, err = relaydb.ReadCanonicalHeader(txn, number)
		if err != nil {
			return err
		}
		if rival.State == inter.Final {
			return relayerr.Wrap(ErrAlreadyFinal, "number %d", number)
		}
	}
	known, err := relaydb.ReadHeader(txn, hash)
	if err != nil {
		return err
	}
	if known != nil {
		return relayerr.Wrap(ErrDuplicateHeader, "%x", hash)
	}

	if err := r.stakes.check(txn, submitter, number); err != nil {
		return err
	}
	if err := r.verifyHeader(header, parent); err != nil {
		return err
	}

	// Difficulty and total difficulty
	parentHeader, err := evmcore.DecodeHeader(parent.Raw)
	if err != nil {
		return err
	}
	expected := ethash.CalcDifficulty(r.rules.Ethash, header.Time, parentHeader)
	if header.Difficulty.Cmp(expected) != 0 {
		return relayerr.Wrap(ErrBadDifficulty, "have %v, want %v", header.Difficulty, expected)
	}
	diff, overflow := uint256.FromBig(header.Difficulty)
	if overflow {
		return relayerr.Wrap(ErrBadDifficulty, "difficulty exceeds 256 bits")
	}
	td, overflow := new(uint256.Int).AddOverflow(parent.TD(), diff)
	if overflow {
		return relayerr.Wrap(ErrBadDifficulty, "total difficulty exceeds 256 bits")
	}

	if err := r.verifier.VerifySeal(txn, header, lookup); err != nil {
		return &powError{err: err}
	}

	now := r.clock.Now()
	rec := evmcore.ToRelayedHeader(header, raw)
	rec.TotalDifficulty = td.ToBig()
	rec.Submitter = submitter
	rec.SubmittedAt = now
	rec.LockedUntil = now + inter.Timestamp(r.rules.Headers.LockPeriod)
	rec.State = inter.Pending

	if err := r.stakes.consume(txn, submitter); err != nil {
		return err
	}
	if rival == nil {
		return r.append(txn, rec)
	}
	if rec.Beats(rival) {
		return r.replace(txn, rec, last)
	}
	return r.storeLoser(txn, rec, rival)
}

// verifyHeader runs the checks that need nothing but the header and its parent.
func (r *HeaderRelay) verifyHeader(header *types.Header, parent *inter.RelayedHeader) error {
	rules := r.rules.Headers

	limit := (r.clock.Now() + inter.Timestamp(rules.AllowedFutureBlockTime)).Unix()
	if limit < 0 || header.Time > uint64(limit) {
		return relayerr.Wrap(ErrFutureTimestamp, "timestamp %d, limit %d", header.Time, limit)
	}
	if header.Time <= parent.Time {
		return relayerr.Wrap(ErrTimestampNotIncreasing, "timestamp %d, parent %d", header.Time, parent.Time)
	}
	if uint64(len(header.Extra)) > rules.MaxExtraData {
		return relayerr.Wrap(ErrExtraDataTooLong, "%d bytes, max %d", len(header.Extra), rules.MaxExtraData)
	}

	if header.GasLimit < rules.MinGasLimit || header.GasLimit > rules.MaxGasLimit {
		return relayerr.Wrap(ErrBadGasLimit, "gas limit %d outside [%d, %d]", header.GasLimit, rules.MinGasLimit, rules.MaxGasLimit)
	}
	if header.GasUsed > header.GasLimit {
		return relayerr.Wrap(ErrBadGasLimit, "gas used %d above limit %d", header.GasUsed, header.GasLimit)
	}
	diff := int64(header.GasLimit) - int64(parent.GasLimit)
	if diff < 0 {
		diff *= -1
	}
	bound := parent.GasLimit / rules.GasLimitBoundDivisor
	if uint64(diff) >= bound {
		return relayerr.Wrap(ErrBadGasLimit, "gas limit %d, parent %d, bound %d", header.GasLimit, parent.GasLimit, bound-1)
	}
	return nil
}

// storeCanonical writes h as the canonical header at its number and head.
func (r *HeaderRelay) storeCanonical(txn relaydb.Txn, h *inter.RelayedHeader) error {
	if err := relaydb.WriteHeader(txn, h); err != nil {
		return err
	}
	if err := relaydb.WriteCanonicalHash(txn, h.Number, h.Hash); err != nil {
		return err
	}
	return relaydb.WriteLastStored(txn, h.Number)
}

func (r *HeaderRelay) append(txn relaydb.Txn, h *inter.RelayedHeader) error {
	if err := r.storeCanonical(txn, h); err != nil {
		return err
	}
	txn.OnCommit(func() {
		headerAcceptMeter.Mark(1)
		r.log.Debug("Header accepted", "number", h.Number, "hash", h.Hash, "td", h.TotalDifficulty, "locked", h.LockedUntil)
		r.submittedFeed.Send(inter.SubmittedBlock{Number: h.Number, Hash: h.Hash, Submitter: h.Submitter})
	})
	return nil
}

// replace makes h canonical in place of the header at its number, disputing
// the old header and every canonical descendant up to last.
func (r *HeaderRelay) replace(txn relaydb.Txn, h *inter.RelayedHeader, last idx.Block) error {
	var disputed []inter.HeaderDisputed
	for n := h.Number; n <= last; n++ {
		old, err := relaydb.ReadCanonicalHeader(txn, n)
		if err != nil {
			return err
		}
		old.State = inter.Disputed
		if err := relaydb.WriteHeader(txn, old); err != nil {
			return err
		}
		if n > h.Number {
			if err := relaydb.DeleteCanonicalHash(txn, n); err != nil {
				return err
			}
		}
		disputed = append(disputed, inter.HeaderDisputed{Number: n, Hash: old.Hash, Winner: h.Hash})
	}
	if err := r.storeCanonical(txn, h); err != nil {
		return err
	}
	txn.OnCommit(func() {
		headerAcceptMeter.Mark(1)
		headerDisputes.Inc(int64(len(disputed)))
		r.log.Warn("Canonical header replaced", "number", h.Number, "hash", h.Hash, "disputed", len(disputed))
		r.submittedFeed.Send(inter.SubmittedBlock{Number: h.Number, Hash: h.Hash, Submitter: h.Submitter})
		for _, ev := range disputed {
			r.disputedFeed.Send(ev)
		}
	})
	return nil
}

// storeLoser records h as Disputed beside the canonical header that beat it.
func (r *HeaderRelay) storeLoser(txn relaydb.Txn, h *inter.RelayedHeader, winner *inter.RelayedHeader) error {
	h.State = inter.Disputed
	if err := relaydb.WriteHeader(txn, h); err != nil {
		return err
	}
	txn.OnCommit(func() {
		headerDisputes.Inc(1)
		r.log.Warn("Competing header lost", "number", h.Number, "hash", h.Hash, "winner", winner.Hash)
		r.disputedFeed.Send(inter.HeaderDisputed{Number: h.Number, Hash: h.Hash, Winner: winner.Hash})
	})
	return nil
}

// Finalize makes every canonical Pending header up to number Final, lowest
// first. Nothing is finalized unless all of them are past their lock.
//
// Returns:
//   - nil: the header at number is Final (now or already)
//   - ErrHeaderNotFound: no canonical header at number
//   - ErrStillLocked: some header up to number is still locked
func (r *HeaderRelay) Finalize(number idx.Block) error {
	return r.store.Update(func(txn relaydb.Txn) error {
		target, err := relaydb.ReadCanonicalHeader(txn, number)
		if err != nil {
			return err
		}
		if target == nil {
			return relayerr.Wrap(ErrHeaderNotFound, "no canonical header at %d", number)
		}
		if target.State == inter.Final {
			return nil
		}

		// Collect pending headers down to the last final one.
		pending := []*inter.RelayedHeader{target}
		for n := number - 1; n > r.genesis; n-- {
			h, err := relaydb.ReadCanonicalHeader(txn, n)
			if err != nil {
				return err
			}
			if h.State == inter.Final {
				break
			}
			pending = append(pending, h)
		}

		now := r.clock.Now()
		var finalized []inter.HeaderFinalized
		for i := len(pending) - 1; i >= 0; i-- {
			h := pending[i]
			if now < h.LockedUntil {
				return relayerr.Wrap(ErrStillLocked, "header %d locked until %s", h.Number, h.LockedUntil)
			}
			h.State = inter.Final
			h.FinalizedAt = now
			if err := relaydb.WriteHeader(txn, h); err != nil {
				return err
			}
			finalized = append(finalized, inter.HeaderFinalized{Number: h.Number, Hash: h.Hash})
		}
		txn.OnCommit(func() {
			headerFinalCount.Inc(int64(len(finalized)))
			r.log.Debug("Headers finalized", "from", finalized[0].Number, "to", number)
			for _, ev := range finalized {
				r.finalizedFeed.Send(ev)
			}
		})
		return nil
	})
}

// IsHeaderStored reports whether a canonical header exists at number.
func (r *HeaderRelay) IsHeaderStored(number idx.Block) (ok bool, err error) {
	err = r.store.View(func(rd relaydb.Reader) error {
		_, ok, err = relaydb.ReadCanonicalHash(rd, number)
		return err
	})
	return ok, err
}

// Header returns a stored header by hash, canonical or not.
func (r *HeaderRelay) Header(hash common.Hash) (h *inter.RelayedHeader, err error) {
	err = r.store.View(func(rd relaydb.Reader) error {
		h, err = relaydb.ReadHeader(rd, hash)
		return err
	})
	if err == nil && h == nil {
		err = relayerr.Wrap(ErrHeaderNotFound, "%x", hash)
	}
	return h, err
}

// CanonicalHeader returns the canonical header at number.
func (r *HeaderRelay) CanonicalHeader(number idx.Block) (h *inter.RelayedHeader, err error) {
	err = r.store.View(func(rd relaydb.Reader) error {
		h, err = relaydb.ReadCanonicalHeader(rd, number)
		return err
	})
	if err == nil && h == nil {
		err = relayerr.Wrap(ErrHeaderNotFound, "no canonical header at %d", number)
	}
	return h, err
}

// LastStored returns the number of the canonical head.
func (r *HeaderRelay) LastStored() (last idx.Block, err error) {
	err = r.store.View(func(rd relaydb.Reader) error {
		last, err = relaydb.ReadLastStored(rd)
		return err
	})
	return last, err
}

// TotalDifficulty returns the TD of the canonical head.
func (r *HeaderRelay) TotalDifficulty() (*big.Int, error) {
	last, err := r.LastStored()
	if err != nil {
		return nil, err
	}
	h, err := r.CanonicalHeader(last)
	if err != nil {
		return nil, err
	}
	return h.TotalDifficulty, nil
}

// SubscribeSubmittedBlock delivers an event per accepted canonical header.
func (r *HeaderRelay) SubscribeSubmittedBlock(ch chan<- inter.SubmittedBlock) event.Subscription {
	return r.scope.Track(r.submittedFeed.Subscribe(ch))
}

// SubscribeHeaderFinalized delivers an event per finalized header.
func (r *HeaderRelay) SubscribeHeaderFinalized(ch chan<- inter.HeaderFinalized) event.Subscription {
	return r.scope.Track(r.finalizedFeed.Subscribe(ch))
}

// SubscribeHeaderDisputed delivers an event per disputed header.
func (r *HeaderRelay) SubscribeHeaderDisputed(ch chan<- inter.HeaderDisputed) event.Subscription {
	return r.scope.Track(r.disputedFeed.Subscribe(ch))
}

// Close unsubscribes every subscriber.
func (r *HeaderRelay) Close() {
	r.scope.Close()
}
