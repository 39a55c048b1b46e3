// Package undo reverses a proven inbound transfer on the destination ledger.
//
// Overview:
//
//	A sender who paid the pool on the source chain can ask for the funds back
//	once the transfer is proven in a final header. The request must carry the
//	verification fee, name the exact amount the proven transaction moved and
//	arrive within the undo window that opens when the header is finalized.
//	Each transaction hash can be undone once; the consumed marker written by
//	a successful undo is checked before anything else.
//
// The whole request runs as one store transition. Its ledger moves are
// applied as a single batch in the last step, so a rejected request never
// touches the ledger; the batch is reversed only if the store commit fails.
package undo

import (
	"math/big"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/rony4d/go-ethrelay/contracts/erc20"
	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/evmcore"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/ledger"
	"github.com/rony4d/go-ethrelay/relaydb"
	"github.com/rony4d/go-ethrelay/relayerr"
	"github.com/rony4d/go-ethrelay/txverify"
	"github.com/rony4d/go-ethrelay/utils/clock"
)

var (
	undoSucceeded = metrics.NewRegisteredMeter("undo/succeeded", nil)
	undoFailed    = metrics.NewRegisteredMeter("undo/failed", nil)
)

// Config holds the destination-side accounts of the protocol.
type Config struct {
	Pool         common.Address // receives inbound transfers, pays undos back
	FeeRecipient common.Address // receives verification fees, zero to keep them with the requester
}

// Protocol executes undo requests.
type Protocol struct {
	store  *relaydb.Store
	rules  ethrelay.Rules
	fees   txverify.FeeOracle
	ledger ledger.Ledger
	clock  clock.Clock
	cfg    Config

	succeededFeed event.Feed
	failedFeed    event.Feed
	scope         event.SubscriptionScope

	log log.Logger
}

// New creates the undo protocol.
//
// Parameters:
//   - store: Shared relay store holding headers and proven transactions
//   - rules: Network rules (undo window, amount source, signer)
//   - fees: Verification fee oracle shared with the proof verifier
//   - l: Destination ledger funds are moved on
//   - clk: Relay time source
//   - cfg: Pool and fee recipient accounts
func New(store *relaydb.Store, rules ethrelay.Rules, fees txverify.FeeOracle, l ledger.Ledger, clk clock.Clock, cfg Config) *Protocol {
	return &Protocol{
		store:  store,
		rules:  rules,
		fees:   fees,
		ledger: l,
		clock:  clk,
		cfg:    cfg,
		log:    log.New("module", "undo"),
	}
}

// transfer is the asset movement a proven transaction made.
type transfer struct {
	asset     common.Address
	from      common.Address
	recipient common.Address
	amount    *big.Int
}

// UndoTransfer moves ticket.Amount of the transferred asset from the pool
// back to the requester and consumes the transaction hash.
//
// Checks, in order:
//  1. ErrAlreadyUndone: the transaction was undone before
//  2. ErrFeeTooLow: feePayment below the required verification fee
//  3. ErrProofMissing: no proof and metadata for the transaction at blockNumber
//  4. ErrNotSender: requester is not the proven sender
//  5. ErrNotPoolTransfer, ErrAmountMismatch: the proven transfer does not pay
//     ticket.Amount to the pool
//  6. ErrProofMissing: the proving header is not Final
//  7. ErrOutsideWindow: now is not within [finalizedAt, finalizedAt+window]
//     of the proving header
func (p *Protocol) UndoTransfer(ticket inter.UndoTicket, blockNumber idx.Block, feePayment *big.Int) error {
	var proven bool
	err := p.store.Update(func(txn relaydb.Txn) error {
		return p.undo(txn, ticket, blockNumber, feePayment, &proven)
	})
	if err != nil {
		undoFailed.Mark(1)
		p.log.Warn("Undo rejected", "tx", ticket.TxHash, "requester", ticket.RequestedBy, "err", err)
		if proven {
			p.failedFeed.Send(inter.UndoFailed{TxHash: ticket.TxHash, RequestedBy: ticket.RequestedBy, Reason: err.Error()})
		}
	}
	return err
}

func (p *Protocol) undo(txn relaydb.Txn, ticket inter.UndoTicket, blockNumber idx.Block, feePayment *big.Int, proven *bool) error {
	done, err := relaydb.HasUndoRecord(txn, ticket.TxHash)
	if err != nil {
		return err
	}
	if done {
		return relayerr.Wrap(ErrAlreadyUndone, "%x", ticket.TxHash)
	}

	fee := new(big.Int)
	if feePayment != nil {
		fee.Set(feePayment)
	}
	if required := p.fees.RequiredFee(); fee.Cmp(required) < 0 {
		return relayerr.Wrap(ErrFeeTooLow, "have %v, want %v", fee, required)
	}

	rec, err := relaydb.ReadTxRecord(txn, ticket.TxHash)
	if err != nil {
		return err
	}
	if rec == nil || !rec.Proven || !rec.HasMetadata || rec.BlockNumber != blockNumber {
		return relayerr.Wrap(ErrProofMissing, "%x at block %d", ticket.TxHash, blockNumber)
	}
	*proven = true

	if ticket.RequestedBy != rec.From {
		return relayerr.Wrap(ErrNotSender, "sender is %x", rec.From)
	}
	moved, err := p.provenTransfer(rec)
	if err != nil {
		return err
	}
	if moved.from != rec.From {
		return relayerr.Wrap(ErrNotSender, "transfer pays from %x", moved.from)
	}
	if moved.recipient != p.cfg.Pool {
		return relayerr.Wrap(ErrNotPoolTransfer, "recipient %x", moved.recipient)
	}
	if ticket.Amount == nil || moved.amount.Cmp(ticket.Amount) != 0 {
		return relayerr.Wrap(ErrAmountMismatch, "proven %v, requested %v", moved.amount, ticket.Amount)
	}

	header, err := relaydb.ReadCanonicalHeader(txn, blockNumber)
	if err != nil {
		return err
	}
	if header == nil || header.State != inter.Final {
		return relayerr.Wrap(ErrProofMissing, "no final header at %d", blockNumber)
	}
	now := p.clock.Now()
	closes := header.FinalizedAt + inter.Timestamp(p.rules.Undo.Window)
	if now < header.FinalizedAt || now > closes {
		return relayerr.Wrap(ErrOutsideWindow, "window [%s, %s], now %s", header.FinalizedAt, closes, now)
	}

	moves := []ledger.Move{{Asset: moved.asset, From: p.cfg.Pool, To: ticket.RequestedBy, Amount: moved.amount}}
	if p.cfg.FeeRecipient != (common.Address{}) && fee.Sign() > 0 {
		moves = append(moves, ledger.Move{Asset: ledger.NativeAsset, From: ticket.RequestedBy, To: p.cfg.FeeRecipient, Amount: fee})
	}

	marker := &inter.UndoRecord{
		TxHash:      ticket.TxHash,
		Asset:       moved.asset,
		Amount:      new(big.Int).Set(moved.amount),
		RequestedBy: ticket.RequestedBy,
		FeePaid:     fee,
		At:          now,
	}
	if err := relaydb.WriteUndoRecord(txn, marker); err != nil {
		return err
	}
	rec.FeePaid = fee
	if err := relaydb.WriteTxRecord(txn, rec); err != nil {
		return err
	}
	if err := p.settle(txn, moves); err != nil {
		return err
	}
	txn.OnCommit(func() {
		undoSucceeded.Mark(1)
		p.log.Info("Transfer undone", "tx", marker.TxHash, "asset", marker.Asset, "amount", marker.Amount, "requester", marker.RequestedBy)
		p.succeededFeed.Send(inter.UndoSucceeded{TxHash: marker.TxHash, Amount: marker.Amount, RequestedBy: marker.RequestedBy})
	})
	return nil
}

// settle applies the ledger moves of an undo as one batch and arranges the
// reverse batch should the store commit fail.
func (p *Protocol) settle(txn relaydb.Txn, moves []ledger.Move) error {
	if err := p.ledger.TransferBatch(moves); err != nil {
		return relayerr.Wrap(ErrLedgerRejected, "%v", err)
	}
	txn.OnAbort(func() {
		if err := p.ledger.TransferBatch(ledger.Reverse(moves)); err != nil {
			p.log.Error("Failed to reverse ledger transfers", "moves", len(moves), "err", err)
		}
	})
	return nil
}

// provenTransfer reads the asset movement out of a proven transaction,
// according to the configured amount source.
func (p *Protocol) provenTransfer(rec *inter.TxRecord) (*transfer, error) {
	source := p.rules.Undo.AmountSource
	if source == ethrelay.AmountAuto {
		source = ethrelay.AmountFromValue
		if _, err := erc20.DecodeTransfer(rec.Input); err == nil {
			source = ethrelay.AmountFromCalldata
		}
	}

	switch source {
	case ethrelay.AmountFromCalldata:
		tr, err := erc20.DecodeTransfer(rec.Input)
		if err != nil {
			return nil, relayerr.Wrap(ErrAmountMismatch, "calldata: %v", err)
		}
		from := tr.From
		if from == (common.Address{}) {
			from = rec.From
		}
		return &transfer{asset: rec.To, from: from, recipient: tr.To, amount: tr.Amount}, nil

	case ethrelay.AmountFromValue:
		tx, err := evmcore.DecodeTx(rec.Value)
		if err != nil {
			return nil, relayerr.Wrap(ErrAmountMismatch, "transaction: %v", err)
		}
		return &transfer{asset: ledger.NativeAsset, from: rec.From, recipient: rec.To, amount: tx.Value()}, nil
	}
	return nil, relayerr.Wrap(ErrAmountMismatch, "unknown amount source %q", source)
}

// UndoRecord returns the consumed marker of a transaction.
func (p *Protocol) UndoRecord(txHash common.Hash) (rec *inter.UndoRecord, err error) {
	err = p.store.View(func(r relaydb.Reader) error {
		rec, err = relaydb.ReadUndoRecord(r, txHash)
		return err
	})
	return rec, err
}

// IsUndone reports whether a transaction was undone.
func (p *Protocol) IsUndone(txHash common.Hash) (done bool, err error) {
	err = p.store.View(func(r relaydb.Reader) error {
		done, err = relaydb.HasUndoRecord(r, txHash)
		return err
	})
	return done, err
}

// SubscribeUndoSucceeded delivers an event per successful undo.
func (p *Protocol) SubscribeUndoSucceeded(ch chan<- inter.UndoSucceeded) event.Subscription {
	return p.scope.Track(p.succeededFeed.Subscribe(ch))
}

// SubscribeUndoFailed delivers an event per rejected undo of a proven transaction.
func (p *Protocol) SubscribeUndoFailed(ch chan<- inter.UndoFailed) event.Subscription {
	return p.scope.Track(p.failedFeed.Subscribe(ch))
}

// Close unsubscribes every subscriber.
func (p *Protocol) Close() {
	p.scope.Close()
}
