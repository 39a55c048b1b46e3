// Package txverify proves that a transaction is included in a final relayed
// header and keeps the metadata (sender, recipient, input) attached to it.
//
// A proof is the transaction's canonical encoding plus the Merkle-Patricia
// nodes from the header's transactions root down to it. Each transaction
// hash is proven at most once; metadata may arrive later, once, and must
// agree with what the proven bytes decode to.
package txverify

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/rony4d/go-ethrelay/ethrelay"
	"github.com/rony4d/go-ethrelay/evmcore"
	"github.com/rony4d/go-ethrelay/inter"
	"github.com/rony4d/go-ethrelay/relaydb"
	"github.com/rony4d/go-ethrelay/relayerr"
)

var (
	proofMeter    = metrics.NewRegisteredMeter("txverify/proofs/accepted", nil)
	rejectMeter   = metrics.NewRegisteredMeter("txverify/proofs/rejected", nil)
	metadataMeter = metrics.NewRegisteredMeter("txverify/metadata", nil)
)

// Verifier checks transaction inclusion proofs against final headers.
type Verifier struct {
	store  *relaydb.Store
	signer types.Signer
	fees   FeeOracle

	submittedFeed event.Feed
	scope         event.SubscriptionScope

	log log.Logger
}

// New creates a transaction proof verifier.
func New(store *relaydb.Store, rules ethrelay.Rules, fees FeeOracle) *Verifier {
	return &Verifier{
		store:  store,
		signer: rules.Signer(),
		fees:   fees,
		log:    log.New("module", "txverify"),
	}
}

// GetRequiredVerificationFee returns the fee an undo must attach.
func (v *Verifier) GetRequiredVerificationFee() *big.Int {
	return v.fees.RequiredFee()
}

// SubmitTxProof records a transaction as included in a final header.
//
// Returns:
//   - ErrHeaderNotFinal: no Final canonical header at proof.BlockNumber
//   - ErrInvalidProof: value does not hash to TxHash, or the trie walk from
//     the header's transactions root along Path does not end at value
//   - ErrDuplicateProof: TxHash was proven before
func (v *Verifier) SubmitTxProof(proof inter.TxProof) error {
	err := v.store.Update(func(txn relaydb.Txn) error {
		header, err := relaydb.ReadCanonicalHeader(txn, proof.BlockNumber)
		if err != nil {
			return err
		}
		if header == nil || header.State != inter.Final {
			return relayerr.Wrap(ErrHeaderNotFinal, "block %d", proof.BlockNumber)
		}
		if crypto.Keccak256Hash(proof.Value) != proof.TxHash {
			return relayerr.Wrap(ErrInvalidProof, "value does not hash to %x", proof.TxHash)
		}
		value, err := evmcore.VerifyProof(header.TxHash, proof.Path, proof.Nodes)
		if err != nil {
			return relayerr.Wrap(ErrInvalidProof, "%v", err)
		}
		if !bytes.Equal(value, proof.Value) {
			return relayerr.Wrap(ErrInvalidProof, "proven value differs")
		}
		known, err := relaydb.ReadTxRecord(txn, proof.TxHash)
		if err != nil {
			return err
		}
		if known != nil {
			return relayerr.Wrap(ErrDuplicateProof, "%x", proof.TxHash)
		}

		rec := &inter.TxRecord{
			TxHash:      proof.TxHash,
			BlockNumber: proof.BlockNumber,
			Value:       common.CopyBytes(proof.Value),
			Proven:      true,
			FeePaid:     new(big.Int),
		}
		if err := relaydb.WriteTxRecord(txn, rec); err != nil {
			return err
		}
		txn.OnCommit(func() {
			proofMeter.Mark(1)
			v.log.Debug("Transaction proven", "tx", rec.TxHash, "block", rec.BlockNumber)
			v.submittedFeed.Send(inter.SubmittedTx{TxHash: rec.TxHash, BlockNumber: rec.BlockNumber})
		})
		return nil
	})
	if err != nil {
		rejectMeter.Mark(1)
	}
	return err
}

// SubmitTxMetaData attaches sender, recipient and input to a proven
// transaction. The proven bytes are decoded and must agree with meta.
//
// Returns:
//   - ErrUnknownProof: no proof for txHash
//   - ErrMetadataAlreadySet: metadata was attached before
//   - ErrMetadataMismatch: meta differs from the proven transaction
func (v *Verifier) SubmitTxMetaData(txHash common.Hash, meta inter.TxMetadata) error {
	return v.store.Update(func(txn relaydb.Txn) error {
		rec, err := relaydb.ReadTxRecord(txn, txHash)
		if err != nil {
			return err
		}
		if rec == nil {
			return relayerr.Wrap(ErrUnknownProof, "%x", txHash)
		}
		if rec.HasMetadata {
			return relayerr.Wrap(ErrMetadataAlreadySet, "%x", txHash)
		}
		proven, err := v.decode(rec.Value)
		if err != nil {
			return relayerr.Wrap(ErrMetadataMismatch, "undecodable transaction: %v", err)
		}
		if proven.From != meta.From || proven.To != meta.To || !bytes.Equal(proven.Input, meta.Input) {
			return relayerr.Wrap(ErrMetadataMismatch, "proven %x -> %x", proven.From, proven.To)
		}

		rec.HasMetadata = true
		rec.From = meta.From
		rec.To = meta.To
		rec.Input = common.CopyBytes(meta.Input)
		if err := relaydb.WriteTxRecord(txn, rec); err != nil {
			return err
		}
		txn.OnCommit(func() {
			metadataMeter.Mark(1)
			v.log.Debug("Transaction metadata set", "tx", txHash, "from", meta.From, "to", meta.To)
		})
		return nil
	})
}

// decode returns the metadata a proven transaction carries.
func (v *Verifier) decode(enc []byte) (*inter.TxMetadata, error) {
	tx, err := evmcore.DecodeTx(enc)
	if err != nil {
		return nil, err
	}
	from, err := types.Sender(v.signer, tx)
	if err != nil {
		return nil, err
	}
	meta := &inter.TxMetadata{From: from, Input: tx.Data()}
	if to := tx.To(); to != nil {
		meta.To = *to
	}
	return meta, nil
}

// GetTxMetaData returns the metadata attached to a proven transaction.
func (v *Verifier) GetTxMetaData(txHash common.Hash) (meta inter.TxMetadata, err error) {
	rec, err := v.TxRecord(txHash)
	if err != nil {
		return meta, err
	}
	if !rec.HasMetadata {
		return meta, relayerr.Wrap(ErrNotFound, "%x", txHash)
	}
	return rec.Metadata(), nil
}

// TxRecord returns everything recorded about a proven transaction.
func (v *Verifier) TxRecord(txHash common.Hash) (rec *inter.TxRecord, err error) {
	err = v.store.View(func(r relaydb.Reader) error {
		rec, err = relaydb.ReadTxRecord(r, txHash)
		return err
	})
	if err == nil && rec == nil {
		err = relayerr.Wrap(ErrNotFound, "%x", txHash)
	}
	return rec, err
}

// SubscribeSubmittedTx delivers an event per proven transaction.
func (v *Verifier) SubscribeSubmittedTx(ch chan<- inter.SubmittedTx) event.Subscription {
	return v.scope.Track(v.submittedFeed.Subscribe(ch))
}

// Close unsubscribes every subscriber.
func (v *Verifier) Close() {
	v.scope.Close()
}
