package relaydb

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/common/bigendian"
	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/rony4d/go-ethrelay/inter"
)

// readRLP decodes the value at key into val. Missing keys report false.
func readRLP(r Reader, key []byte, val interface{}) (bool, error) {
	enc, err := r.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, rlp.DecodeBytes(enc, val)
}

func writeRLP(w Txn, key []byte, val interface{}) error {
	enc, err := rlp.EncodeToBytes(val)
	if err != nil {
		return err
	}
	return w.Put(key, enc)
}

func readUint64(r Reader, key []byte) (uint64, bool, error) {
	enc, err := r.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return bigendian.BytesToUint64(enc), true, nil
}

// ReadRulesRLP retrieves the persisted network rules, raw.
func ReadRulesRLP(r Reader) ([]byte, error) {
	enc, err := r.Get(rulesKey)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return enc, err
}

// WriteRulesRLP persists the RLP-encoded network rules.
func WriteRulesRLP(w Txn, enc []byte) error {
	return w.Put(rulesKey, enc)
}

// ReadGenesisNumber retrieves the block number of the trusted genesis header.
func ReadGenesisNumber(r Reader) (idx.Block, bool, error) {
	n, ok, err := readUint64(r, genesisKey)
	return idx.Block(n), ok, err
}

// WriteGenesisNumber stores the block number of the trusted genesis header.
func WriteGenesisNumber(w Txn, number idx.Block) error {
	return w.Put(genesisKey, bigendian.Uint64ToBytes(uint64(number)))
}

// ReadLastStored retrieves the number of the canonical head.
func ReadLastStored(r Reader) (idx.Block, error) {
	n, _, err := readUint64(r, headKey)
	return idx.Block(n), err
}

// WriteLastStored stores the number of the canonical head.
func WriteLastStored(w Txn, number idx.Block) error {
	return w.Put(headKey, bigendian.Uint64ToBytes(uint64(number)))
}

// ReadEpochMeta retrieves the dataset cursor of an epoch, nil if none.
func ReadEpochMeta(r Reader, epoch idx.Epoch) (*inter.EpochMeta, error) {
	meta := new(inter.EpochMeta)
	ok, err := readRLP(r, epochKey(epoch), meta)
	if !ok || err != nil {
		return nil, err
	}
	return meta, nil
}

// WriteEpochMeta stores the dataset cursor of an epoch.
func WriteEpochMeta(w Txn, meta *inter.EpochMeta) error {
	return writeRLP(w, epochKey(meta.Epoch), meta)
}

// ReadDatasetNode retrieves a stored dataset node.
func ReadDatasetNode(r Reader, epoch idx.Epoch, index uint64) (common.Hash, bool, error) {
	enc, err := r.Get(nodeKey(epoch, index))
	if errors.Is(err, ErrNotFound) {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(enc), true, nil
}

// WriteDatasetNode stores a dataset node.
func WriteDatasetNode(w Txn, epoch idx.Epoch, index uint64, node common.Hash) error {
	return w.Put(nodeKey(epoch, index), node.Bytes())
}

// ReadHeader retrieves a relayed header by hash, nil if unknown. Headers
// are stored in their compact binary form.
func ReadHeader(r Reader, hash common.Hash) (*inter.RelayedHeader, error) {
	enc, err := r.Get(headerKey(hash))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h := new(inter.RelayedHeader)
	if err := h.UnmarshalBinary(enc); err != nil {
		return nil, fmt.Errorf("header %s: %w", hash.Hex(), err)
	}
	return h, nil
}

// WriteHeader stores a relayed header under its hash.
func WriteHeader(w Txn, h *inter.RelayedHeader) error {
	enc, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	return w.Put(headerKey(h.Hash), enc)
}

// ReadCanonicalHash retrieves the canonical header hash at a height.
func ReadCanonicalHash(r Reader, number idx.Block) (common.Hash, bool, error) {
	enc, err := r.Get(canonicalKey(number))
	if errors.Is(err, ErrNotFound) {
		return common.Hash{}, false, nil
	}
	if err != nil {
		return common.Hash{}, false, err
	}
	return common.BytesToHash(enc), true, nil
}

// WriteCanonicalHash marks hash as canonical at its height.
func WriteCanonicalHash(w Txn, number idx.Block, hash common.Hash) error {
	return w.Put(canonicalKey(number), hash.Bytes())
}

// DeleteCanonicalHash drops the canonical mapping of a height.
func DeleteCanonicalHash(w Txn, number idx.Block) error {
	return w.Delete(canonicalKey(number))
}

// ReadCanonicalHeader retrieves the canonical header at a height, nil if none.
func ReadCanonicalHeader(r Reader, number idx.Block) (*inter.RelayedHeader, error) {
	hash, ok, err := ReadCanonicalHash(r, number)
	if !ok || err != nil {
		return nil, err
	}
	return ReadHeader(r, hash)
}

// ReadStake retrieves a submitter's deposit, nil if none.
func ReadStake(r Reader, addr common.Address) (*inter.StakeDeposit, error) {
	s := new(inter.StakeDeposit)
	ok, err := readRLP(r, stakeKey(addr), s)
	if !ok || err != nil {
		return nil, err
	}
	return s, nil
}

// WriteStake stores a submitter's deposit.
func WriteStake(w Txn, s *inter.StakeDeposit) error {
	return writeRLP(w, stakeKey(s.Submitter), s)
}

// ReadTxRecord retrieves a proven transaction, nil if unknown.
func ReadTxRecord(r Reader, hash common.Hash) (*inter.TxRecord, error) {
	rec := new(inter.TxRecord)
	ok, err := readRLP(r, txKey(hash), rec)
	if !ok || err != nil {
		return nil, err
	}
	return rec, nil
}

// WriteTxRecord stores a proven transaction.
func WriteTxRecord(w Txn, rec *inter.TxRecord) error {
	return writeRLP(w, txKey(rec.TxHash), rec)
}

// ReadUndoRecord retrieves the consumed marker of a transaction, nil if unused.
func ReadUndoRecord(r Reader, hash common.Hash) (*inter.UndoRecord, error) {
	rec := new(inter.UndoRecord)
	ok, err := readRLP(r, undoKey(hash), rec)
	if !ok || err != nil {
		return nil, err
	}
	return rec, nil
}

// HasUndoRecord reports whether a transaction was already undone.
func HasUndoRecord(r Reader, hash common.Hash) (bool, error) {
	return r.Has(undoKey(hash))
}

// WriteUndoRecord stores the consumed marker of a transaction.
func WriteUndoRecord(w Txn, rec *inter.UndoRecord) error {
	return writeRLP(w, undoKey(rec.TxHash), rec)
}
