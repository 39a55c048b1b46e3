package inter

import (
	"errors"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-ethrelay/utils/cser"
)

var (
	ErrUnknownVersion     = errors.New("unknown header record version")
	ErrSerMalformedHeader = errors.New("malformed header record")
)

// headerRecordVersion is the version byte leading every stored header record.
const headerRecordVersion = 1

// MaxRawHeaderSize bounds the raw header kept in a record.
const MaxRawHeaderSize = 8 * 1024

// MarshalCSER writes the relay record of a header:
//   - version byte
//   - number, hashes, difficulties, source-chain time and gas limit
//   - submitter, submission time, lock as a delta from submission
//   - state in 2 bits, followed by the finalization time for Final headers
//   - the raw header
func (h *RelayedHeader) MarshalCSER(w *cser.Writer) error {
	if h.LockedUntil < h.SubmittedAt || h.State > Disputed || len(h.Raw) > MaxRawHeaderSize {
		return ErrSerMalformedHeader
	}
	if h.State != Final && h.FinalizedAt != 0 {
		return ErrSerMalformedHeader
	}
	w.U8(headerRecordVersion)
	w.U64(uint64(h.Number))
	w.FixedBytes(h.Hash.Bytes())
	w.FixedBytes(h.ParentHash.Bytes())
	w.BigInt(h.Difficulty)
	w.BigInt(h.TotalDifficulty)
	w.U64(h.Time)
	w.U64(h.GasLimit)
	w.FixedBytes(h.TxHash.Bytes())

	w.FixedBytes(h.Submitter.Bytes())
	w.U64(uint64(h.SubmittedAt))
	w.U64(uint64(h.LockedUntil - h.SubmittedAt))
	w.BitsW.Write(2, uint(h.State))
	if h.State == Final {
		w.U64(uint64(h.FinalizedAt))
	}
	w.SliceBytes(h.Raw)
	return nil
}

// UnmarshalCSER reads a record written by MarshalCSER.
func (h *RelayedHeader) UnmarshalCSER(r *cser.Reader) error {
	if v := r.U8(); v != headerRecordVersion {
		return ErrUnknownVersion
	}
	number := r.U64()
	r.FixedBytes(h.Hash[:])
	r.FixedBytes(h.ParentHash[:])
	h.Difficulty = r.BigInt()
	h.TotalDifficulty = r.BigInt()
	h.Time = r.U64()
	h.GasLimit = r.U64()
	r.FixedBytes(h.TxHash[:])

	r.FixedBytes(h.Submitter[:])
	submittedAt := r.U64()
	lock := r.U64()
	state := HeaderState(r.BitsR.Read(2))
	if state > Disputed {
		return ErrSerMalformedHeader
	}
	var finalizedAt uint64
	if state == Final {
		finalizedAt = r.U64()
	}
	h.Raw = r.SliceBytes(MaxRawHeaderSize)

	h.Number = idx.Block(number)
	h.SubmittedAt = Timestamp(submittedAt)
	h.LockedUntil = Timestamp(submittedAt + lock)
	if h.LockedUntil < h.SubmittedAt {
		return ErrSerMalformedHeader
	}
	h.FinalizedAt = Timestamp(finalizedAt)
	h.State = state
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h *RelayedHeader) MarshalBinary() ([]byte, error) {
	return cser.MarshalBinaryAdapter(h.MarshalCSER)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *RelayedHeader) UnmarshalBinary(raw []byte) error {
	return cser.UnmarshalBinaryAdapter(raw, h.UnmarshalCSER)
}
