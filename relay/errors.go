package relay

import (
	"errors"

	"github.com/rony4d/go-ethrelay/relayerr"
)

var (
	ErrMalformedHeader        = relayerr.New(relayerr.InputRejected, "MalformedHeader", "malformed header")
	ErrNotContiguous          = relayerr.New(relayerr.InputRejected, "NotContiguous", "header does not extend the canonical chain")
	ErrFutureTimestamp        = relayerr.New(relayerr.InputRejected, "FutureTimestamp", "header timestamp in the future")
	ErrTimestampNotIncreasing = relayerr.New(relayerr.InputRejected, "TimestampNotIncreasing", "header timestamp not after parent")
	ErrBadGasLimit            = relayerr.New(relayerr.InputRejected, "BadGasLimit", "invalid gas limit")
	ErrExtraDataTooLong       = relayerr.New(relayerr.InputRejected, "ExtraDataTooLong", "extra data too long")
	ErrHeaderNotFound         = relayerr.New(relayerr.InputRejected, "HeaderNotFound", "header not found")
	ErrStillLocked            = relayerr.New(relayerr.InputRejected, "StillLocked", "header still in lock period")
	ErrInvalidDeposit         = relayerr.New(relayerr.InputRejected, "InvalidDeposit", "deposit must be positive")

	ErrBadDifficulty = relayerr.New(relayerr.ProofRejected, "BadDifficulty", "invalid difficulty")
	ErrBadPow        = relayerr.New(relayerr.ProofRejected, "BadPow", "invalid proof-of-work")

	ErrInsufficientStake = relayerr.New(relayerr.EconomicGating, "InsufficientStake", "insufficient stake")

	ErrDuplicateHeader = relayerr.New(relayerr.Replay, "DuplicateHeader", "header already stored")
	ErrAlreadyFinal    = relayerr.New(relayerr.Replay, "AlreadyFinal", "header at this number already final")

	errIncompatibleStore = errors.New("relay store was initialized with different rules or genesis")
)

// powError reports a seal failure as ErrBadPow while keeping the verifier's
// reason reachable through errors.Is.
type powError struct {
	err error
}

func (e *powError) Error() string { return ErrBadPow.Error() + ": " + e.err.Error() }

func (e *powError) Is(target error) bool { return target == ErrBadPow }

func (e *powError) Unwrap() error { return e.err }

// ErrorCode reports the proof-rejected code whatever the inner failure.
func (e *powError) ErrorCode() int { return ErrBadPow.ErrorCode() }
