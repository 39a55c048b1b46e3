// Package relayerr defines the error taxonomy shared by every relay component.
//
// Each sentinel belongs to exactly one Category. The category tells a caller
// whether resubmitting can ever succeed:
//   - InputRejected: malformed or out-of-order input, fix it and resubmit
//   - ProofRejected: the supplied evidence does not verify
//   - EconomicGating: valid submission, not enough stake or fee attached
//   - Replay: the identifier is already used, no retry path exists
//
// Errors also expose ErrorCode so the JSON-RPC layer can report them with a
// stable code per category.
package relayerr

import (
	"errors"
	"fmt"
)

// Category groups relay errors by how a caller may react to them.
type Category int

const (
	Unknown Category = iota
	InputRejected
	ProofRejected
	EconomicGating
	Replay
)

// JSON-RPC codes, one per category. The range stays clear of the codes
// reserved by JSON-RPC 2.0 (-32768..-32000).
const (
	CodeUnknown        = -39000
	CodeInputRejected  = -39001
	CodeProofRejected  = -39002
	CodeEconomicGating = -39003
	CodeReplay         = -39004
)

func (c Category) String() string {
	switch c {
	case InputRejected:
		return "input-rejected"
	case ProofRejected:
		return "proof-rejected"
	case EconomicGating:
		return "economic-gating"
	case Replay:
		return "replay"
	default:
		return "unknown"
	}
}

// Code returns the JSON-RPC error code of the category.
func (c Category) Code() int {
	switch c {
	case InputRejected:
		return CodeInputRejected
	case ProofRejected:
		return CodeProofRejected
	case EconomicGating:
		return CodeEconomicGating
	case Replay:
		return CodeReplay
	default:
		return CodeUnknown
	}
}

// Error is a categorized sentinel. Compare with errors.Is, never by message.
type Error struct {
	Name     string   // short identifier, e.g. "NotContiguous"
	Category Category // how callers should treat the failure
	msg      string
}

// New declares a categorized sentinel error.
func New(category Category, name, msg string) *Error {
	return &Error{Name: name, Category: category, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// ErrorCode implements the go-ethereum rpc.Error interface.
func (e *Error) ErrorCode() int { return e.Category.Code() }

// CategoryOf returns the category of the first relay error found in err's chain.
func CategoryOf(err error) (Category, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Category, true
	}
	return Unknown, false
}

// Wrap attaches context to a sentinel while keeping it reachable by errors.Is.
func Wrap(sentinel *Error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
