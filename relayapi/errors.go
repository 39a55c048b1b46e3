package relayapi

import (
	"errors"

	"github.com/rony4d/go-ethrelay/relayerr"
)

// codedError carries the JSON-RPC code and category of a wrapped relay error.
// The RPC server reads codes by type assertion, so the code must sit on the
// outermost error.
type codedError struct {
	err  error
	code int
	data string
}

func (e *codedError) Error() string          { return e.err.Error() }
func (e *codedError) Unwrap() error          { return e.err }
func (e *codedError) ErrorCode() int         { return e.code }
func (e *codedError) ErrorData() interface{} { return e.data }

func wrapError(err error) error {
	if err == nil {
		return nil
	}
	category, _ := relayerr.CategoryOf(err)
	code := category.Code()
	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		code = coded.ErrorCode()
	}
	return &codedError{err: err, code: code, data: category.String()}
}
