package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a metadata lookup miss.
	ErrNotFound = errors.New("not found")

	// ErrConstraintViolation signals a duplicate or invalid metadata write.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrOutOfOrder signals a bar or tick write that would break the
	// strict-increasing-datetime invariant. The write is rejected whole.
	ErrOutOfOrder = errors.New("out of order")

	// ErrRequiresConfirmation signals an import attempted without a cutoff
	// while the target market's trading session is open. Not a failure: a
	// decision point for the caller.
	ErrRequiresConfirmation = errors.New("import requires confirmation during trading session")

	// ErrConnectFailed signals the ingestion transport could not be
	// reached within the retry budget.
	ErrConnectFailed = errors.New("connect failed")

	// ErrShuttingDown signals an operation arriving after shutdown began.
	ErrShuttingDown = errors.New("shutting down")
)

// ImportError isolates a failed per-symbol import commit. Other symbols
// in the same run are unaffected.
type ImportError struct {
	Symbol string
	Err    error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import failed for %s: %v", e.Symbol, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }
