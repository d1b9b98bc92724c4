package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDataIntegrity marks conditions worth alerting on rather than
	// retrying, e.g. two checkpoints sharing one date.
	ErrDataIntegrity = errors.New("ledger data integrity violation")

	ErrProjectNotFound = errors.New("project not found")
)

// StoreError wraps a transient failure talking to the transaction or
// checkpoint store. The engine never retries these itself; retry policy
// belongs to the caller, which can distinguish "balance unavailable" from
// "balance is zero".
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a transient store failure.
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsTransient reports whether err is a transient store failure as opposed
// to a data-integrity problem.
func IsTransient(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
