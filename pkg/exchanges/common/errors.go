package common

import (
	"errors"
	"fmt"
)

// ErrTransient marks rate-limit, network and malformed-response failures
// coming from the exchange. Callers abort the current operation and keep
// previous state.
var ErrTransient = errors.New("transient exchange error")

// ErrSymbolNotFound is returned when the exchange does not list a symbol.
var ErrSymbolNotFound = errors.New("symbol not found")

// Transient wraps err so that errors.Is(err, ErrTransient) holds while the
// original cause stays reachable through errors.Unwrap chains.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	return &transientError{op: op, err: err}
}

type transientError struct {
	op  string
	err error
}

func (e *transientError) Error() string {
	return fmt.Sprintf("%s: %v", e.op, e.err)
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}
