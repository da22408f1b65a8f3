package call

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPeerConnection marks an operation that needs a live peer
	// connection handle. Expected during state transitions, not a bug.
	ErrNoPeerConnection = errors.New("peer connection not initialized")

	ErrClosed            = errors.New("call closed")
	ErrUnexpectedSignal  = errors.New("unexpected signal for current state")
	ErrRecoveryExhausted = errors.New("connectivity recovery failed")
)

// CallError wraps a failure with the negotiation operation it happened in.
type CallError struct {
	Op      string
	Err     error
	Details string
}

func (e *CallError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *CallError {
	return &CallError{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *CallError {
	return &CallError{Op: op, Err: err, Details: details}
}
