package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is an engine failure: the call could not be run or recorded.
// It is distinct from an application error, which is an Err result.
type RuntimeError struct {
	Code    RuntimeErrorCode
	Message string
	CallID  string
	Err     error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStopped means the engine is not accepting calls.
	ErrCodeStopped RuntimeErrorCode = "STOPPED"

	// ErrCodeStore means the call log or source chain could not be written.
	ErrCodeStore RuntimeErrorCode = "STORE_FAILURE"

	// ErrCodeEncoding means arguments or results could not be canonicalized.
	ErrCodeEncoding RuntimeErrorCode = "ENCODING"
)

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.CallID != "" {
		msg += fmt.Sprintf(" (call=%s)", e.CallID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// ErrStopped is returned by Call once the engine has shut down.
var ErrStopped = &RuntimeError{Code: ErrCodeStopped, Message: "engine stopped"}

// IsStopped reports whether err means the engine was not running.
func IsStopped(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodeStopped
}

func storeError(callID, what string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeStore, Message: what, CallID: callID, Err: err}
}

func encodingError(callID, what string, err error) *RuntimeError {
	return &RuntimeError{Code: ErrCodeEncoding, Message: what, CallID: callID, Err: err}
}
