package zome

import (
	"errors"
	"fmt"

	"github.com/roach88/holopos/internal/ir"
)

// ErrorKind classifies an APIError.
type ErrorKind string

const (
	KindInternal         ErrorKind = "Internal"
	KindNotFound         ErrorKind = "NotFound"
	KindValidationFailed ErrorKind = "ValidationFailed"
	KindInvalidInput     ErrorKind = "InvalidInput"
	KindUnknownFunction  ErrorKind = "UnknownFunction"
)

// APIError is an application-level failure. It is returned to callers as
// the Err branch of a call result, never as a transport error.
type APIError struct {
	Kind    ErrorKind
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IR renders the error as a single-key object, {"<Kind>": "<message>"}.
func (e *APIError) IR() ir.IRObject {
	return ir.IRObject{string(e.Kind): ir.IRString(e.Message)}
}

func newError(kind ErrorKind, format string, args ...any) *APIError {
	return &APIError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Internal reports an unexpected failure.
func Internal(format string, args ...any) *APIError {
	return newError(KindInternal, format, args...)
}

// NotFound reports a missing entry.
func NotFound(format string, args ...any) *APIError {
	return newError(KindNotFound, format, args...)
}

// ValidationFailed reports an entry rejected by its validator.
func ValidationFailed(format string, args ...any) *APIError {
	return newError(KindValidationFailed, format, args...)
}

// InvalidInput reports arguments that do not match the function signature.
func InvalidInput(format string, args ...any) *APIError {
	return newError(KindInvalidInput, format, args...)
}

// UnknownFunction reports a call to a zome, capability or function that
// does not exist.
func UnknownFunction(format string, args ...any) *APIError {
	return newError(KindUnknownFunction, format, args...)
}

// AsAPIError returns err as an *APIError, wrapping anything else as Internal.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("%v", err)
}

// IsKind reports whether err is an APIError of kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
