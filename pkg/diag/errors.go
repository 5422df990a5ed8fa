// Package diag defines the error taxonomy shared by the CF backend passes.
//
// Two conditions are distinguished:
//   - internal invariant violations (malformed intervals, unknown operation
//     shapes, broken IR), reported as *InternalError
//   - features that are deliberately missing, reported as *InternalError
//     wrapping ErrNotImplemented
//
// Neither is recoverable: the compilation of the affected method is aborted.
package diag

import (
	"errors"
	"fmt"
)

// ErrNotImplemented indicates a feature is not yet implemented
var ErrNotImplemented = errors.New("not implemented")

// InternalError is an internal compiler error raised by one of the passes.
type InternalError struct {
	// Pass names the pass that detected the problem (e.g. "regalloc").
	Pass string

	// Func is the name of the method being compiled, if known.
	Func string

	// Message is a human-readable description.
	Message string

	cause error
}

// Error implements the error interface.
func (e *InternalError) Error() string {
	prefix := "internal compiler error"
	if errors.Is(e.cause, ErrNotImplemented) {
		prefix = "not implemented"
	}
	if e.Func != "" {
		return fmt.Sprintf("%s in %s (%s): %s", prefix, e.Pass, e.Func, e.Message)
	}
	return fmt.Sprintf("%s in %s: %s", prefix, e.Pass, e.Message)
}

// Unwrap returns the underlying cause, ErrNotImplemented for missing features.
func (e *InternalError) Unwrap() error {
	return e.cause
}

// Internalf creates an InternalError for an invariant violation.
func Internalf(pass, format string, args ...any) *InternalError {
	return &InternalError{Pass: pass, Message: fmt.Sprintf(format, args...)}
}

// Unimplementedf creates an InternalError for a deliberately missing feature.
func Unimplementedf(pass, format string, args ...any) *InternalError {
	return &InternalError{
		Pass:    pass,
		Message: fmt.Sprintf(format, args...),
		cause:   ErrNotImplemented,
	}
}

// InFunc records the method being compiled on err if it is an InternalError
// that does not name one yet. Other errors are returned unchanged.
func InFunc(err error, name string) error {
	var ie *InternalError
	if errors.As(err, &ie) && ie.Func == "" {
		ie.Func = name
	}
	return err
}

// IsInternal returns true if err is (or wraps) an InternalError.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

// IsNotImplemented returns true if err reports a missing feature.
func IsNotImplemented(err error) bool {
	return errors.Is(err, ErrNotImplemented)
}
