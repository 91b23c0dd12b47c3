package policy

import (
	"errors"
	"fmt"
)

// Kind classifies errors returned across the agent's public surface.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors not produced by this package.
	KindUnknown Kind = iota

	// KindNotFound means an unknown node or policy id.
	KindNotFound

	// KindNotAccessible means the node is flagged inaccessible.
	KindNotAccessible

	// KindInvalidIntent means the request failed structural validation.
	KindInvalidIntent

	// KindInvalidPath means a resolved path failed format checks.
	KindInvalidPath

	// KindKernelTransport means the driver returned a non-zero status.
	KindKernelTransport

	// KindKernelUnavailable means no driver connection exists.
	KindKernelUnavailable
)

var kindNames = map[Kind]string{
	KindUnknown:           "unknown",
	KindNotFound:          "not_found",
	KindNotAccessible:     "not_accessible",
	KindInvalidIntent:     "invalid_intent",
	KindInvalidPath:       "invalid_path",
	KindKernelTransport:   "kernel_transport_error",
	KindKernelUnavailable: "kernel_unavailable",
}

// String returns the stable name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown error kind %q", text)
}

// Retryable reports whether retrying the same request may succeed.
// Validation and resolution failures must be fixed by the caller.
func (k Kind) Retryable() bool {
	return k == KindKernelTransport || k == KindKernelUnavailable
}

// Error is the structured failure returned by the agent's public operations.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op is the operation that failed ("apply", "resolve", "remove", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// Status is the raw driver status for KindKernelTransport.
	Status uint32

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Kind == KindKernelTransport {
		msg = fmt.Sprintf("%s (status 0x%08X)", msg, e.Status)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func newError(kind Kind, op, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// NotFound returns a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return newError(KindNotFound, op, format, args...)
}

// NotAccessible returns a KindNotAccessible error.
func NotAccessible(op, format string, args ...any) *Error {
	return newError(KindNotAccessible, op, format, args...)
}

// InvalidIntent returns a KindInvalidIntent error.
func InvalidIntent(op, format string, args ...any) *Error {
	return newError(KindInvalidIntent, op, format, args...)
}

// InvalidPath returns a KindInvalidPath error.
func InvalidPath(op, format string, args ...any) *Error {
	return newError(KindInvalidPath, op, format, args...)
}

// KernelTransport returns a KindKernelTransport error carrying the raw driver
// status.
func KernelTransport(op string, status uint32, cause error) *Error {
	return &Error{
		Kind:    KindKernelTransport,
		Op:      op,
		Message: "driver rejected message",
		Status:  status,
		Cause:   cause,
	}
}

// KernelUnavailable returns a KindKernelUnavailable error.
func KernelUnavailable(op string, cause error) *Error {
	return &Error{
		Kind:    KindKernelUnavailable,
		Op:      op,
		Message: "kernel driver is not connected",
		Cause:   cause,
	}
}

// WithCause attaches an underlying error and returns e.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}
