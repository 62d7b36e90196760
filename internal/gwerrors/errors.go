// Package gwerrors defines the error taxonomy the dispatcher and HTTP
// layer use to decide what escapes to the caller and what stays inside
// the retry loop.
package gwerrors

import "fmt"

// Kind is one row of the error taxonomy.
type Kind string

const (
	// KindUnknownModel means the registry has no provider instances for
	// the requested public model id. Surfaced as 404.
	KindUnknownModel Kind = "unknown_model"

	// KindNoCapacity means every visited provider instance returned
	// Skip (breaker open, or every key denied/disabled). Surfaced as
	// 503 with the last observed reason embedded.
	KindNoCapacity Kind = "no_capacity"

	// KindUpstreamFailure covers HTTP non-2xx, timeout, connection
	// reset, and malformed upstream bodies. Stays inside the dispatch
	// loop; counts against the rotator and breaker.
	KindUpstreamFailure Kind = "upstream_failure"

	// KindTranslationError is a Translator adapter failure while
	// formatting the request or normalizing the response. Treated
	// identically to KindUpstreamFailure.
	KindTranslationError Kind = "translation_error"

	// KindBudgetExceeded is a pre-flight tracker denial. Not a
	// failure: it causes a key skip, not a rotator failure mark.
	KindBudgetExceeded Kind = "budget_exceeded"

	// KindConfigError is fatal at startup.
	KindConfigError Kind = "config_error"

	// KindSnapshotIO is a background persistence failure. Logged,
	// never user-visible.
	KindSnapshotIO Kind = "snapshot_io_error"

	// KindMalformedRequest is a client-supplied body that fails basic
	// validation (missing model, no messages, ...). Surfaced as 400.
	KindMalformedRequest Kind = "malformed_request"
)

// Error wraps a Kind with a human message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, if it (or something it wraps) is
// an *Error. The second return is false otherwise.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return "", false
}
