package ledger

import "errors"

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind rather than matching error strings;
// Error() text is for humans and may evolve.
type Kind string

const (
	// KindTransient covers network, timeout, and archiver-side 5xx failures.
	// The caller retries on the next scheduled tick; never fatal.
	KindTransient Kind = "Transient"
	// KindProtocol covers malformed requests/responses and archiver
	// rejections. Retrying without change will not help.
	KindProtocol Kind = "Protocol"
	// KindInternal covers unexpected local failures.
	KindInternal Kind = "Internal"
)

// Error is the ledger client's structured error type.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op == "" {
		return e.Message
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, op, msg string) error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

func wrapError(kind Kind, op, msg string, cause error) error {
	if cause == nil {
		return newError(kind, op, msg)
	}
	return &Error{Kind: kind, Op: op, Message: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// IsTransient reports whether err should be retried on the next tick.
func IsTransient(err error) bool { return IsKind(err, KindTransient) }
