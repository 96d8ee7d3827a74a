package domain

import "errors"

// Kind classifies application errors into the retry/skip/abort policy buckets.
type Kind int

const (
	// KindInternal is the zero value for unclassified failures.
	KindInternal Kind = iota
	// KindConfig marks invalid or missing configuration. Fatal, never retried.
	KindConfig
	// KindTransient marks network/provider/store connectivity failures.
	// Retried with bounded attempts, then surfaced.
	KindTransient
	// KindValidation marks a single bad record. Skipped and counted,
	// never fatal to the surrounding batch.
	KindValidation
	// KindNotFound marks a legitimate empty outcome, not a failure.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransient:
		return "transient"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is the structured application error: a kind, a message, and an
// optional cause. Propagated by value through explicit returns.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Convenience constructors

func NewConfigError(msg string, err error) *Error {
	return &Error{Kind: KindConfig, Message: msg, Err: err}
}

func NewTransientError(msg string, err error) *Error {
	return &Error{Kind: KindTransient, Message: msg, Err: err}
}

func NewValidationError(msg string, err error) *Error {
	return &Error{Kind: KindValidation, Message: msg, Err: err}
}

func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func NewInternalError(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err is a not-found outcome.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
