package airquality

import "errors"

// Kind classifies pipeline failures.
type Kind string

const (
	KindNotFound  Kind = "not_found"
	KindTransport Kind = "transport"
)

// Sentinels for errors.Is matching against an *Error kind.
var (
	ErrNotFound  = errors.New("not found")
	ErrTransport = errors.New("transport error")
)

// Error is a pipeline failure with a user-displayable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// NewNotFound creates a NotFound error.
func NewNotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewTransportError creates a TransportError whose message ends with the cause.
func NewTransportError(prefix string, err error) *Error {
	msg := prefix
	if err != nil {
		msg = prefix + ": " + err.Error()
	}
	return &Error{Kind: KindTransport, Message: msg, Err: err}
}

// KindOf returns the kind of err, defaulting to KindTransport for foreign errors.
func KindOf(err error) Kind {
	var aqErr *Error
	if errors.As(err, &aqErr) {
		return aqErr.Kind
	}
	return KindTransport
}
