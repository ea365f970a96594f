package codec

import (
	"errors"
	"fmt"
)

// ErrorKind separates corrupt input from input that is valid but uses a
// feature the parsers do not implement.
type ErrorKind uint8

const (
	KindMalformed ErrorKind = iota + 1
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindMalformed:
		return "malformed container"
	case KindUnsupported:
		return "unsupported container feature"
	default:
		return "unknown"
	}
}

var (
	// ErrMalformedContainer matches any ParseError of KindMalformed.
	ErrMalformedContainer = errors.New("codec: malformed container")
	// ErrUnsupportedFeature matches any ParseError of KindUnsupported.
	ErrUnsupportedFeature = errors.New("codec: unsupported container feature")
)

// ParseError is returned by header parsers for input they refuse to decode.
type ParseError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("codec: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("codec: %s: %s", e.Kind, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func (e *ParseError) Is(target error) bool {
	switch target {
	case ErrMalformedContainer:
		return e.Kind == KindMalformed
	case ErrUnsupportedFeature:
		return e.Kind == KindUnsupported
	}
	return false
}

func malformed(cause error, format string, args ...any) error {
	return &ParseError{Kind: KindMalformed, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func unsupported(format string, args ...any) error {
	return &ParseError{Kind: KindUnsupported, Message: fmt.Sprintf(format, args...)}
}

// errTruncated is the cause attached to malformed errors raised when a header
// ends before its fields do.
var errTruncated = errors.New("header truncated")

func truncated(what string) error {
	return malformed(errTruncated, "%s", what)
}
