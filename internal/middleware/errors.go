package middleware

import (
	"errors"
	"fmt"
)

// ErrorKind classifies snapshot failures.
type ErrorKind int

const (
	// IOFailure means the filesystem could not be read.
	IOFailure ErrorKind = iota + 1
	// DecodeFailure means a recognized file had invalid content.
	DecodeFailure
	// AmbiguousMatch means two middlewares claimed the same path.
	AmbiguousMatch
)

func (k ErrorKind) String() string {
	switch k {
	case IOFailure:
		return "io failure"
	case DecodeFailure:
		return "decode failure"
	case AmbiguousMatch:
		return "ambiguous match"
	default:
		return "unknown failure"
	}
}

// Sentinels for errors.Is.
var (
	ErrIO        = errors.New("io failure")
	ErrDecode    = errors.New("decode failure")
	ErrAmbiguous = errors.New("ambiguous match")
)

// Error is returned by every middleware and by the dispatcher.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrIO:
		return e.Kind == IOFailure
	case ErrDecode:
		return e.Kind == DecodeFailure
	case ErrAmbiguous:
		return e.Kind == AmbiguousMatch
	}
	return false
}

func ioError(path string, err error) error {
	return wrap(IOFailure, path, err)
}

func decodeError(path string, err error) error {
	return wrap(DecodeFailure, path, err)
}

func decodeErrorf(path, format string, args ...any) error {
	return wrap(DecodeFailure, path, fmt.Errorf(format, args...))
}

// wrap keeps an existing *Error intact so the innermost path and cause
// reach the caller.
func wrap(kind ErrorKind, path string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Kind: kind, Path: path, Err: err}
}
