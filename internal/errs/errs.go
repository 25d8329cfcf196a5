// Package errs defines the error taxonomy shared across the sync engine.
//
// Developer errors mark contract violations (an empty analyzer batch, an
// unhandled payload shape, a missing anchor date). They are never shown to
// end users; they bubble up to the caller unmodified so the batch fails
// loudly instead of guessing.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindDeveloper Kind = "developer"
	KindData      Kind = "data"
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return string(e.Kind) + " error: " + e.Msg
}

// Developerf reports a caller/contract violation.
func Developerf(format string, args ...any) error {
	return &Error{Kind: KindDeveloper, Msg: fmt.Sprintf(format, args...)}
}

// Dataf reports malformed external data.
func Dataf(format string, args ...any) error {
	return &Error{Kind: KindData, Msg: fmt.Sprintf(format, args...)}
}

func IsDeveloper(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindDeveloper
}
