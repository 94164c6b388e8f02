// Package xmlresolvererr defines the resolver's error kinds.
//
// The core never raises for a catalog miss: a miss is represented as
// a zero-value lookup result, not an error. Everything in this
// package represents a failure *surfacing* a miss or fetch problem to
// a caller that asked for it (via ThrowURIExceptions or a fetch call).
package xmlresolvererr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error kinds the resolver can surface.
type Kind string

const (
	KindNotFound         Kind = "not-found"
	KindMalformedURI     Kind = "malformed-uri"
	KindCatalogParse     Kind = "catalog-parse-error"
	KindAccessDenied     Kind = "access-denied"
	KindRedirectLoop     Kind = "redirect-loop"
	KindTooManyRedirects Kind = "too-many-redirects"
	KindIO               Kind = "io-error"
	KindRDDLParse        Kind = "rddl-parse-error"
	KindAborted          Kind = "aborted"
)

// Error is the single error type the engine returns; callers switch
// on Kind rather than type-asserting to package-specific error types.
type Error struct {
	Kind    Kind
	Message string
	URI     string
	Err     error
}

func (e *Error) Error() string {
	if e.URI != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.URI)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, uri, message string) *Error {
	return &Error{Kind: kind, URI: uri, Message: message}
}

func Wrap(kind Kind, uri string, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, URI: uri, Message: msg, Err: err}
}

// Is allows errors.Is(err, &xmlresolvererr.Error{Kind: xmlresolvererr.KindNotFound})
// style checks by comparing Kind when the target is itself a *Error
// with only Kind set.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err != nil || t.URI != "" || t.Message != "" {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf reports the Kind for an error produced by this package, or
// "" if err is nil or not one of ours.
func KindOf(err error) Kind {
	var e *Error
	if err == nil {
		return ""
	}
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
