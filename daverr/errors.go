// Package daverr holds the error types shared by the CalDAV client packages.
package daverr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind string

const (
	KindMalformedURL     Kind = "malformed_url"
	KindIdentity         Kind = "identity"
	KindNotYetSaved      Kind = "not_yet_saved"
	KindNotFound         Kind = "not_found"
	KindAmbiguous        Kind = "ambiguous_result"
	KindConflict         Kind = "conflict"
	KindParse            Kind = "parse"
	KindStructuralFilter Kind = "structural_filter"
	KindNoSuchComponent  Kind = "no_such_component"
	KindDeleted          Kind = "deleted"
	KindUnsupported      Kind = "unsupported"
)

// Error is a client-side error with a kind. Two Errors match under errors.Is
// when their kinds are equal, so the Err* sentinels below can be used as
// targets.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return string(e.Kind)
	case e.Err == nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New returns an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error of the given kind wrapping err.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

var (
	ErrMalformedURL     = &Error{Kind: KindMalformedURL}
	ErrIdentity         = &Error{Kind: KindIdentity}
	ErrNotYetSaved      = &Error{Kind: KindNotYetSaved}
	ErrNotFound         = &Error{Kind: KindNotFound}
	ErrAmbiguousResult  = &Error{Kind: KindAmbiguous}
	ErrConflict         = &Error{Kind: KindConflict}
	ErrParse            = &Error{Kind: KindParse}
	ErrStructuralFilter = &Error{Kind: KindStructuralFilter}
	ErrNoSuchComponent  = &Error{Kind: KindNoSuchComponent}
	ErrDeleted          = &Error{Kind: KindDeleted}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
)

// IsKind reports whether any error in err's chain is an Error of kind k.
func IsKind(err error, k Kind) bool {
	return errors.Is(err, &Error{Kind: k})
}

// HTTPStatusError is returned when a server answers with a status the
// operation did not expect.
type HTTPStatusError struct {
	Code   int
	Status string
	Body   []byte
}

func (e *HTTPStatusError) Error() string {
	const max = 512
	body := string(e.Body)
	if len(body) > max {
		body = body[:max] + " […]"
	}
	if body == "" {
		return fmt.Sprintf("unexpected HTTP status %d (%s)", e.Code, e.Status)
	}
	return fmt.Sprintf("unexpected HTTP status %d (%s): %s", e.Code, e.Status, body)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var httpErr *HTTPStatusError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	return 0
}

// PropStatError is the per-property failure carried in a multistatus propstat.
type PropStatError struct {
	Code   int
	Status string
}

func (e *PropStatError) Error() string {
	return fmt.Sprintf("property status %s", e.Status)
}
