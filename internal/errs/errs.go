// Package errs defines the failure taxonomy shared by the loader, the executor and the
// isolation boundary. Every failure that crosses a package boundary is an *Error carrying
// one Kind, so callers can branch with errors.Is against the sentinels below.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindNotFound means the index artifact or the label map is absent.
	KindNotFound Kind = "not_found"
	// KindCorrupt means the artifact or map could not be parsed, or the stored
	// dimensionality disagrees with the query.
	KindCorrupt Kind = "corrupt"
	// KindQueryFailed means the search primitive reported an internal fault.
	KindQueryFailed Kind = "query_failed"
	// KindTimeout means no terminal message arrived before the caller's deadline.
	KindTimeout Kind = "timeout"
	// KindInvalidRequest means the request was rejected before any file was read.
	KindInvalidRequest Kind = "invalid_request"
	// KindInternal covers everything else: a crashed worker, malformed worker output.
	KindInternal Kind = "internal"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrCorrupt        = errors.New("corrupt")
	ErrQueryFailed    = errors.New("query failed")
	ErrTimeout        = errors.New("timeout")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternal       = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindNotFound:       ErrNotFound,
	KindCorrupt:        ErrCorrupt,
	KindQueryFailed:    ErrQueryFailed,
	KindTimeout:        ErrTimeout,
	KindInvalidRequest: ErrInvalidRequest,
	KindInternal:       ErrInternal,
}

// Error is a classified failure.
type Error struct {
	Kind       Kind
	Op         string
	Collection string
	Err        error
}

// New returns an *Error of the given kind wrapping err.
func New(kind Kind, op, collection string, err error) *Error {
	return &Error{Kind: kind, Op: op, Collection: collection, Err: err}
}

// Newf is New with a formatted cause.
func Newf(kind Kind, op, collection, format string, args ...any) *Error {
	return New(kind, op, collection, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Collection != "" {
		msg += fmt.Sprintf(" (collection %q)", e.Collection)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ParseKind maps a wire string back to a Kind. Unknown values become KindInternal.
func ParseKind(s string) Kind {
	k := Kind(s)
	if _, ok := sentinels[k]; ok {
		return k
	}
	return KindInternal
}
