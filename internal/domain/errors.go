package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for callers and for HTTP status mapping.
type Kind string

const (
	KindAccessDenied   Kind = "access_denied"
	KindQuotaExceeded  Kind = "quota_exceeded"
	KindNotFound       Kind = "not_found"
	KindDecode         Kind = "decode_error"
	KindGeneration     Kind = "generation_error"
	KindScriptContract Kind = "script_contract_error"
	KindScriptRuntime  Kind = "script_runtime_error"
	KindPersistence    Kind = "persistence_error"
)

// Error carries a kind plus a human message. Trace holds the full diagnostic
// for script failures (operator visibility); it is never shown verbatim to
// end users.
type Error struct {
	Kind    Kind
	Message string
	Trace   string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// E builds a new domain error.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), err: err}
}

// WithTrace returns a copy of the error carrying a diagnostic trace.
func (e *Error) WithTrace(trace string) *Error {
	out := *e
	out.Trace = trace
	return &out
}

// KindOf extracts the kind from an error chain, or "" if none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsKind reports whether the error chain carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
