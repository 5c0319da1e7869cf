package telemetry

import (
	"errors"
	"fmt"
)

// ErrMalformed matches every *MalformedRecordError via errors.Is.
var ErrMalformed = errors.New("malformed record")

// Reasons a record is rejected.
const (
	ReasonEncoding = "encoding"
	ReasonArity    = "arity"
	ReasonNumber   = "number"
	ReasonOversize = "oversize"
)

// maxSnippetBytes bounds how much of a rejected record is kept for diagnostics.
const maxSnippetBytes = 64

// TransportError reports a fatal fault of the underlying byte source.
// The read loop cannot continue after one.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("transport: %v", e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedRecordError reports a single record that could not be turned into
// a Sample. It only ever affects that record.
type MalformedRecordError struct {
	Reason string
	// Field is set for numeric failures.
	Field  string
	Record string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	msg := "malformed record (" + e.Reason + ")"
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Record != "" {
		msg += fmt.Sprintf(" record=%q", e.Record)
	}
	return msg
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformed }

func snippet(b []byte) string {
	if len(b) > maxSnippetBytes {
		return string(b[:maxSnippetBytes]) + "..."
	}
	return string(b)
}
