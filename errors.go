package replog

import (
	"fmt"
	"strings"
)

// OpenError means the recording file could not be opened. The whole
// replay aborts.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("cannot open recording %s: %s", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// ReadError means a line could not be read from the recording. The
// whole replay aborts.
type ReadError struct {
	LineIndex int
	Err       error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cannot read recording line %d: %s", e.LineIndex, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// DecodeError means a line was read but could not be deserialized as a
// record. It keeps the raw line for diagnosis. The whole replay
// aborts: a recording with a bad line cannot be trusted past it.
type DecodeError struct {
	LineIndex int
	Line      string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot deserialize recording line %d: %s (line: %s)", e.LineIndex, e.Err, e.Line)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HeaderError means the recording declares a format version this
// package cannot replay.
type HeaderError struct {
	Err error
}

func (e *HeaderError) Error() string { return e.Err.Error() }

func (e *HeaderError) Unwrap() error { return e.Err }

// ThreadFailure is one worker's failure, keyed by the recorded thread
// identity it was replaying.
type ThreadFailure struct {
	ThreadID string
	Err      error
}

// CloseError aggregates the failures of all workers that did not shut
// down cleanly.
type CloseError struct {
	Threads []ThreadFailure
}

func (e *CloseError) Error() string {
	var b strings.Builder
	b.WriteString("replay workers failed:")
	for _, tf := range e.Threads {
		fmt.Fprintf(&b, " %s: %s;", tf.ThreadID, tf.Err)
	}
	return strings.TrimSuffix(b.String(), ";")
}
