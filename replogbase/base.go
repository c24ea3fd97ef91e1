/*
Package replogbase defines the contract between the replay engine and a
live observability backend. The backend is authoritative for span
identity (it assigns a fresh SpanID on every NewSpan) and for interest
filtering (IsEnabled). There can be many Backend implementations.
*/
package replogbase

import (
	"github.com/replog/replog-go/replogrec"
)

// SpanID identifies a live span. It is assigned by the backend during
// this replay and has no relationship to the ids in the recording.
type SpanID uint64

// MaxCallsiteFields is the most fields that can be passed on a single
// backend call. This is a hard limit of the backend integration:
// field lists beyond this bound are truncated, with a warning through
// the engine's error reporter.
const MaxCallsiteFields = 32

// FieldValue is one resolved field: a key that the callsite declares
// paired with the recorded scalar value.
type FieldValue struct {
	Key   string
	Value replogrec.Value
}

// Parent is a fully-resolved parent relationship. The engine resolves
// contextual ("current") parents before calling the backend, so a
// backend only ever sees a root or an explicit live span id.
type Parent struct {
	Root bool
	ID   SpanID
}

func RootSpan() Parent { return Parent{Root: true} }

func ChildOf(id SpanID) Parent { return Parent{ID: id} }

// Backend is the live observability system that replay calls into.
// Implementations must be safe for concurrent use: the engine issues
// calls from one goroutine per recorded thread.
type Backend interface {
	// RegisterCallsite is invoked exactly once per callsite, before
	// any span or event from that callsite is dispatched.
	RegisterCallsite(*Callsite)

	// IsEnabled reports whether activity from the callsite should be
	// processed at all.
	IsEnabled(*Callsite) bool

	// NewSpan creates a live span and assigns its identity.
	NewSpan(cs *Callsite, parent Parent, fields []FieldValue) SpanID

	// Enter and Exit bracket the periods when the span is the active
	// context on its thread. Spans are re-entrant.
	Enter(SpanID)
	Exit(SpanID)

	// TryClose drops one reference to the span. It returns true when
	// that was the final reference and the span is finished.
	TryClose(SpanID) bool

	// AttachFields adds late-bound field values to an existing span.
	AttachFields(id SpanID, cs *Callsite, fields []FieldValue)

	// FollowsFrom records a causal (not structural) edge: effect
	// follows from cause.
	FollowsFrom(effect SpanID, cause SpanID)

	// Event dispatches a point-in-time occurrence.
	Event(cs *Callsite, parent Parent, fields []FieldValue)
}
