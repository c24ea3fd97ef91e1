/*
Package replogrec defines the on-disk schema of a recording: one
self-describing JSON record per line, each wrapping capture-time metadata
(timestamp, originating thread) and one of eight trace payload kinds.
Records are immutable once written; replay only reads them.
*/
package replogrec

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/replog/replog-go/replognum"
)

// SpanID is the span identifier assigned by the backend that was live
// at capture time. It is only meaningful within a single recording.
type SpanID uint64

// Meta is the capture-time envelope shared by every record.
type Meta struct {
	TimestampS        uint64 `json:"timestamp_s"`
	TimestampSubsecUS uint32 `json:"timestamp_subsec_us"`
	ThreadID          string `json:"thread_id"`
	ThreadName        string `json:"thread_name,omitempty"`
}

// CaptureTime reconstructs the wall-clock instant the record was made.
func (m Meta) CaptureTime() time.Time {
	return time.Unix(int64(m.TimestampS), int64(m.TimestampSubsecUS)*int64(time.Microsecond))
}

// MetaNow stamps a capture envelope with the current time.
func MetaNow(threadID string, threadName string) Meta {
	now := time.Now()
	return Meta{
		TimestampS:        uint64(now.Unix()),
		TimestampSubsecUS: uint32(now.Nanosecond() / int(time.Microsecond)),
		ThreadID:          threadID,
		ThreadName:        threadName,
	}
}

// Metadata describes a callsite: the static site that spans and events
// originate from. ID is derived from the callsite's identity in the
// recorded process and is stable only within one recording.
type Metadata struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	Target     string          `json:"target"`
	Level      replognum.Level `json:"level"`
	ModulePath string          `json:"module_path,omitempty"`
	File       string          `json:"file,omitempty"`
	Line       uint32          `json:"line,omitempty"`
	Fields     []string        `json:"fields"`
	Kind       replognum.Kind  `json:"kind"`
}

// ParentKind discriminates the three ways a span or event can be
// parented.
type ParentKind int

const (
	// ParentRoot means explicitly no parent.
	ParentRoot ParentKind = iota
	// ParentCurrent inherits whichever span is active on the
	// dispatching thread.
	ParentCurrent
	// ParentExplicit names the parent span directly.
	ParentExplicit
)

// Parent is the recorded parent relationship. ID is only meaningful
// when Kind is ParentExplicit.
type Parent struct {
	Kind ParentKind
	ID   SpanID
}

func RootParent() Parent { return Parent{Kind: ParentRoot} }

func CurrentParent() Parent { return Parent{Kind: ParentCurrent} }

func ExplicitParent(id SpanID) Parent { return Parent{Kind: ParentExplicit, ID: id} }

func (p Parent) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case ParentRoot:
		return json.Marshal("Root")
	case ParentCurrent:
		return json.Marshal("Current")
	case ParentExplicit:
		return json.Marshal(map[string]SpanID{"Explicit": p.ID})
	default:
		return nil, errors.Errorf("parent kind %d cannot be encoded", p.Kind)
	}
}

func (p *Parent) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		switch name {
		case "Root":
			*p = RootParent()
			return nil
		case "Current":
			*p = CurrentParent()
			return nil
		default:
			return errors.Errorf("'%s' does not name a parent", name)
		}
	}
	var explicit struct {
		Explicit *SpanID `json:"Explicit"`
	}
	if err := json.Unmarshal(b, &explicit); err != nil {
		return errors.Wrap(err, "parent must be Root, Current, or Explicit")
	}
	if explicit.Explicit == nil {
		return errors.New("parent object must carry an Explicit span id")
	}
	*p = ExplicitParent(*explicit.Explicit)
	return nil
}

// Event is a point-in-time occurrence.
type Event struct {
	Fields   []Field  `json:"fields"`
	Metadata Metadata `json:"metadata"`
	Parent   Parent   `json:"parent"`
}

// NewSpan is the creation of a span.
type NewSpan struct {
	ID       SpanID   `json:"id"`
	Fields   []Field  `json:"fields"`
	Metadata Metadata `json:"metadata"`
	Parent   Parent   `json:"parent"`
}

// RecordValues carries late-bound field values for an existing span.
type RecordValues struct {
	ID     SpanID  `json:"id"`
	Fields []Field `json:"fields"`
}

// FollowsFrom is a causal edge between two spans that is not a
// parent/child relationship.
type FollowsFrom struct {
	CauseID  SpanID `json:"cause_id"`
	EffectID SpanID `json:"effect_id"`
}

// Trace is the tagged union of the eight payload kinds. Exactly one
// member is set. The wire form is externally tagged, eg {"Enter":12}.
type Trace struct {
	RegisterCallsite *Metadata     `json:"RegisterCallsite,omitempty"`
	Event            *Event        `json:"Event,omitempty"`
	NewSpan          *NewSpan      `json:"NewSpan,omitempty"`
	Enter            *SpanID       `json:"Enter,omitempty"`
	Exit             *SpanID       `json:"Exit,omitempty"`
	Close            *SpanID       `json:"Close,omitempty"`
	Record           *RecordValues `json:"Record,omitempty"`
	FollowsFrom      *FollowsFrom  `json:"FollowsFrom,omitempty"`
}

func (t Trace) variants() []bool {
	return []bool{
		t.RegisterCallsite != nil,
		t.Event != nil,
		t.NewSpan != nil,
		t.Enter != nil,
		t.Exit != nil,
		t.Close != nil,
		t.Record != nil,
		t.FollowsFrom != nil,
	}
}

// Validate checks that exactly one payload member is set.
func (t Trace) Validate() error {
	count := 0
	for _, set := range t.variants() {
		if set {
			count++
		}
	}
	if count != 1 {
		return errors.Errorf("trace payload must have exactly one variant, has %d", count)
	}
	return nil
}

// Record is one line of a recording.
type Record struct {
	Meta  Meta  `json:"meta"`
	Trace Trace `json:"trace"`
}

// DecodeLine deserializes one line of a recording. The line must be a
// complete record; headers are recognized by DecodeHeader, not here.
func DecodeLine(line []byte) (Record, error) {
	var record Record
	decoder := json.NewDecoder(bytes.NewReader(line))
	if err := decoder.Decode(&record); err != nil {
		return Record{}, errors.Wrap(err, "cannot deserialize record")
	}
	if err := record.Trace.Validate(); err != nil {
		return Record{}, err
	}
	return record, nil
}

// EncodeLine serializes the record to a single line, without a
// trailing newline.
func (r Record) EncodeLine() ([]byte, error) {
	if err := r.Trace.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(r)
	return b, errors.Wrap(err, "cannot serialize record")
}
