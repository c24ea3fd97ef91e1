/*
Package replogtest provides an introspective replogbase.Backend. Every
call the replay engine makes is saved to memory and can be examined.
Live span ids are assigned from a counter, so tests can predict them.
*/
package replogtest

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/mohae/deepcopy"
	"github.com/muir/list"

	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replognum"
)

type EventType int

const (
	CallsiteRegistered EventType = iota // registerCallsite
	SpanStart                           // newSpan
	SpanEnter                           // enter
	SpanExit                            // exit
	SpanClose                           // tryClose
	FieldsAttached                      // attachFields
	FollowedFrom                        // followsFrom
	PointEvent                          // event
)

var _ replogbase.Backend = &Backend{}

type testingT interface {
	Log(...interface{})
	Name() string
}

type Opt func(*Backend)

// WithMinLevel makes callsites below level report as not enabled.
func WithMinLevel(level replognum.Level) Opt {
	return func(b *Backend) {
		b.minLevel = level
	}
}

// WithDisabledCallsite makes the named callsite report as not enabled
// regardless of level.
func WithDisabledCallsite(name string) Opt {
	return func(b *Backend) {
		b.disabled[name] = struct{}{}
	}
}

// WithTestLogging echoes every backend call to the test log.
func WithTestLogging(t testingT) Opt {
	return func(b *Backend) {
		b.t = t
	}
}

func New(opts ...Opt) *Backend {
	b := &Backend{
		id:        "replogtest-" + uuid.New().String(),
		minLevel:  replognum.TraceLevel,
		disabled:  make(map[string]struct{}),
		SpanIndex: make(map[replogbase.SpanID]*Span),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type Backend struct {
	lock       sync.Mutex
	id         string
	t          testingT
	minLevel   replognum.Level
	disabled   map[string]struct{}
	nextSpanID replogbase.SpanID

	Callsites []*replogbase.Callsite
	Spans     []*Span
	Events    []*Event
	SpanIndex map[replogbase.SpanID]*Span
}

// Span is the recorded state of one live span.
type Span struct {
	ID          replogbase.SpanID
	Callsite    *replogbase.Callsite
	Parent      replogbase.Parent
	Fields      []replogbase.FieldValue
	Attached    []replogbase.FieldValue
	EnterCount  int
	ExitCount   int
	Refs        int
	Closed      bool
	FollowsFrom []replogbase.SpanID // causes
}

// Event is one backend call, in the order the engine made them.
type Event struct {
	Type     EventType
	Callsite *replogbase.Callsite
	Span     *Span
	Fields   []replogbase.FieldValue
	Parent   replogbase.Parent
	Cause    replogbase.SpanID
	Effect   replogbase.SpanID
	Final    bool // for SpanClose: the reference count hit zero
}

func (b *Backend) ID() string { return b.id }

// WithLock is provided for thread-safe introspection of the backend.
func (b *Backend) WithLock(f func(*Backend) error) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	return f(b)
}

func (b *Backend) log(msg string, args ...interface{}) {
	if b.t != nil {
		b.t.Log(fmt.Sprintf(msg, args...))
	}
}

// RegisterCallsite is a required method for replogbase.Backend
func (b *Backend) RegisterCallsite(cs *replogbase.Callsite) {
	b.log("register callsite %s", cs)
	b.lock.Lock()
	defer b.lock.Unlock()
	b.Callsites = append(b.Callsites, cs)
	b.Events = append(b.Events, &Event{
		Type:     CallsiteRegistered,
		Callsite: cs,
	})
}

// IsEnabled is a required method for replogbase.Backend
func (b *Backend) IsEnabled(cs *replogbase.Callsite) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, off := b.disabled[cs.Name()]; off {
		return false
	}
	return cs.Level() >= b.minLevel
}

// NewSpan is a required method for replogbase.Backend
func (b *Backend) NewSpan(cs *replogbase.Callsite, parent replogbase.Parent, fields []replogbase.FieldValue) replogbase.SpanID {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.nextSpanID++
	span := &Span{
		ID:       b.nextSpanID,
		Callsite: cs,
		Parent:   parent,
		Fields:   list.Copy(fields),
		Refs:     1,
	}
	b.Spans = append(b.Spans, span)
	b.SpanIndex[span.ID] = span
	b.Events = append(b.Events, &Event{
		Type:     SpanStart,
		Callsite: cs,
		Span:     span,
		Fields:   span.Fields,
		Parent:   parent,
	})
	b.log("new span %d %s", span.ID, cs)
	return span.ID
}

// Enter is a required method for replogbase.Backend
func (b *Backend) Enter(id replogbase.SpanID) {
	b.log("enter span %d", id)
	b.lock.Lock()
	defer b.lock.Unlock()
	span := b.SpanIndex[id]
	if span != nil {
		span.EnterCount++
	}
	b.Events = append(b.Events, &Event{
		Type: SpanEnter,
		Span: span,
	})
}

// Exit is a required method for replogbase.Backend
func (b *Backend) Exit(id replogbase.SpanID) {
	b.log("exit span %d", id)
	b.lock.Lock()
	defer b.lock.Unlock()
	span := b.SpanIndex[id]
	if span != nil {
		span.ExitCount++
	}
	b.Events = append(b.Events, &Event{
		Type: SpanExit,
		Span: span,
	})
}

// TryClose is a required method for replogbase.Backend
func (b *Backend) TryClose(id replogbase.SpanID) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	span := b.SpanIndex[id]
	final := false
	if span != nil && !span.Closed {
		span.Refs--
		if span.Refs <= 0 {
			span.Closed = true
			final = true
		}
	}
	b.Events = append(b.Events, &Event{
		Type:  SpanClose,
		Span:  span,
		Final: final,
	})
	b.log("close span %d final=%v", id, final)
	return final
}

// AttachFields is a required method for replogbase.Backend
func (b *Backend) AttachFields(id replogbase.SpanID, cs *replogbase.Callsite, fields []replogbase.FieldValue) {
	// The engine may reuse its field buffers; keep our own copy.
	fields = deepcopy.Copy(fields).([]replogbase.FieldValue)
	b.lock.Lock()
	defer b.lock.Unlock()
	span := b.SpanIndex[id]
	if span != nil {
		span.Attached = append(span.Attached, fields...)
	}
	b.Events = append(b.Events, &Event{
		Type:     FieldsAttached,
		Callsite: cs,
		Span:     span,
		Fields:   fields,
	})
}

// FollowsFrom is a required method for replogbase.Backend
func (b *Backend) FollowsFrom(effect replogbase.SpanID, cause replogbase.SpanID) {
	b.log("span %d follows from %d", effect, cause)
	b.lock.Lock()
	defer b.lock.Unlock()
	span := b.SpanIndex[effect]
	if span != nil {
		span.FollowsFrom = append(span.FollowsFrom, cause)
	}
	b.Events = append(b.Events, &Event{
		Type:   FollowedFrom,
		Span:   span,
		Cause:  cause,
		Effect: effect,
	})
}

// Event is a required method for replogbase.Backend
func (b *Backend) Event(cs *replogbase.Callsite, parent replogbase.Parent, fields []replogbase.FieldValue) {
	b.log("event %s", cs)
	b.lock.Lock()
	defer b.lock.Unlock()
	b.Events = append(b.Events, &Event{
		Type:     PointEvent,
		Callsite: cs,
		Fields:   list.Copy(fields),
		Parent:   parent,
	})
}
