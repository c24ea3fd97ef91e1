/*
Package replogotel replays recordings into Open Telemetry using OTEL's
top-level APIs.

OTEL's model is narrower than a recording's in a few places. It has no
enter/exit notion, so span activations become span events. Links can
only be attached when a span is created, so a follows-from edge becomes
an ephemeral sub-span carrying the link. OTEL does not support unsigned
or 128-bit integers, so those field values are formatted as strings.
*/
package replogotel

import (
	"context"
	"math"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replognum"
	"github.com/replog/replog-go/replogrec"
)

var _ replogbase.Backend = &Backend{}

var (
	targetKey = attribute.Key("callsite.target")
	levelKey  = attribute.Key("callsite.level")
	fileKey   = attribute.Key("source.file")
	lineKey   = attribute.Key("source.line")
)

type Opt func(*Backend)

// WithMinLevel filters out callsites below level.
func WithMinLevel(level replognum.Level) Opt {
	return func(b *Backend) {
		b.minLevel = level
	}
}

// New wraps an OTEL tracer so the replay engine can dispatch into it.
func New(tracer oteltrace.Tracer, opts ...Opt) *Backend {
	b := &Backend{
		id:       "replogotel-" + uuid.New().String(),
		tracer:   tracer,
		minLevel: replognum.TraceLevel,
		spans:    make(map[replogbase.SpanID]*liveSpan),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type Backend struct {
	lock       sync.Mutex
	id         string
	tracer     oteltrace.Tracer
	minLevel   replognum.Level
	nextSpanID replogbase.SpanID
	spans      map[replogbase.SpanID]*liveSpan
}

type liveSpan struct {
	span oteltrace.Span
	ctx  context.Context
	refs int
	done bool
}

func (b *Backend) ID() string { return b.id }

// RegisterCallsite is a required method for replogbase.Backend.
// OTEL has no callsite registration; interest is decided per call.
func (b *Backend) RegisterCallsite(*replogbase.Callsite) {}

// IsEnabled is a required method for replogbase.Backend
func (b *Backend) IsEnabled(cs *replogbase.Callsite) bool {
	return cs.Level() >= b.minLevel
}

// NewSpan is a required method for replogbase.Backend
func (b *Backend) NewSpan(cs *replogbase.Callsite, parent replogbase.Parent, fields []replogbase.FieldValue) replogbase.SpanID {
	ctx := context.Background()
	startOpts := []oteltrace.SpanStartOption{
		oteltrace.WithAttributes(callsiteAttributes(cs)...),
		oteltrace.WithAttributes(fieldAttributes(fields)...),
	}
	b.lock.Lock()
	if !parent.Root {
		if p, ok := b.spans[parent.ID]; ok {
			ctx = p.ctx
		}
	} else {
		startOpts = append(startOpts, oteltrace.WithNewRoot())
	}
	b.lock.Unlock()

	ctx, span := b.tracer.Start(ctx, cs.Name(), startOpts...)

	b.lock.Lock()
	defer b.lock.Unlock()
	b.nextSpanID++
	b.spans[b.nextSpanID] = &liveSpan{
		span: span,
		ctx:  ctx,
		refs: 1,
	}
	return b.nextSpanID
}

func (b *Backend) get(id replogbase.SpanID) *liveSpan {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.spans[id]
}

// Enter is a required method for replogbase.Backend
func (b *Backend) Enter(id replogbase.SpanID) {
	if ls := b.get(id); ls != nil {
		ls.span.AddEvent("enter")
	}
}

// Exit is a required method for replogbase.Backend
func (b *Backend) Exit(id replogbase.SpanID) {
	if ls := b.get(id); ls != nil {
		ls.span.AddEvent("exit")
	}
}

// TryClose is a required method for replogbase.Backend
func (b *Backend) TryClose(id replogbase.SpanID) bool {
	b.lock.Lock()
	ls := b.spans[id]
	final := false
	if ls != nil && !ls.done {
		ls.refs--
		if ls.refs <= 0 {
			ls.done = true
			final = true
		}
	}
	b.lock.Unlock()
	if final {
		ls.span.End()
	}
	return final
}

// AttachFields is a required method for replogbase.Backend
func (b *Backend) AttachFields(id replogbase.SpanID, _ *replogbase.Callsite, fields []replogbase.FieldValue) {
	if ls := b.get(id); ls != nil {
		ls.span.SetAttributes(fieldAttributes(fields)...)
	}
}

// FollowsFrom is a required method for replogbase.Backend. OTEL links
// are creation-time only, so the edge is expressed as an ephemeral
// sub-span of the effect that links to the cause.
func (b *Backend) FollowsFrom(effect replogbase.SpanID, cause replogbase.SpanID) {
	effectSpan := b.get(effect)
	causeSpan := b.get(cause)
	if effectSpan == nil || causeSpan == nil {
		return
	}
	_, span := b.tracer.Start(effectSpan.ctx, "follows-from",
		oteltrace.WithLinks(oteltrace.Link{
			SpanContext: causeSpan.span.SpanContext(),
		}))
	span.End()
}

// Event is a required method for replogbase.Backend
func (b *Backend) Event(cs *replogbase.Callsite, parent replogbase.Parent, fields []replogbase.FieldValue) {
	attrs := append(callsiteAttributes(cs), fieldAttributes(fields)...)
	if !parent.Root {
		if p := b.get(parent.ID); p != nil {
			p.span.AddEvent(cs.Name(), oteltrace.WithAttributes(attrs...))
			return
		}
	}
	// Root events have no span to attach to; emit an instant span.
	_, span := b.tracer.Start(context.Background(), cs.Name(),
		oteltrace.WithNewRoot(), oteltrace.WithAttributes(attrs...))
	span.End()
}

func callsiteAttributes(cs *replogbase.Callsite) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		targetKey.String(cs.Target()),
		levelKey.String(cs.Level().String()),
	}
	if cs.File() != "" {
		attrs = append(attrs,
			fileKey.String(cs.File()),
			lineKey.Int64(int64(cs.Line())),
		)
	}
	return attrs
}

func fieldAttributes(fields []replogbase.FieldValue) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(fields))
	for _, f := range fields {
		key := attribute.Key(f.Key)
		var kv attribute.KeyValue
		switch f.Value.Kind {
		case replogrec.F64Kind:
			kv = key.Float64(f.Value.Float)
		case replogrec.I64Kind:
			kv = key.Int64(f.Value.Int)
		case replogrec.BoolKind:
			kv = key.Bool(f.Value.Bool)
		case replogrec.U64Kind:
			if f.Value.Uint <= math.MaxInt64 {
				kv = key.Int64(int64(f.Value.Uint))
			} else {
				kv = key.String(strconv.FormatUint(f.Value.Uint, 10))
			}
		default:
			// Debug, Str, I128, U128 all carry strings.
			kv = key.String(f.Value.Str)
		}
		attrs = append(attrs, kv)
	}
	return attrs
}
