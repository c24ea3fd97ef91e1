package replogotel_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replognum"
	"github.com/replog/replog-go/replogotel"
	"github.com/replog/replog-go/replogrec"
)

func newBackend(t *testing.T, opts ...replogotel.Opt) (*replogotel.Backend, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return replogotel.New(provider.Tracer("replogotel-test"), opts...), exporter
}

func callsite(name string, level replognum.Level, kind replognum.Kind) *replogbase.Callsite {
	return replogbase.NewCallsite(replogrec.Metadata{
		ID:     1,
		Name:   name,
		Target: "app",
		Level:  level,
		File:   "app/src/main.rs",
		Line:   10,
		Kind:   kind,
	})
}

func findStub(stubs tracetest.SpanStubs, name string) (tracetest.SpanStub, bool) {
	for _, stub := range stubs {
		if stub.Name == name {
			return stub, true
		}
	}
	return tracetest.SpanStub{}, false
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, attr := range attrs {
		m[attr.Key] = attr.Value
	}
	return m
}

func TestSpanHierarchy(t *testing.T) {
	backend, exporter := newBackend(t)
	parentCS := callsite("parent", replognum.InfoLevel, replognum.KindSpan)
	childCS := callsite("child", replognum.InfoLevel, replognum.KindSpan)

	parent := backend.NewSpan(parentCS, replogbase.RootSpan(), nil)
	child := backend.NewSpan(childCS, replogbase.ChildOf(parent), nil)
	require.True(t, backend.TryClose(child))
	require.True(t, backend.TryClose(parent))

	stubs := exporter.GetSpans()
	require.Len(t, stubs, 2)
	parentStub, ok := findStub(stubs, "parent")
	require.True(t, ok)
	childStub, ok := findStub(stubs, "child")
	require.True(t, ok)
	assert.False(t, parentStub.Parent.IsValid(), "root span has no parent")
	assert.Equal(t, parentStub.SpanContext.SpanID(), childStub.Parent.SpanID())
	assert.Equal(t, parentStub.SpanContext.TraceID(), childStub.SpanContext.TraceID())
}

func TestEnterExitBecomeSpanEvents(t *testing.T) {
	backend, exporter := newBackend(t)
	cs := callsite("busy", replognum.InfoLevel, replognum.KindSpan)

	id := backend.NewSpan(cs, replogbase.RootSpan(), nil)
	backend.Enter(id)
	backend.Exit(id)
	backend.Enter(id)
	backend.Exit(id)
	require.True(t, backend.TryClose(id))

	stubs := exporter.GetSpans()
	require.Len(t, stubs, 1)
	var names []string
	for _, event := range stubs[0].Events {
		names = append(names, event.Name)
	}
	assert.Equal(t, []string{"enter", "exit", "enter", "exit"}, names)
}

func TestEventOnSpan(t *testing.T) {
	backend, exporter := newBackend(t)
	spanCS := callsite("worker", replognum.InfoLevel, replognum.KindSpan)
	eventCS := callsite("progress", replognum.InfoLevel, replognum.KindEvent)

	id := backend.NewSpan(spanCS, replogbase.RootSpan(), nil)
	backend.Event(eventCS, replogbase.ChildOf(id), []replogbase.FieldValue{
		{Key: "pct", Value: replogrec.I64Value(40)},
	})
	require.True(t, backend.TryClose(id))

	stubs := exporter.GetSpans()
	require.Len(t, stubs, 1)
	require.Len(t, stubs[0].Events, 1)
	event := stubs[0].Events[0]
	assert.Equal(t, "progress", event.Name)
	attrs := attrMap(event.Attributes)
	assert.Equal(t, int64(40), attrs["pct"].AsInt64())
	assert.Equal(t, "app", attrs["callsite.target"].AsString())
}

func TestRootEventBecomesInstantSpan(t *testing.T) {
	backend, exporter := newBackend(t)
	eventCS := callsite("lonely", replognum.InfoLevel, replognum.KindEvent)

	backend.Event(eventCS, replogbase.RootSpan(), nil)

	stubs := exporter.GetSpans()
	require.Len(t, stubs, 1)
	assert.Equal(t, "lonely", stubs[0].Name)
	assert.False(t, stubs[0].Parent.IsValid())
}

func TestFollowsFromLink(t *testing.T) {
	backend, exporter := newBackend(t)
	cs := callsite("task", replognum.InfoLevel, replognum.KindSpan)

	cause := backend.NewSpan(cs, replogbase.RootSpan(), nil)
	effect := backend.NewSpan(cs, replogbase.RootSpan(), nil)
	backend.FollowsFrom(effect, cause)
	require.True(t, backend.TryClose(cause))
	require.True(t, backend.TryClose(effect))

	stubs := exporter.GetSpans()
	linkStub, ok := findStub(stubs, "follows-from")
	require.True(t, ok, "follows-from edges become ephemeral sub-spans")
	require.Len(t, linkStub.Links, 1)

	causeStub, ok := findStub(stubs, "task")
	require.True(t, ok)
	assert.Equal(t, causeStub.SpanContext.TraceID(), linkStub.Links[0].SpanContext.TraceID())
}

func TestFieldValueConversions(t *testing.T) {
	backend, exporter := newBackend(t)
	cs := callsite("typed", replognum.InfoLevel, replognum.KindSpan)

	id := backend.NewSpan(cs, replogbase.RootSpan(), []replogbase.FieldValue{
		{Key: "f", Value: replogrec.F64Value(1.5)},
		{Key: "i", Value: replogrec.I64Value(-4)},
		{Key: "b", Value: replogrec.BoolValue(true)},
		{Key: "u_small", Value: replogrec.U64Value(9)},
		{Key: "u_big", Value: replogrec.U64Value(18446744073709551615)},
		{Key: "big", Value: replogrec.I128Value("-170141183460469231731687303715884105728")},
		{Key: "s", Value: replogrec.StrValue("hello")},
	})
	require.True(t, backend.TryClose(id))

	stubs := exporter.GetSpans()
	require.Len(t, stubs, 1)
	attrs := attrMap(stubs[0].Attributes)
	assert.Equal(t, 1.5, attrs["f"].AsFloat64())
	assert.Equal(t, int64(-4), attrs["i"].AsInt64())
	assert.Equal(t, true, attrs["b"].AsBool())
	assert.Equal(t, int64(9), attrs["u_small"].AsInt64(), "unsigned values that fit stay numeric")
	assert.Equal(t, "18446744073709551615", attrs["u_big"].AsString(), "oversized unsigned values become strings")
	assert.Equal(t, "-170141183460469231731687303715884105728", attrs["big"].AsString())
	assert.Equal(t, "hello", attrs["s"].AsString())
}

func TestMinLevelFilter(t *testing.T) {
	backend, _ := newBackend(t, replogotel.WithMinLevel(replognum.WarnLevel))
	assert.False(t, backend.IsEnabled(callsite("info", replognum.InfoLevel, replognum.KindEvent)))
	assert.True(t, backend.IsEnabled(callsite("warn", replognum.WarnLevel, replognum.KindEvent)))
}
