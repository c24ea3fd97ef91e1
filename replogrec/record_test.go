package replogrec_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/replog/replog-go/replognum"
	"github.com/replog/replog-go/replogrec"
)

// A line in the format the original capture layer produced: field
// values are bare strings, no header.
const legacyEventLine = `{"meta":{"timestamp_s":1708644606,"timestamp_subsec_us":74908,"thread_id":"ThreadId(1)","thread_name":"main"},"trace":{"Event":{"fields":[["message","I am an info event!"]],"metadata":{"id":4435670072,"name":"event examples/events.rs:8","target":"events","level":"Info","module_path":"events","file":"examples/events.rs","line":8,"fields":["message"],"kind":"Event"},"parent":"Current"}}}`

func TestDecodeLegacyEventLine(t *testing.T) {
	record, err := replogrec.DecodeLine([]byte(legacyEventLine))
	require.NoError(t, err)

	assert.Equal(t, uint64(1708644606), record.Meta.TimestampS)
	assert.Equal(t, uint32(74908), record.Meta.TimestampSubsecUS)
	assert.Equal(t, "ThreadId(1)", record.Meta.ThreadID)
	assert.Equal(t, "main", record.Meta.ThreadName)

	require.NotNil(t, record.Trace.Event)
	event := record.Trace.Event
	assert.Equal(t, uint64(4435670072), event.Metadata.ID)
	assert.Equal(t, replognum.InfoLevel, event.Metadata.Level)
	assert.Equal(t, replognum.KindEvent, event.Metadata.Kind)
	assert.Equal(t, replogrec.CurrentParent(), event.Parent)
	require.Len(t, event.Fields, 1)
	assert.Equal(t, "message", event.Fields[0].Name)
	assert.Equal(t, replogrec.StrValue("I am an info event!"), event.Fields[0].Value)
}

func TestRoundTripRecord(t *testing.T) {
	cases := []struct {
		name  string
		trace replogrec.Trace
	}{
		{
			name: "register callsite",
			trace: replogrec.Trace{RegisterCallsite: &replogrec.Metadata{
				ID:     7,
				Name:   "root",
				Target: "app",
				Level:  replognum.WarnLevel,
				Fields: []string{"x", "y"},
				Kind:   replognum.KindSpan,
			}},
		},
		{
			name: "new span with typed fields",
			trace: replogrec.Trace{NewSpan: &replogrec.NewSpan{
				ID: 1,
				Fields: []replogrec.Field{
					{Name: "x", Value: replogrec.I64Value(5)},
					{Name: "f", Value: replogrec.F64Value(2.5)},
					{Name: "u", Value: replogrec.U64Value(9)},
					{Name: "b", Value: replogrec.BoolValue(true)},
					{Name: "big", Value: replogrec.I128Value("-170141183460469231731687303715884105728")},
					{Name: "ubig", Value: replogrec.U128Value("340282366920938463463374607431768211455")},
					{Name: "dbg", Value: replogrec.DebugValue("Thing { a: 1 }")},
				},
				Metadata: replogrec.Metadata{ID: 7, Name: "root", Target: "app", Level: replognum.InfoLevel, Fields: []string{"x", "f", "u", "b", "big", "ubig", "dbg"}, Kind: replognum.KindSpan},
				Parent:   replogrec.RootParent(),
			}},
		},
		{
			name:  "enter",
			trace: replogrec.Trace{Enter: spanIDPtr(12)},
		},
		{
			name:  "close",
			trace: replogrec.Trace{Close: spanIDPtr(12)},
		},
		{
			name: "record with explicit parent elsewhere",
			trace: replogrec.Trace{Record: &replogrec.RecordValues{
				ID:     3,
				Fields: []replogrec.Field{{Name: "x", Value: replogrec.StrValue("late")}},
			}},
		},
		{
			name: "follows from",
			trace: replogrec.Trace{FollowsFrom: &replogrec.FollowsFrom{
				CauseID:  1,
				EffectID: 2,
			}},
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			record := replogrec.Record{
				Meta:  replogrec.Meta{TimestampS: 100, TimestampSubsecUS: 999, ThreadID: "ThreadId(3)"},
				Trace: tc.trace,
			}
			line, err := record.EncodeLine()
			require.NoError(t, err)
			assert.False(t, strings.Contains(string(line), "\n"), "single line")
			decoded, err := replogrec.DecodeLine(line)
			require.NoError(t, err)
			assert.Equal(t, record, decoded)
		})
	}
}

func TestExplicitParentJSON(t *testing.T) {
	record := replogrec.Record{
		Meta: replogrec.Meta{ThreadID: "ThreadId(1)"},
		Trace: replogrec.Trace{Event: &replogrec.Event{
			Metadata: replogrec.Metadata{ID: 1, Name: "e", Target: "t", Kind: replognum.KindEvent},
			Parent:   replogrec.ExplicitParent(42),
		}},
	}
	line, err := record.EncodeLine()
	require.NoError(t, err)
	assert.Contains(t, string(line), `"parent":{"Explicit":42}`)

	decoded, err := replogrec.DecodeLine(line)
	require.NoError(t, err)
	assert.Equal(t, replogrec.ExplicitParent(42), decoded.Trace.Event.Parent)
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	_, err := replogrec.DecodeLine([]byte(`{"meta":{"timestamp_s":1,"timestamp_subsec_us":0,"thread_id":"ThreadId(1)"},"trace":{}}`))
	assert.Error(t, err)
}

func TestDecodeRejectsBadValueKind(t *testing.T) {
	_, err := replogrec.DecodeLine([]byte(`{"meta":{"timestamp_s":1,"timestamp_subsec_us":0,"thread_id":"ThreadId(1)"},"trace":{"Record":{"id":1,"fields":[["x",{"I33":5}]]}}}`))
	assert.Error(t, err)
}

func TestDecodeRejectsBad128BitValue(t *testing.T) {
	_, err := replogrec.DecodeLine([]byte(`{"meta":{"timestamp_s":1,"timestamp_subsec_us":0,"thread_id":"ThreadId(1)"},"trace":{"Record":{"id":1,"fields":[["x",{"I128":"not a number"}]]}}}`))
	assert.Error(t, err)
}

func TestCaptureTime(t *testing.T) {
	meta := replogrec.Meta{TimestampS: 1708644606, TimestampSubsecUS: 74908}
	ts := meta.CaptureTime()
	assert.Equal(t, int64(1708644606), ts.Unix())
	assert.Equal(t, 74908*1000, ts.Nanosecond())
}

func spanIDPtr(id replogrec.SpanID) *replogrec.SpanID { return &id }
