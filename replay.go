/*
Package replog replays recorded observability activity into a live
backend. A recording is a line-oriented log of spans, events, and the
causal structure between them (see replogrec). Replay rebuilds the
state the recorded process only held in live memory: which span was
current on each thread, the backend-assigned identity of every span,
idempotent callsite registration, and the original wall-clock pacing.

Records for each original thread are dispatched from a dedicated
goroutine, in original order. Across threads, ordering is only as
consistent as the recorded timestamps and span-identity resolution
make it; there is no global lock-step.
*/
package replog

import (
	"bufio"
	"io"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replogrec"
)

// maxLineBytes bounds a single recording line. Records carry bounded
// field lists, so a line beyond this is corrupt.
const maxLineBytes = 16 * 1024 * 1024

// Summary reports what a replay pass consumed. Records dropped
// downstream (eg a Record for an unknown span) still count: they were
// replayed input.
type Summary struct {
	RecordCount int
}

// Replay is the coordinator. One Replay can consume several files from
// the same recording session in sequence; workers stay alive between
// files so spans that straddle a file boundary keep their identity.
// The coordinator methods (ReplayFile, ReplayReader, Close) must be
// called from a single goroutine.
type Replay struct {
	backend  replogbase.Backend
	report   func(error)
	speed    float64
	registry *callsiteRegistry
	spans    *spanIDMap
	workers  map[string]*worker

	timeDelta time.Duration
	start     time.Time
}

// New creates a replay coordinator that dispatches into backend.
func New(backend replogbase.Backend, opts ...Opt) *Replay {
	r := &Replay{
		backend: backend,
		report:  defaultReporter,
		speed:   1,
		spans:   newSpanIDMap(),
		workers: make(map[string]*worker),
	}
	r.registry = newCallsiteRegistry(backend)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReplayFile replays one recording file.
//
// Failures follow the taxonomy of this package's error types: the file
// not opening, a line not reading, a line not deserializing, and an
// incompatible format header each abort the replay. There is no
// partial-success continuation past a bad line.
func (r *Replay) ReplayFile(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, &OpenError{Path: path, Err: err}
	}
	defer f.Close()
	return r.ReplayReader(f)
}

// ReplayReader replays one recording stream. The recording's pacing
// reference is taken from the first record of the stream.
func (r *Replay) ReplayReader(src io.Reader) (Summary, error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var summary Summary
	first := true
	lineIndex := 0
	for ; scanner.Scan(); lineIndex++ {
		line := scanner.Bytes()

		if lineIndex == 0 {
			header, err := replogrec.DecodeHeader(line)
			if err == nil && header != nil {
				if verr := header.CheckVersion(); verr != nil {
					return summary, &HeaderError{Err: verr}
				}
				continue
			}
		}

		record, err := replogrec.DecodeLine(line)
		if err != nil {
			return summary, &DecodeError{LineIndex: lineIndex, Line: string(line), Err: err}
		}

		if first {
			// The delta between now and the recording time realigns
			// every record's capture time onto this run's clock.
			r.setTimeDelta(record.Meta.CaptureTime())
			first = false
		}

		r.route(record)
		summary.RecordCount++
	}
	if err := scanner.Err(); err != nil {
		return summary, &ReadError{LineIndex: lineIndex, Err: err}
	}
	return summary, nil
}

// Close sends an end marker to every worker, waits for each to drain,
// and aggregates any worker failure into a CloseError keyed by the
// recorded thread identity. A worker that is permanently blocked
// resolving a span identity that never arrives will hang Close; the
// span identity map's unavailable state exists to keep that from
// happening on the known paths.
func (r *Replay) Close() error {
	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var failures []ThreadFailure
	for _, id := range ids {
		w := r.workers[id]
		// If the worker already exited (panic), push is a no-op and
		// the failure is collected below.
		w.queue.push(workItem{typ: itemEnd})
		<-w.done
		if w.err != nil {
			failures = append(failures, ThreadFailure{ThreadID: id, Err: w.err})
		}
	}
	r.workers = make(map[string]*worker)
	if len(failures) > 0 {
		return &CloseError{Threads: failures}
	}
	return nil
}

func (r *Replay) setTimeDelta(captureTime time.Time) {
	now := time.Now()
	r.start = now
	delta := now.Sub(captureTime)
	if delta < 0 {
		// Recording timestamps are in the future; replay on their
		// absolute schedule.
		delta = 0
	}
	r.timeDelta = delta
}

// targetTime computes when the record should be dispatched on this
// run's clock. Zero means "no pacing".
func (r *Replay) targetTime(captureTime time.Time) time.Time {
	if r.speed <= 0 {
		return time.Time{}
	}
	target := captureTime.Add(r.timeDelta)
	if r.timeDelta > 0 && target.Before(captureTime) {
		// Addition overflowed; fall back to "now".
		return time.Now()
	}
	if r.speed != 1 {
		target = r.start.Add(time.Duration(float64(target.Sub(r.start)) / r.speed))
	}
	return target
}

// route hands one record to the worker that owns its originating
// thread, spawning the worker on first sight of the thread identity.
func (r *Replay) route(record replogrec.Record) {
	w, ok := r.workers[record.Meta.ThreadID]
	if !ok {
		w = r.newWorker(record.Meta)
		r.workers[record.Meta.ThreadID] = w
	}

	item, ok := r.prepare(record)
	if !ok {
		// Dropped records still count as replayed input; the caller
		// already incremented before we got here or will after.
		return
	}
	item.target = r.targetTime(record.Meta.CaptureTime())

	if !w.queue.push(item) {
		if item.typ == itemNewSpan {
			// The reservation above would otherwise stay pending and
			// block consumers of this span on other threads.
			r.spans.markUnavailable(item.spanID)
		}
		r.report(errors.Errorf("record for thread %s dropped: worker already exited", record.Meta.ThreadID))
	}
}

// prepare resolves callsite metadata on the coordinator so that every
// worker shares the same interned descriptor, and reserves span
// identities before any worker can reference them. It reports false
// when the record must be dropped (a Record payload whose span was
// never created).
func (r *Replay) prepare(record replogrec.Record) (workItem, bool) {
	trace := record.Trace
	switch {
	case trace.RegisterCallsite != nil:
		return workItem{
			typ: itemRegisterCallsite,
			cs:  r.registry.getOrCreate(*trace.RegisterCallsite),
		}, true

	case trace.Event != nil:
		return workItem{
			typ:    itemEvent,
			cs:     r.registry.getOrCreate(trace.Event.Metadata),
			fields: trace.Event.Fields,
			parent: trace.Event.Parent,
		}, true

	case trace.NewSpan != nil:
		ns := trace.NewSpan
		cs := r.registry.getOrCreate(ns.Metadata)
		r.registry.setSpanCallsite(ns.ID, ns.Metadata.ID)
		// Reserve before the worker can dispatch: an Enter for this
		// span may already be queued on another thread's worker.
		r.spans.reserve(ns.ID)
		return workItem{
			typ:    itemNewSpan,
			cs:     cs,
			fields: ns.Fields,
			parent: ns.Parent,
			spanID: ns.ID,
		}, true

	case trace.Enter != nil:
		return workItem{typ: itemEnter, spanID: *trace.Enter}, true

	case trace.Exit != nil:
		return workItem{typ: itemExit, spanID: *trace.Exit}, true

	case trace.Close != nil:
		return workItem{typ: itemClose, spanID: *trace.Close}, true

	case trace.Record != nil:
		cs, ok := r.registry.callsiteForSpan(trace.Record.ID)
		if !ok {
			// The span was never created in this recording; maybe it
			// belongs to an earlier file that was not replayed. Drop.
			return workItem{}, false
		}
		return workItem{
			typ:    itemRecord,
			cs:     cs,
			fields: trace.Record.Fields,
			spanID: trace.Record.ID,
		}, true

	case trace.FollowsFrom != nil:
		return workItem{
			typ:      itemFollowsFrom,
			causeID:  trace.FollowsFrom.CauseID,
			effectID: trace.FollowsFrom.EffectID,
		}, true

	default:
		return workItem{}, false
	}
}
