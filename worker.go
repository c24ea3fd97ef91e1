package replog

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replogrec"
)

type itemType int

const (
	itemRegisterCallsite itemType = iota
	itemEvent
	itemNewSpan
	itemEnter
	itemExit
	itemClose
	itemRecord
	itemFollowsFrom
	itemEnd
)

// workItem is one pre-routed record. The coordinator resolves callsite
// metadata before queueing; span ids are resolved by the worker at
// dispatch time because the backend assigns them lazily.
type workItem struct {
	typ      itemType
	target   time.Time // zero when pacing is disabled
	cs       *replogbase.Callsite
	fields   []replogrec.Field
	parent   replogrec.Parent
	spanID   replogrec.SpanID
	causeID  replogrec.SpanID
	effectID replogrec.SpanID
}

// itemQueue is an unbounded FIFO. A burst in the recording is absorbed
// whole; pacing happens at the consuming end, never by blocking the
// coordinator.
type itemQueue struct {
	lock   sync.Mutex
	cond   *sync.Cond
	items  []workItem
	closed bool
}

func newItemQueue() *itemQueue {
	q := &itemQueue{}
	q.cond = sync.NewCond(&q.lock)
	return q
}

// push appends an item. It reports false if the worker has already
// exited.
func (q *itemQueue) push(item workItem) bool {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return false
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return true
}

func (q *itemQueue) pop() workItem {
	q.lock.Lock()
	defer q.lock.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// drain closes the queue and hands back every item that will never be
// dispatched.
func (q *itemQueue) drain() []workItem {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.closed = true
	items := q.items
	q.items = nil
	return items
}

// worker replays the records of one original thread, in original
// order, from its own goroutine. The original system's "current span"
// was thread-local; the worker reproduces it with an explicit stack of
// entered live spans.
type worker struct {
	threadID   string
	threadName string
	backend    replogbase.Backend
	registry   *callsiteRegistry
	spans      *spanIDMap
	report     func(error)
	queue      *itemQueue
	done       chan struct{}
	err        error // panic captured by run, read after done closes

	current  []replogbase.SpanID // entered-span stack, worker-owned
	inflight workItem            // item being dispatched, for abandon
}

func (r *Replay) newWorker(meta replogrec.Meta) *worker {
	w := &worker{
		threadID:   meta.ThreadID,
		threadName: meta.ThreadName,
		backend:    r.backend,
		registry:   r.registry,
		spans:      r.spans,
		report:     r.report,
		queue:      newItemQueue(),
		done:       make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *worker) run() {
	defer close(w.done)
	defer w.abandon()
	defer func() {
		if p := recover(); p != nil {
			w.err = errors.Errorf("worker for recorded thread %s panicked: %v", w.describe(), p)
		}
	}()
	for {
		item := w.queue.pop()
		if item.typ == itemEnd {
			return
		}
		w.inflight = item
		w.dispatch(item)
	}
}

func (w *worker) describe() string {
	if w.threadName != "" {
		return w.threadID + " (" + w.threadName + ")"
	}
	return w.threadID
}

// abandon closes the queue and releases every span identity this worker
// reserved but will never resolve: the NewSpan it was dispatching when
// it died, and any NewSpan still queued behind it. Without this a
// consumer blocked in spanIDMap.lookup on another thread would wait
// forever and Close would never return.
func (w *worker) abandon() {
	if w.inflight.typ == itemNewSpan {
		// markUnavailable is a no-op if the dispatch got far enough to
		// resolve the identity.
		w.spans.markUnavailable(w.inflight.spanID)
	}
	for _, item := range w.queue.drain() {
		if item.typ == itemNewSpan {
			w.spans.markUnavailable(item.spanID)
		}
	}
}

func (w *worker) dispatch(item workItem) {
	if !item.target.IsZero() {
		if delay := time.Until(item.target); delay > 0 {
			time.Sleep(delay)
		}
	}

	switch item.typ {
	case itemRegisterCallsite:
		w.registry.register(item.cs)

	case itemNewSpan:
		w.registry.register(item.cs)
		if !w.backend.IsEnabled(item.cs) {
			w.spans.markUnavailable(item.spanID)
			return
		}
		parent, ok := w.resolveParent(item.parent)
		if !ok {
			w.spans.markUnavailable(item.spanID)
			return
		}
		fields := buildFieldValues(item.cs, item.fields, w.report)
		live := w.backend.NewSpan(item.cs, parent, fields)
		w.spans.resolve(item.spanID, live)

	case itemEnter:
		live, ok := w.spans.lookup(item.spanID)
		if !ok {
			return
		}
		w.backend.Enter(live)
		w.current = append(w.current, live)

	case itemExit:
		live, ok := w.spans.lookup(item.spanID)
		if !ok {
			return
		}
		w.backend.Exit(live)
		w.popCurrent(live)

	case itemClose:
		live, ok := w.spans.lookup(item.spanID)
		if !ok {
			return
		}
		w.backend.TryClose(live)

	case itemRecord:
		live, ok := w.spans.lookup(item.spanID)
		if !ok {
			return
		}
		fields := buildFieldValues(item.cs, item.fields, w.report)
		w.backend.AttachFields(live, item.cs, fields)

	case itemFollowsFrom:
		cause, ok := w.spans.lookup(item.causeID)
		if !ok {
			return
		}
		effect, ok := w.spans.lookup(item.effectID)
		if !ok {
			return
		}
		w.backend.FollowsFrom(effect, cause)

	case itemEvent:
		w.registry.register(item.cs)
		if !w.backend.IsEnabled(item.cs) {
			return
		}
		parent, ok := w.resolveParent(item.parent)
		if !ok {
			return
		}
		fields := buildFieldValues(item.cs, item.fields, w.report)
		w.backend.Event(item.cs, parent, fields)
	}
}

// resolveParent turns a recorded parent into a live one. Contextual
// parents resolve against this worker's entered-span stack; explicit
// parents map through the span identity map (blocking if the parent's
// NewSpan is still in flight on another worker). It reports false for
// an explicit parent with no live identity.
func (w *worker) resolveParent(parent replogrec.Parent) (replogbase.Parent, bool) {
	switch parent.Kind {
	case replogrec.ParentCurrent:
		if n := len(w.current); n > 0 {
			return replogbase.ChildOf(w.current[n-1]), true
		}
		return replogbase.RootSpan(), true
	case replogrec.ParentExplicit:
		live, ok := w.spans.lookup(parent.ID)
		if !ok {
			return replogbase.Parent{}, false
		}
		return replogbase.ChildOf(live), true
	default:
		return replogbase.RootSpan(), true
	}
}

// popCurrent removes the most recent entry for the span. Spans are
// re-entrant, so only one level is removed per Exit.
func (w *worker) popCurrent(live replogbase.SpanID) {
	for i := len(w.current) - 1; i >= 0; i-- {
		if w.current[i] == live {
			w.current = append(w.current[:i], w.current[i+1:]...)
			return
		}
	}
}
