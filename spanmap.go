package replog

import (
	"sync"

	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replogrec"
)

type spanState int

const (
	// spanPending: NewSpan has been routed but the backend has not
	// assigned a live id yet.
	spanPending spanState = iota
	// spanMapped: the backend assigned a live id. Terminal.
	spanMapped
	// spanUnavailable: the NewSpan was dropped (callsite disabled or
	// parent unknown); no live id will ever exist. Terminal. Without
	// this state a consumer on another thread would block forever.
	spanUnavailable
)

type spanEntry struct {
	state spanState
	live  replogbase.SpanID
}

// spanIDMap tracks, per recorded span id, whether the backend has
// assigned a live id for this replay run. A lookup that arrives while
// the entry is pending waits: a span created on one thread can be
// entered on another microseconds later, and the backend, not the
// recording, is the authority for identity. Entries are never removed
// and transition out of pending exactly once.
type spanIDMap struct {
	lock  sync.Mutex
	cond  *sync.Cond
	spans map[replogrec.SpanID]*spanEntry
}

func newSpanIDMap() *spanIDMap {
	m := &spanIDMap{
		spans: make(map[replogrec.SpanID]*spanEntry),
	}
	m.cond = sync.NewCond(&m.lock)
	return m
}

// reserve marks the recorded id as pending. It is called on the
// coordinator thread while routing a NewSpan, before any worker can
// see a reference to the id.
func (m *spanIDMap) reserve(id replogrec.SpanID) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if _, ok := m.spans[id]; ok {
		// A recording must not reuse span ids. Keep the first entry.
		return
	}
	m.spans[id] = &spanEntry{state: spanPending}
}

// resolve records the live id the backend assigned. Pending waiters
// are woken.
func (m *spanIDMap) resolve(id replogrec.SpanID, live replogbase.SpanID) {
	m.lock.Lock()
	defer m.lock.Unlock()
	entry, ok := m.spans[id]
	if !ok || entry.state != spanPending {
		return
	}
	entry.state = spanMapped
	entry.live = live
	m.cond.Broadcast()
}

// markUnavailable records that no live id will ever exist for the
// recorded id. Pending waiters are woken and will report unknown.
func (m *spanIDMap) markUnavailable(id replogrec.SpanID) {
	m.lock.Lock()
	defer m.lock.Unlock()
	entry, ok := m.spans[id]
	if !ok || entry.state != spanPending {
		return
	}
	entry.state = spanUnavailable
	m.cond.Broadcast()
}

// lookup returns the live id for a recorded id, blocking while the
// entry is pending. It reports false when there is no entry at all or
// the span turned out to be unavailable.
func (m *spanIDMap) lookup(id replogrec.SpanID) (replogbase.SpanID, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for {
		entry, ok := m.spans[id]
		if !ok {
			return 0, false
		}
		switch entry.state {
		case spanMapped:
			return entry.live, true
		case spanUnavailable:
			return 0, false
		default:
			m.cond.Wait()
		}
	}
}
