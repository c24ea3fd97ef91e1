package replog

import (
	"sync"

	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replogrec"
)

// callsiteRegistry interns callsite descriptors by the numeric id they
// were assigned at capture time. Entries live for the lifetime of the
// Replay: the same capture id always resolves to the same *Callsite,
// and the backend's registration hook runs at most once per id no
// matter how often the id recurs in the recording.
//
// A side map remembers which callsite each recorded span was created
// from, so a later Record payload can recover the span's legal field
// set without re-reading its NewSpan.
type callsiteRegistry struct {
	lock      sync.Mutex
	backend   replogbase.Backend
	callsites map[uint64]*callsiteEntry
	spanSites map[replogrec.SpanID]uint64
}

type callsiteEntry struct {
	cs       *replogbase.Callsite
	register sync.Once
}

func newCallsiteRegistry(backend replogbase.Backend) *callsiteRegistry {
	return &callsiteRegistry{
		backend:   backend,
		callsites: make(map[uint64]*callsiteEntry),
		spanSites: make(map[replogrec.SpanID]uint64),
	}
}

// getOrCreate interns the serialized metadata. The backend is not
// called here; registration happens on the dispatching worker via
// register.
func (reg *callsiteRegistry) getOrCreate(md replogrec.Metadata) *replogbase.Callsite {
	reg.lock.Lock()
	entry, ok := reg.callsites[md.ID]
	if !ok {
		entry = &callsiteEntry{cs: replogbase.NewCallsite(md)}
		reg.callsites[md.ID] = entry
	}
	reg.lock.Unlock()
	return entry.cs
}

// register invokes the backend's registration hook, exactly once per
// capture id. Duplicate registration would corrupt the backend's own
// interest caching. The registry lock is not held across the backend
// call; concurrent callers block on the entry's Once until the first
// registration completes.
func (reg *callsiteRegistry) register(cs *replogbase.Callsite) {
	reg.lock.Lock()
	entry, ok := reg.callsites[cs.CaptureID()]
	reg.lock.Unlock()
	if !ok {
		return
	}
	entry.register.Do(func() {
		reg.backend.RegisterCallsite(entry.cs)
	})
}

func (reg *callsiteRegistry) setSpanCallsite(id replogrec.SpanID, captureID uint64) {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	reg.spanSites[id] = captureID
}

// callsiteForSpan recovers the callsite a recorded span was created
// from. It reports false when the span's NewSpan was never seen.
func (reg *callsiteRegistry) callsiteForSpan(id replogrec.SpanID) (*replogbase.Callsite, bool) {
	reg.lock.Lock()
	defer reg.lock.Unlock()
	captureID, ok := reg.spanSites[id]
	if !ok {
		return nil, false
	}
	entry, ok := reg.callsites[captureID]
	if !ok {
		return nil, false
	}
	return entry.cs, true
}
