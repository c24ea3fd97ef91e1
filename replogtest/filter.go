package replogtest

import (
	"github.com/replog/replog-go/replogbase"
)

type EventPredicate struct {
	f    func(*Event) bool
	desc string
}

func (p EventPredicate) String() string { return p.desc }

func TypeIs(t EventType) EventPredicate {
	return EventPredicate{
		f: func(event *Event) bool {
			return event.Type == t
		},
		desc: "type is " + t.String(),
	}
}

func CallsiteNamed(name string) EventPredicate {
	return EventPredicate{
		f: func(event *Event) bool {
			return event.Callsite != nil && event.Callsite.Name() == name
		},
		desc: "callsite named " + name,
	}
}

func OnSpan(id replogbase.SpanID) EventPredicate {
	return EventPredicate{
		f: func(event *Event) bool {
			return event.Span != nil && event.Span.ID == id
		},
		desc: "on span",
	}
}

func (b *Backend) FindEvents(predicates ...EventPredicate) []*Event {
	b.lock.Lock()
	defer b.lock.Unlock()
	var found []*Event
Event:
	for _, event := range b.Events {
		for _, predicate := range predicates {
			if !predicate.f(event) {
				continue Event
			}
		}
		found = append(found, event)
	}
	return found
}

func (b *Backend) CountEvents(predicates ...EventPredicate) int {
	return len(b.FindEvents(predicates...))
}

// FindSpan returns the recorded state of one live span, or nil.
func (b *Backend) FindSpan(id replogbase.SpanID) *Span {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.SpanIndex[id]
}

func (t EventType) String() string {
	switch t {
	case CallsiteRegistered:
		return "registerCallsite"
	case SpanStart:
		return "newSpan"
	case SpanEnter:
		return "enter"
	case SpanExit:
		return "exit"
	case SpanClose:
		return "tryClose"
	case FieldsAttached:
		return "attachFields"
	case FollowedFrom:
		return "followsFrom"
	case PointEvent:
		return "event"
	default:
		return "unknown"
	}
}
