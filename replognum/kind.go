package replognum

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Kind says whether a callsite produces spans or point-in-time events.
type Kind int32

const (
	KindSpan  Kind = iota // Span
	KindEvent             // Event
)

func (kind Kind) String() string {
	switch kind {
	case KindSpan:
		return "Span"
	case KindEvent:
		return "Event"
	default:
		return "Span"
	}
}

// KindString parses the recorded name of a kind.
func KindString(name string) (Kind, error) {
	switch name {
	case "Span":
		return KindSpan, nil
	case "Event":
		return KindEvent, nil
	default:
		return KindSpan, errors.Errorf("'%s' does not name a kind", name)
	}
}

func (kind Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(kind.String())
}

func (kind *Kind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return errors.Wrap(err, "kind must be a string")
	}
	parsed, err := KindString(name)
	if err != nil {
		return err
	}
	*kind = parsed
	return nil
}
