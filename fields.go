package replog

import (
	"github.com/pkg/errors"

	"github.com/replog/replog-go/replogbase"
	"github.com/replog/replog-go/replogrec"
)

// buildFieldValues resolves recorded (name, value) pairs against the
// callsite's declared field set. Names the callsite does not declare
// are dropped without error. The result is bounded by
// replogbase.MaxCallsiteFields; any surplus is truncated with a
// warning through the reporter.
func buildFieldValues(cs *replogbase.Callsite, fields []replogrec.Field, report func(error)) []replogbase.FieldValue {
	n := len(fields)
	if n > replogbase.MaxCallsiteFields {
		n = replogbase.MaxCallsiteFields
	}
	out := make([]replogbase.FieldValue, 0, n)
	for _, f := range fields {
		if !cs.HasField(f.Name) {
			continue
		}
		if len(out) == replogbase.MaxCallsiteFields {
			report(errors.Errorf(
				"callsite %s carries more than %d fields; surplus truncated",
				cs, replogbase.MaxCallsiteFields))
			break
		}
		out = append(out, replogbase.FieldValue{Key: f.Name, Value: f.Value})
	}
	return out
}
