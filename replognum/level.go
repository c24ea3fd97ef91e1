// replognum provides constants used across the replog ecosystem
package replognum

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Level is the verbosity classification recorded with every callsite.
// The numeric values follow Open Telemetry's severity numbers so that
// backends that speak OTEL can map levels without a table.
// https://github.com/open-telemetry/opentelemetry-proto/blob/main/opentelemetry/proto/logs/v1/logs.proto
type Level int32

const (
	TraceLevel Level = 2  // trace
	DebugLevel Level = 5  // debug
	InfoLevel  Level = 9  // info
	WarnLevel  Level = 13 // warn
	ErrorLevel Level = 17 // error
)

const MaxLevel = ErrorLevel

var levelNames = map[Level]string{
	TraceLevel: "Trace",
	DebugLevel: "Debug",
	InfoLevel:  "Info",
	WarnLevel:  "Warn",
	ErrorLevel: "Error",
}

var levelValues = map[string]Level{
	"Trace": TraceLevel,
	"Debug": DebugLevel,
	"Info":  InfoLevel,
	"Warn":  WarnLevel,
	"Error": ErrorLevel,
}

func (level Level) String() string {
	if name, ok := levelNames[level]; ok {
		return name
	}
	return "Info"
}

// LevelString parses the recorded name of a level.
func LevelString(name string) (Level, error) {
	if level, ok := levelValues[name]; ok {
		return level, nil
	}
	return InfoLevel, errors.Errorf("'%s' does not name a level", name)
}

// MarshalJSON encodes the level as its recorded name, eg "Info".
func (level Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(level.String())
}

func (level *Level) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return errors.Wrap(err, "level must be a string")
	}
	parsed, err := LevelString(name)
	if err != nil {
		return err
	}
	*level = parsed
	return nil
}
