package replogbase

import (
	"fmt"

	"github.com/replog/replog-go/replognum"
	"github.com/replog/replog-go/replogrec"
)

// Callsite is the durable, process-lifetime descriptor for one
// recorded callsite. Callsites are interned by the engine: the same
// capture-time id always resolves to the same *Callsite, so backends
// may use pointer identity for caching.
type Callsite struct {
	captureID  uint64
	name       string
	target     string
	level      replognum.Level
	modulePath string
	file       string
	line       uint32
	kind       replognum.Kind
	fields     []string
	fieldIndex map[string]int
}

// NewCallsite builds the live descriptor from its serialized form.
func NewCallsite(md replogrec.Metadata) *Callsite {
	cs := &Callsite{
		captureID:  md.ID,
		name:       md.Name,
		target:     md.Target,
		level:      md.Level,
		modulePath: md.ModulePath,
		file:       md.File,
		line:       md.Line,
		kind:       md.Kind,
		fields:     md.Fields,
		fieldIndex: make(map[string]int, len(md.Fields)),
	}
	for i, name := range md.Fields {
		cs.fieldIndex[name] = i
	}
	return cs
}

func (cs *Callsite) CaptureID() uint64      { return cs.captureID }
func (cs *Callsite) Name() string           { return cs.name }
func (cs *Callsite) Target() string         { return cs.target }
func (cs *Callsite) Level() replognum.Level { return cs.level }
func (cs *Callsite) ModulePath() string     { return cs.modulePath }
func (cs *Callsite) File() string           { return cs.file }
func (cs *Callsite) Line() uint32           { return cs.line }
func (cs *Callsite) Kind() replognum.Kind   { return cs.kind }

// Fields returns the declared field names. Callers must not modify
// the returned slice.
func (cs *Callsite) Fields() []string { return cs.fields }

// HasField reports whether the callsite declares the field name.
// Undeclared names are filtered out before values reach a backend.
func (cs *Callsite) HasField(name string) bool {
	_, ok := cs.fieldIndex[name]
	return ok
}

func (cs *Callsite) String() string {
	if cs.file != "" {
		return fmt.Sprintf("%s (%s:%d)", cs.name, cs.file, cs.line)
	}
	return cs.name
}
