package replogrec

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/pkg/errors"
)

// ValueKind enumerates the closed set of scalar kinds that a recording
// can carry for a field value.
type ValueKind int

const (
	DebugKind ValueKind = iota // Debug
	F64Kind                    // F64
	I64Kind                    // I64
	U64Kind                    // U64
	I128Kind                   // I128
	U128Kind                   // U128
	BoolKind                   // Bool
	StrKind                    // Str
)

var valueKindNames = map[ValueKind]string{
	DebugKind: "Debug",
	F64Kind:   "F64",
	I64Kind:   "I64",
	U64Kind:   "U64",
	I128Kind:  "I128",
	U128Kind:  "U128",
	BoolKind:  "Bool",
	StrKind:   "Str",
}

var valueKindValues = func() map[string]ValueKind {
	m := make(map[string]ValueKind, len(valueKindNames))
	for k, n := range valueKindNames {
		m[n] = k
	}
	return m
}()

func (kind ValueKind) String() string { return valueKindNames[kind] }

// Value is a closed tagged variant over the serializable scalar kinds.
// 128-bit integers have no native Go representation so they are carried
// as decimal strings; backends decide how to render them.
type Value struct {
	Kind  ValueKind
	Int   int64
	Uint  uint64
	Float float64
	Bool  bool
	Str   string
}

func DebugValue(s string) Value { return Value{Kind: DebugKind, Str: s} }
func F64Value(f float64) Value  { return Value{Kind: F64Kind, Float: f} }
func I64Value(i int64) Value    { return Value{Kind: I64Kind, Int: i} }
func U64Value(u uint64) Value   { return Value{Kind: U64Kind, Uint: u} }
func I128Value(s string) Value  { return Value{Kind: I128Kind, Str: s} }
func U128Value(s string) Value  { return Value{Kind: U128Kind, Str: s} }
func BoolValue(b bool) Value    { return Value{Kind: BoolKind, Bool: b} }
func StrValue(s string) Value   { return Value{Kind: StrKind, Str: s} }

// String renders the value the way a text backend would.
func (v Value) String() string {
	switch v.Kind {
	case F64Kind:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case I64Kind:
		return strconv.FormatInt(v.Int, 10)
	case U64Kind:
		return strconv.FormatUint(v.Uint, 10)
	case BoolKind:
		return strconv.FormatBool(v.Bool)
	default:
		return v.Str
	}
}

// MarshalJSON writes the externally-tagged form, eg {"I64":5}.
// Debug and Str values carry strings, 128-bit integers carry decimal
// strings.
func (v Value) MarshalJSON() ([]byte, error) {
	var inner interface{}
	switch v.Kind {
	case F64Kind:
		inner = v.Float
	case I64Kind:
		inner = v.Int
	case U64Kind:
		inner = v.Uint
	case BoolKind:
		inner = v.Bool
	default:
		inner = v.Str
	}
	return json.Marshal(map[string]interface{}{v.Kind.String(): inner})
}

func (v *Value) UnmarshalJSON(b []byte) error {
	// Older recordings carry field values as bare strings.
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = StrValue(s)
		return nil
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(b, &tagged); err != nil {
		return errors.Wrap(err, "field value must be a string or a tagged object")
	}
	if len(tagged) != 1 {
		return errors.Errorf("field value must have exactly one kind tag, has %d", len(tagged))
	}
	for tag, raw := range tagged {
		kind, ok := valueKindValues[tag]
		if !ok {
			return errors.Errorf("'%s' does not name a value kind", tag)
		}
		return v.decodeInner(kind, raw)
	}
	return nil
}

func (v *Value) decodeInner(kind ValueKind, raw json.RawMessage) error {
	v.Kind = kind
	switch kind {
	case F64Kind:
		return errors.Wrap(json.Unmarshal(raw, &v.Float), "F64 value")
	case I64Kind:
		return errors.Wrap(json.Unmarshal(raw, &v.Int), "I64 value")
	case U64Kind:
		return errors.Wrap(json.Unmarshal(raw, &v.Uint), "U64 value")
	case BoolKind:
		return errors.Wrap(json.Unmarshal(raw, &v.Bool), "Bool value")
	case I128Kind, U128Kind:
		if err := json.Unmarshal(raw, &v.Str); err != nil {
			return errors.Wrapf(err, "%s value", kind)
		}
		if _, ok := new(big.Int).SetString(v.Str, 10); !ok {
			return errors.Errorf("%s value '%s' is not a decimal integer", kind, v.Str)
		}
		return nil
	default:
		return errors.Wrapf(json.Unmarshal(raw, &v.Str), "%s value", kind)
	}
}

// Field pairs a recorded field name with its value. The wire form is a
// two-element array, [name, value], matching how the capture side
// serializes field lists.
type Field struct {
	Name  string
	Value Value
}

func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{f.Name, f.Value})
}

func (f *Field) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return errors.Wrap(err, "field must be a [name, value] pair")
	}
	if len(parts) != 2 {
		return errors.Errorf("field must be a [name, value] pair, has %d elements", len(parts))
	}
	if err := json.Unmarshal(parts[0], &f.Name); err != nil {
		return errors.Wrap(err, "field name")
	}
	return f.Value.UnmarshalJSON(parts[1])
}
