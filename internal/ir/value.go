package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is a sealed interface over attribute value types.
// Only String, Int and Ref implement it.
type Value interface {
	irValue() // Sealed - only these types implement it
	Kind() ValueKind
}

// ValueKind names the variant of a Value. It is also the value_type column
// written by the store.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindInt    ValueKind = "int"
	KindRef    ValueKind = "ref"
)

// String is a textual attribute value.
type String string

func (String) irValue() {}

// Kind implements Value.
func (String) Kind() ValueKind { return KindString }

// Int is an integer attribute value. Always int64, never float64.
type Int int64

func (Int) irValue() {}

// Kind implements Value.
func (Int) Kind() ValueKind { return KindInt }

// Ref references another instance in the same store by DBID.
type Ref int64

func (Ref) irValue() {}

// Kind implements Value.
func (Ref) Kind() ValueKind { return KindRef }

// DBID returns the referenced instance id.
func (r Ref) DBID() int64 { return int64(r) }

// FormatValue renders a value for logs and reports.
// Refs render as "#<db_id>".
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case String:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Ref:
		return "#" + strconv.FormatInt(int64(val), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// MarshalValue marshals a Value to JSON. Refs become {"ref": <db_id>}.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case String:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Ref:
		return json.Marshal(map[string]int64{"ref": int64(val)})
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// ConvertValue converts a decoded YAML/JSON scalar into a Value.
//
// Accepted inputs:
//   - string            -> String
//   - int, int64        -> Int
//   - map with only "ref" key -> Ref
//
// Floats, booleans and nil are rejected.
func ConvertValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null attribute values are not allowed")
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats are not allowed: %s", val)
		}
		return Int(n), nil
	case map[string]any:
		return convertRef(val)
	default:
		return nil, fmt.Errorf("unsupported attribute value type: %T", v)
	}
}

func convertRef(m map[string]any) (Value, error) {
	raw, ok := m["ref"]
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("object values must have exactly one key \"ref\"")
	}
	switch id := raw.(type) {
	case int:
		return Ref(id), nil
	case int64:
		return Ref(id), nil
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return nil, fmt.Errorf("ref must be an integer: %s", id)
		}
		return Ref(n), nil
	default:
		return nil, fmt.Errorf("ref must be an integer, got %T", raw)
	}
}
