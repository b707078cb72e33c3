package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Kind int

const (
	KindAbsent Kind = iota
	KindBool
	KindString
	KindNumber
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "absent"
	}
}

// Value is a decoded flag value or payload. The zero Value is absent.
type Value struct {
	kind Kind
	raw  interface{}
}

var Absent = Value{}

func BoolValue(b bool) Value { return Value{kind: KindBool, raw: b} }

func StringValue(s string) Value { return Value{kind: KindString, raw: s} }

func NumberValue(n float64) Value { return Value{kind: KindNumber, raw: n} }

// ValueOf converts a decoded JSON value (or a plain Go scalar) into a Value.
// Objects and arrays are copied, the caller keeps ownership of v.
// Unsupported types and nil yield Absent.
func ValueOf(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Absent
	case Value:
		return t
	case bool:
		return BoolValue(t)
	case string:
		return StringValue(t)
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int32:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return Absent
		}
		return NumberValue(n)
	case map[string]interface{}:
		return Value{kind: KindObject, raw: deepCopy(t)}
	case map[string]string:
		obj := make(map[string]interface{}, len(t))
		for k, s := range t {
			obj[k] = s
		}
		return Value{kind: KindObject, raw: obj}
	case []interface{}:
		return Value{kind: KindArray, raw: deepCopy(t)}
	default:
		return Absent
	}
}

// DecodePayload builds a payload Value. The decide service sends payloads as
// JSON-encoded strings, so a string holding a JSON document is decoded; any
// other string is kept as is.
func DecodePayload(v interface{}) Value {
	s, ok := v.(string)
	if !ok {
		return ValueOf(v)
	}
	var decoded interface{}
	dec := json.NewDecoder(strings.NewReader(s))
	if err := dec.Decode(&decoded); err != nil || dec.More() {
		return StringValue(s)
	}
	return ValueOf(decoded)
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Raw returns a copy of the underlying Go value: bool, string, float64,
// map[string]interface{}, []interface{} or nil.
func (v Value) Raw() interface{} { return deepCopy(v.raw) }

func (v Value) Bool() (bool, bool) {
	b, ok := v.raw.(bool)
	return b, ok && v.kind == KindBool
}

func (v Value) Str() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok && v.kind == KindString
}

func (v Value) Number() (float64, bool) {
	n, ok := v.raw.(float64)
	return n, ok && v.kind == KindNumber
}

// Object returns a copy of the object, so values held in a snapshot stay immutable.
func (v Value) Object() (map[string]interface{}, bool) {
	m, ok := v.raw.(map[string]interface{})
	if !ok || v.kind != KindObject {
		return nil, false
	}
	return deepCopy(m).(map[string]interface{}), true
}

func (v Value) Array() ([]interface{}, bool) {
	a, ok := v.raw.([]interface{})
	if !ok || v.kind != KindArray {
		return nil, false
	}
	return deepCopy(a).([]interface{}), true
}

// Truthy reports whether the value enables a flag. Multivariate flags are
// enabled when they carry any variant name other than an empty or "false"
// string.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.raw.(bool)
	case KindString:
		s := v.raw.(string)
		return s != "" && !strings.EqualFold(s, "false")
	case KindNumber:
		return v.raw.(float64) != 0
	case KindObject, KindArray:
		return true
	default:
		return false
	}
}

func (v Value) String() string {
	if v.kind == KindAbsent {
		return "<absent>"
	}
	return fmt.Sprintf("%v", v.raw)
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = deepCopy(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*v = Absent
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unable to decode value: %w", err)
	}
	*v = ValueOf(raw)
	return nil
}
