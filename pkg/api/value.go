package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which member of a Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindObject
	KindArray
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a dynamically typed body field. The zero Value is null.
//
// The coercion methods (Bool, Int, Float, String) never fail: a value of an
// incompatible shape yields the zero value of the requested type.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	obj  Object
	arr  []Value
}

// Object is a decoded JSON object.
type Object map[string]Value

// Get returns the value stored under key, or null when absent.
func (o Object) Get(key string) Value {
	if o == nil {
		return Value{}
	}
	return o[key]
}

// Has reports whether key is present.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// BoolValue returns a bool Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue returns an integer Value.
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue returns a floating point Value.
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ObjectValue returns an object Value.
func ObjectValue(o Object) Value { return Value{kind: KindObject, obj: o} }

// ArrayValue returns an array Value.
func ArrayValue(a []Value) Value { return Value{kind: KindArray, arr: a} }

// ValueOf converts a Go value into a Value. Unsupported types are stored as
// their fmt.Sprint representation.
func ValueOf(x any) Value {
	switch v := x.(type) {
	case nil:
		return Value{}
	case Value:
		return v
	case bool:
		return BoolValue(v)
	case int:
		return IntValue(int64(v))
	case int8:
		return IntValue(int64(v))
	case int16:
		return IntValue(int64(v))
	case int32:
		return IntValue(int64(v))
	case int64:
		return IntValue(v)
	case uint:
		return IntValue(int64(v))
	case uint8:
		return IntValue(int64(v))
	case uint16:
		return IntValue(int64(v))
	case uint32:
		return IntValue(int64(v))
	case uint64:
		if v > math.MaxInt64 {
			return FloatValue(float64(v))
		}
		return IntValue(int64(v))
	case float32:
		return FloatValue(float64(v))
	case float64:
		return FloatValue(v)
	case string:
		return StringValue(v)
	case []byte:
		return StringValue(string(v))
	case json.Number:
		return numberValue(v)
	case Object:
		return ObjectValue(v)
	case map[string]any:
		o := make(Object, len(v))
		for k, e := range v {
			o[k] = ValueOf(e)
		}
		return ObjectValue(o)
	case []Value:
		return ArrayValue(v)
	case []any:
		a := make([]Value, len(v))
		for i, e := range v {
			a[i] = ValueOf(e)
		}
		return ArrayValue(a)
	case []string:
		a := make([]Value, len(v))
		for i, e := range v {
			a[i] = StringValue(e)
		}
		return ArrayValue(a)
	default:
		return StringValue(fmt.Sprint(v))
	}
}

func numberValue(n json.Number) Value {
	if i, err := n.Int64(); err == nil {
		return IntValue(i)
	}
	if f, err := n.Float64(); err == nil {
		return FloatValue(f)
	}
	return StringValue(n.String())
}

// Kind returns the kind of the stored value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v holds no value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool coerces v to a bool. Numbers are true when non-zero; strings are true
// for 1, t, true, y, yes, on and enable (case-insensitive) or any non-zero
// number.
func (v Value) Bool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	case KindFloat:
		return v.f != 0
	case KindString:
		return parseBool(v.s)
	default:
		return false
	}
}

// Int coerces v to an int64. Floats are truncated; unparsable strings yield 0.
func (v Value) Int() int64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	case KindString:
		s := strings.TrimSpace(v.s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	default:
		return 0
	}
}

// Float coerces v to a float64. Unparsable strings yield 0.
func (v Value) Float() float64 {
	switch v.kind {
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindInt:
		return float64(v.i)
	case KindFloat:
		return v.f
	case KindString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
			return f
		}
		return 0
	default:
		return 0
	}
}

// String coerces v to a string. Objects and arrays are rendered as compact
// JSON; null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case KindString:
		return v.s
	case KindObject, KindArray:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	default:
		return ""
	}
}

// Object returns the object members, or nil when v is not an object.
func (v Value) Object() Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

// Array returns the array elements, or nil when v is not an array.
func (v Value) Array() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.arr
}

// Interface returns v as plain Go data (nil, bool, int64, float64, string,
// map[string]any or []any).
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindObject:
		m := make(map[string]any, len(v.obj))
		for k, e := range v.obj {
			m[k] = e.Interface()
		}
		return m
	case KindArray:
		a := make([]any, len(v.arr))
		for i, e := range v.arr {
			a[i] = e.Interface()
		}
		return a
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt:
		return json.Marshal(v.i)
	case KindFloat:
		if math.IsInf(v.f, 0) || math.IsNaN(v.f) {
			return []byte("null"), nil
		}
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(map[string]Value(v.obj))
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	default:
		return nil, fmt.Errorf("unknown value kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler. Numbers without a fraction or
// exponent decode as integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on", "enable":
		return true
	case "", "0", "f", "false", "n", "no", "off", "disable":
		return false
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
		return f != 0
	}
	return false
}
