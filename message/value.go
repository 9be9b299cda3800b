package message

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind identifies which alternative of Value is populated.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindArray
	KindMap
)

// Value is a MessagePack-compatible sum type: null, bool, integer,
// float, string, byte string (distinct from string), array, or map. It
// mirrors serde_json::Value from the original implementation but keeps
// bin-typed byte strings as their own variant instead of collapsing
// them into a string, which is what lets the codec reproduce the
// bytes-vs-bytebuf wire distinction required by spec.md §8.7.
type Value struct {
	kind Kind

	b   bool
	i   int64
	u   uint64
	f   float64
	s   string
	by  []byte
	arr []Value
	obj map[string]Value
}

func Null() Value              { return Value{kind: KindNull} }
func Bool(v bool) Value        { return Value{kind: KindBool, b: v} }
func Int(v int64) Value        { return Value{kind: KindInt, i: v} }
func Uint(v uint64) Value      { return Value{kind: KindUint, u: v} }
func Float(v float64) Value    { return Value{kind: KindFloat, f: v} }
func String(v string) Value    { return Value{kind: KindString, s: v} }
func Bytes(v []byte) Value     { return Value{kind: KindBytes, by: v} }
func Array(v ...Value) Value   { return Value{kind: KindArray, arr: v} }
func Map(v map[string]Value) Value {
	return Value{kind: KindMap, obj: v}
}

// Kind reports which alternative v holds.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) Bool() (bool, bool)          { return v.b, v.kind == KindBool }
func (v Value) Int() (int64, bool)          { return v.i, v.kind == KindInt }
func (v Value) Uint() (uint64, bool)        { return v.u, v.kind == KindUint }
func (v Value) Float() (float64, bool)      { return v.f, v.kind == KindFloat }
func (v Value) StringValue() (string, bool) { return v.s, v.kind == KindString }
func (v Value) BytesValue() ([]byte, bool)  { return v.by, v.kind == KindBytes }
func (v Value) ArrayValue() ([]Value, bool) { return v.arr, v.kind == KindArray }
func (v Value) MapValue() (map[string]Value, bool) {
	return v.obj, v.kind == KindMap
}

// Get returns the value at key if v is a map and key is present.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	val, ok := v.obj[key]
	return val, ok
}

func (v Value) String() string {
	return fmt.Sprintf("%v", v.toInterface())
}

// toInterface lowers Value to the plain Go types that
// github.com/vmihailenco/msgpack/v5 knows how to encode natively: a
// []byte here always becomes a MessagePack bin, and a string always
// becomes a MessagePack str, which is exactly the distinction spec.md
// §4.2 and §8.7 require.
func (v Value) toInterface() interface{} {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindUint:
		return v.u
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.by
	case KindArray:
		out := make([]interface{}, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.toInterface()
		}
		return out
	case KindMap:
		out := make(map[string]interface{}, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.toInterface()
		}
		return out
	}
	return nil
}

// fromInterface lifts the plain Go types produced by
// (*msgpack.Decoder).DecodeInterface back into a Value tree.
func fromInterface(x interface{}) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case int:
		return Int(int64(t))
	case uint8:
		return Uint(uint64(t))
	case uint16:
		return Uint(uint64(t))
	case uint32:
		return Uint(uint64(t))
	case uint64:
		return Uint(t)
	case uint:
		return Uint(uint64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case string:
		return String(t)
	case []byte:
		return Bytes(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = fromInterface(e)
		}
		return Array(items...)
	case map[string]interface{}:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[k] = fromInterface(e)
		}
		return Map(out)
	case map[interface{}]interface{}:
		out := make(map[string]Value, len(t))
		for k, e := range t {
			out[fmt.Sprintf("%v", k)] = fromInterface(e)
		}
		return Map(out)
	default:
		return String(fmt.Sprintf("%v", t))
	}
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(v.toInterface())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInterface()
	if err != nil {
		return err
	}
	*v = fromInterface(raw)
	return nil
}
