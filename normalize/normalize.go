// Package normalize turns storage values into transport-safe values: 64-bit
// integers become decimal strings and timestamps become ISO-8601 strings, at
// any nesting depth.
package normalize

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// TimeLayout matches the millisecond UTC form JavaScript clients expect.
const TimeLayout = "2006-01-02T15:04:05.000Z"

var timeType = reflect.TypeOf(time.Time{})

// Field is one key of an Object.
type Field struct {
	Key   string
	Value any
}

// Object is a struct rendered as an ordered list of fields. It marshals as a
// JSON object with the keys in declaration order.
type Object []Field

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Value normalizes v. Nil stays nil and scalars other than 64-bit integers
// and times pass through. Normalizing an already normalized value returns an
// equal value.
func Value(v any) any {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case Object:
		out := make(Object, len(t))
		for i, f := range t {
			out[i] = Field{Key: f.Key, Value: Value(f.Value)}
		}
		return out
	case time.Time:
		return t.UTC().Format(TimeLayout)
	case string, bool, float32, float64, json.Number, json.RawMessage:
		return v
	}
	return value(reflect.ValueOf(v))
}

func value(rv reflect.Value) any {
	switch rv.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return value(rv.Elem())
	case reflect.Int, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Struct:
		if rv.Type() == timeType {
			return Value(rv.Interface())
		}
		if rv.Type().ConvertibleTo(timeType) {
			return Value(rv.Convert(timeType).Interface())
		}
		return object(rv)
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface()
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Value(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = Value(iter.Value().Interface())
		}
		return out
	}
	if rv.CanInterface() {
		return rv.Interface()
	}
	return nil
}

// object renders the exported fields of a struct. Fields of embedded structs
// without a JSON name are promoted into the parent, and a field declared on
// the parent wins over a promoted one with the same key.
func object(rv reflect.Value) Object {
	rt := rv.Type()
	direct := make(map[string]bool, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		name, _, skip := jsonName(sf)
		if skip || promoted(sf) || !sf.IsExported() {
			continue
		}
		direct[name] = true
	}

	out := make(Object, 0, rt.NumField())
	seen := make(map[string]bool, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		name, omitEmpty, skip := jsonName(sf)
		if skip {
			continue
		}
		fv := rv.Field(i)
		if promoted(sf) {
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			for _, f := range object(fv) {
				if direct[f.Key] || seen[f.Key] {
					continue
				}
				seen[f.Key] = true
				out = append(out, f)
			}
			continue
		}
		if !sf.IsExported() {
			continue
		}
		if omitEmpty && fv.IsZero() {
			continue
		}
		seen[name] = true
		out = append(out, Field{Key: name, Value: Value(fv.Interface())})
	}
	return out
}

// promoted reports whether sf is an embedded struct whose fields belong to
// the parent object.
func promoted(sf reflect.StructField) bool {
	if !sf.Anonymous {
		return false
	}
	if name, _, _ := strings.Cut(sf.Tag.Get("json"), ","); name != "" {
		return false
	}
	t := sf.Type
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct && t != timeType
}

// mapKey renders a map key the way encoding/json does.
func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.String {
		return k.String()
	}
	if k.Kind() != reflect.Pointer || !k.IsNil() {
		if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
			if b, err := tm.MarshalText(); err == nil {
				return string(b)
			}
		}
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10)
	}
	return fmt.Sprint(k.Interface())
}

func jsonName(sf reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = sf.Name
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}
