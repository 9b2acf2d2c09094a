package ir

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"unicode/utf8"
)

// ErrUnsupportedValue is returned (wrapped) by FromGo when a value has no
// representation in the record format.
var ErrUnsupportedValue = errors.New("unsupported value")

// MaxDepth bounds the nesting of arrays and objects FromGo accepts.
// Self-referencing containers hit it instead of recursing forever.
const MaxDepth = 64

// FromGo converts a Go value into an IRValue.
//
// Supported: nil, IRValue, string, bool, all integer and float kinds,
// json.Number, and slices, arrays and string-keyed maps of supported values.
// Named types are accepted by their underlying kind. Structs, pointers,
// funcs, channels, complex numbers, NaN/Inf and invalid UTF-8 strings are
// rejected with an error wrapping ErrUnsupportedValue, as are invalid UTF-8
// object keys and values nested deeper than MaxDepth.
func FromGo(v any) (IRValue, error) {
	return fromGo(v, "$", 0)
}

func fromGo(v any, path string, depth int) (IRValue, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%s: %w: nested deeper than %d", path, ErrUnsupportedValue, MaxDepth)
	}
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return checkIRValue(val, path, depth)
	case string:
		return fromString(val, path)
	case bool:
		return IRBool(val), nil
	case int:
		return NewIRInt(int64(val)), nil
	case int64:
		return NewIRInt(val), nil
	case float64:
		return fromFloat(val, 64, path)
	case json.Number:
		n, err := ParseIRNumber(string(val))
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrUnsupportedValue, err)
		}
		return n, nil
	case []string:
		arr := make(IRArray, len(val))
		for i, s := range val {
			elem, err := fromString(s, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = elem
		}
		return arr, nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := fromGo(elem, fmt.Sprintf("%s[%d]", path, i), depth+1)
			if err != nil {
				return nil, err
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			if !utf8.ValidString(k) {
				return nil, fmt.Errorf("%s: %w: invalid UTF-8 key", path, ErrUnsupportedValue)
			}
			irElem, err := fromGo(elem, fmt.Sprintf("%s.%s", path, k), depth+1)
			if err != nil {
				return nil, err
			}
			obj[k] = irElem
		}
		return obj, nil
	}
	return fromReflect(reflect.ValueOf(v), path, depth)
}

// fromReflect handles named types and typed containers.
func fromReflect(rv reflect.Value, path string, depth int) (IRValue, error) {
	switch rv.Kind() {
	case reflect.String:
		return fromString(rv.String(), path)
	case reflect.Bool:
		return IRBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NewIRInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return NewIRUint(rv.Uint()), nil
	case reflect.Float32:
		return fromFloat(rv.Float(), 32, path)
	case reflect.Float64:
		return fromFloat(rv.Float(), 64, path)
	case reflect.Slice:
		if rv.IsNil() {
			return IRNull{}, nil
		}
		fallthrough
	case reflect.Array:
		arr := make(IRArray, rv.Len())
		for i := range arr {
			elem, err := fromGo(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i), depth+1)
			if err != nil {
				return nil, err
			}
			arr[i] = elem
		}
		return arr, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%s: %w: map key type %s", path, ErrUnsupportedValue, rv.Type().Key())
		}
		if rv.IsNil() {
			return IRNull{}, nil
		}
		obj := make(IRObject, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			if !utf8.ValidString(k) {
				return nil, fmt.Errorf("%s: %w: invalid UTF-8 key", path, ErrUnsupportedValue)
			}
			elem, err := fromGo(iter.Value().Interface(), fmt.Sprintf("%s.%s", path, k), depth+1)
			if err != nil {
				return nil, err
			}
			obj[k] = elem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("%s: %w: %s", path, ErrUnsupportedValue, rv.Type())
	}
}

func fromString(s, path string) (IRValue, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%s: %w: invalid UTF-8 string", path, ErrUnsupportedValue)
	}
	return IRString(s), nil
}

func fromFloat(f float64, bits int, path string) (IRValue, error) {
	n, err := formatFloat(f, bits)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, ErrUnsupportedValue, err)
	}
	return n, nil
}

// checkIRValue validates an already-typed IRValue so a bad literal or a
// nil element fails at capture time rather than at encode time.
func checkIRValue(v IRValue, path string, depth int) (IRValue, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%s: %w: nested deeper than %d", path, ErrUnsupportedValue, MaxDepth)
	}
	switch val := v.(type) {
	case IRNumber:
		if err := validateNumber(string(val)); err != nil {
			return nil, fmt.Errorf("%s: %w: %v", path, ErrUnsupportedValue, err)
		}
	case IRString:
		return fromString(string(val), path)
	case IRArray:
		for i, elem := range val {
			if elem == nil {
				return nil, fmt.Errorf("%s[%d]: %w: nil IRValue", path, i, ErrUnsupportedValue)
			}
			if _, err := checkIRValue(elem, fmt.Sprintf("%s[%d]", path, i), depth+1); err != nil {
				return nil, err
			}
		}
	case IRObject:
		for k, elem := range val {
			if !utf8.ValidString(k) {
				return nil, fmt.Errorf("%s: %w: invalid UTF-8 key", path, ErrUnsupportedValue)
			}
			if elem == nil {
				return nil, fmt.Errorf("%s.%s: %w: nil IRValue", path, k, ErrUnsupportedValue)
			}
			if _, err := checkIRValue(elem, fmt.Sprintf("%s.%s", path, k), depth+1); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// ToGo converts an IRValue into plain Go values: string, bool, int64 or
// float64 for numbers, []any, map[string]any, and nil for IRNull.
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRBool:
		return bool(val)
	case IRNumber:
		if val.IsInteger() {
			if n, err := val.Int64(); err == nil {
				return n
			}
		}
		f, _ := val.Float64()
		return f
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	}
	return nil
}
