// Package demo provides the sample targets shipped with calltrace and a
// registry mapping their names to dynamic wrappers.
package demo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"

	"github.com/roach88/calltrace/internal/intercept"
)

// ErrDivisionByZero is returned by Div when the divisor is zero.
var ErrDivisionByZero = errors.New("division by zero")

// HelloWorld returns "Hello World".
func HelloWorld() (string, error) {
	return "Hello World", nil
}

// Summator adds a and b. b defaults to 0 and either may be passed by name.
// Two integers sum to an integer; otherwise the result is a float.
func Summator(_ context.Context, call intercept.Call) (any, error) {
	if err := checkParams(call, "a", "b"); err != nil {
		return nil, fmt.Errorf("summator: %w", err)
	}
	a, err := param(call, 0, "a", nil)
	if err != nil {
		return nil, fmt.Errorf("summator: %w", err)
	}
	b, err := param(call, 1, "b", int64(0))
	if err != nil {
		return nil, fmt.Errorf("summator: %w", err)
	}

	ai, aInt := a.(int64)
	bi, bInt := b.(int64)
	if aInt && bInt {
		return ai + bi, nil
	}
	return toFloat(a) + toFloat(b), nil
}

// Div divides a by b and always returns a float, so Div(6, 2) is 3.
func Div(_ context.Context, call intercept.Call) (any, error) {
	if err := checkParams(call, "a", "b"); err != nil {
		return nil, fmt.Errorf("div: %w", err)
	}
	a, err := param(call, 0, "a", nil)
	if err != nil {
		return nil, fmt.Errorf("div: %w", err)
	}
	b, err := param(call, 1, "b", nil)
	if err != nil {
		return nil, fmt.Errorf("div: %w", err)
	}
	if toFloat(b) == 0 {
		return nil, ErrDivisionByZero
	}
	return toFloat(a) / toFloat(b), nil
}

// IntDiv is the typed integer form of Div. It panics on a zero divisor.
func IntDiv(a, b int) (int, error) {
	return a / b, nil
}

// Registry maps target names to their dynamic forms.
var Registry = map[string]intercept.Func[any]{
	"hello_world": func(_ context.Context, call intercept.Call) (any, error) {
		if err := checkParams(call); err != nil {
			return nil, fmt.Errorf("hello_world: %w", err)
		}
		return HelloWorld()
	},
	"summator":    Summator,
	"div":         Div,
}

// Names returns the registered target names, sorted.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named target.
func Lookup(name string) (intercept.Func[any], error) {
	fn, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q (available: %v)", name, Names())
	}
	return fn, nil
}

// ParseValue converts a command-line argument into an int64, a float64,
// a bool, or failing those, leaves it as a string.
func ParseValue(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

// checkParams rejects a call passing more positional arguments than names
// or a keyword argument that is not one of names.
func checkParams(call intercept.Call, names ...string) error {
	if len(call.Args) > len(names) {
		return fmt.Errorf("takes %d positional arguments but %d were given", len(names), len(call.Args))
	}
	keys := make([]string, 0, len(call.Kwargs))
	for k := range call.Kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !slices.Contains(names, k) {
			return fmt.Errorf("got an unexpected keyword argument %q", k)
		}
	}
	return nil
}

// param returns the argument at position pos or named name. def is used
// when neither is given; a nil def makes the argument required.
func param(call intercept.Call, pos int, name string, def any) (any, error) {
	var (
		v     any
		found bool
	)
	if pos < len(call.Args) {
		v, found = call.Args[pos], true
	}
	if kv, ok := call.Kwargs[name]; ok {
		if found {
			return nil, fmt.Errorf("got multiple values for argument %q", name)
		}
		v, found = kv, true
	}
	if !found {
		if def == nil {
			return nil, fmt.Errorf("missing required argument %q", name)
		}
		return def, nil
	}

	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	}
	return nil, fmt.Errorf("argument %q: expected a number, got %T", name, v)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}
