package demo

import (
	"context"

	"github.com/roach88/calltrace/internal/intercept"
)

// Step is one call of a demo run.
type Step struct {
	Function string
	Call     intercept.Call
}

// Outcome is the result of one step.
type Outcome struct {
	Step   Step
	Result any
	Err    error
}

// SelfTest is the call sequence of the demo run: every target once with
// the values the record format has to reproduce exactly.
var SelfTest = []Step{
	{Function: "hello_world"},
	{Function: "summator", Call: intercept.Args(int64(2), int64(2))},
	{Function: "div", Call: intercept.Args(int64(6), int64(2))},
	{Function: "summator", Call: intercept.Args(4.3).With("b", 2.2)},
	{Function: "summator", Call: intercept.Args().With("a", int64(0)).With("b", int64(0))},
}

// Resolver returns the interceptor a function's calls are recorded with.
type Resolver interface {
	Interceptor(function string) (*intercept.Interceptor, error)
}

// Single resolves every function to one interceptor.
type Single struct {
	IC *intercept.Interceptor
}

// Interceptor implements Resolver.
func (s Single) Interceptor(string) (*intercept.Interceptor, error) {
	return s.IC, nil
}

// Run calls each step through the interceptor r resolves for it and
// collects the outcomes. Target errors are reported per step; recording
// errors stop the run.
func Run(ctx context.Context, r Resolver, steps []Step) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(steps))
	for _, step := range steps {
		target, err := Lookup(step.Function)
		if err != nil {
			return outcomes, err
		}
		ic, err := r.Interceptor(step.Function)
		if err != nil {
			return outcomes, err
		}

		result, err := intercept.Wrap(ic, step.Function, target)(ctx, step.Call)
		if intercept.IsSinkWriteError(err) || intercept.IsSerializationError(err) {
			return outcomes, err
		}
		outcomes = append(outcomes, Outcome{Step: step, Result: result, Err: err})
	}
	return outcomes, nil
}
