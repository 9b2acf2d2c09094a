package intercept

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/calltrace/internal/ir"
	"github.com/roach88/calltrace/internal/sink"
)

// Interceptor records every call of the functions it wraps to one sink.
//
// The sink is bound once, at construction. Recording happens on the
// caller's goroutine, after the target returns and before the wrapper
// returns. An Interceptor is safe for concurrent use when its sink is.
type Interceptor struct {
	sink          sink.Sink
	clock         Clock
	ids           IDGenerator
	logger        *slog.Logger
	failurePolicy FailurePolicy
	sinkPolicy    SinkPolicy
}

// New creates an Interceptor writing to s.
//
// Defaults: SystemClock, UUIDv7Generator, a discarding logger,
// LogFailures and SinkPropagate.
func New(s sink.Sink, opts ...Option) *Interceptor {
	ic := &Interceptor{
		sink:          s,
		clock:         SystemClock{},
		ids:           UUIDv7Generator{},
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		failurePolicy: LogFailures,
		sinkPolicy:    SinkPropagate,
	}
	for _, opt := range opts {
		opt(ic)
	}
	return ic
}

// Sink returns the sink the interceptor writes to.
func (ic *Interceptor) Sink() sink.Sink {
	return ic.sink
}

// Call carries the positional and named arguments of a dynamic call.
type Call struct {
	Args   []any
	Kwargs map[string]any
}

// Args builds a Call from positional arguments.
func Args(args ...any) Call {
	return Call{Args: args}
}

// With returns a copy of c with the named argument name set to v.
func (c Call) With(name string, v any) Call {
	kwargs := make(map[string]any, len(c.Kwargs)+1)
	for k, val := range c.Kwargs {
		kwargs[k] = val
	}
	kwargs[name] = v
	return Call{Args: c.Args, Kwargs: kwargs}
}

// Func is a target taking positional and named arguments.
type Func[R any] func(ctx context.Context, call Call) (R, error)

// Wrap returns a Func that forwards to target and records each call under
// name. ctx is passed to both the target and the sink append.
func Wrap[R any](ic *Interceptor, name string, target Func[R]) Func[R] {
	return func(ctx context.Context, call Call) (R, error) {
		return invoke(ctx, ic, name, call.Args, call.Kwargs, func() (R, error) {
			return target(ctx, call)
		})
	}
}

// Wrap0 wraps a target with no arguments.
func Wrap0[R any](ic *Interceptor, name string, target func() (R, error)) func() (R, error) {
	return func() (R, error) {
		return invoke(context.Background(), ic, name, nil, nil, target)
	}
}

// Wrap1 wraps a target with one argument.
func Wrap1[A, R any](ic *Interceptor, name string, target func(A) (R, error)) func(A) (R, error) {
	return func(a A) (R, error) {
		return invoke(context.Background(), ic, name, []any{a}, nil, func() (R, error) {
			return target(a)
		})
	}
}

// Wrap2 wraps a target with two arguments.
func Wrap2[A, B, R any](ic *Interceptor, name string, target func(A, B) (R, error)) func(A, B) (R, error) {
	return func(a A, b B) (R, error) {
		return invoke(context.Background(), ic, name, []any{a, b}, nil, func() (R, error) {
			return target(a, b)
		})
	}
}

// Wrap3 wraps a target with three arguments.
func Wrap3[A, B, C, R any](ic *Interceptor, name string, target func(A, B, C) (R, error)) func(A, B, C) (R, error) {
	return func(a A, b B, c C) (R, error) {
		return invoke(context.Background(), ic, name, []any{a, b, c}, nil, func() (R, error) {
			return target(a, b, c)
		})
	}
}

// invoke runs one intercepted call.
//
// Arguments are captured before the target runs; a capture failure returns
// a SERIALIZATION error without calling the target. The target's result
// and error are returned unchanged, except that a recording failure after
// a successful call is reported per the sink policy. A target panic is
// recorded (under LogFailures) and then re-raised with the original value.
func invoke[R any](ctx context.Context, ic *Interceptor, name string, args []any, kwargs map[string]any, target func() (R, error)) (R, error) {
	var zero R

	rec := ir.InvocationRecord{
		Timestamp:    ir.FormatTimestamp(ic.clock.Now()),
		FunctionName: name,
	}

	irArgs, err := captureArgs(args)
	if err != nil {
		return zero, newSerializationError(name, "arguments", err)
	}
	irKwargs, err := captureKwargs(kwargs)
	if err != nil {
		return zero, newSerializationError(name, "keyword arguments", err)
	}
	rec.Arguments = irArgs
	rec.KeywordArguments = irKwargs
	rec.CallID = ic.ids.Generate()

	out := call(target)
	if out.panicked {
		ic.recordFailure(ctx, rec, fmt.Sprintf("panic: %v", out.panicVal))
		panic(out.panicVal)
	}
	result := out.result
	if out.err != nil {
		ic.recordFailure(ctx, rec, out.err.Error())
		return result, out.err
	}

	rv, err := ir.FromGo(result)
	if err != nil {
		return result, newSerializationError(name, "return value", err)
	}
	rec.ReturnValue = rv

	if err := ic.append(ctx, rec); err != nil {
		if ic.sinkPolicy == SinkLogAndContinue {
			ic.logger.Warn("record not written",
				"function", name,
				"call_id", rec.CallID,
				"sink", ic.sink.Location(),
				"error", err,
			)
			return result, nil
		}
		return result, err
	}
	return result, nil
}

// outcome is what a target call produced.
type outcome[R any] struct {
	result   R
	err      error
	panicVal any
	panicked bool
}

// call runs target, capturing a panic instead of unwinding.
func call[R any](target func() (R, error)) (out outcome[R]) {
	defer func() {
		if r := recover(); r != nil {
			out.panicVal, out.panicked = r, true
		}
	}()
	out.result, out.err = target()
	return out
}

// recordFailure writes an error-marked entry under LogFailures.
// The target's failure takes precedence over a sink failure, which is
// only logged.
func (ic *Interceptor) recordFailure(ctx context.Context, rec ir.InvocationRecord, msg string) {
	ic.logger.Debug("target failed",
		"code", ErrCodeTargetFailure,
		"function", rec.FunctionName,
		"call_id", rec.CallID,
		"error", msg,
	)
	if ic.failurePolicy == SkipFailures {
		return
	}

	if msg == "" {
		msg = "unknown error"
	}
	// Error text is not ours to reject; invalid bytes become U+FFFD.
	rec.Error = strings.ToValidUTF8(msg, "\uFFFD")
	if err := ic.append(ctx, rec); err != nil {
		ic.logger.Warn("failure record not written",
			"function", rec.FunctionName,
			"call_id", rec.CallID,
			"sink", ic.sink.Location(),
			"error", err,
		)
	}
}

// append encodes rec and appends it to the sink in one write.
func (ic *Interceptor) append(ctx context.Context, rec ir.InvocationRecord) error {
	entry, err := sink.NewEntry(rec)
	if err != nil {
		return newSerializationError(rec.FunctionName, "record", err)
	}
	if err := ic.sink.Append(ctx, entry); err != nil {
		return newSinkWriteError(rec.FunctionName, err)
	}
	ic.logger.Debug("call recorded",
		"function", rec.FunctionName,
		"call_id", rec.CallID,
		"sink", ic.sink.Location(),
		"failed", rec.Failed(),
	)
	return nil
}

func captureArgs(args []any) (ir.IRArray, error) {
	out := make(ir.IRArray, len(args))
	for i, a := range args {
		v, err := ir.FromGo(a)
		if err != nil {
			return nil, fmt.Errorf("position %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func captureKwargs(kwargs map[string]any) (ir.IRObject, error) {
	out := make(ir.IRObject, len(kwargs))
	for k, a := range kwargs {
		v, err := ir.FromGo(a)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
