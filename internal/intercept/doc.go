// Package intercept records calls of wrapped functions to a sink.
//
// A wrapper forwards each call to its target unchanged and, after the
// target returns, appends one InvocationRecord describing the call:
//
//	ic := intercept.New(s)
//	div := intercept.Wrap2(ic, "div", demo.Div)
//	q, err := div(6, 2) // q == 3, one record appended to s
//
// Wrap handles targets taking positional and named arguments through Call;
// Wrap0 to Wrap3 keep the signature of typed targets.
//
// Failed calls are recorded with an error field under LogFailures and not
// at all under SkipFailures. A target's error is returned unwrapped; a
// panic is re-raised after recording.
package intercept
