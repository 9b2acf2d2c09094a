package intercept

import (
	"fmt"
	"log/slog"
)

// FailurePolicy decides what is written when the target fails.
type FailurePolicy int

const (
	// LogFailures writes an entry with an error field and no return value.
	LogFailures FailurePolicy = iota

	// SkipFailures writes nothing for a failed call.
	SkipFailures
)

// String returns the policy name used in configuration files.
func (p FailurePolicy) String() string {
	switch p {
	case LogFailures:
		return "log"
	case SkipFailures:
		return "skip"
	}
	return "unknown"
}

// SinkPolicy decides how a failed append surfaces to the caller.
type SinkPolicy int

const (
	// SinkPropagate returns a SINK_WRITE error alongside the target's result.
	SinkPropagate SinkPolicy = iota

	// SinkLogAndContinue logs the failure at WARN and returns the result
	// with a nil error.
	SinkLogAndContinue
)

// String returns the policy name used in configuration files.
func (p SinkPolicy) String() string {
	switch p {
	case SinkPropagate:
		return "propagate"
	case SinkLogAndContinue:
		return "log"
	}
	return "unknown"
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithClock sets the clock used for record timestamps.
func WithClock(c Clock) Option {
	return func(ic *Interceptor) {
		ic.clock = c
	}
}

// WithIDGenerator sets the call id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(ic *Interceptor) {
		ic.ids = g
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(ic *Interceptor) {
		ic.logger = l
	}
}

// WithFailurePolicy sets what is recorded for failed calls.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(ic *Interceptor) {
		ic.failurePolicy = p
	}
}

// WithSinkPolicy sets how append failures are reported.
func WithSinkPolicy(p SinkPolicy) Option {
	return func(ic *Interceptor) {
		ic.sinkPolicy = p
	}
}

// ParseFailurePolicy parses "log" or "skip". An empty string is LogFailures.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "log":
		return LogFailures, nil
	case "skip":
		return SkipFailures, nil
	}
	return 0, fmt.Errorf("unknown failure policy %q (want log or skip)", s)
}

// ParseSinkPolicy parses "propagate" or "log". An empty string is SinkPropagate.
func ParseSinkPolicy(s string) (SinkPolicy, error) {
	switch s {
	case "", "propagate":
		return SinkPropagate, nil
	case "log":
		return SinkLogAndContinue, nil
	}
	return 0, fmt.Errorf("unknown sink policy %q (want propagate or log)", s)
}
