package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/calltrace/internal/intercept"
	"github.com/roach88/calltrace/internal/sink"
)

// Router hands out interceptors bound to the sink each function is routed
// to. Every location is opened once and shared by all functions routed
// to it.
type Router struct {
	cfg   *Config
	opts  []intercept.Option
	open  func(string) (sink.Sink, error)
	mu    sync.Mutex
	sinks map[string]*intercept.Interceptor
}

// NewRouter creates a router for cfg. opts are applied after the
// configured policies, so callers can override clock, ids or logger.
func NewRouter(cfg *Config, opts ...intercept.Option) (*Router, error) {
	policy, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:   cfg,
		opts:  append(policy, opts...),
		open:  sink.Open,
		sinks: make(map[string]*intercept.Interceptor),
	}, nil
}

// Interceptor returns the interceptor for function, opening its sink on
// first use.
func (r *Router) Interceptor(function string) (*intercept.Interceptor, error) {
	loc := r.cfg.SinkFor(function)

	r.mu.Lock()
	defer r.mu.Unlock()

	if ic, ok := r.sinks[loc]; ok {
		return ic, nil
	}
	s, err := r.open(loc)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", function, err)
	}
	ic := intercept.New(s, r.opts...)
	r.sinks[loc] = ic
	return ic, nil
}

// Close closes every sink the router opened.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for loc, ic := range r.sinks {
		if err := ic.Sink().Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", loc, err))
		}
		delete(r.sinks, loc)
	}
	return errors.Join(errs...)
}
