package testutil

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/roach88/calltrace/internal/sink"
)

// ErrSinkDown is returned by FailingSink.Append.
var ErrSinkDown = errors.New("sink unavailable")

// FailingSink rejects every append and counts the attempts.
type FailingSink struct {
	attempts atomic.Int64
}

// Append implements sink.Sink and always fails with ErrSinkDown.
func (s *FailingSink) Append(ctx context.Context, entry sink.Entry) error {
	s.attempts.Add(1)
	return ErrSinkDown
}

// Location implements sink.Sink.
func (s *FailingSink) Location() string {
	return "memory://failing"
}

// Close implements sink.Sink.
func (s *FailingSink) Close() error {
	return nil
}

// Attempts returns how many appends were attempted.
func (s *FailingSink) Attempts() int64 {
	return s.attempts.Load()
}
