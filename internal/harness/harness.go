package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/calltrace/internal/demo"
	"github.com/roach88/calltrace/internal/intercept"
	"github.com/roach88/calltrace/internal/ir"
	"github.com/roach88/calltrace/internal/sink"
	"github.com/roach88/calltrace/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios with a deterministic clock and call ids.
type Harness struct {
	sinks        map[string]sink.Sink
	interceptors map[string]*intercept.Interceptor
	logger       *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario gets fresh sinks for isolation: memory sinks are private
// to the run, file and sqlite sinks live in a temporary directory removed
// afterwards.
//
// Execution flow:
// 1. Create the declared sinks and one interceptor per sink
// 2. Execute calls in order, checking expect clauses
// 3. Read back every sink
// 4. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with a logger for per-call progress.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	dir, err := os.MkdirTemp("", "calltrace-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	fp, err := intercept.ParseFailurePolicy(scenario.FailurePolicy)
	if err != nil {
		return nil, err
	}
	sp, err := intercept.ParseSinkPolicy(scenario.SinkPolicy)
	if err != nil {
		return nil, err
	}

	clock := testutil.NewDeterministicClock()
	ids := testutil.NewSequentialIDs("call")

	h := &Harness{
		sinks:        make(map[string]sink.Sink),
		interceptors: make(map[string]*intercept.Interceptor),
		logger:       logger,
	}
	defer h.close()

	for _, name := range scenario.SinkNames() {
		s, err := openScenarioSink(dir, name, scenario.Sinks[name])
		if err != nil {
			return nil, fmt.Errorf("failed to open sink %s: %w", name, err)
		}
		h.sinks[name] = s
		h.interceptors[name] = intercept.New(s,
			intercept.WithClock(clock),
			intercept.WithIDGenerator(ids),
			intercept.WithLogger(logger),
			intercept.WithFailurePolicy(fp),
			intercept.WithSinkPolicy(sp),
		)
	}

	ctx := context.Background()
	result := NewResult()

	if err := h.executeCalls(ctx, scenario.Calls, result); err != nil {
		return nil, fmt.Errorf("failed to execute calls: %w", err)
	}

	if err := h.collect(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to read sinks: %w", err)
	}

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeCalls runs all call steps and validates expect clauses.
func (h *Harness) executeCalls(ctx context.Context, calls []CallStep, result *Result) error {
	for i, step := range calls {
		target, err := demo.Lookup(step.Function)
		if err != nil {
			return fmt.Errorf("calls[%d]: %w", i, err)
		}

		wrapped := intercept.Wrap(h.interceptors[step.Sink], step.Function, target)
		value, callErr := wrapped(ctx, intercept.Call{Args: step.Args, Kwargs: step.Kwargs})

		var irValue ir.IRValue
		if callErr == nil {
			irValue, err = ir.FromGo(value)
			if err != nil {
				return fmt.Errorf("calls[%d]: result: %w", i, err)
			}
		}
		result.AddCall(step.Function, step.Sink, irValue, callErr)

		if step.Expect != nil {
			if msg := checkExpect(i, step, irValue, callErr); msg != "" {
				result.AddError(msg)
			}
		}

		h.logger.Info("call completed",
			"step", i,
			"function", step.Function,
			"sink", step.Sink,
			"failed", callErr != nil,
		)
	}
	return nil
}

// checkExpect returns a failure message, or "" if the call matched.
func checkExpect(index int, step CallStep, got ir.IRValue, err error) string {
	if step.Expect.Error != "" {
		if err == nil {
			return fmt.Sprintf("calls[%d] %s: expected error containing %q, got success", index, step.Function, step.Expect.Error)
		}
		if !strings.Contains(err.Error(), step.Expect.Error) {
			return fmt.Sprintf("calls[%d] %s: expected error containing %q, got %q", index, step.Function, step.Expect.Error, err.Error())
		}
		return ""
	}

	if err != nil {
		return fmt.Sprintf("calls[%d] %s: unexpected error: %v", index, step.Function, err)
	}
	ok, msg := nodeMatches(&step.Expect.Result, got)
	if !ok {
		return fmt.Sprintf("calls[%d] %s: result: %s", index, step.Function, msg)
	}
	return ""
}

// collect reads every sink into the result.
func (h *Harness) collect(ctx context.Context, result *Result) error {
	for name, s := range h.sinks {
		records, err := sink.ReadRecords(ctx, s)
		if err != nil {
			return err
		}
		lines, err := s.(sink.LineReader).ReadLines(ctx)
		if err != nil {
			return err
		}

		text := make([]string, len(lines))
		for i, l := range lines {
			text[i] = strings.TrimSuffix(string(l), "\n")
		}
		result.Lines[name] = text
		result.Records[name] = records
	}
	return nil
}

func (h *Harness) close() {
	for name, s := range h.sinks {
		if err := s.Close(); err != nil {
			h.logger.Warn("failed to close sink", "sink", name, "error", err)
		}
	}
}

func openScenarioSink(dir, name, kind string) (sink.Sink, error) {
	switch kind {
	case SinkFile:
		return sink.NewFile(filepath.Join(dir, name+".log"))
	case SinkSQLite:
		return sink.OpenSQLite(filepath.Join(dir, name+".db"))
	default:
		return sink.NewMemory(name), nil
	}
}

// nodeMatches compares a YAML expectation with a record value by their
// canonical encodings.
func nodeMatches(node *yaml.Node, got ir.IRValue) (bool, string) {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return false, fmt.Sprintf("invalid expectation: %v", err)
	}
	return valuesMatch(raw, got)
}

// valuesMatch compares an expected Go value with a record value.
func valuesMatch(expected any, got ir.IRValue) (bool, string) {
	if got == nil {
		return false, "no value recorded"
	}
	want, err := ir.FromGo(expected)
	if err != nil {
		return false, fmt.Sprintf("invalid expectation: %v", err)
	}
	wantJSON, err := ir.MarshalCanonical(want)
	if err != nil {
		return false, fmt.Sprintf("invalid expectation: %v", err)
	}
	gotJSON, err := ir.MarshalCanonical(got)
	if err != nil {
		return false, fmt.Sprintf("unencodable value: %v", err)
	}
	if string(wantJSON) != string(gotJSON) {
		return false, fmt.Sprintf("expected %s, got %s", wantJSON, gotJSON)
	}
	return true, ""
}
