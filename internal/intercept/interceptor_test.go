package intercept

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calltrace/internal/ir"
	"github.com/roach88/calltrace/internal/sink"
	"github.com/roach88/calltrace/internal/testutil"
)

var errDivisionByZero = errors.New("division by zero")

func div(a, b int) (int, error) {
	if b == 0 {
		return 0, errDivisionByZero
	}
	return a / b, nil
}

func summator(_ context.Context, call Call) (float64, error) {
	a, _ := call.Args[0].(float64)
	b, _ := call.Kwargs["b"].(float64)
	return a + b, nil
}

func newTestInterceptor(t *testing.T, s sink.Sink, opts ...Option) *Interceptor {
	t.Helper()
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs("")),
	}
	return New(s, append(base, opts...)...)
}

func records(t *testing.T, s sink.Sink) []ir.InvocationRecord {
	t.Helper()
	recs, err := sink.ReadRecords(context.Background(), s)
	require.NoError(t, err)
	return recs
}

func TestWrap_Transparency(t *testing.T) {
	ic := newTestInterceptor(t, sink.NewMemory("t"))

	wrapped := Wrap2(ic, "div", div)
	for _, tc := range [][2]int{{6, 2}, {7, 3}, {-9, 4}} {
		want, wantErr := div(tc[0], tc[1])
		got, err := wrapped(tc[0], tc[1])
		assert.Equal(t, want, got)
		assert.Equal(t, wantErr, err)
	}
}

func TestWrap_Div(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	got, err := Wrap2(ic, "div", div)(6, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	recs := records(t, mem)
	require.Len(t, recs, 1)
	assert.Equal(t, "div", recs[0].FunctionName)
	assert.Equal(t, ir.IRArray{ir.NewIRInt(6), ir.NewIRInt(2)}, recs[0].Arguments)
	assert.Equal(t, ir.IRObject{}, recs[0].KeywordArguments)
	assert.Equal(t, ir.IRNumber("3"), recs[0].ReturnValue)
	assert.Equal(t, "2024-03-01 12:00:00", recs[0].Timestamp)
	assert.Equal(t, "call-0001", recs[0].CallID)
}

func TestWrap_SummatorFieldFidelity(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	got, err := Wrap(ic, "summator", summator)(context.Background(), Args(4.3).With("b", 2.2))
	require.NoError(t, err)
	assert.Equal(t, 4.3+2.2, got)

	lines, err := mem.ReadLines(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)

	expected := `{"timestamp":"2024-03-01 12:00:00","call_id":"call-0001","function_name":"summator",` +
		`"arguments":[4.3],"keyword_arguments":{"b":2.2},"return_value":6.5}` + "\n"
	assert.Equal(t, expected, string(lines[0]))
}

func TestWrap_ZeroArguments(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	hello := Wrap0(ic, "hello_world", func() (string, error) { return "Hello World", nil })
	got, err := hello()
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got)

	recs := records(t, mem)
	require.Len(t, recs, 1)
	assert.Equal(t, ir.IRArray{}, recs[0].Arguments)
	assert.Equal(t, ir.IRString("Hello World"), recs[0].ReturnValue)
}

func TestWrap_CompositeResult(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	find := Wrap1(ic, "find_articles", func(url string) ([]string, error) {
		return []string{"2024-03-01 – Go – https://example.com/1"}, nil
	})
	_, err := find("https://example.com")
	require.NoError(t, err)

	recs := records(t, mem)
	require.Len(t, recs, 1)
	assert.Equal(t, ir.IRArray{ir.IRString("2024-03-01 – Go – https://example.com/1")}, recs[0].ReturnValue)
}

func TestWrap_Wrap3AndLiteralNumbers(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	join := Wrap3(ic, "join", func(a ir.IRNumber, sep string, n int) (string, error) {
		return strings.Repeat(string(a)+sep, n), nil
	})
	got, err := join("2.50", ",", 2)
	require.NoError(t, err)
	assert.Equal(t, "2.50,2.50,", got)

	lines, err := mem.ReadLines(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Contains(t, string(lines[0]), `"arguments":[2.50,",",2]`)
}

func TestWrap_AppendOnlyGrowth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.log")
	fs, err := sink.NewFile(path)
	require.NoError(t, err)
	ic := newTestInterceptor(t, fs)

	wrapped := Wrap2(ic, "div", div)
	for i := 1; i <= 4; i++ {
		_, err := wrapped(i*2, 2)
		require.NoError(t, err)

		recs := records(t, fs)
		require.Len(t, recs, i)
		assert.Equal(t, ir.NewIRInt(int64(i)), recs[i-1].ReturnValue)
	}
}

func TestWrap_TargetFailure_LogFailures(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	_, err := Wrap2(ic, "div", div)(1, 0)
	require.Error(t, err)
	assert.Same(t, errDivisionByZero, err, "target error must be returned unwrapped")

	recs := records(t, mem)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Failed())
	assert.Nil(t, recs[0].ReturnValue)
	assert.Equal(t, "division by zero", recs[0].Error)
	assert.Equal(t, ir.IRArray{ir.NewIRInt(1), ir.NewIRInt(0)}, recs[0].Arguments)

	lines, err := mem.ReadLines(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, string(lines[0]), "return_value")
}

func TestWrap_TargetFailure_SkipFailures(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem, WithFailurePolicy(SkipFailures))

	_, err := Wrap2(ic, "div", div)(1, 0)
	assert.ErrorIs(t, err, errDivisionByZero)
	assert.Equal(t, 0, mem.Len())
}

func TestWrap_TargetPanic(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	intDiv := Wrap2(ic, "int_div", func(a, b int) (int, error) { return a / b, nil })

	assert.Panics(t, func() { _, _ = intDiv(1, 0) })

	recs := records(t, mem)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Failed())
	assert.Contains(t, recs[0].Error, "panic: runtime error: integer divide by zero")
}

func TestWrap_TargetPanicValuePreserved(t *testing.T) {
	ic := newTestInterceptor(t, sink.NewMemory("t"), WithFailurePolicy(SkipFailures))

	boom := Wrap0(ic, "boom", func() (int, error) { panic("boom") })
	assert.PanicsWithValue(t, "boom", func() { _, _ = boom() })
}

func TestWrap_EmptyErrorText(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	_, err := Wrap0(ic, "quiet", func() (int, error) { return 0, errors.New("") })()
	require.Error(t, err)

	recs := records(t, mem)
	require.Len(t, recs, 1)
	assert.Equal(t, "unknown error", recs[0].Error)
}

func TestWrap_ArgumentSerializationFailure(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	called := false
	target := Wrap(ic, "f", func(context.Context, Call) (int, error) {
		called = true
		return 1, nil
	})

	_, err := target(context.Background(), Args(func() {}))
	require.Error(t, err)
	assert.True(t, IsSerializationError(err))
	assert.ErrorIs(t, err, ir.ErrUnsupportedValue)
	assert.False(t, called, "target must not run when arguments cannot be captured")
	assert.Equal(t, 0, mem.Len())

	_, err = target(context.Background(), Args().With("ch", make(chan int)))
	assert.True(t, IsSerializationError(err))
	assert.Contains(t, err.Error(), "keyword arguments")
}

func TestWrap_InvalidKeywordName(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	called := false
	target := Wrap(ic, "f", func(context.Context, Call) (int, error) {
		called = true
		return 1, nil
	})

	_, err := target(context.Background(), Call{Kwargs: map[string]any{"k\xff": 1}})
	require.Error(t, err)
	assert.True(t, IsSerializationError(err))
	assert.ErrorIs(t, err, ir.ErrUnsupportedValue)
	assert.False(t, called)
	assert.Equal(t, 0, mem.Len())
}

func TestWrap_SelfReferencingArgument(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)
	target := Wrap(ic, "f", func(context.Context, Call) (int, error) { return 1, nil })

	loop := []any{nil}
	loop[0] = loop
	_, err := target(context.Background(), Args(loop))
	require.Error(t, err)
	assert.True(t, IsSerializationError(err))
	assert.ErrorIs(t, err, ir.ErrUnsupportedValue)

	cycle := map[string]any{}
	cycle["self"] = cycle
	_, err = target(context.Background(), Args().With("m", cycle))
	assert.True(t, IsSerializationError(err))
	assert.Equal(t, 0, mem.Len())
}

func TestWrap_InvalidUTF8ErrorText(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	targetErr := errors.New("bad\xff")
	_, err := Wrap0(ic, "f", func() (int, error) { return 0, targetErr })()
	assert.Same(t, targetErr, err)

	lines, rerr := mem.ReadLines(context.Background())
	require.NoError(t, rerr)
	require.Len(t, lines, 1)

	rec, derr := ir.DecodeRecord(lines[0])
	require.NoError(t, derr)
	assert.Equal(t, "bad\uFFFD", rec.Error)

	again, eerr := ir.EncodeRecord(rec)
	require.NoError(t, eerr)
	assert.Equal(t, lines[0], again)
}

func TestWrap_ResultSerializationFailure(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	type point struct{ X, Y int }
	got, err := Wrap0(ic, "origin", func() (point, error) { return point{}, nil })()
	assert.Equal(t, point{}, got)
	assert.True(t, IsSerializationError(err))
	assert.Contains(t, err.Error(), "return value")
	assert.Equal(t, 0, mem.Len())
}

func TestWrap_SinkFailure_Propagate(t *testing.T) {
	failing := &testutil.FailingSink{}
	ic := newTestInterceptor(t, failing)

	got, err := Wrap2(ic, "div", div)(6, 2)
	assert.Equal(t, 3, got, "result is returned alongside the sink error")
	require.Error(t, err)
	assert.True(t, IsSinkWriteError(err))
	assert.ErrorIs(t, err, testutil.ErrSinkDown)
	assert.Equal(t, int64(1), failing.Attempts())
}

func TestWrap_SinkFailure_LogAndContinue(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	failing := &testutil.FailingSink{}
	ic := newTestInterceptor(t, failing, WithSinkPolicy(SinkLogAndContinue), WithLogger(logger))

	got, err := Wrap2(ic, "div", div)(6, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "function=div")
}

func TestWrap_SinkFailureDuringTargetFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	ic := newTestInterceptor(t, &testutil.FailingSink{}, WithLogger(logger))

	_, err := Wrap2(ic, "div", div)(1, 0)
	assert.Same(t, errDivisionByZero, err)
	assert.Contains(t, logs.String(), "failure record not written")
}

func TestWrap_MultiSinkIsolation(t *testing.T) {
	dir := t.TempDir()
	a, err := sink.NewFile(filepath.Join(dir, "main.log"))
	require.NoError(t, err)
	b, err := sink.NewFile(filepath.Join(dir, "log_1.log"))
	require.NoError(t, err)

	divA := Wrap2(newTestInterceptor(t, a), "div", div)
	divB := Wrap2(newTestInterceptor(t, b), "div_b", div)

	_, err = divA(6, 2)
	require.NoError(t, err)
	_, err = divB(8, 2)
	require.NoError(t, err)
	_, err = divB(9, 3)
	require.NoError(t, err)

	recsA := records(t, a)
	recsB := records(t, b)
	require.Len(t, recsA, 1)
	require.Len(t, recsB, 2)
	assert.Equal(t, "div", recsA[0].FunctionName)
	for _, r := range recsB {
		assert.Equal(t, "div_b", r.FunctionName)
	}
}

func TestWrap_ConcurrentCalls(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := New(mem)

	wrapped := Wrap2(ic, "div", div)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := wrapped(i*2, 2)
			assert.NoError(t, err)
			assert.Equal(t, i, got)
		}(i)
	}
	wg.Wait()

	recs := records(t, mem)
	require.Len(t, recs, 50)
	ids := make(map[string]bool)
	for _, r := range recs {
		assert.Len(t, r.CallID, 36)
		ids[r.CallID] = true
	}
	assert.Len(t, ids, 50)
}

func TestWrap_ContextForwardedToSink(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := newTestInterceptor(t, mem)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := Wrap(ic, "summator", summator)(ctx, Args(1.0).With("b", 2.0))
	assert.Equal(t, 3.0, got)
	assert.True(t, IsSinkWriteError(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrap_NoIDs(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := New(mem, WithIDGenerator(NoIDs{}), WithClock(testutil.NewDeterministicClock()))

	_, err := Wrap2(ic, "div", div)(6, 2)
	require.NoError(t, err)

	lines, err := mem.ReadLines(context.Background())
	require.NoError(t, err)
	assert.Equal(t,
		`{"timestamp":"2024-03-01 12:00:00","function_name":"div","arguments":[6,2],"keyword_arguments":{},"return_value":3}`+"\n",
		string(lines[0]))
}

func TestCall_WithDoesNotMutate(t *testing.T) {
	base := Args(1).With("a", 1)
	derived := base.With("b", 2)

	assert.Len(t, base.Kwargs, 1)
	assert.Len(t, derived.Kwargs, 2)
	assert.Equal(t, fmt.Sprint(base.Args), fmt.Sprint(derived.Args))
}
