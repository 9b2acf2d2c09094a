package demo

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calltrace/internal/intercept"
	"github.com/roach88/calltrace/internal/sink"
	"github.com/roach88/calltrace/internal/testutil"
)

func TestSummator(t *testing.T) {
	ctx := context.Background()

	got, err := Summator(ctx, intercept.Args(int64(2), int64(2)))
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	got, err = Summator(ctx, intercept.Args(4.3).With("b", 2.2))
	require.NoError(t, err)
	assert.Equal(t, 6.5, got)

	got, err = Summator(ctx, intercept.Args(3))
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	got, err = Summator(ctx, intercept.Args().With("a", 0).With("b", 0))
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)
}

func TestSummator_BadArguments(t *testing.T) {
	ctx := context.Background()

	_, err := Summator(ctx, intercept.Args())
	assert.ErrorContains(t, err, `missing required argument "a"`)

	_, err = Summator(ctx, intercept.Args(1).With("a", 2))
	assert.ErrorContains(t, err, "multiple values")

	_, err = Summator(ctx, intercept.Args("x"))
	assert.ErrorContains(t, err, "expected a number")

	_, err = Summator(ctx, intercept.Args(1, 2, 3))
	assert.ErrorContains(t, err, "takes 2 positional arguments but 3 were given")
}

func TestTargets_RejectUnknownKeywords(t *testing.T) {
	ctx := context.Background()

	_, err := Div(ctx, intercept.Args(int64(6), int64(2)).With("c", int64(1)))
	assert.ErrorContains(t, err, `div: got an unexpected keyword argument "c"`)

	_, err = Summator(ctx, intercept.Args(1).With("z", 1).With("c", 1))
	assert.ErrorContains(t, err, `unexpected keyword argument "c"`)

	hello, err := Lookup("hello_world")
	require.NoError(t, err)
	_, err = hello(ctx, intercept.Args(1))
	assert.ErrorContains(t, err, "takes 0 positional arguments but 1 were given")
	_, err = hello(ctx, intercept.Args().With("name", "x"))
	assert.ErrorContains(t, err, "unexpected keyword argument")
}

func TestRecordedDivRejectsUnknownKeyword(t *testing.T) {
	mem := sink.NewMemory("demo")
	ic := intercept.New(mem,
		intercept.WithClock(testutil.NewDeterministicClock()),
		intercept.WithIDGenerator(testutil.NewSequentialIDs("call")),
	)

	_, err := intercept.Wrap(ic, "div", Div)(context.Background(), intercept.Args(int64(6), int64(2)).With("c", int64(1)))
	require.Error(t, err)

	recs, err := sink.ReadRecords(context.Background(), mem)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Failed())
	assert.Equal(t, `div: got an unexpected keyword argument "c"`, recs[0].Error)
}

func TestDiv(t *testing.T) {
	ctx := context.Background()

	got, err := Div(ctx, intercept.Args(int64(6), int64(2)))
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	_, err = Div(ctx, intercept.Args(int64(1), int64(0)))
	assert.ErrorIs(t, err, ErrDivisionByZero)
}

func TestIntDivPanics(t *testing.T) {
	assert.Panics(t, func() { _, _ = IntDiv(1, 0) })
}

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"div", "hello_world", "summator"}, Names())

	fn, err := Lookup("hello_world")
	require.NoError(t, err)
	got, err := fn(context.Background(), intercept.Call{})
	require.NoError(t, err)
	assert.Equal(t, "Hello World", got)

	_, err = Lookup("nope")
	assert.ErrorContains(t, err, "unknown function")
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(6), ParseValue("6"))
	assert.Equal(t, 4.3, ParseValue("4.3"))
	assert.Equal(t, true, ParseValue("true"))
	assert.Equal(t, "abc", ParseValue("abc"))
	assert.Equal(t, "NaN", ParseValue("NaN"))
}

func TestRun_SelfTestPerSink(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	for _, name := range []string{"log_1.log", "log_2.log", "log_3.log"} {
		fs, err := sink.NewFile(filepath.Join(dir, name))
		require.NoError(t, err)
		ic := intercept.New(fs,
			intercept.WithClock(testutil.NewDeterministicClock()),
			intercept.WithIDGenerator(testutil.NewSequentialIDs("")),
		)

		outcomes, err := Run(ctx, Single{IC: ic}, SelfTest)
		require.NoError(t, err)
		require.Len(t, outcomes, len(SelfTest))
		assert.Equal(t, "Hello World", outcomes[0].Result)
		assert.Equal(t, int64(4), outcomes[1].Result)
		assert.Equal(t, 3.0, outcomes[2].Result)
		assert.Equal(t, 6.5, outcomes[3].Result)
	}

	for _, name := range []string{"log_1.log", "log_2.log", "log_3.log"} {
		fs, err := sink.NewFile(filepath.Join(dir, name))
		require.NoError(t, err)
		lines, err := fs.ReadLines(ctx)
		require.NoError(t, err)
		require.Len(t, lines, len(SelfTest))

		var content strings.Builder
		for _, l := range lines {
			content.Write(l)
		}
		assert.Contains(t, content.String(), "summator")
		for _, lit := range []string{"4.3", "2.2", "6.5"} {
			assert.Contains(t, content.String(), lit)
		}
	}
}

func TestRun_TargetErrorContinues(t *testing.T) {
	mem := sink.NewMemory("t")
	ic := intercept.New(mem)

	steps := []Step{
		{Function: "div", Call: intercept.Args(int64(1), int64(0))},
		{Function: "hello_world"},
	}
	outcomes, err := Run(context.Background(), Single{IC: ic}, steps)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.ErrorIs(t, outcomes[0].Err, ErrDivisionByZero)
	assert.NoError(t, outcomes[1].Err)
	assert.Equal(t, 2, mem.Len())
}

func TestRun_SinkErrorStops(t *testing.T) {
	ic := intercept.New(&testutil.FailingSink{})

	outcomes, err := Run(context.Background(), Single{IC: ic}, SelfTest)
	assert.True(t, intercept.IsSinkWriteError(err))
	assert.Empty(t, outcomes)
}
