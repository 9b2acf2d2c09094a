package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios_Golden(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestRun_RecordsCallTrace(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/div_failure.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Calls, 2)
	assert.Equal(t, "3", string(mustNumber(t, result.Calls[0].Result)))
	assert.Empty(t, result.Calls[0].Error)
	assert.Nil(t, result.Calls[1].Result)
	assert.Equal(t, "division by zero", result.Calls[1].Error)

	require.Len(t, result.Records["main"], 2)
	assert.True(t, result.Records["main"][1].Failed())
}

func TestRun_FailedExpectation(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_expectation
description: expects the wrong quotient
calls:
  - function: div
    args: [6, 2]
    expect:
      result: 4
  - function: div
    args: [1, 0]
    expect:
      result: 0
  - function: hello_world
    expect:
      error: boom
assertions:
  - type: record_count
    count: 3
`)
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected 4, got 3")
	assert.Contains(t, result.Errors[1], "unexpected error: division by zero")
	assert.Contains(t, result.Errors[2], `expected error containing "boom", got success`)
}

func TestRun_UnknownFunction(t *testing.T) {
	scenario := mustParse(t, `
name: unknown
description: calls a function that is not registered
calls:
  - function: mul
assertions:
  - type: record_count
    count: 0
`)
	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown function "mul"`)
}

func TestRun_IsolatedMemorySinks(t *testing.T) {
	scenario := mustParse(t, `
name: isolated
description: two runs of the same scenario start from empty sinks
calls:
  - function: hello_world
assertions:
  - type: record_count
    count: 1
`)
	for i := 0; i < 2; i++ {
		result, err := Run(scenario)
		require.NoError(t, err)
		assert.True(t, result.Pass, "run %d errors: %v", i, result.Errors)
	}
}

func TestSnapshot_Format(t *testing.T) {
	scenario := &Scenario{Sinks: map[string]string{"b": SinkMemory, "a": SinkMemory}}
	result := NewResult()
	result.Lines["a"] = []string{`{"x":1}`}

	assert.Equal(t, "== a ==\n{\"x\":1}\n== b ==\n", string(Snapshot(scenario, result)))
}
