package harness

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/calltrace/internal/ir"
)

func mustParse(t *testing.T, yamlText string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(yamlText))
	require.NoError(t, err)
	return scenario
}

func mustNumber(t *testing.T, v ir.IRValue) ir.IRNumber {
	t.Helper()
	n, ok := v.(ir.IRNumber)
	require.True(t, ok, "expected IRNumber, got %T", v)
	return n
}
