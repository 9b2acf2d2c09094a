package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/calltrace/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Sink     string   // Sink the assertion inspected
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Lines    []string // Sink contents for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s (sink %s)\n", e.Type, e.Sink)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nSink contents:\n")
	for i, line := range e.Lines {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
	}

	return buf.String()
}

// assertRecordCount checks the number of records, optionally of one function.
func assertRecordCount(result *Result, a Assertion) error {
	count := 0
	for _, rec := range result.Records[a.Sink] {
		if a.Function == "" || rec.FunctionName == a.Function {
			count++
		}
	}

	if count != *a.Count {
		what := "records"
		if a.Function != "" {
			what = "records of " + a.Function
		}
		return &AssertionError{
			Type:     AssertRecordCount,
			Sink:     a.Sink,
			Expected: fmt.Sprintf("%d %s", *a.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Lines:    result.Lines[a.Sink],
		}
	}
	return nil
}

// assertRecordContains checks that some record of the function matches
// every field the assertion sets.
func assertRecordContains(result *Result, a Assertion) error {
	var mismatch string
	for _, rec := range result.Records[a.Sink] {
		if rec.FunctionName != a.Function {
			continue
		}
		ok, msg := recordMatches(rec, a)
		if ok {
			return nil
		}
		mismatch = msg
	}

	actual := "no record of " + a.Function
	if mismatch != "" {
		actual = "closest record: " + mismatch
	}
	return &AssertionError{
		Type:     AssertRecordContains,
		Sink:     a.Sink,
		Expected: fmt.Sprintf("record of %s matching %s", a.Function, describe(a)),
		Actual:   actual,
		Lines:    result.Lines[a.Sink],
	}
}

func recordMatches(rec ir.InvocationRecord, a Assertion) (bool, string) {
	if a.Arguments != nil {
		if ok, msg := valuesMatch(a.Arguments, rec.Arguments); !ok {
			return false, "arguments: " + msg
		}
	}
	for key, want := range a.Kwargs {
		got, exists := rec.KeywordArguments[key]
		if !exists {
			return false, fmt.Sprintf("keyword argument %q missing", key)
		}
		if ok, msg := valuesMatch(want, got); !ok {
			return false, fmt.Sprintf("keyword argument %q: %s", key, msg)
		}
	}
	if a.ReturnValue.Kind != 0 {
		if rec.Failed() {
			return false, "return_value: call failed with " + rec.Error
		}
		if ok, msg := nodeMatches(&a.ReturnValue, rec.ReturnValue); !ok {
			return false, "return_value: " + msg
		}
	}
	if a.Error != "" && !strings.Contains(rec.Error, a.Error) {
		return false, fmt.Sprintf("error: %q does not contain %q", rec.Error, a.Error)
	}
	return true, ""
}

func describe(a Assertion) string {
	var parts []string
	if a.Arguments != nil {
		parts = append(parts, fmt.Sprintf("arguments=%v", a.Arguments))
	}
	if len(a.Kwargs) > 0 {
		parts = append(parts, fmt.Sprintf("kwargs=%v", a.Kwargs))
	}
	if a.ReturnValue.Kind != 0 {
		parts = append(parts, "return_value="+a.ReturnValue.Value)
	}
	if a.Error != "" {
		parts = append(parts, fmt.Sprintf("error~%q", a.Error))
	}
	if len(parts) == 0 {
		return "anything"
	}
	return strings.Join(parts, ", ")
}

// assertRecordOrder checks that functions first appear in the given order.
// Functions don't need to be consecutive (intervening records are allowed).
func assertRecordOrder(result *Result, a Assertion) error {
	// Step 1: Find first position of each expected function
	positions := make(map[string]int)
	for i, rec := range result.Records[a.Sink] {
		if positions[rec.FunctionName] == 0 {
			positions[rec.FunctionName] = i + 1 // 1-indexed for readability
		}
	}

	// Step 2: Verify all functions found
	for _, fn := range a.Functions {
		if positions[fn] == 0 {
			return &AssertionError{
				Type:     AssertRecordOrder,
				Sink:     a.Sink,
				Expected: fmt.Sprintf("all functions present: %v", a.Functions),
				Actual:   fmt.Sprintf("missing function: %s", fn),
				Lines:    result.Lines[a.Sink],
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(a.Functions); i++ {
		prev, curr := a.Functions[i-1], a.Functions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertRecordOrder,
				Sink:     a.Sink,
				Expected: fmt.Sprintf("functions in order: %v", a.Functions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Lines: result.Lines[a.Sink],
			}
		}
	}

	return nil
}

// assertLineContains checks that some stored line contains the text.
func assertLineContains(result *Result, a Assertion) error {
	for _, line := range result.Lines[a.Sink] {
		if strings.Contains(line, a.Text) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertLineContains,
		Sink:     a.Sink,
		Expected: fmt.Sprintf("a line containing %q", a.Text),
		Actual:   "not found",
		Lines:    result.Lines[a.Sink],
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRecordCount:
			if assertion.Count == nil {
				err = fmt.Errorf("assertion[%d]: record_count requires count", i)
			} else {
				err = assertRecordCount(result, assertion)
			}
		case AssertRecordContains:
			err = assertRecordContains(result, assertion)
		case AssertRecordOrder:
			err = assertRecordOrder(result, assertion)
		case AssertLineContains:
			err = assertLineContains(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
