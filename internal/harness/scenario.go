package harness

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/calltrace/internal/intercept"
)

// DefaultSinkName is the sink used by calls that name none.
const DefaultSinkName = "main"

// Sink kinds a scenario may declare.
const (
	SinkMemory = "memory"
	SinkFile   = "file"
	SinkSQLite = "sqlite"
)

// Scenario defines a scripted sequence of intercepted calls and the
// assertions on what the sinks received.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// FailurePolicy is "log" (default) or "skip".
	FailurePolicy string `yaml:"failure_policy,omitempty"`

	// SinkPolicy is "propagate" (default) or "log".
	SinkPolicy string `yaml:"sink_policy,omitempty"`

	// Sinks maps sink names to kinds. Defaults to {main: memory}.
	Sinks map[string]string `yaml:"sinks,omitempty"`

	// Calls are executed in order.
	Calls []CallStep `yaml:"calls"`

	// Assertions validate the sink contents after all calls.
	Assertions []Assertion `yaml:"assertions"`
}

// CallStep is one call of a demo target.
type CallStep struct {
	// Function is the registered target name (e.g. "summator").
	Function string `yaml:"function"`

	// Sink names the sink the call is recorded to.
	Sink string `yaml:"sink,omitempty"`

	// Args are the positional arguments.
	Args []any `yaml:"args,omitempty"`

	// Kwargs are the named arguments.
	Kwargs map[string]any `yaml:"kwargs,omitempty"`

	// Expect optionally checks what the wrapped call returned.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a call.
// Exactly one of Result and Error must be set.
type ExpectClause struct {
	// Result is compared by its record form, so 3 matches a float 3.0.
	Result yaml.Node `yaml:"result,omitempty"`

	// Error must be a substring of the returned error.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the records of one sink.
type Assertion struct {
	// Type specifies the assertion type:
	// - "record_count": exact number of records
	// - "record_contains": a record matching every given field exists
	// - "record_order": functions first appear in this order
	// - "line_contains": a stored line contains Text
	Type string `yaml:"type"`

	// Sink names the sink to inspect. Defaults to "main".
	Sink string `yaml:"sink,omitempty"`

	// Function filters records (record_count, record_contains).
	Function string `yaml:"function,omitempty"`

	// Count is the expected number of records (record_count).
	Count *int `yaml:"count,omitempty"`

	// Arguments must equal the record's positional arguments (record_contains).
	Arguments []any `yaml:"arguments,omitempty"`

	// Kwargs must be a subset of the record's named arguments (record_contains).
	Kwargs map[string]any `yaml:"kwargs,omitempty"`

	// ReturnValue must equal the record's return value (record_contains).
	ReturnValue yaml.Node `yaml:"return_value,omitempty"`

	// Error must be a substring of the record's error (record_contains).
	Error string `yaml:"error,omitempty"`

	// Functions is the expected order (record_order).
	Functions []string `yaml:"functions,omitempty"`

	// Text is searched for verbatim (line_contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertRecordCount    = "record_count"
	AssertRecordContains = "record_contains"
	AssertRecordOrder    = "record_order"
	AssertLineContains   = "line_contains"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// SinkNames returns the declared sink names, sorted.
func (s *Scenario) SinkNames() []string {
	names := make([]string, 0, len(s.Sinks))
	for name := range s.Sinks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateScenario checks required fields and fills defaults.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Calls) == 0 {
		return fmt.Errorf("calls list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if _, err := intercept.ParseFailurePolicy(s.FailurePolicy); err != nil {
		return err
	}
	if _, err := intercept.ParseSinkPolicy(s.SinkPolicy); err != nil {
		return err
	}

	if len(s.Sinks) == 0 {
		s.Sinks = map[string]string{DefaultSinkName: SinkMemory}
	}
	for name, kind := range s.Sinks {
		switch kind {
		case SinkMemory, SinkFile, SinkSQLite:
		default:
			return fmt.Errorf("sinks.%s: unknown kind %q (want memory, file or sqlite)", name, kind)
		}
	}

	for i := range s.Calls {
		step := &s.Calls[i]
		if step.Function == "" {
			return fmt.Errorf("calls[%d]: function is required", i)
		}
		if step.Sink == "" {
			step.Sink = DefaultSinkName
		}
		if _, ok := s.Sinks[step.Sink]; !ok {
			return fmt.Errorf("calls[%d]: undeclared sink %q", i, step.Sink)
		}
		if step.Expect != nil {
			hasResult := step.Expect.Result.Kind != 0
			hasError := step.Expect.Error != ""
			if hasResult == hasError {
				return fmt.Errorf("calls[%d].expect: exactly one of result or error is required", i)
			}
		}
	}

	for i := range s.Assertions {
		a := &s.Assertions[i]
		if a.Sink == "" {
			a.Sink = DefaultSinkName
		}
		if _, ok := s.Sinks[a.Sink]; !ok {
			return fmt.Errorf("assertions[%d]: undeclared sink %q", i, a.Sink)
		}
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertRecordCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for record_count", index)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertRecordContains:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for record_contains", index)
		}
	case AssertRecordOrder:
		if len(a.Functions) == 0 {
			return fmt.Errorf("assertions[%d]: functions list is required for record_order", index)
		}
	case AssertLineContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for line_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
