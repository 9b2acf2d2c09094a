package harness

import "github.com/roach88/calltrace/internal/ir"

// CallTrace records what one wrapped call returned to the scenario.
type CallTrace struct {
	Function string     `json:"function"`
	Sink     string     `json:"sink"`
	Result   ir.IRValue `json:"result,omitempty"` // nil when the call returned an error
	Error    string     `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions hold.
	Pass bool `json:"pass"`

	// Calls lists every call in execution order.
	Calls []CallTrace `json:"calls"`

	// Lines holds the raw stored lines of each sink, by sink name.
	Lines map[string][]string `json:"lines"`

	// Records holds the decoded records of each sink, by sink name.
	Records map[string][]ir.InvocationRecord `json:"-"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Calls:   []CallTrace{},
		Lines:   make(map[string][]string),
		Records: make(map[string][]ir.InvocationRecord),
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddCall appends a call to the trace.
func (r *Result) AddCall(function, sink string, result ir.IRValue, err error) {
	trace := CallTrace{Function: function, Sink: sink, Result: result}
	if err != nil {
		trace.Error = err.Error()
	}
	r.Calls = append(r.Calls, trace)
}
