package harness

import (
	"path"

	"github.com/roach88/holopos/internal/ir"
)

// TraceEvent is one completed call.
type TraceEvent struct {
	Call       string      `json:"call"`
	Args       ir.IRObject `json:"args"`
	OutputCase string      `json:"output_case"`
	Result     ir.IRValue  `json:"result"`
}

// Function is the last segment of Call.
func (e TraceEvent) Function() string {
	return path.Base(e.Call)
}

// IsOk reports whether the call returned Ok.
func (e TraceEvent) IsOk() bool {
	return e.OutputCase == ir.OutputOk
}

// TestResult is the outcome of one test.
type TestResult struct {
	Name   string       `json:"name"`
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
}

// AddError records a failure.
func (r *TestResult) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Result is the outcome of a scenario.
type Result struct {
	Scenario string       `json:"scenario"`
	Pass     bool         `json:"pass"`
	Tests    []TestResult `json:"tests"`

	// Errors collects every test's errors prefixed with the test name.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result for a scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Tests:    []TestResult{},
	}
}

func (r *Result) add(tr TestResult) {
	r.Tests = append(r.Tests, tr)
	if tr.Pass {
		return
	}
	r.Pass = false
	for _, e := range tr.Errors {
		r.Errors = append(r.Errors, tr.Name+": "+e)
	}
}

// Trace returns the calls of every test in order.
func (r *Result) Trace() []TraceEvent {
	var trace []TraceEvent
	for _, tr := range r.Tests {
		trace = append(trace, tr.Trace...)
	}
	return trace
}
