package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails. It carries the trace
// so the failure can be read without re-running the test.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s -> %s\n", i+1, event.Call, event.OutputCase)
	}
	return buf.String()
}

// matchesCall reports whether name refers to the event's call, either by
// full path or by function name.
func matchesCall(event TraceEvent, name string) bool {
	return event.Call == name || event.Function() == name
}

// assertCallCount checks that a function was called exactly Count times.
func assertCallCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesCall(event, a.Function) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d calls to %s", a.Count, a.Function),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertCallOrder checks that the first call of each function appears in
// the given order. Other calls may come in between.
func assertCallOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int, len(a.Functions))
	for i, event := range trace {
		for _, fn := range a.Functions {
			if positions[fn] == 0 && matchesCall(event, fn) {
				positions[fn] = i + 1
			}
		}
	}

	for _, fn := range a.Functions {
		if positions[fn] == 0 {
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("all functions called: %v", a.Functions),
				Actual:   fmt.Sprintf("missing call: %s", fn),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Functions); i++ {
		prev, curr := a.Functions[i-1], a.Functions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Functions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertAllOk checks that no call returned Err.
func assertAllOk(trace []TraceEvent, _ Assertion) error {
	for i, event := range trace {
		if !event.IsOk() {
			return &AssertionError{
				Type:     AssertAllOk,
				Expected: "every call returns Ok",
				Actual:   fmt.Sprintf("call %d (%s) returned %s", i+1, event.Call, event.OutputCase),
				Trace:    trace,
			}
		}
	}
	return nil
}

// EvaluateAssertions runs the assertions against a trace and returns one
// message per failure.
func EvaluateAssertions(trace []TraceEvent, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertCallCount:
			err = assertCallCount(trace, a)
		case AssertCallOrder:
			err = assertCallOrder(trace, a)
		case AssertAllOk:
			err = assertAllOk(trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertion[%d] (%s): %v", i, a.Type, err))
		}
	}
	return failures
}
