package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/holopos/internal/ir"
)

func sampleTrace() []TraceEvent {
	ok := func(call string) TraceEvent {
		return TraceEvent{Call: call, Args: ir.IRObject{}, OutputCase: ir.OutputOk, Result: ir.IRString("x")}
	}
	return []TraceEvent{
		ok("pos/main/create_product"),
		ok("pos/main/create_basket"),
		ok("pos/main/add_product"),
		{Call: "pos/main/add_product", Args: ir.IRObject{}, OutputCase: ir.OutputErr, Result: ir.IRObject{"ValidationFailed": ir.IRString("amount")}},
		ok("pos/main/get_basket"),
	}
}

func TestAssertCallCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertCallCount(trace, Assertion{Function: "add_product", Count: 2}))
	assert.NoError(t, assertCallCount(trace, Assertion{Function: "pos/main/add_product", Count: 2}))
	assert.NoError(t, assertCallCount(trace, Assertion{Function: "get_products", Count: 0}))

	err := assertCallCount(trace, Assertion{Function: "create_basket", Count: 2})
	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertCallCount, ae.Type)
	assert.Equal(t, "1 calls", ae.Actual)
}

func TestAssertCallOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertCallOrder(trace, Assertion{Functions: []string{"create_product", "add_product", "get_basket"}}))

	err := assertCallOrder(trace, Assertion{Functions: []string{"get_basket", "create_basket"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get_basket (pos 5) should be before create_basket (pos 2)")

	err = assertCallOrder(trace, Assertion{Functions: []string{"create_product", "get_products"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing call: get_products")
}

func TestAssertAllOk(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertAllOk(trace[:3], Assertion{}))

	err := assertAllOk(trace, Assertion{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "call 4 (pos/main/add_product) returned Err")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{Type: AssertAllOk, Expected: "a", Actual: "b", Trace: sampleTrace()[:2]}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: all_ok")
	assert.Contains(t, msg, "[1] pos/main/create_product -> Ok")
	assert.Contains(t, msg, "[2] pos/main/create_basket -> Ok")
}

func TestEvaluateAssertions(t *testing.T) {
	failures := EvaluateAssertions(sampleTrace(), []Assertion{
		{Type: AssertCallCount, Function: "add_product", Count: 2},
		{Type: AssertAllOk},
		{Type: "bogus"},
	})
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0], "assertion[1] (all_ok)")
	assert.Contains(t, failures[1], `unknown assertion type "bogus"`)
}
