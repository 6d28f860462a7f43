package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/holopos/internal/client"
	"github.com/roach88/holopos/internal/conductor"
	"github.com/roach88/holopos/internal/engine"
	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/pos"
	"github.com/roach88/holopos/internal/testutil"
	"github.com/roach88/holopos/internal/zome"
)

// maxFixtureDepth bounds fixture-in-fixture expansion so a cycle fails
// instead of recursing forever.
const maxFixtureDepth = 16

var (
	wholeRef  = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)
	inlineRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
)

// Harness runs scenarios. Each test gets a fresh in-process conductor with
// an in-memory store, sequential call ids and its own ${now} clock, so two
// runs of the same scenario produce identical traces.
type Harness struct {
	registry *zome.Registry
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithRegistry sets the zomes available to scenarios. The default registers
// the pos zome.
func WithRegistry(r *zome.Registry) Option {
	return func(h *Harness) { h.registry = r }
}

// WithLogger sets the logger handed to each conductor. Logs are discarded
// by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a Harness.
func New(opts ...Option) (*Harness, error) {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	if h.registry == nil {
		reg, err := zome.NewRegistry(pos.Definition())
		if err != nil {
			return nil, err
		}
		h.registry = reg
	}
	return h, nil
}

// Run executes a scenario with a default Harness.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return h.Run(ctx, scenario)
}

// Run executes every test of the scenario in order.
//
// Failed expectations and assertions are recorded in the Result. An error is
// returned only when a conductor cannot be started or stopped.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	result := NewResult(scenario.Name)
	for _, tc := range scenario.Tests {
		tr, err := h.runTest(ctx, scenario, tc)
		if err != nil {
			return nil, fmt.Errorf("test %q: %w", tc.Name, err)
		}
		result.add(tr)
	}
	return result, nil
}

func (h *Harness) runTest(ctx context.Context, scenario *Scenario, tc TestCase) (tr TestResult, err error) {
	cfg := conductor.NewConfig(conductor.Instance(conductor.Agent(scenario.Agent), conductor.DNA(scenario.Bundle)))
	c, err := conductor.New(cfg, h.registry,
		conductor.WithLogger(h.logger),
		conductor.WithCallIDs(func(instanceID string) engine.CallIDGenerator {
			return testutil.NewSequentialIDGenerator(instanceID)
		}),
	)
	if err != nil {
		return tr, err
	}
	if err := c.Start(ctx); err != nil {
		return tr, err
	}
	defer func() {
		err = errors.Join(err, c.Stop())
	}()

	caller, err := c.MakeCaller(scenario.Agent, scenario.Bundle)
	if err != nil {
		return tr, err
	}

	run := &testRun{
		caller:   caller,
		fixtures: scenario.Fixtures,
		saved:    make(map[string]ir.IRValue),
		clock:    testutil.NewDeterministicClock(),
		result:   TestResult{Name: tc.Name, Pass: true, Trace: []TraceEvent{}},
	}
	for i, step := range tc.Steps {
		if err := run.step(ctx, step); err != nil {
			run.result.AddError(fmt.Sprintf("step %d (%s): %v", i+1, step.Call, err))
			h.logger.Debug("test aborted", "test", tc.Name, "step", i+1, "error", err)
			break
		}
	}

	for _, msg := range EvaluateAssertions(run.result.Trace, tc.Assertions) {
		run.result.AddError(msg)
	}
	return run.result, nil
}

// testRun is the state of one test: its caller, variables and trace.
type testRun struct {
	caller   client.Caller
	fixtures map[string]any
	saved    map[string]ir.IRValue
	clock    *testutil.DeterministicClock
	result   TestResult
}

// step performs one call. Expectation mismatches are recorded and the test
// continues; an error aborts the test because later steps may depend on
// values this one should have saved.
func (r *testRun) step(ctx context.Context, step Step) error {
	zomeName, module, function, err := parseCall(step.Call)
	if err != nil {
		return err
	}

	expanded, err := r.substitute(step.Args, 0)
	if err != nil {
		return err
	}
	args, err := ir.FromGo(expanded)
	if err != nil {
		return fmt.Errorf("args: %w", err)
	}
	argObj, ok := args.(ir.IRObject)
	if !ok {
		return fmt.Errorf("args: expected an object, got %T", args)
	}

	res, err := r.caller.Call(ctx, zomeName, module, function, argObj)
	if err != nil {
		return err
	}
	value, err := res.Value()
	if err != nil {
		return fmt.Errorf("decode result: %w", err)
	}

	outputCase := ir.OutputErr
	if res.IsOk() {
		outputCase = ir.OutputOk
	}
	r.result.Trace = append(r.result.Trace, TraceEvent{
		Call:       step.Call,
		Args:       argObj,
		OutputCase: outputCase,
		Result:     value,
	})

	if step.Expect != nil {
		for _, msg := range r.check(step.Expect, res, value) {
			r.result.AddError(fmt.Sprintf("%s: %s", step.Call, msg))
		}
	}

	if step.Save != "" {
		if !res.IsOk() {
			return fmt.Errorf("cannot save %q: call returned %s", step.Save, res.Error())
		}
		r.saved[step.Save] = value
	}
	return nil
}

// check compares a result with an Expect clause and returns the mismatches.
func (r *testRun) check(e *Expect, res client.Result, value ir.IRValue) []string {
	var failures []string

	if e.Ok != nil && res.IsOk() != *e.Ok {
		failures = append(failures, fmt.Sprintf("expected ok=%t, got %s", *e.Ok, describe(res)))
	}
	if e.Err != "" && res.ErrKind() != e.Err {
		failures = append(failures, fmt.Sprintf("expected error %s, got %s", e.Err, describe(res)))
	}
	if (e.Len != nil || len(e.Equals) > 0) && !res.IsOk() {
		return append(failures, fmt.Sprintf("cannot check value of %s", describe(res)))
	}

	if e.Len != nil {
		got, err := lookup(value, e.Len.Path)
		switch {
		case err != nil:
			failures = append(failures, err.Error())
		default:
			n, ok := length(got)
			if !ok {
				failures = append(failures, fmt.Sprintf("len %q: %T has no length", e.Len.Path, got))
			} else if n != e.Len.Count {
				failures = append(failures, fmt.Sprintf("len %q: expected %d, got %d", e.Len.Path, e.Len.Count, n))
			}
		}
	}

	for _, p := range slices.Sorted(maps.Keys(e.Equals)) {
		if msg := r.checkEquals(value, p, e.Equals[p]); msg != "" {
			failures = append(failures, msg)
		}
	}
	return failures
}

func (r *testRun) checkEquals(value ir.IRValue, path string, expected any) string {
	got, err := lookup(value, path)
	if err != nil {
		return err.Error()
	}
	expanded, err := r.substitute(expected, 0)
	if err != nil {
		return fmt.Sprintf("equals %q: %v", path, err)
	}
	want, err := ir.FromGo(expanded)
	if err != nil {
		return fmt.Sprintf("equals %q: %v", path, err)
	}

	// Canonical bytes make 0 and 0.0, or 5.31 and 5.310, compare equal.
	wantJSON, err := ir.MarshalCanonical(want)
	if err != nil {
		return fmt.Sprintf("equals %q: %v", path, err)
	}
	gotJSON, err := ir.MarshalCanonical(got)
	if err != nil {
		return fmt.Sprintf("equals %q: %v", path, err)
	}
	if !bytes.Equal(wantJSON, gotJSON) {
		return fmt.Sprintf("equals %q: expected %s, got %s", path, wantJSON, gotJSON)
	}
	return ""
}

// substitute expands ${name} references in v. A string that is exactly one
// reference becomes the referenced value; references inside longer strings
// are interpolated as text.
func (r *testRun) substitute(v any, depth int) (any, error) {
	if depth > maxFixtureDepth {
		return nil, fmt.Errorf("fixture references nested deeper than %d", maxFixtureDepth)
	}
	switch val := v.(type) {
	case string:
		if m := wholeRef.FindStringSubmatch(val); m != nil {
			return r.resolve(m[1], depth)
		}
		var firstErr error
		out := inlineRef.ReplaceAllStringFunc(val, func(ref string) string {
			name := ref[2 : len(ref)-1]
			resolved, err := r.resolve(name, depth)
			if err == nil {
				var s string
				if s, err = scalarText(resolved); err == nil {
					return s
				}
			}
			if firstErr == nil {
				firstErr = err
			}
			return ref
		})
		return out, firstErr
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			expanded, err := r.substitute(elem, depth)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			expanded, err := r.substitute(elem, depth)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *testRun) resolve(name string, depth int) (any, error) {
	if name == NowVar {
		return r.clock.Timestamp(), nil
	}
	if v, ok := r.saved[name]; ok {
		return v, nil
	}
	if v, ok := r.fixtures[name]; ok {
		return r.substitute(v, depth+1)
	}
	return nil, fmt.Errorf("undefined variable ${%s}", name)
}

func scalarText(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.IRDecimal:
		return string(val), nil
	case ir.IRBool:
		return strconv.FormatBool(bool(val)), nil
	case int:
		return strconv.Itoa(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	}
	return "", fmt.Errorf("cannot interpolate %T into a string", v)
}

// lookup follows a dotted path of object keys and array indexes.
func lookup(v ir.IRValue, path string) (ir.IRValue, error) {
	if path == "" {
		return v, nil
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case ir.IRObject:
			next, ok := node[seg]
			if !ok {
				return nil, fmt.Errorf("path %q: no key %q", path, seg)
			}
			cur = next
		case ir.IRArray:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("path %q: index %q out of range", path, seg)
			}
			cur = node[i]
		default:
			return nil, fmt.Errorf("path %q: cannot index %T with %q", path, cur, seg)
		}
	}
	return cur, nil
}

func length(v ir.IRValue) (int, bool) {
	switch val := v.(type) {
	case ir.IRArray:
		return len(val), true
	case ir.IRObject:
		return len(val), true
	case ir.IRString:
		return len(val), true
	}
	return 0, false
}

func describe(res client.Result) string {
	if res.IsOk() {
		return "Ok"
	}
	return "Err(" + res.Error() + ")"
}
