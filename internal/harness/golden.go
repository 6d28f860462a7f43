package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/holopos/internal/ir"
)

// GoldenDir is where golden traces live, relative to the test's package.
const GoldenDir = "testdata/golden"

// GoldenSuffix is the golden file extension.
const GoldenSuffix = ".golden"

var addressPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// TraceSnapshot is the part of a Result that golden files record.
type TraceSnapshot struct {
	Scenario string
	Tests    []TestResult
}

// Snapshot renders a result's traces as indented canonical JSON.
//
// Content addresses are replaced by <addr:N>, numbered in order of first
// appearance, so a snapshot survives changes to the hash domain while still
// showing which calls refer to the same entry.
func Snapshot(r *Result) ([]byte, error) {
	s := TraceSnapshot{Scenario: r.Scenario, Tests: r.Tests}
	obj, err := s.toIR()
	if err != nil {
		return nil, err
	}

	red := &redactor{seen: make(map[string]int)}
	canonical, err := ir.MarshalCanonical(red.redact(obj))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, canonical, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func (s *TraceSnapshot) toIR() (ir.IRObject, error) {
	tests := make(ir.IRArray, len(s.Tests))
	for i, tr := range s.Tests {
		trace := make(ir.IRArray, len(tr.Trace))
		for j, event := range tr.Trace {
			if event.Result == nil {
				return nil, fmt.Errorf("test %q: call %d has no result", tr.Name, j+1)
			}
			args := event.Args
			if args == nil {
				args = ir.IRObject{}
			}
			trace[j] = ir.IRObject{
				"call":        ir.IRString(event.Call),
				"args":        args,
				"output_case": ir.IRString(event.OutputCase),
				"result":      event.Result,
			}
		}
		tests[i] = ir.IRObject{
			"name":  ir.IRString(tr.Name),
			"trace": trace,
		}
	}
	return ir.IRObject{
		"scenario": ir.IRString(s.Scenario),
		"tests":    tests,
	}, nil
}

// redactor numbers addresses as it meets them. Object keys are visited in
// canonical order so numbering matches the order they appear in the output.
type redactor struct {
	seen map[string]int
}

func (r *redactor) redact(v ir.IRValue) ir.IRValue {
	switch val := v.(type) {
	case ir.IRString:
		s := string(val)
		if !addressPattern.MatchString(s) {
			return val
		}
		n, ok := r.seen[s]
		if !ok {
			n = len(r.seen) + 1
			r.seen[s] = n
		}
		return ir.IRString("<addr:" + strconv.Itoa(n) + ">")
	case ir.IRArray:
		out := make(ir.IRArray, len(val))
		for i, elem := range val {
			out[i] = r.redact(elem)
		}
		return out
	case ir.IRObject:
		out := make(ir.IRObject, len(val))
		for _, k := range val.SortedKeys() {
			out[k] = r.redact(val[k])
		}
		return out
	default:
		return v
	}
}

// AssertGolden compares a result's snapshot with testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(GoldenSuffix),
	)
	g.Assert(t, name, snapshot)
	return nil
}

// RunWithGolden runs a scenario and compares its trace with the golden file
// named after the scenario.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}
