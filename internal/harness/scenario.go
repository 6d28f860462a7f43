package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is a set of tests run against one bundle as one agent.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Bundle is the DNA bundle path. LoadScenario resolves it relative to
	// the scenario file.
	Bundle string `yaml:"bundle"`

	// Agent is the agent name the calls are made as.
	Agent string `yaml:"agent"`

	// Fixtures are named values referenced from step args as ${name}.
	// They may themselves use ${now}.
	Fixtures map[string]any `yaml:"fixtures,omitempty"`

	Tests []TestCase `yaml:"tests"`
}

// TestCase is an ordered list of calls. Every test gets its own conductor.
type TestCase struct {
	Name       string      `yaml:"name"`
	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one zome call.
type Step struct {
	// Call is "zome/module/function", or "zome/function" for the main module.
	Call string `yaml:"call"`

	Args map[string]any `yaml:"args,omitempty"`

	// Save stores the Ok value under this name for later ${name} references.
	Save string `yaml:"save,omitempty"`

	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect checks a step's result. Unset fields are not checked.
type Expect struct {
	Ok *bool `yaml:"ok,omitempty"`

	// Err is the expected error kind, such as "NotFound". It implies ok: false.
	Err string `yaml:"err,omitempty"`

	Len *LenCheck `yaml:"len,omitempty"`

	// Equals maps dotted paths into the Ok value to expected values.
	// The empty path is the whole value.
	Equals map[string]any `yaml:"equals,omitempty"`
}

// LenCheck asserts the length of the array or object at Path.
type LenCheck struct {
	Path  string `yaml:"path"`
	Count int    `yaml:"count"`
}

// Assertion checks a test's whole trace.
type Assertion struct {
	// Type is one of call_count, call_order and all_ok.
	Type string `yaml:"type"`

	// Function is a function name or full call path (call_count).
	Function string `yaml:"function,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Functions is the expected order (call_order).
	Functions []string `yaml:"functions,omitempty"`
}

// Assertion type constants.
const (
	AssertCallCount = "call_count"
	AssertCallOrder = "call_order"
	AssertAllOk     = "all_ok"
)

// NowVar is the built-in placeholder that yields a fresh deterministic
// timestamp on every use.
const NowVar = "now"

var varName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos do not silently disable checks.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Bundle != "" && !filepath.IsAbs(scenario.Bundle) {
		scenario.Bundle = filepath.Join(filepath.Dir(path), scenario.Bundle)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Bundle == "" {
		return fmt.Errorf("bundle is required")
	}
	if _, err := os.Stat(s.Bundle); err != nil {
		return fmt.Errorf("bundle: %w", err)
	}
	if s.Agent == "" {
		return fmt.Errorf("agent is required")
	}
	if len(s.Tests) == 0 {
		return fmt.Errorf("tests list is required and must be non-empty")
	}

	for name := range s.Fixtures {
		if err := checkVarName(name); err != nil {
			return fmt.Errorf("fixtures: %w", err)
		}
	}

	seen := make(map[string]bool, len(s.Tests))
	for i, tc := range s.Tests {
		if tc.Name == "" {
			return fmt.Errorf("tests[%d]: name is required", i)
		}
		if seen[tc.Name] {
			return fmt.Errorf("tests[%d]: duplicate test name %q", i, tc.Name)
		}
		seen[tc.Name] = true

		if len(tc.Steps) == 0 {
			return fmt.Errorf("tests[%d]: steps list is required and must be non-empty", i)
		}
		for j, step := range tc.Steps {
			if err := validateStep(step); err != nil {
				return fmt.Errorf("tests[%d].steps[%d]: %w", i, j, err)
			}
		}
		for j := range tc.Assertions {
			if err := validateAssertion(j, &tc.Assertions[j]); err != nil {
				return fmt.Errorf("tests[%d]: %w", i, err)
			}
		}
	}
	return nil
}

func validateStep(step Step) error {
	if _, _, _, err := parseCall(step.Call); err != nil {
		return err
	}
	if step.Save != "" {
		if err := checkVarName(step.Save); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	if e := step.Expect; e != nil {
		if e.Err != "" && e.Ok != nil && *e.Ok {
			return fmt.Errorf("expect: err and ok: true are contradictory")
		}
		if e.Len != nil && e.Len.Count < 0 {
			return fmt.Errorf("expect.len: count must be non-negative")
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertCallCount:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for call_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for call_count", index)
		}
	case AssertCallOrder:
		if len(a.Functions) == 0 {
			return fmt.Errorf("assertions[%d]: functions list is required for call_order", index)
		}
	case AssertAllOk:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func checkVarName(name string) error {
	if !varName.MatchString(name) {
		return fmt.Errorf("invalid variable name %q", name)
	}
	if name == NowVar {
		return fmt.Errorf("%q is reserved", NowVar)
	}
	return nil
}

// parseCall splits "zome/module/function". A two-part path leaves module
// empty, which the conductor treats as the main module.
func parseCall(call string) (zome, module, function string, err error) {
	parts := strings.Split(call, "/")
	switch {
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], "", parts[1], nil
	case len(parts) == 3 && parts[0] != "" && parts[1] != "" && parts[2] != "":
		return parts[0], parts[1], parts[2], nil
	}
	return "", "", "", fmt.Errorf("call %q: want zome/module/function", call)
}
