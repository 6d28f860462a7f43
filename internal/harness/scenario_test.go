package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/pos_basket.yaml")
	require.NoError(t, err)

	assert.Equal(t, "pos_basket", sc.Name)
	assert.Equal(t, "alice", sc.Agent)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "../../../../dist/bundle.json"), sc.Bundle)
	require.Len(t, sc.Tests, 4)

	get := sc.Tests[3].Steps[4]
	assert.Equal(t, "pos/main/get_basket", get.Call)
	require.NotNil(t, get.Expect)
	require.NotNil(t, get.Expect.Ok)
	assert.True(t, *get.Expect.Ok)
	assert.Equal(t, &LenCheck{Path: "positions", Count: 2}, get.Expect.Len)
	assert.Equal(t, map[string]any{"name": "Test", "positions.0.amount": 5, "positions.1.amount": 2}, get.Expect.Equals)
	assert.Len(t, sc.Tests[3].Assertions, 3)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	_, err := LoadScenario("testdata/typo.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field test not found")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario { return DefaultPOSScenario(bundlePath) }

	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing bundle", func(s *Scenario) { s.Bundle = "" }, "bundle is required"},
		{"bundle not on disk", func(s *Scenario) { s.Bundle = "testdata/nope.json" }, "bundle:"},
		{"missing agent", func(s *Scenario) { s.Agent = "" }, "agent is required"},
		{"no tests", func(s *Scenario) { s.Tests = nil }, "tests list is required"},
		{"reserved fixture", func(s *Scenario) { s.Fixtures["now"] = 1 }, `"now" is reserved`},
		{"bad fixture name", func(s *Scenario) { s.Fixtures["a-b"] = 1 }, "invalid variable name"},
		{"duplicate test", func(s *Scenario) { s.Tests[1].Name = s.Tests[0].Name }, "duplicate test name"},
		{"empty steps", func(s *Scenario) { s.Tests[0].Steps = nil }, "steps list is required"},
		{"bad call", func(s *Scenario) { s.Tests[0].Steps[0].Call = "create_product" }, "want zome/module/function"},
		{"reserved save", func(s *Scenario) { s.Tests[0].Steps[0].Save = "now" }, "save:"},
		{"unknown assertion", func(s *Scenario) {
			s.Tests[0].Assertions = []Assertion{{Type: "state"}}
		}, `unknown assertion type "state"`},
		{"call_count without function", func(s *Scenario) {
			s.Tests[0].Assertions = []Assertion{{Type: AssertCallCount}}
		}, "function is required"},
		{"call_order without functions", func(s *Scenario) {
			s.Tests[0].Assertions = []Assertion{{Type: AssertCallOrder}}
		}, "functions list is required"},
		{"contradictory expect", func(s *Scenario) {
			yes := true
			s.Tests[0].Steps[0].Expect = &Expect{Ok: &yes, Err: "NotFound"}
		}, "contradictory"},
	}

	require.NoError(t, validateScenario(valid()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseCall(t *testing.T) {
	tests := []struct {
		call                   string
		zome, module, function string
		wantErr                bool
	}{
		{call: "pos/main/get_basket", zome: "pos", module: "main", function: "get_basket"},
		{call: "pos/get_basket", zome: "pos", function: "get_basket"},
		{call: "get_basket", wantErr: true},
		{call: "pos//get_basket", wantErr: true},
		{call: "a/b/c/d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.call, func(t *testing.T) {
			z, m, f, err := parseCall(tt.call)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{tt.zome, tt.module, tt.function}, []string{z, m, f})
		})
	}
}

func TestLoadScenario_AbsoluteBundle(t *testing.T) {
	abs, err := filepath.Abs(bundlePath)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "abs.yaml")
	body := "name: abs\nbundle: " + abs + "\nagent: bob\ntests:\n  - name: list\n    steps:\n      - call: pos/main/get_products\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, abs, sc.Bundle)
}
