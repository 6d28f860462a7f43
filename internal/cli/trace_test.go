package cli

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/holopos/internal/conductor"
)

// recordCalls runs alice against a persisted instance, makes one Ok and one
// Err call and returns the instance's database path.
func recordCalls(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	cfg := conductor.NewConfig(conductor.Instance(conductor.Agent("alice"), conductor.DNA(bundlePath)))
	cfg.PersistenceDir = dir

	reg, err := newRegistry()
	require.NoError(t, err)
	c, err := conductor.New(cfg, reg, conductor.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	require.NoError(t, c.Start(t.Context()))

	app := c.Bind("alice")
	res, err := app.Call(t.Context(), "pos", "main", "create_basket",
		map[string]any{"basket": map[string]any{"name": "Test", "sum": 0}})
	require.NoError(t, err)
	require.True(t, res.IsOk(), res.Error())

	res, err = app.Call(t.Context(), "pos", "", "create_basket",
		map[string]any{"basket": map[string]any{"name": "Bad", "sum": -1}})
	require.NoError(t, err)
	require.False(t, res.IsOk())

	require.NoError(t, c.Stop())
	return filepath.Join(dir, "alice.db")
}

func TestTrace_Text(t *testing.T) {
	db := recordCalls(t)

	out, _, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "alice pos/main/create_basket -> Ok")
	assert.Contains(t, out, "alice pos/main/create_basket -> Err")
	assert.Contains(t, out, "2 call(s): 1 ok, 1 err, 0 incomplete")
}

func TestTrace_JSON(t *testing.T) {
	db := recordCalls(t)

	out, _, err := execute(t, "trace", "--db", db, "--format", "json")
	require.NoError(t, err)

	var result struct {
		Timeline []struct {
			Seq        int64  `json:"seq"`
			Agent      string `json:"agent"`
			Call       string `json:"call"`
			OutputCase string `json:"output_case"`
			Complete   bool   `json:"complete"`
		} `json:"timeline"`
		Stats TraceStats `json:"stats"`
	}
	assert.Equal(t, "ok", decodeData(t, out, &result))
	assert.Equal(t, TraceStats{Calls: 2, Ok: 1, Err: 1}, result.Stats)
	require.Len(t, result.Timeline, 2)
	assert.Less(t, result.Timeline[0].Seq, result.Timeline[1].Seq)
	assert.Equal(t, "Ok", result.Timeline[0].OutputCase)
	assert.True(t, result.Timeline[1].Complete)
}

func TestTrace_Filters(t *testing.T) {
	db := recordCalls(t)

	out, _, err := execute(t, "trace", "--db", db, "--function", "get_products")
	require.NoError(t, err)
	assert.Contains(t, out, "No calls found.")

	out, _, err = execute(t, "trace", "--db", db, "--agent", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "No calls found.")
}

func TestTrace_MissingDatabase(t *testing.T) {
	out, _, err := execute(t, "trace", "--db", filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E008")
}

func TestTrace_RequiresDB(t *testing.T) {
	_, _, err := execute(t, "trace")
	require.Error(t, err)
}
