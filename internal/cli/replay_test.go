package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/holopos/internal/ir"
)

func TestReplay_Deterministic(t *testing.T) {
	db := recordCalls(t)

	out, _, err := execute(t, "replay", "--db", db, "--bundle", bundlePath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Replayed 2 call(s) for alice, skipped 0: deterministic")
}

func TestReplay_JSON(t *testing.T) {
	db := recordCalls(t)

	out, _, err := execute(t, "replay", "--db", db, "--bundle", bundlePath, "--format", "json")
	require.NoError(t, err, out)

	var result ReplayResult
	assert.Equal(t, "ok", decodeData(t, out, &result))
	assert.Equal(t, ReplayResult{Agent: "alice", Calls: 2, Deterministic: true}, result)
}

func TestReplay_OtherAgentHasNoCalls(t *testing.T) {
	db := recordCalls(t)

	out, _, err := execute(t, "replay", "--db", db, "--bundle", bundlePath, "--agent", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "No calls to replay.")
}

func TestReplay_DifferentBundle(t *testing.T) {
	db := recordCalls(t)

	_, _, err := execute(t, "replay", "--db", db, "--bundle", "../dna/testdata/minimal.json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplay_MissingDatabase(t *testing.T) {
	_, _, err := execute(t, "replay", "--db", filepath.Join(t.TempDir(), "nope.db"), "--bundle", bundlePath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDiffOutcome(t *testing.T) {
	addr := ir.IRString("abc")

	assert.Empty(t, diffOutcome(ir.OutputOk, addr, ir.OutputOk, addr))
	assert.NotEmpty(t, diffOutcome(ir.OutputOk, addr, ir.OutputOk, ir.IRString("abd")))
	assert.NotEmpty(t, diffOutcome(ir.OutputOk, addr, ir.OutputErr, addr))

	obj := ir.IRObject{"b": ir.IRInt(1), "a": ir.IRBool(true)}
	same := ir.IRObject{"a": ir.IRBool(true), "b": ir.IRInt(1)}
	assert.Empty(t, diffOutcome(ir.OutputOk, obj, ir.OutputOk, same))
}
