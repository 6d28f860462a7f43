package dna

import (
	"errors"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	b, err := Load(filepath.Join("testdata", "minimal.json"))
	require.NoError(t, err)

	assert.Equal(t, "notes", b.Name)
	require.Len(t, b.Zomes, 1)
	z := b.Zomes[0]
	require.Len(t, z.EntryTypes, 1)

	// Defaults come from the schema.
	assert.Equal(t, "public", z.EntryTypes[0].Sharing)
	assert.Equal(t, "public", z.Capabilities[0].Visibility)
}

func TestLoadCUEMatchesJSON(t *testing.T) {
	fromJSON, err := Load(filepath.Join("testdata", "minimal.json"))
	require.NoError(t, err)
	fromCUE, err := Load(filepath.Join("testdata", "minimal.cue"))
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromCUE)

	h1, err := fromJSON.Hash()
	require.NoError(t, err)
	h2, err := fromCUE.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestLoadDistBundle(t *testing.T) {
	b, err := Load(filepath.Join("..", "..", "dist", "bundle.json"))
	require.NoError(t, err)

	fn, err := b.Function("pos", "main", "add_product")
	require.NoError(t, err)
	assert.Equal(t, "address", fn.Output)
	assert.Len(t, fn.Inputs, 3)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "unknown_field.json"))
	require.Error(t, err)

	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Error(), "colour")
}

func TestLoadRejectsEmptyZomes(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "no_zomes.json"))
	var ce *CompileError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadReportsAllSemanticErrors(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "bad_semantics.json"))
	require.Error(t, err)

	var ibe *InvalidBundleError
	require.True(t, errors.As(err, &ibe), "want InvalidBundleError, got %T", err)

	codes := make(map[string]bool)
	for _, ve := range ibe.Errors {
		codes[ve.Code] = true
	}
	assert.True(t, codes[ErrDuplicateEntryType], "missing duplicate entry type")
	assert.True(t, codes[ErrUnknownLinkTarget], "missing unknown link target")
	assert.True(t, codes[ErrUnknownType], "missing unknown type")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "nope.json"))
	assert.Error(t, err)
}

func TestCompileBundleInvalidCUE(t *testing.T) {
	v := cuecontext.New().CompileString(`name: "x", version: 1, zomes: []`)
	_, err := CompileBundle(v)
	assert.Error(t, err)
}
