package dna

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// Load reads a bundle from a .json or .cue file, checks it against the
// schema and runs Validate. A CUE file may define the bundle at the top
// level or under a "bundle" field.
func Load(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}

	ctx := cuecontext.New()
	var v cue.Value
	switch filepath.Ext(path) {
	case ".cue":
		v = ctx.CompileBytes(data, cue.Filename(path))
		if inner := v.LookupPath(cue.ParsePath("bundle")); inner.Exists() {
			v = inner
		}
	default:
		expr, err := cuejson.Extract(path, data)
		if err != nil {
			return nil, formatCUEError(err)
		}
		v = ctx.BuildExpr(expr)
	}

	b, err := CompileBundle(v)
	if err != nil {
		return nil, err
	}

	if errs := b.Validate(); len(errs) > 0 {
		return nil, &InvalidBundleError{Path: path, Errors: errs}
	}
	return b, nil
}

// CompileBundle unifies v with the bundle schema, fills defaults and
// decodes the result. It does not run semantic validation.
func CompileBundle(v cue.Value) (*Bundle, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile bundle schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Bundle")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var b Bundle
	if err := unified.Decode(&b); err != nil {
		return nil, formatCUEError(err)
	}
	return &b, nil
}

// CompileError is a schema violation with its source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InvalidBundleError carries every semantic validation failure.
type InvalidBundleError struct {
	Path   string
	Errors []ValidationError
}

func (e *InvalidBundleError) Error() string {
	msg := fmt.Sprintf("%s: %d validation error(s)", e.Path, len(e.Errors))
	for _, ve := range e.Errors {
		msg += "\n  " + ve.Error()
	}
	return msg
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "bundle"
	if path := first.Path(); len(path) > 0 {
		field = strings.Join(path, ".")
	}
	pos := token.NoPos
	if positions := errors.Positions(first); len(positions) > 0 {
		pos = positions[0]
	}
	return &CompileError{Field: field, Message: first.Error(), Pos: pos}
}
