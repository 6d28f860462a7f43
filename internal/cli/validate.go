package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/holopos/internal/dna"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                 `json:"valid"`
	Name    string               `json:"name,omitempty"`
	Version string               `json:"version,omitempty"`
	DNAHash string               `json:"dna_hash,omitempty"`
	Zomes   []ZomeSummary        `json:"zomes,omitempty"`
	Errors  []dna.ValidationError `json:"errors,omitempty"`
}

// ZomeSummary lists a zome's entry types and functions.
type ZomeSummary struct {
	Name       string   `json:"name"`
	EntryTypes []string `json:"entry_types"`
	Functions  []string `json:"functions"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <bundle>",
		Short: "Validate a DNA bundle and print its hash",
		Long: `Validate a DNA bundle (.json or .cue) against the bundle schema and the
semantic rules: unique names, known input and output types, existing link
targets. Prints the DNA hash to pin in conductor.yaml.

Exit codes:
  0 - Bundle is valid
  1 - Bundle is invalid
  2 - Bundle could not be read`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	if _, err := os.Stat(path); err != nil {
		return f.fail(ExitCommandError, ErrCodeNotFound, "bundle not found", err)
	}

	b, err := dna.Load(path)
	if err != nil {
		var invalid *dna.InvalidBundleError
		if errors.As(err, &invalid) {
			return outputValidationErrors(f, invalid.Errors)
		}
		return f.fail(ExitFailure, ErrCodeInvalidBundle, "invalid bundle", err)
	}

	hash, err := b.Hash()
	if err != nil {
		return f.fail(ExitFailure, ErrCodeInvalidBundle, "failed to hash bundle", err)
	}

	result := ValidationResult{
		Valid:   true,
		Name:    b.Name,
		Version: b.Version,
		DNAHash: hash,
	}
	for _, z := range b.Zomes {
		s := ZomeSummary{Name: z.Name, EntryTypes: []string{}, Functions: []string{}}
		for _, et := range z.EntryTypes {
			s.EntryTypes = append(s.EntryTypes, et.Name)
		}
		for _, c := range z.Capabilities {
			for _, fn := range c.Functions {
				s.Functions = append(s.Functions, c.Name+"/"+fn.Name)
			}
		}
		result.Zomes = append(result.Zomes, s)
	}
	f.VerboseLog("validated %s", path)

	var text strings.Builder
	fmt.Fprintf(&text, "Bundle %s %s is valid.\n", b.Name, b.Version)
	for _, z := range result.Zomes {
		fmt.Fprintf(&text, "  zome %s: %d entry type(s), %d function(s)\n", z.Name, len(z.EntryTypes), len(z.Functions))
	}
	fmt.Fprintf(&text, "DNA hash: %s", hash)
	return f.Success(result, text.String())
}

func outputValidationErrors(f *OutputFormatter, errs []dna.ValidationError) error {
	if f.IsJSON() {
		if err := f.Failure(ValidationResult{Valid: false, Errors: errs}, ""); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(f.Writer, "Bundle is invalid: %d error(s)\n", len(errs))
		for _, e := range errs {
			fmt.Fprintf(f.Writer, "  %s\n", e.Error())
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
}
