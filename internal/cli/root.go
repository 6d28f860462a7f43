package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/holopos/internal/conductor"
	"github.com/roach88/holopos/internal/pos"
	"github.com/roach88/holopos/internal/zome"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

const defaultEnvFile = ".env"

// NewRootCommand creates the root command for the holopos CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "holopos",
		Short: "holopos - point of sale on a local conductor",
		Long: `holopos runs the point-of-sale zome in a conductor and exposes it over
JSON-RPC. It can also call a running conductor, validate DNA bundles, run
scenario suites and inspect an instance's call log.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			// The default .env is optional; a file named on the command line is not.
			optional := !cmd.Flags().Changed("env-file")
			if opts.EnvFile != "" {
				if err := conductor.LoadEnvFile(opts.EnvFile, optional); err != nil {
					return WrapExitError(ExitCommandError, "failed to load env file", err)
				}
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", defaultEnvFile, "dotenv file with HOLOPOS_* overrides")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))

	return cmd
}

// newFormatter writes results to stdout and diagnostics to stderr.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newLogger builds the process logger. --verbose forces debug; otherwise
// the config's level applies.
func newLogger(w io.Writer, verbose bool, cfg conductor.LoggerConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	hopts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// newRegistry registers the zomes this binary ships.
func newRegistry() (*zome.Registry, error) {
	return zome.NewRegistry(pos.Definition())
}
