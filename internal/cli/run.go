package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/holopos/internal/conductor"
	"github.com/roach88/holopos/internal/metrics"
	"github.com/roach88/holopos/internal/rpc"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config string

	// ready, when set, is called after the conductor has started.
	ready func(*conductor.Conductor)
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the conductor and its interfaces",
		Long: `Start a conductor from a YAML config.

Every configured instance gets its own engine and store. Every interface
serves JSON-RPC over HTTP (POST /rpc) and websocket (GET /ws), plus
/healthz and /metrics. The command blocks until SIGINT or SIGTERM.

HOLOPOS_DB, HOLOPOS_LISTEN and HOLOPOS_RATE_LIMIT override the config;
they may also come from the --env-file.

Example:
  holopos run --config conductor.yaml
  HOLOPOS_DB=./data holopos run --config conductor.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConductor(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "conductor.yaml", "path to conductor config")

	return cmd
}

func runConductor(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := conductor.LoadConfig(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return WrapExitError(ExitCommandError, "invalid environment", err)
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid config", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, cfg.Logger)
	collector := metrics.NewCollector("")

	registry, err := newRegistry()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to register zomes", err)
	}

	c, err := conductor.New(*cfg, registry,
		conductor.WithLogger(logger),
		conductor.WithMetrics(collector),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create conductor", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		return WrapExitError(ExitCommandError, "failed to start conductor", err)
	}
	defer func() {
		if err := c.Stop(); err != nil {
			logger.Error("error stopping conductor", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, iface := range cfg.Interfaces {
		srv := rpc.NewServer(c, iface, rpc.WithLogger(logger), rpc.WithMetrics(collector))
		g.Go(func() error {
			return srv.ListenAndServe(gctx)
		})
	}

	for _, info := range c.Instances() {
		logger.Info("instance running", "id", info.ID, "agent", info.Agent, "dna_hash", info.DNAHash)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Conductor running %d instance(s) on %d interface(s). Press Ctrl-C to stop.\n",
		len(c.Instances()), len(cfg.Interfaces))
	if opts.ready != nil {
		opts.ready(c)
	}

	<-gctx.Done()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "interface error", err)
	}

	logger.Info("shutting down")
	return nil
}
