package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/roach88/holopos/internal/conductor"
	"github.com/roach88/holopos/internal/ir"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Bundle   string
	Agent    string
}

// ReplayMismatch is a logged call whose replayed result differs.
type ReplayMismatch struct {
	Seq  int64  `json:"seq"`
	Call string `json:"call"`
	Diff string `json:"diff"`
}

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	Agent         string           `json:"agent"`
	Calls         int              `json:"calls"`
	Skipped       int              `json:"skipped"`
	Deterministic bool             `json:"deterministic"`
	Mismatches    []ReplayMismatch `json:"mismatches,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run a call log and verify determinism",
		Long: `Re-run every completed call of an instance's log against a fresh
in-memory instance of the same bundle, and compare each result with the
recorded one. Entries are content-addressed, so an unchanged bundle and
zome must reproduce every result exactly.

Exit codes:
  0 - All results match
  1 - At least one result differs
  2 - Command error (database not found, DNA hash mismatch, etc.)

Examples:
  holopos replay --db ./data/alice-pos.db --bundle dist/bundle.json
  holopos replay --db ./data/alice-pos.db --bundle dist/bundle.json --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to an instance's SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Bundle, "bundle", "", "DNA bundle the log was recorded with (required)")
	_ = cmd.MarkFlagRequired("bundle")
	cmd.Flags().StringVar(&opts.Agent, "agent", "", "agent to replay; defaults to the first call's agent")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()

	st, err := openExisting(opts.Database)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	calls, err := st.ReadCalls(ctx, opts.Agent)
	st.Close()
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to read calls", err)
	}

	agent := opts.Agent
	if agent == "" && len(calls) > 0 {
		agent = calls[0].Invocation.Provenance.AgentID
	}
	result := ReplayResult{Agent: agent, Deterministic: true}
	if len(calls) == 0 {
		return f.Success(result, "No calls to replay.")
	}

	registry, err := newRegistry()
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to register zomes", err)
	}
	c, err := conductor.New(conductor.NewConfig(conductor.Instance(conductor.Agent(agent), conductor.DNA(opts.Bundle))), registry,
		conductor.WithLogger(newLogger(f.errWriter(), opts.Verbose, conductor.LoggerConfig{Level: "warn"})))
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeConfig, "failed to create conductor", err)
	}
	if err := c.Start(ctx); err != nil {
		return f.fail(ExitCommandError, ErrCodeInvalidBundle, "failed to start instance", err)
	}
	defer c.Stop()

	infos := c.Instances()
	if len(infos) != 1 {
		return f.fail(ExitCommandError, ErrCodeGeneric, "unexpected instance count", fmt.Errorf("got %d", len(infos)))
	}
	caller := c.Bind(infos[0].ID)

	for _, call := range calls {
		inv := call.Invocation
		if inv.Provenance.AgentID != agent || call.Completion == nil {
			result.Skipped++
			continue
		}
		if inv.DNAHash != infos[0].DNAHash {
			return f.fail(ExitCommandError, ErrCodeInvalidBundle, "bundle does not match the log",
				fmt.Errorf("call %d was made with DNA %s, bundle is %s", inv.Seq, inv.DNAHash, infos[0].DNAHash))
		}

		res, err := caller.Call(ctx, inv.Zome, inv.Module, inv.Function, inv.Args)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeCallFailed, fmt.Sprintf("replay of call %d failed", inv.Seq), err)
		}
		result.Calls++

		got, err := res.Value()
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeCallFailed, "failed to decode result", err)
		}
		gotCase := ir.OutputErr
		if res.IsOk() {
			gotCase = ir.OutputOk
		}
		if diff := diffOutcome(call.Completion.OutputCase, call.Completion.Result, gotCase, got); diff != "" {
			result.Deterministic = false
			result.Mismatches = append(result.Mismatches, ReplayMismatch{
				Seq:  inv.Seq,
				Call: inv.Zome + "/" + inv.Module + "/" + inv.Function,
				Diff: diff,
			})
		}
	}

	text := formatReplay(result)
	if !result.Deterministic {
		if err := f.Failure(result, text); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d call(s) replayed differently", len(result.Mismatches)))
	}
	return f.Success(result, text)
}

// outcome is the comparable form of a completion. Values are compared as
// canonical JSON so an int and an equal decimal are not reported.
type outcome struct {
	Case   string
	Result string
}

func diffOutcome(wantCase string, want ir.IRValue, gotCase string, got ir.IRValue) string {
	return cmp.Diff(outcome{wantCase, canonicalText(want)}, outcome{gotCase, canonicalText(got)})
}

func canonicalText(v ir.IRValue) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		// Values canonical JSON rejects, such as null, still compare by
		// their plain encoding.
		raw, rawErr := ir.MarshalIRValue(v)
		if rawErr != nil {
			return errors.Join(err, rawErr).Error()
		}
		return string(raw)
	}
	return string(data)
}

func formatReplay(r ReplayResult) string {
	var b strings.Builder
	for _, m := range r.Mismatches {
		fmt.Fprintf(&b, "MISMATCH [%d] %s\n%s\n", m.Seq, m.Call, m.Diff)
	}
	status := "deterministic"
	if !r.Deterministic {
		status = "NOT deterministic"
	}
	fmt.Fprintf(&b, "Replayed %d call(s) for %s, skipped %d: %s", r.Calls, r.Agent, r.Skipped, status)
	return b.String()
}
