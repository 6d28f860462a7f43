package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Agent    string
	Function string // optional filter
}

// TraceEvent is one call in the timeline.
type TraceEvent struct {
	Seq        int64           `json:"seq"`
	CallID     string          `json:"call_id"`
	RequestID  string          `json:"request_id"`
	Agent      string          `json:"agent"`
	Call       string          `json:"call"`
	Args       ir.IRObject     `json:"args"`
	OutputCase string          `json:"output_case,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Complete   bool            `json:"complete"`
}

// TraceStats summarizes the timeline.
type TraceStats struct {
	Calls      int `json:"calls"`
	Ok         int `json:"ok"`
	Err        int `json:"err"`
	Incomplete int `json:"incomplete"`
}

// TraceResult is the trace command's output.
type TraceResult struct {
	Agent    string       `json:"agent,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Print an instance's call log",
		Long: `Print the calls recorded in an instance's store, in seq order.

Every call is logged before it runs and its result after, so a call with
no result was interrupted.

Examples:
  holopos trace --db ./data/alice-pos.db
  holopos trace --db ./data/alice-pos.db --agent alice --function add_product
  holopos trace --db ./data/alice-pos.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to an instance's SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Agent, "agent", "", "only calls made by this agent")
	cmd.Flags().StringVar(&opts.Function, "function", "", "only calls to this function")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	st, err := openExisting(opts.Database)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	calls, err := st.ReadCalls(cmd.Context(), opts.Agent)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeStore, "failed to read calls", err)
	}

	result := TraceResult{Agent: opts.Agent, Timeline: []TraceEvent{}}
	for _, c := range calls {
		if opts.Function != "" && c.Invocation.Function != opts.Function {
			continue
		}
		ev, err := traceEvent(c)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeStore, "failed to encode call", err)
		}
		result.Timeline = append(result.Timeline, ev)

		result.Stats.Calls++
		switch {
		case !ev.Complete:
			result.Stats.Incomplete++
		case ev.OutputCase == ir.OutputOk:
			result.Stats.Ok++
		default:
			result.Stats.Err++
		}
	}

	if len(result.Timeline) == 0 {
		return f.Success(result, "No calls found.")
	}
	return f.Success(result, formatTimeline(result, opts.Verbose))
}

// openExisting opens a store without creating a new database file.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

func traceEvent(c store.Call) (TraceEvent, error) {
	inv := c.Invocation
	ev := TraceEvent{
		Seq:       inv.Seq,
		CallID:    inv.ID,
		RequestID: inv.RequestID,
		Agent:     inv.Provenance.AgentID,
		Call:      inv.Zome + "/" + inv.Module + "/" + inv.Function,
		Args:      inv.Args,
	}
	if c.Completion == nil {
		return ev, nil
	}
	raw, err := ir.ToJSON(c.Completion.Result)
	if err != nil {
		return ev, err
	}
	ev.OutputCase = c.Completion.OutputCase
	ev.Result = raw
	ev.Complete = true
	return ev, nil
}

func formatTimeline(r TraceResult, verbose bool) string {
	var b strings.Builder
	for _, ev := range r.Timeline {
		outcome := "(no result)"
		if ev.Complete {
			outcome = ev.OutputCase + " " + string(ev.Result)
		}
		fmt.Fprintf(&b, "[%d] %s %s -> %s\n", ev.Seq, ev.Agent, ev.Call, outcome)
		if verbose {
			args, _ := ir.ToJSON(ev.Args)
			fmt.Fprintf(&b, "     call %s  request %s\n     args %s\n", shortID(ev.CallID), ev.RequestID, args)
		}
	}
	fmt.Fprintf(&b, "\n%d call(s): %d ok, %d err, %d incomplete",
		r.Stats.Calls, r.Stats.Ok, r.Stats.Err, r.Stats.Incomplete)
	return b.String()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
