package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/holopos/internal/client"
	"github.com/roach88/holopos/internal/ir"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	URL     string
	Args    string
	Timeout time.Duration
}

// instanceCaller is the part of the RPC clients the call command needs.
type instanceCaller interface {
	CallInstance(ctx context.Context, instanceID, zome, module, function string, payload any) (client.Result, error)
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <instance> <zome>/<module>/<function>",
		Short: "Call a zome function on a running conductor",
		Long: `Call a zome function through a conductor interface.

ws:// and wss:// URLs use the websocket endpoint; http:// and https:// URLs
POST to /rpc. The module may be left out ("pos/get_products") to use main.

Exit codes:
  0 - The call returned Ok
  1 - The call returned Err
  2 - Command error (bad arguments, connection or protocol failure)

Examples:
  holopos call alice pos/main/create_basket --args '{"basket":{"name":"Test","sum":0}}'
  holopos call alice pos/main/get_basket --args '{"basket_addr":"..."}' --url http://127.0.0.1:8888/rpc`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", "ws://127.0.0.1:8888/ws", "conductor interface URL")
	cmd.Flags().StringVar(&opts.Args, "args", "{}", "call arguments as a JSON object")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 30*time.Second, "call timeout")

	return cmd
}

func runCall(opts *CallOptions, instanceID, path string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	zomeName, module, function, err := splitCallPath(path)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "invalid call path", err)
	}
	payload, err := ir.UnmarshalIRObject([]byte(opts.Args))
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "invalid --args", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	caller, closeFn, err := dialInterface(ctx, opts.URL)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeConnect, "failed to connect", err)
	}
	defer closeFn()

	f.VerboseLog("calling %s/%s/%s on %s via %s", zomeName, module, function, instanceID, opts.URL)
	res, err := caller.CallInstance(ctx, instanceID, zomeName, module, function, payload)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeCallFailed, "call failed", err)
	}

	if !res.IsOk() {
		if err := f.Failure(res, "Err: "+res.Error()); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s returned %s", function, res.Error()))
	}
	return f.Success(res, string(res.Ok))
}

// dialInterface picks the transport from the URL scheme.
func dialInterface(ctx context.Context, rawURL string) (instanceCaller, func(), error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, err
	}
	switch u.Scheme {
	case "ws", "wss":
		ws, err := client.Dial(ctx, rawURL)
		if err != nil {
			return nil, nil, err
		}
		return ws, func() { _ = ws.Close() }, nil
	case "http", "https":
		return client.NewHTTPClient(rawURL, nil), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// splitCallPath parses "zome/module/function" or "zome/function".
func splitCallPath(path string) (zome, module, function string, err error) {
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" {
			return "", "", "", fmt.Errorf("%q has an empty segment", path)
		}
	}
	switch len(parts) {
	case 2:
		return parts[0], "", parts[1], nil
	case 3:
		return parts[0], parts[1], parts[2], nil
	}
	return "", "", "", fmt.Errorf("%q: want zome/module/function", path)
}
