package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"
)

// WSClient speaks JSON-RPC to a conductor over one websocket connection.
// Calls are serialized: at most one request is in flight. A connection that
// fails mid-call, including on cancellation, is dropped and the next call
// dials a new one.
type WSClient struct {
	url    string
	dialer websocket.Dialer
	logger *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	nextID uint64
}

var errClientClosed = errors.New("websocket client is closed")

type dialConfig struct {
	maxRetries       uint64
	initialBackoff   time.Duration
	handshakeTimeout time.Duration
	logger           *slog.Logger
}

// DialOption configures Dial.
type DialOption func(*dialConfig)

// WithMaxRetries sets how many times a failed dial is retried. Default 5.
func WithMaxRetries(n uint64) DialOption {
	return func(c *dialConfig) { c.maxRetries = n }
}

// WithInitialBackoff sets the first Fibonacci backoff step. Default 100ms.
func WithInitialBackoff(d time.Duration) DialOption {
	return func(c *dialConfig) { c.initialBackoff = d }
}

// WithDialLogger sets the client's logger.
func WithDialLogger(l *slog.Logger) DialOption {
	return func(c *dialConfig) { c.logger = l }
}

// Dial connects to a conductor's websocket interface, retrying with
// Fibonacci backoff while the conductor is still starting.
func Dial(ctx context.Context, url string, opts ...DialOption) (*WSClient, error) {
	cfg := dialConfig{
		maxRetries:       5,
		initialBackoff:   100 * time.Millisecond,
		handshakeTimeout: 10 * time.Second,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	dialer := websocket.Dialer{HandshakeTimeout: cfg.handshakeTimeout}
	b := retry.WithMaxRetries(cfg.maxRetries, retry.NewFibonacci(cfg.initialBackoff))

	var conn *websocket.Conn
	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		c, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			cfg.logger.Debug("websocket dial failed", "url", url, "attempt", attempt, "error", err)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	return &WSClient{url: url, dialer: dialer, conn: conn, logger: cfg.logger}, nil
}

// Close sends a close frame and closes the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	err := c.conn.Close()
	c.conn = nil
	return err
}

// roundTrip sends one request and waits for its response.
func (c *WSClient) roundTrip(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errClientClosed
	}
	if c.conn == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			return fmt.Errorf("websocket redial %s: %w", c.url, err)
		}
		c.logger.Debug("websocket reconnected", "url", c.url)
		c.conn = conn
	}
	conn := c.conn

	c.nextID++
	req, err := newRPCRequest(c.nextID, method, params)
	if err != nil {
		return err
	}

	// The zero deadline clears any earlier one.
	deadline, _ := ctx.Deadline()
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// Unblock the read if ctx ends without a deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteJSON(req); err != nil {
		c.drop()
		return fmt.Errorf("write %s: %w", method, err)
	}

	var resp RPCResponse
	if err := conn.ReadJSON(&resp); err != nil {
		// A timed-out read leaves the connection unusable.
		c.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read %s: %w", method, err)
	}
	if string(resp.ID) != string(req.ID) {
		c.drop()
		return fmt.Errorf("response id %s does not match request id %s", resp.ID, req.ID)
	}
	return decodeRPCResponse(resp, result)
}

// drop closes the current connection. Called with mu held.
func (c *WSClient) drop() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}

// CallInstance calls function on instanceID.
func (c *WSClient) CallInstance(ctx context.Context, instanceID, zome, module, function string, payload any) (Result, error) {
	return callInstance(ctx, c, instanceID, zome, module, function, payload)
}

// Instances lists the conductor's instances.
func (c *WSClient) Instances(ctx context.Context) ([]InstanceInfo, error) {
	var out []InstanceInfo
	err := c.roundTrip(ctx, MethodInstances, nil, &out)
	return out, err
}

// Bind returns a Caller for one instance.
func (c *WSClient) Bind(instanceID string) Caller {
	return boundCaller{rt: c, instanceID: instanceID}
}

type roundTripper interface {
	roundTrip(ctx context.Context, method string, params, result any) error
}

type boundCaller struct {
	rt         roundTripper
	instanceID string
}

func (b boundCaller) Call(ctx context.Context, zome, module, function string, payload any) (Result, error) {
	return callInstance(ctx, b.rt, b.instanceID, zome, module, function, payload)
}

func callInstance(ctx context.Context, rt roundTripper, instanceID, zome, module, function string, payload any) (Result, error) {
	args, err := EncodePayload(payload)
	if err != nil {
		return Result{}, err
	}
	params := CallParams{
		InstanceID: instanceID,
		Zome:       zome,
		Module:     module,
		Function:   function,
		Args:       args,
	}
	var res Result
	if err := rt.roundTrip(ctx, MethodCall, params, &res); err != nil {
		return Result{}, err
	}
	return res, nil
}

func newRPCRequest(id uint64, method string, params any) (RPCRequest, error) {
	req := RPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      json.RawMessage(strconv.FormatUint(id, 10)),
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return RPCRequest{}, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = data
	}
	return req, nil
}

func decodeRPCResponse(resp RPCResponse, result any) error {
	if resp.Error != nil {
		return resp.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
