package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/roach88/holopos/internal/client"
	"github.com/roach88/holopos/internal/conductor"
	"github.com/roach88/holopos/internal/metrics"
)

// Backend is what the server exposes. *conductor.Conductor implements it.
type Backend interface {
	Call(ctx context.Context, instanceID, zome, module, function string, payload any) (client.Result, error)
	Instances() []client.InstanceInfo
}

// Server is one configured interface.
type Server struct {
	backend  Backend
	iface    conductor.InterfaceConfig
	allowed  map[string]bool // nil allows every instance
	limiter  *RateLimiter
	metrics  *metrics.Collector
	logger   *slog.Logger
	upgrader websocket.Upgrader
	router   *mux.Router

	// Hijacked websocket connections; http.Server.Shutdown does not see them.
	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics counts requests and serves GET /metrics from m.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer builds the routes for iface.
func NewServer(backend Backend, iface conductor.InterfaceConfig, opts ...Option) *Server {
	s := &Server{
		backend: backend,
		iface:   iface,
		logger:  slog.Default(),
		conns:   make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(iface.Instances) > 0 {
		s.allowed = make(map[string]bool, len(iface.Instances))
		for _, id := range iface.Instances {
			s.allowed[id] = true
		}
	}
	if iface.RateLimit > 0 {
		s.limiter = NewRateLimiter(iface.RateLimit, iface.Burst)
	}

	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.NewRoute().Subrouter()
	api.Use(s.rateLimit)
	api.HandleFunc("/rpc", s.handleHTTP).Methods(http.MethodPost)
	api.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	s.router = r
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe listens on the interface's address and serves until ctx
// ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.iface.Listen)
	if err != nil {
		return fmt.Errorf("interface %s: listen: %w", s.iface.ID, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.closeConns)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("interface listening", "interface", s.iface.ID, "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("interface %s: shutdown: %w", s.iface.ID, err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"instances": len(s.visibleInstances()),
	})
}

func (s *Server) handleHTTP(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, 1<<20)
	var req client.RPCRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.count("", client.CodeParseError)
		writeJSON(w, http.StatusOK, errorResponse(nil, client.CodeParseError, "parse error: "+err.Error()))
		return
	}

	resp, notify := s.dispatch(r.Context(), req)
	if notify {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	s.trackConn(conn)
	defer s.untrackConn(conn)

	key := remoteKey(r)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read", "remote", key, "error", err)
			}
			return
		}

		var resp client.RPCResponse
		notify := false
		var req client.RPCRequest
		switch {
		case json.Unmarshal(data, &req) != nil:
			s.count("", client.CodeParseError)
			resp = errorResponse(nil, client.CodeParseError, "parse error")
		case s.limiter != nil && !s.limiter.Allow(key):
			s.reject()
			resp = errorResponse(req.ID, client.CodeRateLimited, "rate limit exceeded")
		default:
			resp, notify = s.dispatch(r.Context(), req)
		}
		if notify {
			continue
		}
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Debug("websocket write", "remote", key, "error", err)
			return
		}
	}
}

func (s *Server) trackConn(conn *websocket.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrackConn(conn *websocket.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
	_ = conn.Close()
}

// closeConns sends a going-away close frame to every open websocket and
// closes it, which ends their read loops.
func (s *Server) closeConns() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	for conn := range s.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// openConns reports how many websocket connections are being served.
func (s *Server) openConns() int {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return len(s.conns)
}

// dispatch runs one request. notify is true for notifications (no id),
// whose response must not be sent.
func (s *Server) dispatch(ctx context.Context, req client.RPCRequest) (resp client.RPCResponse, notify bool) {
	notify = len(req.ID) == 0
	if req.JSONRPC != client.JSONRPCVersion || req.Method == "" {
		s.count(req.Method, client.CodeInvalidRequest)
		return errorResponse(req.ID, client.CodeInvalidRequest, "invalid request"), notify
	}

	var (
		result any
		rpcErr *client.RPCError
	)
	switch req.Method {
	case client.MethodCall:
		result, rpcErr = s.call(ctx, req.Params)
	case client.MethodInstances:
		result = s.visibleInstances()
	default:
		rpcErr = &client.RPCError{Code: client.CodeMethodNotFound, Message: "method not found: " + req.Method}
	}

	if rpcErr != nil {
		s.count(req.Method, rpcErr.Code)
		return client.RPCResponse{JSONRPC: client.JSONRPCVersion, ID: nullID(req.ID), Error: rpcErr}, notify
	}

	data, err := json.Marshal(result)
	if err != nil {
		s.count(req.Method, client.CodeInternalError)
		return errorResponse(req.ID, client.CodeInternalError, err.Error()), notify
	}
	s.count(req.Method, 0)
	return client.RPCResponse{JSONRPC: client.JSONRPCVersion, ID: nullID(req.ID), Result: data}, notify
}

func (s *Server) call(ctx context.Context, raw json.RawMessage) (any, *client.RPCError) {
	var p client.CallParams
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if len(raw) == 0 || dec.Decode(&p) != nil {
		return nil, &client.RPCError{Code: client.CodeInvalidParams, Message: "params must be {instance_id, zome, module, function, args}"}
	}
	if p.InstanceID == "" || p.Zome == "" || p.Function == "" {
		return nil, &client.RPCError{Code: client.CodeInvalidParams, Message: "instance_id, zome and function are required"}
	}
	if s.allowed != nil && !s.allowed[p.InstanceID] {
		return nil, instanceNotFound(p.InstanceID)
	}

	var payload any
	if len(p.Args) > 0 {
		payload = p.Args
	}
	res, err := s.backend.Call(ctx, p.InstanceID, p.Zome, p.Module, p.Function, payload)
	switch {
	case errors.Is(err, conductor.ErrUnknownInstance):
		return nil, instanceNotFound(p.InstanceID)
	case err != nil:
		s.logger.Warn("call failed", "instance", p.InstanceID, "function", p.Function, "error", err)
		return nil, &client.RPCError{Code: client.CodeInternalError, Message: err.Error()}
	}
	return res, nil
}

func (s *Server) visibleInstances() []client.InstanceInfo {
	all := s.backend.Instances()
	if s.allowed == nil {
		return all
	}
	out := make([]client.InstanceInfo, 0, len(all))
	for _, info := range all {
		if s.allowed[info.ID] {
			out = append(out, info)
		}
	}
	return out
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow(remoteKey(r)) {
			s.reject()
			s.logger.Warn("rate limit exceeded", "remote", remoteKey(r), "path", r.URL.Path)
			writeJSON(w, http.StatusTooManyRequests, errorResponse(nil, client.CodeRateLimited, "rate limit exceeded"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.logger.Debug("http request",
			"interface", s.iface.ID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) count(method string, code int) {
	if s.metrics == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	label := "ok"
	if code != 0 {
		label = strconv.Itoa(code)
	}
	s.metrics.RecordRPCRequest(method, label)
}

func (s *Server) reject() {
	if s.metrics != nil {
		s.metrics.RecordRejected("rate_limited")
	}
}

func instanceNotFound(id string) *client.RPCError {
	return &client.RPCError{Code: client.CodeInstanceNotFound, Message: "unknown instance " + strconv.Quote(id)}
}

func errorResponse(id json.RawMessage, code int, msg string) client.RPCResponse {
	return client.RPCResponse{
		JSONRPC: client.JSONRPCVersion,
		ID:      nullID(id),
		Error:   &client.RPCError{Code: code, Message: msg},
	}
}

// nullID substitutes JSON null when the request id is unknown.
func nullID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusWriter records the response status for logging. It forwards
// Hijack so websocket upgrades still work behind the logging middleware.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer cannot be hijacked")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
