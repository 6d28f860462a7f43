package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/holopos/internal/dna"
	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/store"
	"github.com/roach88/holopos/internal/zome"
)

// Request names a zome function and its arguments.
// Module is the capability the function is exposed under.
type Request struct {
	Zome     string
	Module   string
	Function string
	Args     ir.IRObject
}

func (r Request) String() string {
	return r.Zome + "/" + r.Module + "/" + r.Function
}

// Result is the recorded outcome of a call.
type Result struct {
	CallID     string
	Seq        int64 // seq of the completion
	OutputCase string
	Value      ir.IRValue
}

// IsOk reports whether the call succeeded.
func (r Result) IsOk() bool {
	return r.OutputCase == ir.OutputOk
}

// CallObserver is told about every completed call. internal/metrics
// implements it.
type CallObserver interface {
	ObserveCall(instance, function, outputCase string, d time.Duration)
}

// Engine executes calls for one instance: one agent running one bundle over
// one store.
//
// Thread-safety model:
//   - Call: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Engine struct {
	instanceID string
	agentID    string
	store      *store.Store
	bundle     *dna.Bundle
	dnaHash    string
	registry   *zome.Registry
	clock      *Clock
	queue      *callQueue
	ids        CallIDGenerator
	logger     *slog.Logger
	observer   CallObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithCallIDGenerator replaces the UUIDv7 request id generator.
func WithCallIDGenerator(g CallIDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithObserver reports completed calls to o.
func WithObserver(o CallObserver) Option {
	return func(e *Engine) { e.observer = o }
}

// WithInstanceID labels logs and metrics. Defaults to the agent id.
func WithInstanceID(id string) Option {
	return func(e *Engine) { e.instanceID = id }
}

// New creates an engine over s. The clock resumes after the highest seq
// already in the store.
func New(ctx context.Context, s *store.Store, b *dna.Bundle, reg *zome.Registry, agentID string, opts ...Option) (*Engine, error) {
	dnaHash, err := b.Hash()
	if err != nil {
		return nil, fmt.Errorf("hash bundle: %w", err)
	}
	maxSeq, err := s.MaxSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}

	e := &Engine{
		instanceID: agentID,
		agentID:    agentID,
		store:      s,
		bundle:     b,
		dnaHash:    dnaHash,
		registry:   reg,
		clock:      NewClockAt(maxSeq),
		queue:      newCallQueue(),
		ids:        UUIDv7Generator{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// AgentID returns the agent this engine acts for.
func (e *Engine) AgentID() string { return e.agentID }

// DNAHash returns the content address of the engine's bundle.
func (e *Engine) DNAHash() string { return e.dnaHash }

// Bundle returns the loaded bundle.
func (e *Engine) Bundle() *dna.Bundle { return e.bundle }

// Store returns the instance store. Only read from it outside Run.
func (e *Engine) Store() *store.Store { return e.store }

// Call submits a request and waits for its result.
//
// If ctx ends while the call is still queued, the call is abandoned and never
// recorded. Once Run has started it, the call runs to completion and is
// recorded even if the caller has stopped waiting.
func (e *Engine) Call(ctx context.Context, req Request) (Result, error) {
	p := &pendingCall{ctx: ctx, req: req, reply: make(chan callOutcome, 1)}
	if !e.queue.Enqueue(p) {
		return Result{}, ErrStopped
	}

	select {
	case out := <-p.reply:
		return out.result, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Run executes queued calls until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine. Calls still queued when Run
// returns fail with ErrStopped.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "instance", e.instanceID, "agent", e.agentID, "dna", e.dnaHash)
	defer e.failPending()

	for {
		if p, ok := e.queue.TryDequeue(); ok {
			e.runPending(ctx, p)
			continue
		}
		if e.queue.Closed() {
			e.logger.Info("engine stopping: queue closed", "instance", e.instanceID)
			return nil
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled", "instance", e.instanceID)
			e.queue.Close()
			return ctx.Err()
		case <-e.queue.Wait():
		}
	}
}

// Stop closes the queue. Run finishes the calls already queued and returns.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) failPending() {
	for _, p := range e.queue.Drain() {
		p.reply <- callOutcome{err: ErrStopped}
	}
}

func (e *Engine) runPending(ctx context.Context, p *pendingCall) {
	if err := p.ctx.Err(); err != nil {
		p.reply <- callOutcome{err: err}
		return
	}

	start := time.Now()
	result, err := e.execute(ctx, p.req)
	if err != nil {
		e.logger.Error("call failed",
			"instance", e.instanceID,
			"call", p.req.String(),
			"error", err,
		)
		p.reply <- callOutcome{err: err}
		return
	}

	elapsed := time.Since(start)
	if e.observer != nil {
		e.observer.ObserveCall(e.instanceID, p.req.Function, result.OutputCase, elapsed)
	}
	e.logger.Debug("call completed",
		"instance", e.instanceID,
		"call", p.req.String(),
		"call_id", result.CallID,
		"result", result.OutputCase,
		"seq", result.Seq,
		"duration", elapsed,
	)
	p.reply <- callOutcome{result: result}
}

// execute records the invocation, runs the handler and records the
// completion. Called only from Run.
func (e *Engine) execute(ctx context.Context, req Request) (Result, error) {
	args := req.Args
	if args == nil {
		args = ir.IRObject{}
	}

	seq := e.clock.Next()
	requestID := e.ids.Generate()
	callID, err := ir.CallID(requestID, req.Zome, req.Module, req.Function, args, seq)
	if err != nil {
		return Result{}, encodingError("", "compute call id", err)
	}

	provenance := ir.Provenance{AgentID: e.agentID, Capability: req.Module}
	inv := ir.Invocation{
		ID:            callID,
		RequestID:     requestID,
		Zome:          req.Zome,
		Module:        req.Module,
		Function:      req.Function,
		Args:          args,
		Seq:           seq,
		Provenance:    provenance,
		DNAHash:       e.dnaHash,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
	if err := e.store.WriteInvocation(ctx, inv); err != nil {
		return Result{}, storeError(callID, "write invocation", err)
	}

	outputCase, value := e.dispatch(ctx, req, args)

	compSeq := e.clock.Next()
	resultID, err := ir.ResultID(callID, outputCase, value, compSeq)
	if err != nil {
		// The handler produced something that cannot be stored.
		e.logger.Warn("unencodable call result", "call_id", callID, "error", err)
		outputCase = ir.OutputErr
		value = zome.Internal("result could not be encoded: %v", err).IR()
		if resultID, err = ir.ResultID(callID, outputCase, value, compSeq); err != nil {
			return Result{}, encodingError(callID, "compute result id", err)
		}
	}

	comp := ir.Completion{
		ID:           resultID,
		InvocationID: callID,
		OutputCase:   outputCase,
		Result:       value,
		Seq:          compSeq,
		Provenance:   provenance,
	}
	if err := e.store.WriteCompletion(ctx, comp); err != nil {
		return Result{}, storeError(callID, "write completion", err)
	}

	return Result{CallID: callID, Seq: compSeq, OutputCase: outputCase, Value: value}, nil
}

// dispatch validates the request and runs the handler, folding every
// application failure into an Err value.
func (e *Engine) dispatch(ctx context.Context, req Request, args ir.IRObject) (string, ir.IRValue) {
	handler, z, err := e.resolve(req, args)
	if err != nil {
		return ir.OutputErr, zome.AsAPIError(err).IR()
	}

	api := &instanceAPI{engine: e, zome: z}
	value, err := handler(ctx, api, args)
	if err != nil {
		apiErr := zome.AsAPIError(err)
		if apiErr.Kind == zome.KindInternal {
			e.logger.Warn("zome function failed", "call", req.String(), "error", err)
		}
		return ir.OutputErr, apiErr.IR()
	}
	if value == nil {
		return ir.OutputErr, zome.Internal("%s returned no value", req.Function).IR()
	}
	return ir.OutputOk, value
}
