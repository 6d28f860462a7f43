package engine

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/holopos/internal/ir"
	"github.com/roach88/holopos/internal/pos"
	"github.com/roach88/holopos/internal/store"
	"github.com/roach88/holopos/internal/zome"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const testAgent = "alice"

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestEngine(t *testing.T, s *store.Store, opts ...Option) *Engine {
	t.Helper()
	reg, err := zome.NewRegistry(pos.Definition())
	require.NoError(t, err)

	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	e, err := New(t.Context(), s, pos.Bundle(), reg, testAgent, opts...)
	require.NoError(t, err)
	return e
}

// startEngine runs e until the test ends.
func startEngine(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func posCall(t *testing.T, e *Engine, fn string, args map[string]any) Result {
	t.Helper()
	obj, err := ir.ObjectFromGo(args)
	require.NoError(t, err)
	res, err := e.Call(t.Context(), Request{Zome: pos.ZomeName, Module: pos.Capability, Function: fn, Args: obj})
	require.NoError(t, err)
	return res
}

func okAddress(t *testing.T, res Result) string {
	t.Helper()
	require.True(t, res.IsOk(), "want Ok, got %v", res.Value)
	addr, ok := res.Value.(ir.IRString)
	require.True(t, ok, "want address, got %T", res.Value)
	require.NotEmpty(t, addr)
	return string(addr)
}

func errKind(t *testing.T, res Result) zome.ErrorKind {
	t.Helper()
	require.False(t, res.IsOk(), "want Err, got %v", res.Value)
	obj, ok := res.Value.(ir.IRObject)
	require.True(t, ok)
	require.Len(t, obj, 1)
	for k := range obj {
		return zome.ErrorKind(k)
	}
	return ""
}

var (
	testProduct = map[string]any{"name": "test product", "description": "yummi", "price": 5.31}
	testBasket  = map[string]any{"name": "Test", "sum": 0}
)

func TestEngine_BasketScenario(t *testing.T) {
	e := newTestEngine(t, setupTestStore(t))
	startEngine(t, e)

	product := okAddress(t, posCall(t, e, pos.FnCreateProduct, map[string]any{"product": testProduct}))
	basket := okAddress(t, posCall(t, e, pos.FnCreateBasket, map[string]any{"basket": testBasket}))

	for _, pos1 := range []map[string]any{
		{"amount": 5, "timestamp": "1"},
		{"amount": 2, "timestamp": "2"},
	} {
		okAddress(t, posCall(t, e, pos.FnAddProduct, map[string]any{
			"product_addr": product,
			"basket_addr":  basket,
			"position":     pos1,
		}))
	}

	res := posCall(t, e, pos.FnGetBasket, map[string]any{"basket_addr": basket})
	require.True(t, res.IsOk())
	obj := res.Value.(ir.IRObject)
	assert.Equal(t, ir.IRString("Test"), obj["name"])
	assert.Equal(t, ir.IRDecimal("0"), obj["sum"])

	positions := obj["positions"].(ir.IRArray)
	require.Len(t, positions, 2)
	assert.Equal(t, ir.IRInt(5), positions[0].(ir.IRObject)["amount"])
	assert.Equal(t, ir.IRInt(2), positions[1].(ir.IRObject)["amount"])
}

func TestEngine_RecordsCalls(t *testing.T) {
	s := setupTestStore(t)
	e := newTestEngine(t, s, WithCallIDGenerator(NewFixedGenerator("req-1", "req-2")))
	startEngine(t, e)

	ok := posCall(t, e, pos.FnCreateBasket, map[string]any{"basket": testBasket})
	bad := posCall(t, e, "no_such_fn", nil)

	calls, err := s.ReadCalls(t.Context(), testAgent)
	require.NoError(t, err)
	require.Len(t, calls, 2)

	first := calls[0]
	assert.Equal(t, ok.CallID, first.Invocation.ID)
	assert.Equal(t, "req-1", first.Invocation.RequestID)
	assert.Equal(t, pos.FnCreateBasket, first.Invocation.Function)
	assert.Equal(t, pos.Capability, first.Invocation.Provenance.Capability)
	assert.Equal(t, e.DNAHash(), first.Invocation.DNAHash)
	require.NotNil(t, first.Completion)
	assert.Equal(t, ir.OutputOk, first.Completion.OutputCase)
	assert.Equal(t, ok.Seq, first.Completion.Seq)
	assert.Greater(t, first.Completion.Seq, first.Invocation.Seq)

	second := calls[1]
	assert.Equal(t, bad.CallID, second.Invocation.ID)
	require.NotNil(t, second.Completion)
	assert.Equal(t, ir.OutputErr, second.Completion.OutputCase)
	assert.Greater(t, second.Invocation.Seq, first.Completion.Seq)
}

func TestEngine_ApplicationErrors(t *testing.T) {
	e := newTestEngine(t, setupTestStore(t))
	startEngine(t, e)

	tests := []struct {
		name string
		req  Request
		want zome.ErrorKind
	}{
		{
			name: "unknown zome",
			req:  Request{Zome: "nope", Module: pos.Capability, Function: pos.FnGetProducts},
			want: zome.KindUnknownFunction,
		},
		{
			name: "unknown capability",
			req:  Request{Zome: pos.ZomeName, Module: "admin", Function: pos.FnGetProducts},
			want: zome.KindUnknownFunction,
		},
		{
			name: "unknown function",
			req:  Request{Zome: pos.ZomeName, Module: pos.Capability, Function: "delete_basket"},
			want: zome.KindUnknownFunction,
		},
		{
			name: "missing argument",
			req:  Request{Zome: pos.ZomeName, Module: pos.Capability, Function: pos.FnGetBasket},
			want: zome.KindInvalidInput,
		},
		{
			name: "unexpected argument",
			req: Request{Zome: pos.ZomeName, Module: pos.Capability, Function: pos.FnGetProducts,
				Args: ir.IRObject{"limit": ir.IRInt(3)}},
			want: zome.KindInvalidInput,
		},
		{
			name: "argument of wrong type",
			req: Request{Zome: pos.ZomeName, Module: pos.Capability, Function: pos.FnGetBasket,
				Args: ir.IRObject{"basket_addr": ir.IRInt(3)}},
			want: zome.KindInvalidInput,
		},
		{
			name: "basket not found",
			req: Request{Zome: pos.ZomeName, Module: pos.Capability, Function: pos.FnGetBasket,
				Args: ir.IRObject{"basket_addr": ir.IRString("deadbeef")}},
			want: zome.KindNotFound,
		},
		{
			name: "entry validation",
			req: Request{Zome: pos.ZomeName, Module: pos.Capability, Function: pos.FnCreateBasket,
				Args: ir.IRObject{"basket": ir.IRObject{"name": ir.IRString("B"), "sum": ir.IRInt(-1)}}},
			want: zome.KindValidationFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Call(t.Context(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, errKind(t, res))
			assert.NotEmpty(t, res.CallID)
		})
	}
}

func TestEngine_AddProductRejectsSwappedAddresses(t *testing.T) {
	e := newTestEngine(t, setupTestStore(t))
	startEngine(t, e)

	product := okAddress(t, posCall(t, e, pos.FnCreateProduct, map[string]any{"product": testProduct}))
	basket := okAddress(t, posCall(t, e, pos.FnCreateBasket, map[string]any{"basket": testBasket}))

	res := posCall(t, e, pos.FnAddProduct, map[string]any{
		"product_addr": basket,
		"basket_addr":  product,
		"position":     map[string]any{"amount": 1, "timestamp": "1"},
	})
	assert.Equal(t, zome.KindInvalidInput, errKind(t, res))
}

func TestEngine_DeterministicCallIDs(t *testing.T) {
	run := func() []string {
		e := newTestEngine(t, setupTestStore(t), WithCallIDGenerator(NewFixedGenerator("r1", "r2")))
		startEngine(t, e)
		a := posCall(t, e, pos.FnCreateProduct, map[string]any{"product": testProduct})
		b := posCall(t, e, pos.FnGetProducts, nil)
		return []string{a.CallID, b.CallID, string(a.Value.(ir.IRString))}
	}
	assert.Equal(t, run(), run())
}

func TestEngine_ClockResumesFromStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "resume.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	first := newTestEngine(t, s)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	last := posCall(t, first, pos.FnCreateBasket, map[string]any{"basket": testBasket})
	cancel()
	<-done

	second := newTestEngine(t, s)
	startEngine(t, second)
	next := posCall(t, second, pos.FnGetProducts, nil)
	assert.Greater(t, next.Seq, last.Seq)
}

func TestEngine_CallAfterStop(t *testing.T) {
	e := newTestEngine(t, setupTestStore(t))
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	e.Stop()
	require.NoError(t, <-done)

	_, err := e.Call(t.Context(), Request{Zome: pos.ZomeName, Module: pos.Capability, Function: pos.FnGetProducts})
	assert.True(t, IsStopped(err))
}

func TestEngine_CallContextCancelledWhileQueued(t *testing.T) {
	e := newTestEngine(t, setupTestStore(t))
	// Run is not started, so the call stays queued.
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	_, err := e.Call(ctx, Request{Zome: pos.ZomeName, Module: pos.Capability, Function: pos.FnGetProducts})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned call is skipped, not recorded.
	startEngine(t, e)
	res := posCall(t, e, pos.FnGetProducts, nil)
	assert.True(t, res.IsOk())

	calls, err := e.Store().ReadCalls(t.Context(), "")
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

type recordingObserver struct {
	calls []string
}

func (o *recordingObserver) ObserveCall(instance, function, outputCase string, _ time.Duration) {
	o.calls = append(o.calls, instance+"/"+function+"/"+outputCase)
}

func TestEngine_Observer(t *testing.T) {
	obs := &recordingObserver{}
	e := newTestEngine(t, setupTestStore(t), WithObserver(obs), WithInstanceID("pos-alice"))
	startEngine(t, e)

	posCall(t, e, pos.FnGetProducts, nil)
	posCall(t, e, pos.FnGetBasket, map[string]any{"basket_addr": "missing"})

	assert.Equal(t, []string{
		"pos-alice/get_products/Ok",
		"pos-alice/get_basket/Err",
	}, obs.calls)
}
