package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/holopos/internal/ir"
)

// Caller invokes functions on one instance.
//
// Application failures come back as an Err Result with a nil error. A
// non-nil error means the call could not be made or its outcome is unknown.
type Caller interface {
	Call(ctx context.Context, zome, module, function string, payload any) (Result, error)
}

// CallerFunc adapts a function to Caller.
type CallerFunc func(ctx context.Context, zome, module, function string, payload any) (Result, error)

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, zome, module, function string, payload any) (Result, error) {
	return f(ctx, zome, module, function, payload)
}

// EncodePayload turns a call payload into a JSON object. nil becomes {}.
// Payloads may be maps, structs, json.RawMessage or ir.IRObject.
func EncodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case ir.IRObject:
		return ir.ToJSON(p)
	}

	v, err := ir.FromJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("encode payload: must be an object, got %T", payload)
	}
	return ir.ToJSON(obj)
}
