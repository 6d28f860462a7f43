package zome

import (
	"bytes"
	"encoding/json"

	"github.com/roach88/holopos/internal/ir"
)

// Encoder is implemented by values that build their own IR form, typically
// to keep decimals as numbers rather than the strings encoding/json gives.
type Encoder interface {
	IR() ir.IRObject
}

// Decode reads args[key] into out. A missing key or a value that does not
// fit out's type is an InvalidInput error. Unknown fields are rejected.
func Decode(args ir.IRObject, key string, out any) error {
	v, ok := args[key]
	if !ok {
		return InvalidInput("missing argument %q", key)
	}
	if err := DecodeValue(v, out); err != nil {
		return InvalidInput("argument %q: %v", key, err)
	}
	return nil
}

// DecodeValue converts an IR value into out through its JSON form.
func DecodeValue(v ir.IRValue, out any) error {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	return dec.Decode(out)
}

// Encode converts a Go value into IR. Encoders are used directly; anything
// else goes through encoding/json.
func Encode(v any) (ir.IRValue, error) {
	if e, ok := v.(Encoder); ok {
		return e.IR(), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, Internal("encode result: %v", err)
	}
	out, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, Internal("encode result: %v", err)
	}
	return out, nil
}

// String reads a required string argument.
func String(args ir.IRObject, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", InvalidInput("missing argument %q", key)
	}
	s, ok := v.(ir.IRString)
	if !ok {
		return "", InvalidInput("argument %q must be a string", key)
	}
	return string(s), nil
}
