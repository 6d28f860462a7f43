package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/holopos/internal/ir"
)

// Result is a call's tagged outcome: exactly one of Ok and Err is set.
//
//	{"Ok": "3f2a..."}
//	{"Err": {"NotFound": "no entry at 3f2a..."}}
type Result struct {
	Ok  json.RawMessage `json:"Ok,omitempty"`
	Err json.RawMessage `json:"Err,omitempty"`
}

// OkResult wraps a success value.
func OkResult(v ir.IRValue) (Result, error) {
	data, err := ir.ToJSON(v)
	if err != nil {
		return Result{}, fmt.Errorf("encode Ok value: %w", err)
	}
	return Result{Ok: data}, nil
}

// ErrResult wraps a failure value.
func ErrResult(v ir.IRValue) (Result, error) {
	data, err := ir.ToJSON(v)
	if err != nil {
		return Result{}, fmt.Errorf("encode Err value: %w", err)
	}
	return Result{Err: data}, nil
}

// NewResult builds a Result from a recorded output case.
func NewResult(outputCase string, v ir.IRValue) (Result, error) {
	if outputCase == ir.OutputOk {
		return OkResult(v)
	}
	return ErrResult(v)
}

// IsOk reports whether the call succeeded.
func (r Result) IsOk() bool {
	return len(r.Ok) > 0
}

// Decode unmarshals the Ok value into v. It fails if the result is an Err.
func (r Result) Decode(v any) error {
	if !r.IsOk() {
		return fmt.Errorf("call failed: %s", r.Error())
	}
	dec := json.NewDecoder(bytes.NewReader(r.Ok))
	dec.UseNumber()
	return dec.Decode(v)
}

// Value returns the Ok or Err payload as an IRValue.
func (r Result) Value() (ir.IRValue, error) {
	if r.IsOk() {
		return ir.UnmarshalStoredValue(r.Ok)
	}
	return ir.UnmarshalStoredValue(r.Err)
}

// ErrKind returns the error kind of an Err result, such as "NotFound", or ""
// when the result is Ok or the error is not a single-key object.
func (r Result) ErrKind() string {
	if r.IsOk() {
		return ""
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(r.Err, &obj); err != nil || len(obj) != 1 {
		return ""
	}
	for k := range obj {
		return k
	}
	return ""
}

// Error describes an Err result. It returns "" for Ok results.
func (r Result) Error() string {
	if r.IsOk() {
		return ""
	}
	var obj map[string]string
	if err := json.Unmarshal(r.Err, &obj); err == nil && len(obj) == 1 {
		for k, msg := range obj {
			return k + ": " + msg
		}
	}
	return string(r.Err)
}

var errResultShape = errors.New("result must have exactly one of Ok and Err")

// UnmarshalJSON enforces that Ok and Err are mutually exclusive.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		Ok  json.RawMessage `json:"Ok"`
		Err json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if (len(raw.Ok) > 0) == (len(raw.Err) > 0) {
		return errResultShape
	}
	r.Ok, r.Err = raw.Ok, raw.Err
	return nil
}
