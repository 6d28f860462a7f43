package ir

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// FromGo converts a decoded Go value (from YAML, JSON or literals) into an IRValue.
//
// float64 values, which is how YAML and encoding/json hand back fractional
// numbers, are converted to the shortest IRDecimal that round-trips. Whole
// floats become IRInt. nil is rejected.
func FromGo(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null values are forbidden in IR")
	case IRValue:
		return val, nil
	case string:
		return IRString(val), nil
	case bool:
		return IRBool(val), nil
	case int:
		return IRInt(val), nil
	case int8:
		return IRInt(val), nil
	case int16:
		return IRInt(val), nil
	case int32:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint8:
		return IRInt(val), nil
	case uint16:
		return IRInt(val), nil
	case uint32:
		return IRInt(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return IRInt(val), nil
	case float32:
		return FromGo(float64(val))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite number %v", val)
		}
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return IRInt(int64(val)), nil
		}
		return NewIRDecimal(decimal.NewFromFloat(val)), nil
	case decimal.Decimal:
		return NewIRDecimal(val), nil
	case json.Number:
		return numberToIR(val)
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		obj := make(IRObject, len(val))
		for k, elem := range val {
			irElem, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			obj[k] = irElem
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// ObjectFromGo is FromGo for values that must be objects.
// A nil map yields an empty object.
func ObjectFromGo(m map[string]any) (IRObject, error) {
	if m == nil {
		return IRObject{}, nil
	}
	v, err := FromGo(m)
	if err != nil {
		return nil, err
	}
	return v.(IRObject), nil
}

// ToGo converts an IRValue into plain Go values: map[string]any, []any,
// string, int64, bool, json.Number (decimals) and nil (IRNull).
func ToGo(v IRValue) any {
	switch val := v.(type) {
	case IRString:
		return string(val)
	case IRInt:
		return int64(val)
	case IRBool:
		return bool(val)
	case IRDecimal:
		return json.Number(val)
	case IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case IRObject:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}

// FromJSON decodes a call payload. Any Go value that encoding/json can
// marshal is accepted; it is re-decoded with UseNumber so no float survives.
func FromJSON(v any) (IRValue, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return UnmarshalIRValue(raw)
	}
	if raw, ok := v.([]byte); ok {
		return UnmarshalIRValue(raw)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return UnmarshalIRValue(data)
}

// ToJSON encodes an IRValue for the wire.
func ToJSON(v IRValue) (json.RawMessage, error) {
	data, err := MarshalIRValue(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
