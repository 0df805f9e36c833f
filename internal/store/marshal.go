package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/ms05probe/internal/ir"
)

// toJSONValue converts v to the plain shape ir.MarshalCanonical accepts.
// Values already in that shape are returned unchanged; anything else (named
// map types, typed slices, structs) goes through an encoding/json round trip.
// json.Number keeps integers above 2^53 exact.
func toJSONValue(v any) (any, error) {
	if _, err := ir.MarshalCanonical(v); err == nil {
		return v, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// marshalJSON converts v to canonical JSON TEXT for storage.
func marshalJSON(v any) (string, error) {
	plain, err := toJSONValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	data, err := ir.MarshalCanonical(plain)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses canonical JSON TEXT to an argument map.
func unmarshalArgs(data string) (map[string]any, error) {
	if data == "" || data == "{}" || data == "null" {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal arguments: %w", err)
	}
	return obj, nil
}

// unmarshalValue parses canonical JSON TEXT to a decoded value.
func unmarshalValue(data string) (any, error) {
	if data == "" || data == "null" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}
