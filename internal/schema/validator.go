// Package schema validates decoded descriptors against JSON Schemas and
// produces those schemas from MS-05 datatype descriptors.
//
// Validation goes through CUE: the JSON Schema is extracted into a CUE
// file, built, and unified with the payload.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/encoding/jsonschema"
)

// ValidationError reports a payload that does not satisfy its schema.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// CompileError reports a schema that could not be turned into a CUE value.
type CompileError struct {
	Message string
}

func (e *CompileError) Error() string {
	return "schema error: " + e.Message
}

// SchemaProblem returns the reason the schema could not be compiled.
func (e *CompileError) SchemaProblem() string {
	return e.Message
}

// Validator checks payloads against JSON Schemas. Compiled schemas are
// cached by their JSON encoding.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type Validator struct {
	mu       sync.Mutex
	ctx      *cue.Context
	compiled map[string]cue.Value
}

// NewValidator creates a validator with its own CUE context.
func NewValidator() *Validator {
	return &Validator{
		ctx:      cuecontext.New(),
		compiled: make(map[string]cue.Value),
	}
}

// Validate returns nil if payload satisfies schema, a *ValidationError if
// it does not and a *CompileError if schema is unusable.
func (v *Validator) Validate(payload any, schema map[string]any) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	compiled, err := v.compile(schema)
	if err != nil {
		return err
	}

	data := v.ctx.Encode(normalize(payload))
	if err := data.Err(); err != nil {
		return &ValidationError{Message: "encoding payload: " + message(err)}
	}
	if err := compiled.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Message: message(err)}
	}
	return nil
}

func (v *Validator) compile(schema map[string]any) (cue.Value, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return cue.Value{}, &CompileError{Message: err.Error()}
	}
	key := string(raw)
	if c, ok := v.compiled[key]; ok {
		return c, nil
	}

	sv := v.ctx.CompileBytes(raw)
	if err := sv.Err(); err != nil {
		return cue.Value{}, &CompileError{Message: message(err)}
	}
	file, err := jsonschema.Extract(sv, &jsonschema.Config{})
	if err != nil {
		return cue.Value{}, &CompileError{Message: message(err)}
	}
	c := v.ctx.BuildFile(file)
	if err := c.Err(); err != nil {
		return cue.Value{}, &CompileError{Message: message(err)}
	}
	v.compiled[key] = c
	return c, nil
}

// normalize turns whole float64 values into int64 so decoded JSON numbers
// satisfy integer types.
func normalize(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return int64(x)
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

func message(err error) string {
	var parts []string
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := e.Path(); len(path) > 0 {
			msg = strings.Join(path, ".") + ": " + msg
		}
		parts = append(parts, msg)
	}
	if len(parts) == 0 {
		return err.Error()
	}
	return strings.Join(parts, "; ")
}
