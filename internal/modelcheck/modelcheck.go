// Package modelcheck compares the descriptors a device reports against
// reference descriptors, structurally and by JSON Schema.
package modelcheck

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/roach88/ms05probe/internal/model"
)

// ErrNotImplemented marks a reference key the device does not report.
var ErrNotImplemented = errors.New("not implemented")

// MismatchError reports where an observed descriptor departs from its
// reference. Context is the "key->key->" path to the offending value.
type MismatchError struct {
	Context string
	Message string
}

func (e *MismatchError) Error() string {
	return e.Context + e.Message
}

// SchemaError reports a payload that could not be checked against, or
// failed, its schema.
type SchemaError struct {
	Context string
	Message string
}

func (e *SchemaError) Error() string {
	return e.Context + e.Message
}

// SchemaValidator checks a payload against a JSON Schema. An error for a
// schema that cannot be used at all should implement BrokenSchema.
type SchemaValidator interface {
	Validate(payload any, schema map[string]any) error
}

// BrokenSchema is implemented by validator errors caused by the schema
// rather than the payload.
type BrokenSchema interface {
	error
	SchemaProblem() string
}

// nonNormative keys are skipped unless their reference value is an object.
var nonNormative = map[string]bool{"description": true}

// ValidateDescriptor compares observed against reference.
//
// Objects must have the same key set. Arrays are compared as objects keyed
// by each element's name, so order does not matter. A classId array is
// compared as a whole. Everything else must be equal.
func ValidateDescriptor(reference, observed any, context string) error {
	switch ref := reference.(type) {
	case map[string]any:
		obs, ok := observed.(map[string]any)
		if !ok {
			return &MismatchError{Context: context, Message: fmt.Sprintf("Expected object, actual value: %v", observed)}
		}
		if diff := keyDiff(ref, obs); len(diff) > 0 {
			kind := "Additional keys "
			if subset(diff, ref) {
				kind = "Missing keys "
			}
			return &MismatchError{Context: context, Message: kind + fmt.Sprint(diff)}
		}
		for _, key := range sortedKeys(ref) {
			refValue := ref[key]
			if _, isObject := refValue.(map[string]any); nonNormative[key] && !isObject {
				continue
			}
			if _, isList := refValue.([]any); key == "classId" && isList {
				if !reflect.DeepEqual(refValue, obs[key]) {
					return &MismatchError{
						Context: context,
						Message: fmt.Sprintf("Unexpected ClassId. Expected: %v actual: %v", refValue, obs[key]),
					}
				}
				continue
			}
			if err := ValidateDescriptor(refValue, obs[key], context+key+"->"); err != nil {
				return err
			}
		}
		return nil

	case []any:
		obs, ok := observed.([]any)
		if !ok {
			return &MismatchError{Context: context, Message: fmt.Sprintf("Expected array, actual value: %v", observed)}
		}
		return ValidateDescriptor(byName(ref), byName(obs), context)

	default:
		if !reflect.DeepEqual(reference, observed) {
			return &MismatchError{
				Context: context,
				Message: fmt.Sprintf("Expected value: %v, actual value: %v", reference, observed),
			}
		}
		return nil
	}
}

// ValidateSchema checks payload against schema. A nil schema fails.
func ValidateSchema(v SchemaValidator, payload any, schema map[string]any, context string) error {
	if schema == nil {
		return &SchemaError{Context: context, Message: "Missing schema. "}
	}
	if err := v.Validate(payload, schema); err != nil {
		var broken BrokenSchema
		if errors.As(err, &broken) {
			return &SchemaError{Context: context, Message: "Schema error: " + broken.SchemaProblem()}
		}
		return &SchemaError{Context: context, Message: "Schema validation error: " + err.Error()}
	}
	return nil
}

// KeyResult is the outcome for one reference key: nil Err passes,
// ErrNotImplemented is inconclusive, anything else fails.
type KeyResult struct {
	Key string
	Err error
}

// ValidateModelDefinitions checks each reference key, in sorted order,
// against the observed descriptor with the same key: schema first, then
// structure. Keys are independent of one another.
func ValidateModelDefinitions(v SchemaValidator, observed map[string]model.Descriptor, schema map[string]any, reference map[string]model.Descriptor) []KeyResult {
	keys := make([]string, 0, len(reference))
	for k := range reference {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]KeyResult, 0, len(keys))
	for _, key := range keys {
		desc, ok := observed[key]
		if !ok || len(desc) == 0 {
			results = append(results, KeyResult{Key: key, Err: ErrNotImplemented})
			continue
		}
		err := ValidateSchema(v, desc, schema, "")
		if err == nil {
			err = ValidateDescriptor(reference[key], desc, "")
		}
		results = append(results, KeyResult{Key: key, Err: err})
	}
	return results
}

func keyDiff(a, b map[string]any) []string {
	var diff []string
	for k := range a {
		if _, ok := b[k]; !ok {
			diff = append(diff, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			diff = append(diff, k)
		}
	}
	sort.Strings(diff)
	return diff
}

func subset(keys []string, m map[string]any) bool {
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// byName re-keys a list of objects by their name field. A later element
// replaces an earlier one with the same name.
func byName(list []any) map[string]any {
	out := make(map[string]any, len(list))
	for _, elem := range list {
		obj, _ := elem.(map[string]any)
		name, _ := obj["name"].(string)
		out[name] = elem
	}
	return out
}
