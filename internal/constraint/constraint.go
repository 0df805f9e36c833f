// Package constraint normalizes the constraint dictionaries a device
// declares for its properties.
//
// Constraints reach the harness from three tiers: the property's datatype
// descriptor, the control class property descriptor, and the object's
// runtime property constraints list. Each tier may use either the
// NcParameterConstraints* or the NcPropertyConstraints* shape; Upcast folds
// both into one Parameter value.
package constraint

import (
	"fmt"
	"math"
)

// Tier names the source of a constraint.
type Tier int

const (
	TierDatatype Tier = iota
	TierProperty
	TierRuntime
)

func (t Tier) String() string {
	switch t {
	case TierDatatype:
		return "datatype"
	case TierProperty:
		return "property"
	case TierRuntime:
		return "runtime"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// Raw is a constraint dictionary as decoded from the device.
type Raw = map[string]any

// Parameter is the normalized constraint: Number, String or Base.
type Parameter interface {
	// TypeName is the MS-05 datatype the constraint corresponds to.
	TypeName() string
	parameter()
}

// Number constrains numeric properties. Nil fields are undeclared.
type Number struct {
	Minimum *float64
	Maximum *float64
	Step    *float64
}

func (Number) TypeName() string { return "NcParameterConstraintsNumber" }
func (Number) parameter()       {}

// String constrains string properties. Nil fields are undeclared.
type String struct {
	Pattern       *string
	MaxCharacters *int
}

func (String) TypeName() string { return "NcParameterConstraintsString" }
func (String) parameter()       {}

// Base is a constraint declaring no numeric or string fields, typically
// just a defaultValue. It constrains nothing that can be probed.
type Base struct {
	DefaultValue any
}

func (Base) TypeName() string { return "NcParameterConstraints" }
func (Base) parameter()       {}

// Upcast inspects which fields raw declares and returns the matching
// Parameter. Field presence decides the shape even when the value is null.
// The propertyId key carried by runtime constraints is ignored.
func Upcast(raw Raw) (Parameter, error) {
	_, hasMin := raw["minimum"]
	_, hasMax := raw["maximum"]
	_, hasStep := raw["step"]
	if hasMin || hasMax || hasStep {
		var n Number
		var err error
		if n.Minimum, err = optionalFloat(raw, "minimum"); err != nil {
			return nil, err
		}
		if n.Maximum, err = optionalFloat(raw, "maximum"); err != nil {
			return nil, err
		}
		if n.Step, err = optionalFloat(raw, "step"); err != nil {
			return nil, err
		}
		if n.Step != nil && *n.Step <= 0 {
			return nil, fmt.Errorf("step must be positive, got %v", *n.Step)
		}
		return n, nil
	}

	_, hasPattern := raw["pattern"]
	_, hasMaxChars := raw["maxCharacters"]
	if hasPattern || hasMaxChars {
		var s String
		if v, ok := raw["pattern"].(string); ok {
			s.Pattern = &v
		} else if raw["pattern"] != nil {
			return nil, fmt.Errorf("pattern: expected string, got %T", raw["pattern"])
		}
		f, err := optionalFloat(raw, "maxCharacters")
		if err != nil {
			return nil, err
		}
		if f != nil {
			if *f != math.Trunc(*f) || *f < 0 {
				return nil, fmt.Errorf("maxCharacters: expected non-negative integer, got %v", *f)
			}
			n := int(*f)
			s.MaxCharacters = &n
		}
		return s, nil
	}

	return Base{DefaultValue: raw["defaultValue"]}, nil
}

func optionalFloat(raw Raw, key string) (*float64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch n := v.(type) {
	case float64:
		return &n, nil
	case int:
		f := float64(n)
		return &f, nil
	case int64:
		f := float64(n)
		return &f, nil
	default:
		return nil, fmt.Errorf("%s: expected number, got %T", key, v)
	}
}
