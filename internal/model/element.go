package model

import (
	"fmt"
	"math"
)

// ElementID addresses a property, method or event within a class
// hierarchy: Level is the depth of the defining class, Index the position
// within it.
type ElementID struct {
	Level int `json:"level"`
	Index int `json:"index"`
}

func (e ElementID) String() string {
	return fmt.Sprintf("%dp%d", e.Level, e.Index)
}

// PropertyID addresses a property.
type PropertyID = ElementID

// MethodID addresses a method.
type MethodID = ElementID

// ParseElementID converts a decoded {"level": n, "index": m} object.
func ParseElementID(v any) (ElementID, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return ElementID{}, fmt.Errorf("element id: expected object, got %T", v)
	}
	level, err := toInt(obj["level"])
	if err != nil {
		return ElementID{}, fmt.Errorf("element id level: %w", err)
	}
	index, err := toInt(obj["index"])
	if err != nil {
		return ElementID{}, fmt.Errorf("element id index: %w", err)
	}
	return ElementID{Level: level, Index: index}, nil
}

// NcObject properties.
var (
	PropClassID                    = PropertyID{Level: 1, Index: 1}
	PropOID                        = PropertyID{Level: 1, Index: 2}
	PropConstantOID                = PropertyID{Level: 1, Index: 3}
	PropOwner                      = PropertyID{Level: 1, Index: 4}
	PropRole                       = PropertyID{Level: 1, Index: 5}
	PropUserLabel                  = PropertyID{Level: 1, Index: 6}
	PropTouchpoints                = PropertyID{Level: 1, Index: 7}
	PropRuntimePropertyConstraints = PropertyID{Level: 1, Index: 8}
)

// NcBlock properties.
var (
	PropBlockEnabled = PropertyID{Level: 2, Index: 1}
	PropBlockMembers = PropertyID{Level: 2, Index: 2}
)

// NcClassManager properties.
var (
	PropControlClasses = PropertyID{Level: 3, Index: 1}
	PropDatatypes      = PropertyID{Level: 3, Index: 2}
)

// Standard methods.
var (
	MethodGet                  = MethodID{Level: 1, Index: 1}
	MethodSet                  = MethodID{Level: 1, Index: 2}
	MethodGetMemberDescriptors = MethodID{Level: 2, Index: 1}
	MethodGetControlClass      = MethodID{Level: 3, Index: 1}
	MethodGetDatatype          = MethodID{Level: 3, Index: 2}
)

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
