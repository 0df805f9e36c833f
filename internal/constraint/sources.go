package constraint

// Sources holds the raw constraint found at each tier for one property.
// A nil or empty dictionary means the tier declares nothing.
type Sources struct {
	Datatype Raw `json:"datatype_constraints,omitempty"`
	Property Raw `json:"property_constraints,omitempty"`
	Runtime  Raw `json:"runtime_constraint,omitempty"`
}

// Any reports whether at least one tier declares a constraint.
func (s Sources) Any() bool {
	return len(s.Datatype) > 0 || len(s.Property) > 0 || len(s.Runtime) > 0
}

// Select picks the tier to test: runtime, else property, else datatype.
// The first non-empty tier wins outright; tiers are not layered.
func (s Sources) Select() (Raw, Tier, bool) {
	switch {
	case len(s.Runtime) > 0:
		return s.Runtime, TierRuntime, true
	case len(s.Property) > 0:
		return s.Property, TierProperty, true
	case len(s.Datatype) > 0:
		return s.Datatype, TierDatatype, true
	default:
		return nil, 0, false
	}
}
