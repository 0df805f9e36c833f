package probe

import (
	"fmt"
	"strings"

	"github.com/roach88/ms05probe/internal/constraint"
	"github.com/roach88/ms05probe/internal/ncp"
)

// Check names one write attempt made against a property.
type Check string

const (
	CheckLegal         Check = "Legal value"
	CheckMinimum       Check = "Minimum"
	CheckMaximum       Check = "Maximum"
	CheckStep          Check = "Step"
	CheckPattern       Check = "Pattern"
	CheckMaxCharacters Check = "Max characters"

	// Failures that are not about enforcement but still fail the property.
	CheckConstraint Check = "Constraint"
	CheckRead       Check = "Read"
	CheckRestore    Check = "Restore"
)

// Violation is one failed check on one property.
type Violation struct {
	Property string          `json:"property"`
	Tier     constraint.Tier `json:"tier"`
	Check    Check           `json:"check"`
	Value    any             `json:"value,omitempty"`
	// Err is set when the device returned an error where none was
	// expected, or a read or write could not be completed.
	Err error `json:"-"`
}

func (v Violation) Error() string {
	switch v.Check {
	case CheckLegal:
		return fmt.Sprintf("%s %s constraint: legal value %v rejected for %s: %s", v.Tier, v.Check, v.Value, v.Property, ncp.Detail(v.Err))
	case CheckConstraint, CheckRead, CheckRestore:
		return fmt.Sprintf("%s failed for %s: %s", v.Check, v.Property, ncp.Detail(v.Err))
	default:
		if v.Err != nil {
			return fmt.Sprintf("%s %s constraint: no rejection of %v for %s: %s", v.Check, v.Tier, v.Value, v.Property, ncp.Detail(v.Err))
		}
		return fmt.Sprintf("%s %s constraint not enforced for %s", v.Check, v.Tier, v.Property)
	}
}

// Report accumulates the outcome of probing a set of properties.
type Report struct {
	Probed     int         `json:"probed"`
	Violations []Violation `json:"violations,omitempty"`
}

// Passed reports whether no violation was recorded.
func (r Report) Passed() bool {
	return len(r.Violations) == 0
}

// Merge appends other's counts and violations to r.
func (r *Report) Merge(other Report) {
	r.Probed += other.Probed
	r.Violations = append(r.Violations, other.Violations...)
}

// Message joins every violation into one line.
func (r Report) Message() string {
	parts := make([]string, len(r.Violations))
	for i, v := range r.Violations {
		parts[i] = v.Error()
	}
	return strings.Join(parts, "; ")
}
