package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ms05probe/internal/model"
)

// Scenario describes a suite run against a simulated device with injected
// faults, and the results that run must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what misbehaviour the scenario models.
	Description string `yaml:"description"`

	// Faults are applied to the simulated device before the suite runs.
	Faults []Fault `yaml:"faults,omitempty"`

	// ExcludeRoles are passed through to Config.ExcludedRoles.
	ExcludeRoles []string `yaml:"exclude_roles,omitempty"`

	// Selection answers the interactive property prompt with 1-based
	// indices. Nil runs the suite non-interactively.
	Selection *string `yaml:"selection,omitempty"`

	// Expect lists results the run must contain.
	Expect []Expectation `yaml:"expect"`
}

// Fault is one injected device misbehaviour.
type Fault struct {
	// Type is one of the Fault* constants.
	Type string `yaml:"type"`

	// OID is the object the fault applies to.
	OID int `yaml:"oid"`

	// Property is the affected property (lax, fail_get).
	Property model.PropertyID `yaml:"property"`

	// Status is the device status a failing Get returns (fail_get).
	// Defaults to 500.
	Status int `yaml:"status,omitempty"`

	// ClassID is the class of the object added (duplicate_manager).
	ClassID []int `yaml:"class_id,omitempty"`
}

// Fault type constants.
const (
	FaultLax              = "lax"
	FaultFailGet          = "fail_get"
	FaultDuplicateManager = "duplicate_manager"
)

// Expectation matches one result by name.
type Expectation struct {
	Name            string `yaml:"name"`
	State           State  `yaml:"state"`
	MessageContains string `yaml:"message_contains,omitempty"`
	Link            string `yaml:"link,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Expect) == 0 {
		return fmt.Errorf("expect list is required and must be non-empty")
	}

	for i, f := range s.Faults {
		if f.OID <= 0 {
			return fmt.Errorf("faults[%d]: oid is required", i)
		}
		switch f.Type {
		case FaultLax, FaultFailGet:
			if f.Property.Level == 0 || f.Property.Index == 0 {
				return fmt.Errorf("faults[%d]: property is required for %s", i, f.Type)
			}
		case FaultDuplicateManager:
			if len(f.ClassID) == 0 {
				return fmt.Errorf("faults[%d]: class_id is required for %s", i, f.Type)
			}
		case "":
			return fmt.Errorf("faults[%d]: type is required", i)
		default:
			return fmt.Errorf("faults[%d]: unknown fault type %q", i, f.Type)
		}
	}

	for i, e := range s.Expect {
		if e.Name == "" {
			return fmt.Errorf("expect[%d]: name is required", i)
		}
		switch e.State {
		case StatePass, StateFail, StateUnclear:
		default:
			return fmt.Errorf("expect[%d]: state must be PASS, FAIL or UNCLEAR, got %q", i, e.State)
		}
	}
	return nil
}
