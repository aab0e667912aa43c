package vulntype

import "fmt"

// ControlTestSpec declares one control test a vulnerability type requires
// before a report of that type can be submitted.
type ControlTestSpec struct {
	// Name is the canonical test name; reporter test names are matched
	// against it after normalization.
	Name string `yaml:"name" json:"name"`

	// Description explains what the test establishes.
	Description string `yaml:"description" json:"description"`

	// HowToTest is a template describing how to perform the test.
	HowToTest string `yaml:"how_to_test" json:"how_to_test"`

	// SuccessCriteria describes the outcome that confirms the vulnerability.
	SuccessCriteria string `yaml:"success_criteria" json:"success_criteria"`

	// FailureIndicates describes what a failing test means.
	FailureIndicates string `yaml:"failure_indicates" json:"failure_indicates"`
}

// Validate checks the control test spec for required fields.
func (c *ControlTestSpec) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("control test name cannot be empty")
	}
	if c.Description == "" {
		return fmt.Errorf("control test %q: description cannot be empty", c.Name)
	}
	return nil
}

// Type is one entry in the vulnerability type registry.
type Type struct {
	// ID is the type identifier referenced by reports.
	ID string `yaml:"id" json:"id"`

	// Name is the display name.
	Name string `yaml:"name" json:"name"`

	// Claim is the semantic claim every report of this type asserts.
	Claim string `yaml:"claim" json:"claim"`

	// RequiredControlTests must all be covered by a report's control tests.
	RequiredControlTests []ControlTestSpec `yaml:"required_control_tests" json:"required_control_tests"`

	// ValidityCriteria are CEL expressions over (report, evidence) that
	// should hold for a genuine instance of this class.
	ValidityCriteria []string `yaml:"validity_criteria" json:"validity_criteria,omitempty"`

	// FalsePositivePatterns are CEL expressions that evaluate true when
	// the report matches a known false-positive shape.
	FalsePositivePatterns []string `yaml:"false_positive_patterns" json:"false_positive_patterns,omitempty"`
}

// Validate checks the type entry for required fields.
func (t *Type) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("type id cannot be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("type %q: name cannot be empty", t.ID)
	}
	if t.Claim == "" {
		return fmt.Errorf("type %q: claim cannot be empty", t.ID)
	}
	if len(t.RequiredControlTests) == 0 {
		return fmt.Errorf("type %q: at least one required control test", t.ID)
	}
	for i := range t.RequiredControlTests {
		if err := t.RequiredControlTests[i].Validate(); err != nil {
			return fmt.Errorf("type %q: %w", t.ID, err)
		}
	}
	return nil
}

// RequiredTestNames returns the names of the required control tests.
func (t *Type) RequiredTestNames() []string {
	names := make([]string, len(t.RequiredControlTests))
	for i, ct := range t.RequiredControlTests {
		names[i] = ct.Name
	}
	return names
}
