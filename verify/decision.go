package verify

import (
	"fmt"

	"github.com/zero-day-ai/swarm/finding"
)

// MinReproductions is the reproduction count phase one must reach.
const MinReproductions = 3

// Phase1Reproduction is the verifier's independent reproduction evidence.
type Phase1Reproduction struct {
	// ReproductionCount is how many times the verifier reproduced the
	// finding itself.
	ReproductionCount int `json:"reproduction_count"`

	// Method describes how the reproductions were performed.
	Method string `json:"method,omitempty"`

	// Observations are free-form notes per reproduction.
	Observations []string `json:"observations,omitempty"`
}

// Phase2Validity is the verifier's validity assessment.
type Phase2Validity struct {
	// ValidityConfirmed is the verifier's verdict that the claim holds.
	ValidityConfirmed bool `json:"validity_confirmed"`

	// IndependentControlTests names the control tests the verifier ran
	// itself, independent of the reporter's.
	IndependentControlTests []string `json:"independent_control_tests"`

	// ValidityReasoning explains why the evidence supports the claim.
	ValidityReasoning string `json:"validity_reasoning"`
}

// Decision is one verifier's verdict on a report.
type Decision struct {
	// ReportID names the finding being decided.
	ReportID string `json:"report_id"`

	// Verified is the verdict.
	Verified bool `json:"verified"`

	// Phase1 and Phase2 are required when Verified is true.
	Phase1 *Phase1Reproduction `json:"phase1_reproduction,omitempty"`
	Phase2 *Phase2Validity     `json:"phase2_validity,omitempty"`

	// RejectionReason is required when Verified is false.
	RejectionReason string `json:"rejection_reason,omitempty"`

	// RejectionPhase says which phase failed, informative.
	RejectionPhase string `json:"rejection_phase,omitempty"`

	// Notes are free-form verifier commentary.
	Notes string `json:"notes,omitempty"`
}

// validate checks a decision's internal requirements against the report's
// vulnerability type. requiredTests are the registry's required
// control-test names for that type.
func (d *Decision) validate(requiredTests []string) error {
	if d.ReportID == "" {
		return fmt.Errorf("decision requires a report id")
	}
	if !d.Verified {
		if d.RejectionReason == "" {
			return fmt.Errorf("rejecting %s requires a rejection_reason", d.ReportID)
		}
		return nil
	}

	if d.Phase1 == nil {
		return fmt.Errorf("verifying %s requires phase1_reproduction evidence", d.ReportID)
	}
	if d.Phase1.ReproductionCount < MinReproductions {
		return fmt.Errorf("verifying %s requires at least %d reproductions, got %d",
			d.ReportID, MinReproductions, d.Phase1.ReproductionCount)
	}
	if d.Phase2 == nil {
		return fmt.Errorf("verifying %s requires phase2_validity evidence", d.ReportID)
	}
	if !d.Phase2.ValidityConfirmed {
		return fmt.Errorf("verifying %s requires phase2_validity.validity_confirmed = true; reject instead if validity failed", d.ReportID)
	}
	if len(d.Phase2.IndependentControlTests) == 0 {
		return fmt.Errorf("verifying %s requires at least one independent control test", d.ReportID)
	}
	if d.Phase2.ValidityReasoning == "" {
		return fmt.Errorf("verifying %s requires validity_reasoning", d.ReportID)
	}

	ran := finding.NormalizeTestNames(d.Phase2.IndependentControlTests)
	overlap := false
	for _, name := range requiredTests {
		if _, ok := ran[finding.NormalizeTestName(name)]; ok {
			overlap = true
			break
		}
	}
	if !overlap {
		return fmt.Errorf(
			"verifying %s: independent control tests %v share no name with the required control tests %v for this vulnerability type",
			d.ReportID, d.Phase2.IndependentControlTests, requiredTests)
	}
	return nil
}

// evidenceMap flattens the two phases into the verification-evidence map
// stored on the finalized report.
func (d *Decision) evidenceMap() map[string]any {
	out := map[string]any{
		"phase1_reproduction": map[string]any{
			"reproduction_count": d.Phase1.ReproductionCount,
			"method":             d.Phase1.Method,
			"observations":       d.Phase1.Observations,
		},
		"phase2_validity": map[string]any{
			"validity_confirmed":        d.Phase2.ValidityConfirmed,
			"independent_control_tests": d.Phase2.IndependentControlTests,
			"validity_reasoning":        d.Phase2.ValidityReasoning,
		},
	}
	return out
}
