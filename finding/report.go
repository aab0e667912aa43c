package finding

import (
	"fmt"
	"time"
)

// minClaimLen forces the claim assertion to be a real sentence, not a tag.
const minClaimLen = 20

// Report is one vulnerability report tracked by the store.
type Report struct {
	// ID is the store-assigned identifier, format vuln-NNNN.
	ID string `json:"id"`

	// Title is a short human-readable summary.
	Title string `json:"title"`

	// Content is the full prose description.
	Content string `json:"content"`

	// Severity is the reporter-assessed severity.
	Severity Severity `json:"severity"`

	// VulnerabilityType references an entry in the vulnerability type
	// registry; it determines the required control tests.
	VulnerabilityType string `json:"vulnerability_type"`

	// ClaimAssertion is the single falsifiable claim the evidence proves.
	ClaimAssertion string `json:"claim_assertion"`

	// Evidence is the structured proof package.
	Evidence Evidence `json:"evidence"`

	// Status is the queue the report currently lives in.
	Status Status `json:"status"`

	// VerificationAttempts counts verifier attempts on this report.
	VerificationAttempts int `json:"verification_attempts"`

	// ReportedBy is the id of the agent that submitted the report.
	ReportedBy string `json:"reported_by,omitempty"`

	// CreatedAt is when the report entered the store.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the report last changed.
	UpdatedAt time.Time `json:"updated_at"`

	// VerifiedAt is when the report was finalized, if it was.
	VerifiedAt time.Time `json:"verified_at,omitzero"`

	// VerificationEvidence holds the verifier's two-phase evidence for
	// verified reports.
	VerificationEvidence map[string]any `json:"verification_evidence,omitempty"`

	// VerificationNotes are the verifier's free-text notes.
	VerificationNotes string `json:"verification_notes,omitempty"`

	// RejectionReason explains a rejection.
	RejectionReason string `json:"rejection_reason,omitempty"`

	// ReviewReason explains why the report needs manual review.
	ReviewReason string `json:"review_reason,omitempty"`
}

// Validate checks the report's submission fields. Evidence is validated
// separately by the store, which knows the type's required control tests.
func (r *Report) Validate() error {
	if r.Title == "" {
		return fmt.Errorf("report title cannot be empty")
	}
	if r.Content == "" {
		return fmt.Errorf("report content cannot be empty")
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("invalid severity %q", r.Severity)
	}
	if r.VulnerabilityType == "" {
		return fmt.Errorf("vulnerability_type cannot be empty")
	}
	if len(r.ClaimAssertion) < minClaimLen {
		return fmt.Errorf("claim_assertion must be at least %d characters", minClaimLen)
	}
	return nil
}
