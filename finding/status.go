package finding

// Status identifies which queue a report currently lives in.
type Status string

const (
	// StatusPendingVerification marks a freshly submitted report awaiting a
	// verifier decision.
	StatusPendingVerification Status = "pending_verification"

	// StatusVerified marks a report confirmed by two-phase verification.
	StatusVerified Status = "verified"

	// StatusRejected marks a report a verifier determined to be invalid.
	StatusRejected Status = "rejected"

	// StatusNeedsManualReview marks a report the pipeline could not decide:
	// verification timed out, the verifier hit its iteration cap, or the
	// verifier crashed.
	StatusNeedsManualReview Status = "needs_manual_review"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPendingVerification, StatusVerified, StatusRejected, StatusNeedsManualReview:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is one a report never leaves.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusVerified, StatusRejected, StatusNeedsManualReview:
		return true
	default:
		return false
	}
}
