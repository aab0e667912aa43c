package finding

import "fmt"

// Severity represents the severity level of a vulnerability report.
type Severity string

const (
	// SeverityCritical indicates a critical security issue requiring immediate attention.
	// Examples: Remote code execution, complete system compromise
	SeverityCritical Severity = "critical"

	// SeverityHigh indicates a high-impact security issue.
	// Examples: Privilege escalation, significant data exposure
	SeverityHigh Severity = "high"

	// SeverityMedium indicates a moderate security issue.
	// Examples: Limited information disclosure, partial DoS
	SeverityMedium Severity = "medium"

	// SeverityLow indicates a minor security issue.
	// Examples: Minor information leaks, cosmetic security issues
	SeverityLow Severity = "low"

	// SeverityInfo indicates an informational finding without direct security impact.
	// Examples: Security recommendations, best practice violations
	SeverityInfo Severity = "info"
)

// severityWeights maps severity levels to numeric weights for risk ranking.
var severityWeights = map[Severity]float64{
	SeverityCritical: 10.0,
	SeverityHigh:     7.5,
	SeverityMedium:   5.0,
	SeverityLow:      2.5,
	SeverityInfo:     1.0,
}

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// Weight returns the numeric weight associated with the severity level.
// Returns 0.0 for invalid severity levels.
func (s Severity) Weight() float64 {
	if weight, ok := severityWeights[s]; ok {
		return weight
	}
	return 0.0
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity converts a string to a Severity, validating it.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity %q: must be one of critical, high, medium, low, info", s)
	}
	return sev, nil
}
