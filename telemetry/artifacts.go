package telemetry

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zero-day-ai/swarm/finding"
)

// writeArtifacts lays out the run directory:
//
//	<run>/penetration_test_report.md
//	<run>/vulnerabilities/<id>.md
//	<run>/findings.csv
//	<run>/pending.json, rejected.json, manual_review.json
func (t *Tracer) writeArtifacts() error {
	dir := t.cfg.RunDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create run dir: %w", err)
	}

	if report := t.FinalReport(); report != "" {
		path := filepath.Join(dir, "penetration_test_report.md")
		if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
			return fmt.Errorf("failed to write final report: %w", err)
		}
	}

	verified := t.cfg.Store.Verified()
	if len(verified) > 0 {
		vulnDir := filepath.Join(dir, "vulnerabilities")
		if err := os.MkdirAll(vulnDir, 0o755); err != nil {
			return fmt.Errorf("failed to create vulnerabilities dir: %w", err)
		}
		for _, r := range verified {
			path := filepath.Join(vulnDir, r.ID+".md")
			if err := os.WriteFile(path, []byte(renderFindingMarkdown(r)), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", r.ID, err)
			}
		}
	}

	if err := t.writeCSVIndex(filepath.Join(dir, "findings.csv")); err != nil {
		return err
	}

	queues := map[string][]finding.Report{
		"pending.json":       t.cfg.Store.Pending(),
		"rejected.json":      t.cfg.Store.Rejected(),
		"manual_review.json": t.cfg.Store.ManualReview(),
	}
	for name, reports := range queues {
		raw, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), raw, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}

func (t *Tracer) writeCSVIndex(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create findings index: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"id", "title", "severity", "type", "status", "attempts", "reported_by", "created_at"}); err != nil {
		return err
	}
	all := make([]finding.Report, 0)
	all = append(all, t.cfg.Store.Verified()...)
	all = append(all, t.cfg.Store.Pending()...)
	all = append(all, t.cfg.Store.Rejected()...)
	all = append(all, t.cfg.Store.ManualReview()...)
	for _, r := range all {
		row := []string{
			r.ID,
			r.Title,
			r.Severity.String(),
			r.VulnerabilityType,
			r.Status.String(),
			strconv.Itoa(r.VerificationAttempts),
			r.ReportedBy,
			r.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func renderFindingMarkdown(r finding.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s: %s\n\n", r.ID, r.Title)
	fmt.Fprintf(&b, "- **Severity:** %s\n", r.Severity)
	fmt.Fprintf(&b, "- **Type:** %s\n", r.VulnerabilityType)
	fmt.Fprintf(&b, "- **Reported by:** %s\n", r.ReportedBy)
	fmt.Fprintf(&b, "- **Verified at:** %s\n\n", r.VerifiedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "## Claim\n\n%s\n\n", r.ClaimAssertion)
	fmt.Fprintf(&b, "## Description\n\n%s\n\n", r.Content)

	fmt.Fprintf(&b, "## Proof of Concept\n\n```\n%s\n```\n\n", r.Evidence.PoCPayload)
	fmt.Fprintf(&b, "Target: %s\n\n", r.Evidence.TargetURL)

	if len(r.Evidence.ReproductionSteps) > 0 {
		b.WriteString("## Reproduction\n\n")
		for _, step := range r.Evidence.ReproductionSteps {
			fmt.Fprintf(&b, "%d. %s\n   - expected: %s\n   - actual: %s\n",
				step.StepNumber, step.Description, step.ExpectedResult, step.ActualResult)
		}
		b.WriteString("\n")
	}

	if len(r.VerificationEvidence) > 0 {
		raw, err := json.MarshalIndent(r.VerificationEvidence, "", "  ")
		if err == nil {
			fmt.Fprintf(&b, "## Verification Evidence\n\n```json\n%s\n```\n", raw)
		}
	}
	if r.VerificationNotes != "" {
		fmt.Fprintf(&b, "\n## Verifier Notes\n\n%s\n", r.VerificationNotes)
	}
	return b.String()
}
