package telemetry

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/zero-day-ai/swarm/finding"
	"github.com/zero-day-ai/swarm/vulntype"
)

func seededStore(t *testing.T) *finding.Store {
	t.Helper()
	store := finding.NewStore(vulntype.MustLoadDefault())

	evidence := finding.Evidence{
		PrimaryEvidence: []finding.HTTPExchange{{
			Method:         "GET",
			URL:            "https://example.test/search?q=x",
			ResponseStatus: 200,
			Timestamp:      "2026-08-25T10:00:00Z",
		}},
		ReproductionSteps: []finding.ReproductionStep{{
			StepNumber:     1,
			Description:    "Send the payload in the q parameter",
			ExpectedResult: "reflection",
			ActualResult:   "reflection",
		}},
		PoCPayload:                 "<script>alert(1)</script>",
		TargetURL:                  "https://example.test/search",
		ReproductionCount:          3,
		NegativeControlPassed:      true,
		NegativeControlDescription: "encoded variant stayed inert in responses",
		ControlTests: []finding.ControlTest{
			{
				Name: "payload_reflection_check", Description: "raw reflects",
				Request: "GET /search", ExpectedIfVulnerable: "verbatim",
				ExpectedIfNotVulnerable: "encoded", Actual: "verbatim",
				Conclusion: finding.ConclusionVulnerable,
			},
			{
				Name: "encoded_payload_control", Description: "encoded inert",
				Request: "GET /search", ExpectedIfVulnerable: "raw only",
				ExpectedIfNotVulnerable: "both inert", Actual: "raw only",
				Conclusion: finding.ConclusionVulnerable,
			},
		},
	}

	for i, verdict := range []string{"verify", "reject", "keep"} {
		id, err := store.AddPending(finding.Report{
			Title:             "Reflected XSS in search",
			Content:           "q reflects unsanitized input.",
			Severity:          finding.SeverityHigh,
			VulnerabilityType: "reflected_xss",
			ClaimAssertion:    "Unsanitized q input executes as script.",
			Evidence:          evidence,
			ReportedBy:        "root",
		})
		require.NoError(t, err, i)
		switch verdict {
		case "verify":
			require.NoError(t, store.Finalize(id, map[string]any{"phase1_reproduction": map[string]any{"reproduction_count": 3}}, "solid"))
		case "reject":
			require.NoError(t, store.Reject(id, "not reproducible", ""))
		}
	}
	return store
}

func TestTracer_FlushWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	store := seededStore(t)

	tracer, err := NewTracer(TracerConfig{
		RunDir: filepath.Join(dir, "run-001"),
		ScanID: "scan-001",
		Store:  store,
	})
	require.NoError(t, err)

	tracer.SetFinalReport("# Penetration Test Report\n\nOne verified finding.")
	require.NoError(t, tracer.Flush(context.Background()))

	run := filepath.Join(dir, "run-001")

	report, err := os.ReadFile(filepath.Join(run, "penetration_test_report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "One verified finding")

	vuln, err := os.ReadFile(filepath.Join(run, "vulnerabilities", "vuln-0001.md"))
	require.NoError(t, err)
	assert.Contains(t, string(vuln), "# vuln-0001: Reflected XSS in search")
	assert.Contains(t, string(vuln), "## Verification Evidence")

	csvIndex, err := os.ReadFile(filepath.Join(run, "findings.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(csvIndex), "vuln-0001")
	assert.Contains(t, string(csvIndex), "vuln-0002")
	assert.Contains(t, string(csvIndex), "vuln-0003")

	var pending []finding.Report
	raw, err := os.ReadFile(filepath.Join(run, "pending.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "vuln-0003", pending[0].ID)

	var rejected []finding.Report
	raw, err = os.ReadFile(filepath.Join(run, "rejected.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &rejected))
	require.Len(t, rejected, 1)
	assert.Equal(t, "not reproducible", rejected[0].RejectionReason)
}

func TestTracer_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewTracer(TracerConfig{
		Store:    seededStore(t),
		Exporter: exporter,
	})
	require.NoError(t, err)

	ctx, span := tracer.StartIteration(context.Background(), "agent-1", 7)
	tracer.RecordToolCall(ctx, "agent-1", "terminal_command", false)
	tracer.RecordLLMRequest(ctx, "agent-1", false)
	span.End()

	require.NoError(t, tracer.Flush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "agent.iteration", spans[0].Name)
}

func TestTracer_Singleton(t *testing.T) {
	tracer, err := NewTracer(TracerConfig{Store: seededStore(t)})
	require.NoError(t, err)

	Install(tracer)
	t.Cleanup(func() { Install(nil) })
	assert.Same(t, tracer, Current())
}

func TestTracer_RequiresStore(t *testing.T) {
	_, err := NewTracer(TracerConfig{})
	assert.Error(t, err)
}
