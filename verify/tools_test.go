package verify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/finding"
	"github.com/zero-day-ai/swarm/graph"
	"github.com/zero-day-ai/swarm/tool"
)

func newToolFixture(t *testing.T) (*fixture, *tool.Registry, *agent.State, func() string) {
	t.Helper()
	f := newFixture(t)

	var finalReport string
	tools, err := NewTools(f.orch, f.store, f.graph, func(content string) {
		finalReport = content
	})
	require.NoError(t, err)

	r := tool.NewRegistry()
	require.NoError(t, tools.Register(r))

	rootState, err := agent.New("root", "coordinator")
	require.NoError(t, err)
	return f, r, rootState, func() string { return finalReport }
}

func callTool(t *testing.T, r *tool.Registry, st *agent.State, name string, args map[string]any) (map[string]any, error) {
	t.Helper()
	spec, ok := r.Lookup(name)
	require.True(t, ok, name)
	return spec.Call(context.Background(), st, args)
}

func evidenceArg(t *testing.T) map[string]any {
	t.Helper()
	raw, err := json.Marshal(validEvidence())
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestCreateVulnerabilityReportTool(t *testing.T) {
	f, r, root, _ := newToolFixture(t)

	out, err := callTool(t, r, root, "create_vulnerability_report", map[string]any{
		"title":              "Reflected XSS in search",
		"content":            "The q parameter reflects unsanitized input.",
		"severity":           "high",
		"vulnerability_type": "reflected_xss",
		"claim_assertion":    "Unsanitized input in q executes as script in responses.",
		"evidence":           evidenceArg(t),
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "vuln-0001", out["report_id"])

	// A verifier was spawned and the finding is pending.
	require.Len(t, f.launcher.launched(), 1)
	got, ok := f.store.Get("vuln-0001")
	require.True(t, ok)
	assert.Equal(t, finding.StatusPendingVerification, got.Status)
	assert.Equal(t, "root", got.ReportedBy)
}

func TestCreateVulnerabilityReportTool_InvalidEvidence(t *testing.T) {
	f, r, root, _ := newToolFixture(t)

	bad := evidenceArg(t)
	delete(bad, "poc_payload")
	out, err := callTool(t, r, root, "create_vulnerability_report", map[string]any{
		"title":              "Reflected XSS in search",
		"content":            "The q parameter reflects unsanitized input.",
		"severity":           "high",
		"vulnerability_type": "reflected_xss",
		"claim_assertion":    "Unsanitized input in q executes as script in responses.",
		"evidence":           bad,
	})
	require.NoError(t, err, "validation failures are structured results, not tool errors")
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["message"], "poc_payload")
	assert.Empty(t, f.launcher.launched())
	assert.Empty(t, f.store.Pending())
}

func TestVerifyVulnerabilityReportTool(t *testing.T) {
	f, r, root, _ := newToolFixture(t)
	report := f.addPending(t)

	out, err := callTool(t, r, root, "verify_vulnerability_report", map[string]any{
		"report_id": report.ID,
		"verified":  true,
		"phase1_reproduction": map[string]any{
			"reproduction_count": 3,
		},
		"phase2_validity": map[string]any{
			"validity_confirmed":        true,
			"independent_control_tests": []any{"payload reflection check"},
			"validity_reasoning":        "Reproduced three times with controls.",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "verified", out["outcome"])
	assert.True(t, f.store.IsReportVerified(report.ID))
}

func TestVerifyVulnerabilityReportTool_Hint(t *testing.T) {
	f, r, root, _ := newToolFixture(t)
	report := f.addPending(t)

	out, err := callTool(t, r, root, "verify_vulnerability_report", map[string]any{
		"report_id": report.ID,
		"verified":  true,
		"phase1_reproduction": map[string]any{
			"reproduction_count": 1,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["hint"], "at least 3 reproductions")

	got, _ := f.store.Get(report.ID)
	assert.Equal(t, finding.StatusPendingVerification, got.Status)
}

func TestAgentFinishTool_VerifierGate(t *testing.T) {
	f, r, _, _ := newToolFixture(t)
	report := f.addPending(t)

	require.NoError(t, f.graph.AddNode(graph.Node{
		ID: "verifier-1", Name: "verify-" + report.ID, ParentID: "root",
		Kind: graph.KindVerification, ReportID: report.ID,
	}))
	verifierState, err := agent.New("verifier-1", "verify-"+report.ID)
	require.NoError(t, err)

	_, err = callTool(t, r, verifierState, "agent_finish", map[string]any{"result": "done"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still pending verification")

	require.NoError(t, f.orch.RecordDecision(validDecision(report.ID)))
	out, err := callTool(t, r, verifierState, "agent_finish", map[string]any{"result": "decision recorded"})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
}

func TestAgentFinishTool_ReportsToParent(t *testing.T) {
	f, r, _, _ := newToolFixture(t)

	require.NoError(t, f.graph.AddNode(graph.Node{
		ID: "child-1", Name: "recon", ParentID: "root",
		Kind: graph.KindAgent, Task: "enumerate endpoints",
	}))
	childState, err := agent.New("child-1", "recon")
	require.NoError(t, err)

	out, err := callTool(t, r, childState, "agent_finish", map[string]any{"result": "Found 12 endpoints."})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, true, out["parent_notified"])

	// The parent's mailbox holds the completion report, so a parent
	// parked in wait_for_message resumes on its next tick.
	box := f.graph.Mailbox("root")
	require.Len(t, box, 1)
	env := box[0]
	assert.Equal(t, "child-1", env.From)
	assert.Equal(t, "recon", env.FromName)
	assert.Equal(t, graph.PriorityHigh, env.Priority)
	assert.Contains(t, env.Content, "<agent_completion_report>")
	assert.Contains(t, env.Content, "Found 12 endpoints.")
	assert.Contains(t, env.Content, "enumerate endpoints")
}

func TestAgentFinishTool_RootSkipsParentReport(t *testing.T) {
	_, r, root, _ := newToolFixture(t)

	out, err := callTool(t, r, root, "agent_finish", map[string]any{"result": "done"})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, false, out["parent_notified"])
}

func TestFinishScanTool(t *testing.T) {
	f, r, root, finalReport := newToolFixture(t)
	require.NoError(t, f.graph.SetStatus("root", graph.StatusRunning))

	report := f.addPending(t)
	_, err := callTool(t, r, root, "finish_scan", map[string]any{"report": "# Findings"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), report.ID)

	require.NoError(t, f.orch.RecordDecision(validDecision(report.ID)))
	out, err := callTool(t, r, root, "finish_scan", map[string]any{"report": "# Findings\nOne verified XSS."})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, 1, out["verified"])
	assert.Equal(t, "# Findings\nOne verified XSS.", finalReport())

	// Non-root agents may not finish the scan.
	other, err := agent.New("other", "scanner")
	require.NoError(t, err)
	_, err = callTool(t, r, other, "finish_scan", map[string]any{"report": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved for the root agent")
}
