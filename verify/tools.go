package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/zero-day-ai/swarm/finding"
	"github.com/zero-day-ai/swarm/graph"
	"github.com/zero-day-ai/swarm/tool"
)

// Tools builds the finding and finish tools that close the loop between
// agents, the store, and the orchestrator.
type Tools struct {
	orch         *Orchestrator
	store        *finding.Store
	graph        *graph.Graph
	onFinishScan func(content string)
	log          *slog.Logger
}

// NewTools wires the tool implementations. onFinishScan receives the root
// agent's final report content on a successful finish_scan; it may be nil.
func NewTools(orch *Orchestrator, store *finding.Store, g *graph.Graph, onFinishScan func(string)) (*Tools, error) {
	if orch == nil || store == nil || g == nil {
		return nil, fmt.Errorf("verify tools require an orchestrator, store, and graph")
	}
	return &Tools{
		orch:         orch,
		store:        store,
		graph:        g,
		onFinishScan: onFinishScan,
		log:          slog.Default(),
	}, nil
}

// Register adds create_vulnerability_report, verify_vulnerability_report,
// agent_finish, and finish_scan to a registry.
func (t *Tools) Register(r *tool.Registry) error {
	specs := []*tool.Config{
		tool.NewConfig().
			SetName("create_vulnerability_report").
			SetDescription("Submits a vulnerability finding with full evidence for verification. A verifier agent is spawned automatically.").
			AddParam("title", "short summary of the finding", true).
			AddParam("content", "full prose description", true).
			AddParam("severity", "one of critical, high, medium, low, info", true).
			AddParam("vulnerability_type", "type id from the vulnerability registry", true).
			AddParam("claim_assertion", "the single falsifiable claim the evidence proves", true).
			AddParam("evidence", "structured evidence object: http exchanges, reproduction steps, PoC, control tests", true).
			SetStateFunc(t.createReport),

		tool.NewConfig().
			SetName("verify_vulnerability_report").
			SetDescription("Records a verifier's decision on a pending finding. Verified decisions require phase 1 reproduction and phase 2 validity evidence.").
			AddParam("report_id", "id of the finding under verification", true).
			AddParam("verified", "true to confirm, false to reject", true).
			AddParam("phase1_reproduction", "reproduction evidence: reproduction_count, method, observations", false).
			AddParam("phase2_validity", "validity evidence: validity_confirmed, independent_control_tests, validity_reasoning", false).
			AddParam("rejection_reason", "required when verified is false", false).
			AddParam("rejection_phase", "which phase failed", false).
			AddParam("notes", "free-form commentary", false).
			SetFunc(t.verifyReport),

		tool.NewConfig().
			SetName("agent_finish").
			SetDescription("Ends this agent's run with a result summary. Verifier agents must record their decision first.").
			AddParam("result", "final summary of what was accomplished", true).
			SetTerminal(true).
			SetStateFunc(t.agentFinish),

		tool.NewConfig().
			SetName("finish_scan").
			SetDescription("Ends the whole scan with the final report. Root agent only; fails while other agents are active or findings are pending.").
			AddParam("report", "the final penetration test report in markdown", true).
			SetTerminal(true).
			SetStateFunc(t.finishScan),
	}

	for _, cfg := range specs {
		spec, err := cfg.Build()
		if err != nil {
			return err
		}
		if err := r.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tools) createReport(ctx context.Context, st tool.AgentState, args map[string]any) (map[string]any, error) {
	sev, err := finding.ParseSeverity(stringArg(args, "severity"))
	if err != nil {
		return failure(err.Error()), nil
	}

	var evidence finding.Evidence
	if err := decodeArg(args["evidence"], &evidence); err != nil {
		return failure(fmt.Sprintf("evidence is malformed: %v", err)), nil
	}

	report := finding.Report{
		Title:             stringArg(args, "title"),
		Content:           stringArg(args, "content"),
		Severity:          sev,
		VulnerabilityType: stringArg(args, "vulnerability_type"),
		ClaimAssertion:    stringArg(args, "claim_assertion"),
		Evidence:          evidence,
		ReportedBy:        st.AgentID(),
	}

	id, err := t.store.AddPending(report)
	if err != nil {
		return failure(err.Error()), nil
	}

	stored, _ := t.store.Get(id)
	if _, err := t.orch.StartVerification(ctx, stored, st.AgentID()); err != nil {
		t.log.Error("verifier spawn failed; finding stays pending", "report_id", id, "error", err)
		return map[string]any{
			"success":   true,
			"report_id": id,
			"warning":   "report accepted but verifier could not be started; it will need manual attention",
		}, nil
	}

	return map[string]any{
		"success":   true,
		"report_id": id,
		"message":   fmt.Sprintf("report %s accepted; a verifier agent is now reproducing it independently", id),
	}, nil
}

func (t *Tools) verifyReport(ctx context.Context, args map[string]any) (map[string]any, error) {
	var d Decision
	if err := decodeArg(args, &d); err != nil {
		return failure(fmt.Sprintf("decision is malformed: %v", err)), nil
	}

	if err := t.orch.RecordDecision(d); err != nil {
		return map[string]any{
			"success": false,
			"hint":    err.Error(),
		}, nil
	}

	outcome := "rejected"
	if d.Verified {
		outcome = "verified"
	}
	return map[string]any{
		"success":   true,
		"report_id": d.ReportID,
		"outcome":   outcome,
	}, nil
}

func (t *Tools) agentFinish(ctx context.Context, st tool.AgentState, args map[string]any) (map[string]any, error) {
	node, ok := t.graph.Node(st.AgentID())
	if ok && node.Kind == graph.KindVerification {
		if err := t.orch.AgentFinishGate(node.ReportID); err != nil {
			return nil, err
		}
	}

	result := stringArg(args, "result")
	notified := false
	if ok {
		notified = t.reportToParent(node, result)
	}
	return map[string]any{
		"success":         true,
		"result":          result,
		"parent_notified": notified,
	}, nil
}

// reportToParent hands the finishing agent's summary to its parent's
// mailbox, so a parent blocked in wait_for_message resumes as soon as
// the child is done. Root agents have no parent and skip this.
func (t *Tools) reportToParent(node graph.Node, summary string) bool {
	if node.ParentID == "" {
		return false
	}

	env := graph.NewEnvelope(node.ID, node.ParentID, completionReport(node, summary))
	env.FromName = node.Name
	env.Priority = graph.PriorityHigh
	if err := t.graph.Deliver(env); err != nil {
		t.log.Warn("completion report not delivered",
			"agent_id", node.ID, "parent_id", node.ParentID, "error", err)
		return false
	}
	return true
}

func completionReport(node graph.Node, summary string) string {
	return fmt.Sprintf(`<agent_completion_report>
<agent_name>%s</agent_name>
<agent_id>%s</agent_id>
<task>%s</task>
<status>completed</status>
<summary>
%s
</summary>
</agent_completion_report>`, node.Name, node.ID, node.Task, summary)
}

func (t *Tools) finishScan(ctx context.Context, st tool.AgentState, args map[string]any) (map[string]any, error) {
	if root := t.graph.Root(); root != "" && root != st.AgentID() {
		return nil, fmt.Errorf("finish_scan is reserved for the root agent; call agent_finish instead")
	}
	if err := t.orch.FinishScanGate(st.AgentID()); err != nil {
		return nil, err
	}

	content := stringArg(args, "report")
	if t.onFinishScan != nil {
		t.onFinishScan(content)
	}
	counts := t.store.Counts()
	return map[string]any{
		"success":  true,
		"verified": counts[finding.StatusVerified],
		"rejected": counts[finding.StatusRejected],
		"message":  "scan complete",
	}, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// decodeArg converts a loosely typed tool argument into a struct via a
// JSON round trip, so string-encoded objects and real maps both work.
func decodeArg(value any, out any) error {
	if s, ok := value.(string); ok {
		return json.Unmarshal([]byte(s), out)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func failure(msg string) map[string]any {
	return map[string]any{
		"success": false,
		"message": msg,
	}
}
