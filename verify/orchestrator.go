package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/finding"
	"github.com/zero-day-ai/swarm/graph"
	"github.com/zero-day-ai/swarm/vulntype"
)

// DefaultTimeout is the watchdog window from verifier spawn to decision.
const DefaultTimeout = 600 * time.Second

// Manual-review reasons the orchestrator records.
const (
	ReasonVerificationTimeout = "verification_timeout"
	ReasonMaxIterations       = "max_iterations_without_decision"
	ReasonAgentException      = "agent_exception"
)

// LaunchRequest describes the verifier agent the orchestrator wants
// started. The launcher owns loop construction and the worker goroutine.
type LaunchRequest struct {
	NodeID        string
	Name          string
	ParentID      string
	ReportID      string
	Task          string
	MaxIterations int
}

// Launcher starts verifier agent loops. Implemented by the scan runtime.
type Launcher interface {
	LaunchVerifier(ctx context.Context, req LaunchRequest) error
}

// Orchestrator drives the verification pipeline for one scan.
type Orchestrator struct {
	store    *finding.Store
	types    *vulntype.Registry
	graph    *graph.Graph
	launcher Launcher
	timeout  time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	watchdogs map[string]*time.Timer
}

// OrchestratorOption customizes an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithTimeout overrides the verification watchdog window.
func WithTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithLogger sets the orchestrator logger.
func WithLogger(l *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = l }
}

// NewOrchestrator wires the verification pipeline.
func NewOrchestrator(store *finding.Store, types *vulntype.Registry, g *graph.Graph, launcher Launcher, opts ...OrchestratorOption) (*Orchestrator, error) {
	if store == nil || types == nil || g == nil || launcher == nil {
		return nil, fmt.Errorf("orchestrator requires a store, type registry, graph, and launcher")
	}
	o := &Orchestrator{
		store:     store,
		types:     types,
		graph:     g,
		launcher:  launcher,
		timeout:   DefaultTimeout,
		log:       slog.Default(),
		watchdogs: make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// StartVerification spawns a verifier agent for a freshly added pending
// report and arms its watchdog. Returns the verifier's node id.
func (o *Orchestrator) StartVerification(ctx context.Context, report finding.Report, parentID string) (string, error) {
	nodeID := uuid.New().String()
	name := "verify-" + report.ID

	node := graph.Node{
		ID:       nodeID,
		Name:     name,
		ParentID: parentID,
		Kind:     graph.KindVerification,
		ReportID: report.ID,
	}
	if err := o.graph.AddNode(node); err != nil {
		return "", fmt.Errorf("failed to add verifier node: %w", err)
	}

	if err := o.store.IncrementVerificationAttempt(report.ID); err != nil {
		o.log.Warn("could not bump verification attempt", "report_id", report.ID, "error", err)
	}

	req := LaunchRequest{
		NodeID:        nodeID,
		Name:          name,
		ParentID:      parentID,
		ReportID:      report.ID,
		Task:          verifierTask(report),
		MaxIterations: agent.VerifierMaxIterations,
	}
	if err := o.launcher.LaunchVerifier(ctx, req); err != nil {
		o.finishWatchdog(report.ID)
		return "", fmt.Errorf("failed to launch verifier for %s: %w", report.ID, err)
	}

	o.armWatchdog(report.ID, nodeID)
	o.log.Info("verifier started", "report_id", report.ID, "verifier_id", nodeID)
	return nodeID, nil
}

func (o *Orchestrator) armWatchdog(reportID, nodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, exists := o.watchdogs[reportID]; exists {
		t.Stop()
	}
	o.watchdogs[reportID] = time.AfterFunc(o.timeout, func() {
		o.onTimeout(reportID, nodeID)
	})
}

// finishWatchdog stops and forgets the report's watchdog. Returns true if
// a live watchdog was present.
func (o *Orchestrator) finishWatchdog(reportID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.watchdogs[reportID]
	if !ok {
		return false
	}
	t.Stop()
	delete(o.watchdogs, reportID)
	return true
}

func (o *Orchestrator) onTimeout(reportID, nodeID string) {
	if !o.finishWatchdog(reportID) {
		return
	}
	o.log.Warn("verification timed out", "report_id", reportID, "verifier_id", nodeID)

	err := o.store.AddToManualReview(reportID, ReasonVerificationTimeout,
		fmt.Sprintf("verifier did not decide within %s", o.timeout))
	if err != nil {
		// Decision raced the timer; the terminal queue wins.
		o.log.Debug("timeout lost the race to a decision", "report_id", reportID, "error", err)
		return
	}
	if err := o.graph.SetStatus(nodeID, graph.StatusTimeout); err != nil {
		o.log.Debug("verifier node already terminal", "verifier_id", nodeID, "error", err)
	}
}

// RecordDecision applies a verifier's verdict: finalize on verified,
// reject otherwise. The watchdog is cancelled on either outcome.
func (o *Orchestrator) RecordDecision(d Decision) error {
	report, ok := o.store.Get(d.ReportID)
	if !ok {
		return fmt.Errorf("unknown report %s", d.ReportID)
	}
	if report.Status != finding.StatusPendingVerification {
		return fmt.Errorf("report %s is already %s", d.ReportID, report.Status)
	}

	requiredTests, _ := o.types.RequiredControlTests(report.VulnerabilityType)
	if err := d.validate(requiredTests); err != nil {
		return err
	}

	if d.Verified {
		o.logValiditySignals(report)
		if err := o.store.Finalize(d.ReportID, d.evidenceMap(), d.Notes); err != nil {
			return err
		}
	} else {
		reason := d.RejectionReason
		if d.RejectionPhase != "" {
			reason = fmt.Sprintf("[%s] %s", d.RejectionPhase, reason)
		}
		if err := o.store.Reject(d.ReportID, reason, d.Notes); err != nil {
			return err
		}
	}

	o.finishWatchdog(d.ReportID)
	o.log.Info("verification decided", "report_id", d.ReportID, "verified", d.Verified)
	return nil
}

// logValiditySignals runs the type's validity criteria and false-positive
// patterns as advisory checks and logs anything suspicious.
func (o *Orchestrator) logValiditySignals(report finding.Report) {
	signals, err := o.types.EvaluateValidity(report.VulnerabilityType, report)
	if err != nil {
		o.log.Debug("validity criteria unavailable", "report_id", report.ID, "error", err)
		return
	}
	for _, sig := range signals {
		if !sig.Matched {
			o.log.Warn("validity criterion not satisfied by report evidence",
				"report_id", report.ID, "expression", sig.Expression, "eval_error", sig.Err)
		}
	}
	fps, err := o.types.MatchFalsePositives(report.VulnerabilityType, report)
	if err != nil {
		return
	}
	for _, sig := range fps {
		if sig.Matched {
			o.log.Warn("report matches a known false-positive pattern",
				"report_id", report.ID, "expression", sig.Expression)
		}
	}
}

// VerifierExited records a verifier loop that ended without a decision:
// the report moves to manual review with a reason. No-op when the report
// already reached a terminal queue.
func (o *Orchestrator) VerifierExited(reportID string, failed bool) {
	o.finishWatchdog(reportID)

	report, ok := o.store.Get(reportID)
	if !ok || report.Status != finding.StatusPendingVerification {
		return
	}

	reason := ReasonMaxIterations
	if failed {
		reason = ReasonAgentException
	}
	if err := o.store.AddToManualReview(reportID, reason,
		"verifier exited without calling verify_vulnerability_report"); err != nil {
		o.log.Debug("manual review skipped", "report_id", reportID, "error", err)
		return
	}
	o.log.Warn("verifier exited without a decision", "report_id", reportID, "reason", reason)
}

// AgentFinishGate rejects a verifier's agent_finish while its report is
// still pending.
func (o *Orchestrator) AgentFinishGate(reportID string) error {
	if reportID == "" {
		return nil
	}
	if o.store.IsReportVerified(reportID) {
		return nil
	}
	return fmt.Errorf(
		"report %s is still pending verification: call verify_vulnerability_report with your decision before agent_finish",
		reportID)
}

// FinishScanGate rejects the root agent's finish_scan while other agents
// are active or findings are pending. The error enumerates the blockers.
func (o *Orchestrator) FinishScanGate(rootID string) error {
	var blockers []string

	if active := o.graph.ActiveAgents(rootID); len(active) > 0 {
		blockers = append(blockers, fmt.Sprintf(
			"agents still active: %s (stop them with stop_agent or wait for them to finish)",
			strings.Join(active, ", ")))
	}
	if pending := o.store.Pending(); len(pending) > 0 {
		ids := make([]string, len(pending))
		for i, r := range pending {
			ids[i] = r.ID
		}
		blockers = append(blockers, fmt.Sprintf(
			"findings pending verification: %s (wait for their verifiers to decide)",
			strings.Join(ids, ", ")))
	}

	if len(blockers) == 0 {
		return nil
	}
	return fmt.Errorf("finish_scan blocked:\n- %s", strings.Join(blockers, "\n- "))
}

func verifierTask(report finding.Report) string {
	return fmt.Sprintf(
		"Independently verify finding %s (%q, type %s). "+
			"Phase 1: reproduce the finding at least %d times from scratch. "+
			"Phase 2: run the required control tests for this vulnerability type and assess validity. "+
			"Then record your decision with verify_vulnerability_report.",
		report.ID, report.Title, report.VulnerabilityType, MinReproductions)
}
