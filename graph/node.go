package graph

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an agent node as observers see it.
type Status string

const (
	// StatusCreated marks a node whose loop has not ticked yet.
	StatusCreated Status = "created"

	// StatusRunning marks a node actively iterating.
	StatusRunning Status = "running"

	// StatusWaiting marks a node paused for input.
	StatusWaiting Status = "waiting"

	// StatusStopping marks a node between a stop request and the next
	// cooperative yield.
	StatusStopping Status = "stopping"

	// StatusCompleted marks a node that finished its task.
	StatusCompleted Status = "completed"

	// StatusStopped marks a node halted by a stop request.
	StatusStopped Status = "stopped"

	// StatusFailed marks a node that hit an unrecoverable runtime error.
	StatusFailed Status = "failed"

	// StatusLLMFailed marks a node stalled on a model failure; only a user
	// message resumes it.
	StatusLLMFailed Status = "llm_failed"

	// StatusTimeout marks a verifier node whose watchdog expired.
	StatusTimeout Status = "timeout"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsValid checks if the status is a recognized value.
func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusWaiting, StatusStopping,
		StatusCompleted, StatusStopped, StatusFailed, StatusLLMFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is one a node never leaves.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusStopped, StatusFailed, StatusTimeout:
		return true
	default:
		return false
	}
}

// IsActive reports whether the node still occupies a worker: it is running
// or has a stop in flight. Used by the root finish gate.
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusStopping
}

// NodeKind distinguishes ordinary agents from spawned verifiers.
type NodeKind string

const (
	// KindAgent is an ordinary agent node.
	KindAgent NodeKind = "agent"

	// KindVerification is a verifier spawned for one report.
	KindVerification NodeKind = "verification"
)

// Node is one agent in the graph.
type Node struct {
	// ID is the agent's opaque id.
	ID string `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// ParentID is empty for the root node.
	ParentID string `json:"parent_id,omitempty"`

	// Kind distinguishes agents from verifiers.
	Kind NodeKind `json:"kind"`

	// ReportID is set on verification nodes: the report being verified.
	ReportID string `json:"report_id,omitempty"`

	// Status is the node's current lifecycle state.
	Status Status `json:"status"`

	// Task is the task text the agent was created with.
	Task string `json:"task,omitempty"`

	// CreatedAt is when the node was inserted.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the node for required fields.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node id cannot be empty")
	}
	if n.Name == "" {
		return fmt.Errorf("node %s: name cannot be empty", n.ID)
	}
	if n.Kind != KindAgent && n.Kind != KindVerification {
		return fmt.Errorf("node %s: invalid kind %q", n.ID, n.Kind)
	}
	if n.Kind == KindVerification && n.ReportID == "" {
		return fmt.Errorf("node %s: verification nodes require a report id", n.ID)
	}
	return nil
}

// EdgeType classifies graph edges.
type EdgeType string

const (
	// EdgeDelegation records a parent spawning a child.
	EdgeDelegation EdgeType = "delegation"

	// EdgeMessage records one agent messaging another. Historical; may
	// form cycles.
	EdgeMessage EdgeType = "message"

	// EdgeSpawnedVerification records a verifier spawn.
	EdgeSpawnedVerification EdgeType = "spawned_verification"
)

// Edge is one directed edge in the graph.
type Edge struct {
	// From and To are node ids.
	From string `json:"from"`
	To   string `json:"to"`

	// Type classifies the edge.
	Type EdgeType `json:"type"`

	// CreatedAt is when the edge was recorded.
	CreatedAt time.Time `json:"created_at"`
}
