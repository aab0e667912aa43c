package sandbox

import (
	"context"
	"fmt"
)

// Workspace is the handle an agent holds to its isolated environment.
// Agents under the same scan may share one workspace.
type Workspace struct {
	// ID identifies the workspace to the adapter.
	ID string `json:"workspace_id"`

	// APIURL is the base URL of the workspace's tool server.
	APIURL string `json:"api_url"`

	// AuthToken is the bearer token for tool-execution calls.
	AuthToken string `json:"auth_token"`

	// ToolServerPort is the port the tool server listens on inside the
	// workspace.
	ToolServerPort int `json:"tool_server_port"`

	// AgentID is the agent the workspace was created for.
	AgentID string `json:"agent_id"`
}

// Validate checks the workspace handle for required fields.
func (w *Workspace) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("workspace id cannot be empty")
	}
	if w.APIURL == "" {
		return fmt.Errorf("workspace %s: api url cannot be empty", w.ID)
	}
	if w.AuthToken == "" {
		return fmt.Errorf("workspace %s: auth token cannot be empty", w.ID)
	}
	return nil
}

// CreateOptions tunes workspace creation.
type CreateOptions struct {
	// ExistingToken reuses a sibling's auth token so agents under one scan
	// share a workspace.
	ExistingToken string

	// LocalSources are host paths to mount into the workspace.
	LocalSources []string
}

// Adapter is the narrow interface the core requires from the container
// runtime. Implementations live outside this module.
type Adapter interface {
	// CreateSandbox provisions a workspace for an agent.
	CreateSandbox(ctx context.Context, agentID string, opts CreateOptions) (Workspace, error)

	// SandboxURL resolves a reachable URL for a port inside the workspace.
	SandboxURL(workspaceID string, port int) (string, error)

	// DestroySandbox tears the workspace down.
	DestroySandbox(ctx context.Context, workspaceID string) error
}
