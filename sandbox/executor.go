package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/zero-day-ai/swarm/toolerr"
)

const (
	// DefaultConnectTimeout bounds connection establishment to the tool
	// server.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultExecuteTimeout bounds a whole tool execution round trip. Tools
	// like browsers and scanners legitimately run for minutes.
	DefaultExecuteTimeout = 500 * time.Second
)

// executeRequest is the wire body for POST /execute.
type executeRequest struct {
	AgentID  string         `json:"agent_id"`
	ToolName string         `json:"tool_name"`
	Kwargs   map[string]any `json:"kwargs"`
}

// executeResponse is the wire body the tool server returns.
type executeResponse struct {
	Result any    `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Executor runs tools inside a workspace over HTTP.
type Executor struct {
	baseURL string
	token   string
	client  *http.Client
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithHTTPClient replaces the underlying HTTP client. Mainly for tests.
func WithHTTPClient(c *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.client = c
	}
}

// WithTimeouts overrides the connect and total timeouts.
func WithTimeouts(connect, total time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.client = newHTTPClient(connect, total)
	}
}

func newHTTPClient(connect, total time.Duration) *http.Client {
	return &http.Client{
		Timeout: total,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: connect}).DialContext,
		},
	}
}

// NewExecutor creates an executor for a workspace's tool server.
func NewExecutor(ws Workspace, opts ...ExecutorOption) (*Executor, error) {
	if err := ws.Validate(); err != nil {
		return nil, err
	}
	e := &Executor{
		baseURL: ws.APIURL,
		token:   ws.AuthToken,
		client:  newHTTPClient(DefaultConnectTimeout, DefaultExecuteTimeout),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Execute runs a tool inside the workspace and returns its result value.
// Errors are typed: 401 surfaces as an authentication failure, transport
// errors as the workspace being unreachable, and tool-reported errors as
// execution failures.
func (e *Executor) Execute(ctx context.Context, agentID, toolName string, kwargs map[string]any) (any, error) {
	body, err := json.Marshal(executeRequest{
		AgentID:  agentID,
		ToolName: toolName,
		Kwargs:   kwargs,
	})
	if err != nil {
		return nil, toolerr.New(toolName, "execute", toolerr.CodeExecutionFailed,
			fmt.Sprintf("failed to encode request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, toolerr.New(toolName, "execute", toolerr.CodeExecutionFailed,
			fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() == context.Canceled {
			return nil, toolerr.New(toolName, "execute", toolerr.CodeInterrupted, "tool execution cancelled").WithCause(err)
		}
		return nil, toolerr.New(toolName, "execute", toolerr.CodeSandboxUnreachable,
			"sandbox tool server unreachable").WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, toolerr.New(toolName, "execute", toolerr.CodeSandboxAuthFailed,
			"sandbox rejected the auth token")
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, toolerr.New(toolName, "execute", toolerr.CodeSandboxUnreachable,
			"failed reading sandbox response").WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, toolerr.New(toolName, "execute", toolerr.CodeExecutionFailed,
			fmt.Sprintf("sandbox returned status %d", resp.StatusCode)).
			WithDetail("body", string(raw))
	}

	var out executeResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, toolerr.New(toolName, "execute", toolerr.CodeExecutionFailed,
			"sandbox returned malformed JSON").WithCause(err)
	}
	if out.Error != "" {
		return nil, toolerr.New(toolName, "execute", toolerr.CodeExecutionFailed, out.Error)
	}
	return out.Result, nil
}

// RegisterAgent announces an agent to the workspace's tool server so
// subsequent Execute calls for that agent id are accepted.
func (e *Executor) RegisterAgent(ctx context.Context, agentID string) error {
	u := fmt.Sprintf("%s/register_agent?agent_id=%s", e.baseURL, url.QueryEscape(agentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build register request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)

	resp, err := e.client.Do(req)
	if err != nil {
		return toolerr.New("register_agent", "register", toolerr.CodeSandboxUnreachable,
			"sandbox tool server unreachable").WithCause(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		return toolerr.New("register_agent", "register", toolerr.CodeSandboxAuthFailed,
			"sandbox rejected the auth token")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return toolerr.New("register_agent", "register", toolerr.CodeExecutionFailed,
			fmt.Sprintf("sandbox returned status %d", resp.StatusCode))
	}
	return nil
}
