package tool

import (
	"context"
	"fmt"
)

// AgentState is the view of the calling agent passed to tools registered
// with NeedsAgentState. The concrete agent state satisfies this interface;
// declaring it here keeps the dependency pointing from the agent package to
// the tool package and not back.
type AgentState interface {
	// AgentID returns the opaque id of the calling agent.
	AgentID() string

	// AgentName returns the display name of the calling agent.
	AgentName() string
}

// Func is the implementation signature for stateless tools.
type Func func(ctx context.Context, args map[string]any) (map[string]any, error)

// StateFunc is the implementation signature for tools that read the calling
// agent's state.
type StateFunc func(ctx context.Context, state AgentState, args map[string]any) (map[string]any, error)

// Kind tags the implementation variant of a Spec.
type Kind string

const (
	// KindFunc is a local tool with a stateless implementation.
	KindFunc Kind = "func"

	// KindStateFunc is a local tool that receives the agent state.
	KindStateFunc Kind = "state_func"

	// KindSandboxProxy is a tool executed remotely by the sandbox
	// tool-server; it has no local implementation.
	KindSandboxProxy Kind = "sandbox_proxy"
)

// Param describes one argument of a tool for validation and prompt docs.
type Param struct {
	// Name is the parameter name as it appears in invocations.
	Name string `json:"name"`

	// Description explains the parameter to the model.
	Description string `json:"description"`

	// Required marks parameters that must be present in every invocation.
	Required bool `json:"required"`
}

// Spec describes one registered tool: dispatch metadata plus at most one
// implementation variant.
type Spec struct {
	// Name is the unique tool identifier.
	Name string `json:"name"`

	// Description explains what the tool does, consumed by prompt assembly.
	Description string `json:"description"`

	// Params are the declared arguments.
	Params []Param `json:"params,omitempty"`

	// RunsInSandbox routes execution to the sandbox tool-server.
	RunsInSandbox bool `json:"runs_in_sandbox"`

	// Parallelizable allows execution in the dispatcher's parallel wave.
	Parallelizable bool `json:"parallelizable"`

	// NeedsAgentState passes the calling agent's state to the implementation.
	NeedsAgentState bool `json:"needs_agent_state"`

	// Terminal marks finish tools; they always execute in the final wave.
	Terminal bool `json:"terminal"`

	fn      Func
	stateFn StateFunc
}

// Kind returns the implementation variant of the spec.
func (s *Spec) Kind() Kind {
	switch {
	case s.RunsInSandbox:
		return KindSandboxProxy
	case s.NeedsAgentState:
		return KindStateFunc
	default:
		return KindFunc
	}
}

// Validate checks the spec for structural problems.
func (s *Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if s.Description == "" {
		return fmt.Errorf("tool %q: description cannot be empty", s.Name)
	}
	switch s.Kind() {
	case KindSandboxProxy:
		if s.fn != nil || s.stateFn != nil {
			return fmt.Errorf("tool %q: sandbox tools cannot carry a local implementation", s.Name)
		}
		if s.NeedsAgentState {
			return fmt.Errorf("tool %q: sandbox tools cannot receive agent state", s.Name)
		}
	case KindStateFunc:
		if s.stateFn == nil {
			return fmt.Errorf("tool %q: needs_agent_state requires a StateFunc implementation", s.Name)
		}
		if s.fn != nil {
			return fmt.Errorf("tool %q: only one implementation variant allowed", s.Name)
		}
	case KindFunc:
		if s.fn == nil {
			return fmt.Errorf("tool %q: implementation is required", s.Name)
		}
		if s.stateFn != nil {
			return fmt.Errorf("tool %q: only one implementation variant allowed", s.Name)
		}
	}
	for _, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("tool %q: parameter name cannot be empty", s.Name)
		}
	}
	return nil
}

// ValidateArgs checks an invocation's arguments against the declared params.
// Unknown arguments are tolerated; missing required arguments are not.
func (s *Spec) ValidateArgs(args map[string]any) error {
	for _, p := range s.Params {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return fmt.Errorf("tool %q: missing required argument %q", s.Name, p.Name)
		}
	}
	return nil
}

// Call invokes the local implementation. Calling a sandbox-proxied spec is
// a programming error and returns an error rather than panicking.
func (s *Spec) Call(ctx context.Context, state AgentState, args map[string]any) (map[string]any, error) {
	switch s.Kind() {
	case KindStateFunc:
		return s.stateFn(ctx, state, args)
	case KindFunc:
		return s.fn(ctx, args)
	default:
		return nil, fmt.Errorf("tool %q is sandbox-proxied and has no local implementation", s.Name)
	}
}
