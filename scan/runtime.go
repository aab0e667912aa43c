package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/graph"
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/queue"
	"github.com/zero-day-ai/swarm/sandbox"
	"github.com/zero-day-ai/swarm/verify"
)

// Runtime holds the shared collaborators of one scan and launches agent
// loops on them. It implements verify.Launcher so the verification
// orchestrator can spawn verifier agents through the same path as
// create_agent.
type Runtime struct {
	cfg      Config
	graph    *graph.Graph
	pool     *agent.Pool
	client   llm.Client
	tracker  llm.UsageTracker
	registry toolRegistry
	engine   agent.Dispatcher
	stream   queue.Stream
	log      *slog.Logger

	mu   sync.Mutex
	ctx  context.Context
	orch *verify.Orchestrator
}

// toolRegistry is the slice of the tool registry the runtime needs for
// prompt assembly.
type toolRegistry interface {
	Docs() string
}

// NewRuntime wires a runtime. The dispatcher engine and orchestrator
// are attached by the controller after construction.
func NewRuntime(cfg Config, g *graph.Graph, pool *agent.Pool, client llm.Client, tracker llm.UsageTracker, reg toolRegistry, logger *slog.Logger) (*Runtime, error) {
	if g == nil || pool == nil || client == nil || reg == nil {
		return nil, fmt.Errorf("runtime requires a graph, pool, client, and tool registry")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runtime{
		cfg:      cfg,
		graph:    g,
		pool:     pool,
		client:   client,
		tracker:  tracker,
		registry: reg,
		log:      logger,
		ctx:      context.Background(),
	}, nil
}

// SetEngine attaches the tool dispatcher.
func (r *Runtime) SetEngine(e agent.Dispatcher) { r.engine = e }

// SetOrchestrator attaches the verification orchestrator so verifier
// exits can be reported back.
func (r *Runtime) SetOrchestrator(o *verify.Orchestrator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orch = o
}

// SetStream attaches the scan event stream. Nil disables publishing.
func (r *Runtime) SetStream(s queue.Stream) { r.stream = s }

// SetSandbox replaces the sandbox configuration, used after workspace
// discovery. Call before launching agents.
func (r *Runtime) SetSandbox(sb SandboxConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.Sandbox = sb
}

// Bind sets the context all subsequently launched loops run under.
// Cancelling it stops every loop.
func (r *Runtime) Bind(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctx = ctx
}

func (r *Runtime) baseContext() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx
}

func (r *Runtime) orchestrator() *verify.Orchestrator {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orch
}

// State returns the live state for an agent id, nil when the agent has
// no worker.
func (r *Runtime) State(id string) *agent.State {
	w, ok := r.pool.Get(id)
	if !ok {
		return nil
	}
	return w.Loop().State()
}

// launchSpec describes one agent loop to start. The graph node must
// already exist.
type launchSpec struct {
	ID            string
	Name          string
	ParentID      string
	Task          string
	MaxIterations int
	PromptModules []string
	// ReportID is set for verifier agents; their exit is reported to
	// the orchestrator.
	ReportID string
}

// launch builds the agent state and loop for a spec and starts it in
// the pool. The workspace handle is inherited from the parent when one
// is attached, otherwise taken from static configuration.
func (r *Runtime) launch(spec launchSpec) (*agent.State, error) {
	opts := []agent.Option{
		agent.WithTask(spec.Task),
	}
	if spec.ParentID != "" {
		opts = append(opts, agent.WithParent(spec.ParentID))
	}
	if spec.MaxIterations > 0 {
		opts = append(opts, agent.WithMaxIterations(spec.MaxIterations))
	}
	if ws := r.workspaceFor(spec.ParentID); ws != nil {
		opts = append(opts, agent.WithWorkspace(ws))
	}

	st, err := agent.New(spec.ID, spec.Name, opts...)
	if err != nil {
		return nil, err
	}

	system, err := BuildSystemPrompt(r.cfg.Target, spec.Task, spec.PromptModules, r.registry.Docs())
	if err != nil {
		return nil, err
	}

	loop, err := agent.NewLoop(st, agent.Deps{
		Graph:  r.graph,
		Client: r.client,
		Prompt: llm.PromptConfig{
			SystemPrompt:    system,
			AgentName:       spec.Name,
			AgentID:         spec.ID,
			SupportsCaching: r.cfg.LLM.SupportsCaching,
			SupportsVision:  r.cfg.LLM.SupportsVision,
		},
		Dispatcher:  r.engine,
		Tracker:     r.tracker,
		Interactive: r.cfg.Interactive,
		Logger:      r.log,
	})
	if err != nil {
		return nil, err
	}

	w, err := r.pool.Start(r.baseContext(), loop)
	if err != nil {
		return nil, err
	}
	go r.watchExit(w, spec)

	r.publish(queue.EventAgentCreated, func(e *queue.Event) {
		e.AgentID = spec.ID
		e.Payload = map[string]any{"name": spec.Name, "parent": spec.ParentID}
	})
	return st, nil
}

// watchExit reports loop exit to the event stream and, for verifiers,
// to the orchestrator.
func (r *Runtime) watchExit(w *agent.Worker, spec launchSpec) {
	<-w.Done()
	result := w.Result()

	r.publish(queue.EventAgentStatusChanged, func(e *queue.Event) {
		e.AgentID = spec.ID
		e.Payload = map[string]any{
			"status":     string(result.Status),
			"iterations": result.Iterations,
		}
	})

	if spec.ReportID != "" {
		// VerifierExited is a no-op when the report already reached a
		// terminal queue.
		if o := r.orchestrator(); o != nil {
			o.VerifierExited(spec.ReportID, result.Status == graph.StatusFailed)
		}
	}
}

// LaunchVerifier implements verify.Launcher. The orchestrator has
// already added the verifier's graph node.
func (r *Runtime) LaunchVerifier(ctx context.Context, req verify.LaunchRequest) error {
	_, err := r.launch(launchSpec{
		ID:            req.NodeID,
		Name:          req.Name,
		ParentID:      req.ParentID,
		Task:          req.Task,
		MaxIterations: req.MaxIterations,
		PromptModules: []string{ModuleVerification},
		ReportID:      req.ReportID,
	})
	return err
}

// workspaceFor resolves the sandbox workspace a new agent should use:
// the parent's handle when one exists, else the statically configured
// workspace.
func (r *Runtime) workspaceFor(parentID string) *sandbox.Workspace {
	if parentID != "" {
		if st := r.State(parentID); st != nil {
			if ws := st.Workspace(); ws != nil {
				return ws
			}
		}
	}
	r.mu.Lock()
	sb := r.cfg.Sandbox
	r.mu.Unlock()
	if !sb.Enabled || sb.APIURL == "" {
		return nil
	}
	return &sandbox.Workspace{
		ID:             sb.WorkspaceID,
		APIURL:         sb.APIURL,
		AuthToken:      sb.AuthToken,
		ToolServerPort: sb.ToolServerPort,
	}
}

// publish sends one scan event; failures are logged, never fatal.
func (r *Runtime) publish(t queue.EventType, fill func(*queue.Event)) {
	if r.stream == nil {
		return
	}
	event := queue.NewEvent(r.cfg.ScanID, t)
	if fill != nil {
		fill(&event)
	}
	if err := r.stream.Publish(context.Background(), event); err != nil {
		r.log.Debug("event publish failed", "type", t, "error", err)
	}
}
