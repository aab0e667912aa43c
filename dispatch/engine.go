package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/sandbox"
	"github.com/zero-day-ai/swarm/telemetry"
	"github.com/zero-day-ai/swarm/tool"
)

// SandboxRunner executes a sandbox-proxied tool inside an agent's
// workspace. *sandbox.Executor satisfies the per-workspace half; Runner
// adds workspace routing.
type SandboxRunner interface {
	Run(ctx context.Context, ws sandbox.Workspace, agentID, toolName string, kwargs map[string]any) (any, error)
}

// Runner routes sandbox tool calls through a cached per-workspace
// executor.
type Runner struct {
	mu        sync.Mutex
	executors map[string]*sandbox.Executor
}

// NewRunner creates an empty runner.
func NewRunner() *Runner {
	return &Runner{executors: make(map[string]*sandbox.Executor)}
}

// Run executes a tool in the given workspace, creating and caching an
// executor for the workspace on first use.
func (r *Runner) Run(ctx context.Context, ws sandbox.Workspace, agentID, toolName string, kwargs map[string]any) (any, error) {
	r.mu.Lock()
	e, ok := r.executors[ws.ID]
	if !ok {
		var err error
		e, err = sandbox.NewExecutor(ws)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.executors[ws.ID] = e
	}
	r.mu.Unlock()
	return e.Execute(ctx, agentID, toolName, kwargs)
}

// Engine implements the turn dispatcher consumed by the agent loop.
type Engine struct {
	registry       *tool.Registry
	runner         SandboxRunner
	inSandbox      bool
	supportsVision bool
	maxConcurrency int
	log            *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSandboxRunner installs the transport for sandbox-proxied tools.
func WithSandboxRunner(r SandboxRunner) Option {
	return func(e *Engine) { e.runner = r }
}

// WithInSandbox marks the process as already running inside the sandbox,
// so sandbox-flagged tools execute locally.
func WithInSandbox(v bool) Option {
	return func(e *Engine) { e.inSandbox = v }
}

// WithVision keeps image attachments in observations. Without it, lifted
// images are dropped.
func WithVision(v bool) Option {
	return func(e *Engine) { e.supportsVision = v }
}

// WithMaxConcurrency caps the parallel wave. Zero means unbounded.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) { e.maxConcurrency = n }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine creates a dispatcher over a tool registry.
func NewEngine(registry *tool.Registry, opts ...Option) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("dispatch engine requires a tool registry")
	}
	e := &Engine{registry: registry, log: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Dispatch runs one turn's invocations and returns the observation
// message plus the finish signal. Individual tool failures become error
// results; only context cancellation aborts the turn.
func (e *Engine) Dispatch(ctx context.Context, st *agent.State, invocations []llm.ToolInvocation) (agent.DispatchOutcome, error) {
	if len(invocations) == 0 {
		return agent.DispatchOutcome{}, fmt.Errorf("dispatch called with no invocations")
	}

	results := make([]result, len(invocations))
	w := classify(e.registry, invocations)

	e.runParallel(ctx, st, w.parallel, results)
	e.runSerial(ctx, st, w.sequential, results)
	shouldFinish := e.runFinish(ctx, st, w.finish, results)

	if err := ctx.Err(); err != nil {
		return agent.DispatchOutcome{}, err
	}

	return agent.DispatchOutcome{
		Observation:  renderObservation(results, e.supportsVision),
		ShouldFinish: shouldFinish,
	}, nil
}

// runParallel executes the parallel wave with one task per invocation. A
// failing or panicking task becomes its own error result; siblings keep
// running. The wave completes only when every task finished.
func (e *Engine) runParallel(ctx context.Context, st *agent.State, items []item, results []result) {
	if len(items) == 0 {
		return
	}

	var sem chan struct{}
	if e.maxConcurrency > 0 {
		sem = make(chan struct{}, e.maxConcurrency)
	}

	var wg sync.WaitGroup
	for _, it := range items {
		wg.Add(1)
		go func(it item) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			results[it.index] = e.execute(ctx, st, it)
		}(it)
	}
	wg.Wait()
}

func (e *Engine) runSerial(ctx context.Context, st *agent.State, items []item, results []result) {
	for _, it := range items {
		results[it.index] = e.execute(ctx, st, it)
	}
}

func (e *Engine) runFinish(ctx context.Context, st *agent.State, items []item, results []result) bool {
	finished := false
	for _, it := range items {
		r := e.execute(ctx, st, it)
		results[it.index] = r
		if !r.isError {
			finished = true
		}
	}
	return finished
}

// execute runs one invocation and converts every failure mode, panics
// included, into an error result.
func (e *Engine) execute(ctx context.Context, st *agent.State, it item) (res result) {
	name := it.invocation.Name
	res.name = name

	// Registered before the recover handler so it observes the final
	// result, panics included.
	defer func() {
		if tr := telemetry.Current(); tr != nil {
			tr.RecordToolCall(ctx, st.AgentID(), name, res.isError)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("tool panicked", "tool", name, "panic", r)
			res = errorResult(name, fmt.Sprintf("tool panicked: %v", r))
		}
	}()

	if it.spec == nil {
		return errorResult(name, fmt.Sprintf("unknown tool %q; consult the tool list in your instructions", name))
	}
	if err := it.spec.ValidateArgs(it.invocation.Args); err != nil {
		return errorResult(name, err.Error())
	}

	st.AddAction(name, it.invocation.Args)

	var value any
	var err error
	if it.spec.RunsInSandbox && !e.inSandbox {
		value, err = e.executeSandbox(ctx, st, it)
	} else {
		value, err = it.spec.Call(ctx, st, it.invocation.Args)
	}
	if err != nil {
		e.log.Warn("tool failed", "tool", name, "agent_id", st.AgentID(), "error", err)
		return errorResult(name, err.Error())
	}
	return valueResult(name, value)
}

func (e *Engine) executeSandbox(ctx context.Context, st *agent.State, it item) (any, error) {
	if e.runner == nil {
		return nil, fmt.Errorf("no sandbox transport configured for tool %q", it.invocation.Name)
	}
	ws := st.Workspace()
	if ws == nil {
		return nil, fmt.Errorf("agent %s has no sandbox workspace for tool %q", st.AgentID(), it.invocation.Name)
	}
	return e.runner.Run(ctx, *ws, st.AgentID(), it.invocation.Name, it.invocation.Args)
}
