package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/dispatch"
	"github.com/zero-day-ai/swarm/finding"
	"github.com/zero-day-ai/swarm/graph"
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/queue"
	"github.com/zero-day-ai/swarm/registry"
	"github.com/zero-day-ai/swarm/serve"
	"github.com/zero-day-ai/swarm/telemetry"
	"github.com/zero-day-ai/swarm/tool"
	"github.com/zero-day-ai/swarm/verify"
	"github.com/zero-day-ai/swarm/vulntype"
)

// Exit codes the controller reports.
const (
	ExitClean    = 0 // run completed, no verified findings
	ExitFatal    = 1 // setup or runtime failure
	ExitFindings = 2 // run completed with verified findings
)

// Controller owns one scan end to end: construction of the shared
// collaborators, the root agent's lifetime, and shutdown.
type Controller struct {
	cfg     Config
	log     *slog.Logger
	client  llm.Client
	tracker llm.UsageTracker

	graph    *graph.Graph
	pool     *agent.Pool
	store    *finding.Store
	types    *vulntype.Registry
	registry *tool.Registry
	runtime  *Runtime
	orch     *verify.Orchestrator
	tracer   *telemetry.Tracer

	rootID string
	fatal  bool
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithClient overrides the LLM client, bypassing HTTP construction.
func WithClient(c llm.Client) ControllerOption {
	return func(ctl *Controller) { ctl.client = c }
}

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) ControllerOption {
	return func(ctl *Controller) { ctl.log = l }
}

// New builds a fully wired controller from a validated configuration.
func New(cfg Config, opts ...ControllerOption) (*Controller, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctl := &Controller{cfg: cfg, log: slog.Default()}
	for _, opt := range opts {
		opt(ctl)
	}

	types, err := vulntype.LoadDefault()
	if err != nil {
		return nil, fmt.Errorf("failed to load vulnerability types: %w", err)
	}
	ctl.types = types
	ctl.store = finding.NewStore(types)
	ctl.graph = graph.New()
	ctl.pool = agent.NewPool(ctl.log)
	ctl.tracker = llm.NewUsageTracker()

	if ctl.client == nil {
		inner, err := llm.NewHTTPClient(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to build llm client: %w", err)
		}
		// One in-flight completion per scan; a second caller queues, a
		// third is rejected.
		ctl.client = llm.NewQueuedClient(inner, llm.NewRequestQueue(1))
	}

	ctl.registry = tool.NewRegistry()
	ctl.runtime, err = NewRuntime(cfg, ctl.graph, ctl.pool, ctl.client, ctl.tracker, ctl.registry, ctl.log)
	if err != nil {
		return nil, err
	}

	engineOpts := []dispatch.Option{
		dispatch.WithInSandbox(cfg.Sandbox.InSandbox),
		dispatch.WithVision(cfg.LLM.SupportsVision),
		dispatch.WithLogger(ctl.log),
	}
	if cfg.MaxToolConcurrency > 0 {
		engineOpts = append(engineOpts, dispatch.WithMaxConcurrency(cfg.MaxToolConcurrency))
	}
	if cfg.Sandbox.Enabled {
		engineOpts = append(engineOpts, dispatch.WithSandboxRunner(dispatch.NewRunner()))
	}
	engine, err := dispatch.NewEngine(ctl.registry, engineOpts...)
	if err != nil {
		return nil, err
	}
	ctl.runtime.SetEngine(engine)

	ctl.orch, err = verify.NewOrchestrator(ctl.store, types, ctl.graph, ctl.runtime, verify.WithLogger(ctl.log))
	if err != nil {
		return nil, err
	}
	ctl.runtime.SetOrchestrator(ctl.orch)

	ctl.tracer, err = telemetry.NewTracer(telemetry.TracerConfig{
		RunDir:  cfg.RunDir,
		ScanID:  cfg.ScanID,
		Store:   ctl.store,
		Tracker: ctl.tracker,
		Logger:  ctl.log,
	})
	if err != nil {
		return nil, err
	}

	vtools, err := verify.NewTools(ctl.orch, ctl.store, ctl.graph, ctl.tracer.SetFinalReport)
	if err != nil {
		return nil, err
	}
	if err := vtools.Register(ctl.registry); err != nil {
		return nil, err
	}
	gtools, err := NewGraphTools(ctl.runtime, ctl.graph, ctl.pool)
	if err != nil {
		return nil, err
	}
	if err := gtools.Register(ctl.registry); err != nil {
		return nil, err
	}
	if cfg.Sandbox.Enabled || cfg.Sandbox.InSandbox {
		if err := RegisterSandboxTools(ctl.registry); err != nil {
			return nil, err
		}
	}

	return ctl, nil
}

// Run executes the scan: root agent launch, completion wait, and
// cleanup. It returns once the root agent finishes or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	telemetry.Install(c.tracer)

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.runtime.Bind(scanCtx)

	var stream queue.Stream
	if c.cfg.EventsURL != "" {
		s, err := queue.NewRedisStream(queue.RedisOptions{URL: c.cfg.EventsURL})
		if err != nil {
			c.fatal = true
			return fmt.Errorf("failed to connect event stream: %w", err)
		}
		stream = s
		defer stream.Close()
		c.runtime.SetStream(stream)
	}

	if err := c.discoverWorkspace(scanCtx); err != nil {
		c.fatal = true
		return err
	}

	if c.cfg.ControlPort > 0 {
		srv, err := serve.NewServer(&serve.Config{Port: c.cfg.ControlPort, Logger: c.log})
		if err != nil {
			c.fatal = true
			return fmt.Errorf("failed to start control server: %w", err)
		}
		srv.MarkScanRunning(c.cfg.ScanID)
		go func() {
			if err := srv.Serve(scanCtx); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Warn("control server exited", "error", err)
			}
		}()
		defer srv.MarkScanDone(c.cfg.ScanID)
	}

	if stream != nil {
		event := queue.NewEvent(c.cfg.ScanID, queue.EventScanStarted)
		event.Payload = map[string]any{"target": c.cfg.Target, "objective": c.cfg.Objective}
		if err := stream.Publish(scanCtx, event); err != nil {
			c.log.Warn("failed to publish scan start", "error", err)
		}
		if err := stream.SetStatus(scanCtx, c.cfg.ScanID, queue.ScanStatusRunning); err != nil {
			c.log.Warn("failed to set scan status", "error", err)
		}
	}

	c.rootID = uuid.NewString()
	if err := c.graph.AddNode(graph.Node{
		ID:   c.rootID,
		Name: c.cfg.RootAgentName,
		Kind: graph.KindAgent,
		Task: c.cfg.Objective,
	}); err != nil {
		c.fatal = true
		return fmt.Errorf("failed to create root agent: %w", err)
	}
	if _, err := c.runtime.launch(launchSpec{
		ID:            c.rootID,
		Name:          c.cfg.RootAgentName,
		Task:          c.cfg.Objective,
		MaxIterations: c.cfg.MaxIterations,
		PromptModules: c.cfg.PromptModules,
	}); err != nil {
		c.fatal = true
		return fmt.Errorf("failed to start root agent: %w", err)
	}

	root, _ := c.pool.Get(c.rootID)
	var runErr error
	select {
	case <-root.Done():
		result := root.Result()
		c.log.Info("root agent finished",
			"status", result.Status, "iterations", result.Iterations)
		if result.Status == graph.StatusFailed {
			c.fatal = true
			runErr = fmt.Errorf("root agent failed")
		}
	case <-ctx.Done():
		c.log.Info("scan cancelled, shutting down")
	}

	// Remaining agents get a bounded window to park cleanly.
	cancel()
	stopped := c.pool.StopAll(c.cfg.CleanupTimeout())
	if stopped > 0 {
		c.log.Debug("stopped remaining agents", "count", stopped)
	}

	if stream != nil {
		bg := context.Background()
		status := queue.ScanStatusCompleted
		if c.fatal {
			status = queue.ScanStatusFailed
		}
		event := queue.NewEvent(c.cfg.ScanID, queue.EventScanCompleted)
		event.Payload = map[string]any{
			"verified": len(c.store.Verified()),
			"status":   string(status),
		}
		if err := stream.Publish(bg, event); err != nil {
			c.log.Warn("failed to publish scan completion", "error", err)
		}
		if err := stream.SetStatus(bg, c.cfg.ScanID, status); err != nil {
			c.log.Warn("failed to set scan status", "error", err)
		}
	}

	if err := c.tracer.Flush(context.Background()); err != nil {
		c.log.Warn("failed to flush run artifacts", "error", err)
	}
	return runErr
}

// discoverWorkspace resolves the sandbox workspace from the etcd
// registry when one is configured and no static endpoint is set.
func (c *Controller) discoverWorkspace(ctx context.Context) error {
	if !c.cfg.Sandbox.Enabled || c.cfg.Sandbox.APIURL != "" || len(c.cfg.Registry.Endpoints) == 0 {
		return nil
	}
	client, err := registry.NewClient(c.cfg.Registry)
	if err != nil {
		return fmt.Errorf("failed to connect sandbox registry: %w", err)
	}
	defer client.Close()

	sandboxes, err := client.Discover(ctx, c.cfg.ScanID)
	if err != nil {
		return fmt.Errorf("failed to discover sandbox: %w", err)
	}
	if len(sandboxes) == 0 {
		return fmt.Errorf("no sandbox registered for scan %s", c.cfg.ScanID)
	}

	sb := c.cfg.Sandbox
	sb.WorkspaceID = sandboxes[0].WorkspaceID
	sb.APIURL = sandboxes[0].Endpoint
	c.cfg.Sandbox = sb
	c.runtime.SetSandbox(sb)
	c.log.Info("sandbox workspace discovered",
		"workspace", sb.WorkspaceID, "endpoint", sb.APIURL)
	return nil
}

// ExitCode maps the run outcome to the process exit code: 1 on fatal
// errors, 2 when verified findings exist, 0 otherwise.
func (c *Controller) ExitCode() int {
	if c.fatal {
		return ExitFatal
	}
	if len(c.store.Verified()) > 0 {
		return ExitFindings
	}
	return ExitClean
}

// FinalReport returns the report passed to finish_scan, empty when the
// scan ended without one.
func (c *Controller) FinalReport() string {
	return c.tracer.FinalReport()
}

// Store exposes the finding queues for post-run inspection.
func (c *Controller) Store() *finding.Store { return c.store }

// Graph exposes the agent graph for post-run inspection.
func (c *Controller) Graph() *graph.Graph { return c.graph }
