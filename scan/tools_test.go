package scan

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/dispatch"
	"github.com/zero-day-ai/swarm/graph"
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/tool"
)

// blockingClient parks every completion until the context is cancelled,
// so launched loops sit still while tests poke at them.
type blockingClient struct{}

func (blockingClient) Complete(ctx context.Context, _ []llm.Message) (*llm.Completion, error) {
	<-ctx.Done()
	return nil, llm.NewRequestError(llm.FailureConnection, "context cancelled")
}

func newToolFixture(t *testing.T) (*GraphTools, *Runtime, *graph.Graph, *tool.Registry) {
	t.Helper()

	cfg := Config{Target: "https://target.example", Objective: "assess the target"}
	cfg.LLM.Model = "test-model"
	cfg.ApplyDefaults()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := graph.New()
	pool := agent.NewPool(logger)
	reg := tool.NewRegistry()

	rt, err := NewRuntime(cfg, g, pool, blockingClient{}, llm.NewUsageTracker(), reg, logger)
	require.NoError(t, err)
	engine, err := dispatch.NewEngine(reg, dispatch.WithLogger(logger))
	require.NoError(t, err)
	rt.SetEngine(engine)

	ctx, cancel := context.WithCancel(context.Background())
	rt.Bind(ctx)
	t.Cleanup(func() {
		cancel()
		pool.StopAll(2 * time.Second)
	})

	gt, err := NewGraphTools(rt, g, pool)
	require.NoError(t, err)
	return gt, rt, g, reg
}

// startAgent adds a graph node and launches its loop; the loop parks in
// the blocking client on its first completion.
func startAgent(t *testing.T, gt *GraphTools, rt *Runtime, id, name string) *agent.State {
	t.Helper()
	require.NoError(t, gt.graph.AddNode(graph.Node{ID: id, Name: name, Kind: graph.KindAgent, Task: "test task"}))
	st, err := rt.launch(launchSpec{ID: id, Name: name, Task: "test task"})
	require.NoError(t, err)
	return st
}

func TestGraphToolsRegister(t *testing.T) {
	gt, _, _, reg := newToolFixture(t)
	require.NoError(t, gt.Register(reg))

	docs := reg.Docs()
	for _, name := range []string{
		"create_agent", "send_message_to_agent", "send_user_message_to_agent",
		"stop_agent", "wait_for_message", "view_agent_graph",
	} {
		assert.Contains(t, docs, name)
	}
}

func TestCreateAgent(t *testing.T) {
	gt, rt, g, _ := newToolFixture(t)
	caller := startAgent(t, gt, rt, "root-1", "coordinator")

	out, err := gt.createAgent(context.Background(), caller, map[string]any{
		"name": "recon-web",
		"task": "map the application surface",
	})
	require.NoError(t, err)
	require.Equal(t, true, out["success"], "result: %v", out)

	childID, _ := out["agent_id"].(string)
	require.NotEmpty(t, childID)

	node, ok := g.Node(childID)
	require.True(t, ok)
	assert.Equal(t, "recon-web", node.Name)
	assert.Equal(t, "root-1", node.ParentID)

	// The child got a worker and its mailbox carries the delegation.
	require.NotNil(t, rt.State(childID))
	var delegated bool
	for _, env := range g.Mailbox(childID) {
		if env.Kind == graph.KindInstruction {
			assert.Contains(t, env.Content, "<agent_delegation>")
			assert.Contains(t, env.Content, "map the application surface")
			delegated = true
		}
	}
	assert.True(t, delegated, "no delegation envelope delivered")
}

func TestCreateAgentInheritContext(t *testing.T) {
	gt, rt, g, _ := newToolFixture(t)
	caller := startAgent(t, gt, rt, "root-1", "coordinator")
	caller.AddMessage(llm.RoleAssistant, "found an exposed admin panel at /admin")

	out, err := gt.createAgent(context.Background(), caller, map[string]any{
		"name":            "admin-probe",
		"task":            "test the admin panel",
		"inherit_context": true,
	})
	require.NoError(t, err)
	require.Equal(t, true, out["success"], "result: %v", out)

	childID, _ := out["agent_id"].(string)
	var inherited bool
	for _, env := range g.Mailbox(childID) {
		if env.Kind == graph.KindInformation {
			assert.Contains(t, env.Content, "<inherited_context_from_parent>")
			assert.Contains(t, env.Content, "exposed admin panel")
			inherited = true
		}
	}
	assert.True(t, inherited, "no inherited context envelope delivered")
}

func TestCreateAgentValidation(t *testing.T) {
	gt, rt, _, _ := newToolFixture(t)
	caller := startAgent(t, gt, rt, "root-1", "coordinator")

	out, err := gt.createAgent(context.Background(), caller, map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, false, out["success"])

	out, err = gt.createAgent(context.Background(), caller, map[string]any{
		"name":           "x",
		"task":           "t",
		"prompt_modules": []any{"quantum_fuzzing"},
	})
	require.NoError(t, err)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["message"], "unknown prompt module")
}

func TestSendMessage(t *testing.T) {
	gt, rt, g, _ := newToolFixture(t)
	sender := startAgent(t, gt, rt, "root-1", "coordinator")
	startAgent(t, gt, rt, "agent-2", "recon-web")

	// By name, with kind and priority overrides.
	out, err := gt.sendMessage(context.Background(), sender, map[string]any{
		"target":   "recon-web",
		"content":  "focus on the API endpoints",
		"kind":     "instruction",
		"priority": "high",
	})
	require.NoError(t, err)
	require.Equal(t, true, out["success"], "result: %v", out)
	assert.Equal(t, "agent-2", out["delivered_to"])

	mailbox := g.Mailbox("agent-2")
	var found bool
	for _, env := range mailbox {
		if env.Content == "focus on the API endpoints" {
			assert.Equal(t, "root-1", env.From)
			assert.Equal(t, graph.KindInstruction, env.Kind)
			assert.Equal(t, graph.PriorityHigh, env.Priority)
			found = true
		}
	}
	require.True(t, found)

	// Unknown target fails without error.
	out, err = gt.sendMessage(context.Background(), sender, map[string]any{
		"target":  "ghost",
		"content": "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, false, out["success"])
}

func TestSendUserMessage(t *testing.T) {
	gt, rt, g, _ := newToolFixture(t)
	sender := startAgent(t, gt, rt, "root-1", "coordinator")
	startAgent(t, gt, rt, "agent-2", "recon-web")

	out, err := gt.sendUserMessage(context.Background(), sender, map[string]any{
		"target":  "agent-2",
		"content": "stop testing the staging host",
	})
	require.NoError(t, err)
	require.Equal(t, true, out["success"], "result: %v", out)

	var found bool
	for _, env := range g.Mailbox("agent-2") {
		if env.Content == "stop testing the staging host" {
			assert.Equal(t, graph.UserSender, env.From)
			assert.Equal(t, graph.KindInstruction, env.Kind)
			assert.Equal(t, graph.PriorityHigh, env.Priority)
			found = true
		}
	}
	require.True(t, found)
}

func TestStopAgent(t *testing.T) {
	gt, rt, g, _ := newToolFixture(t)
	caller := startAgent(t, gt, rt, "root-1", "coordinator")
	startAgent(t, gt, rt, "agent-2", "recon-web")

	out, err := gt.stopAgent(context.Background(), caller, map[string]any{"id": "agent-2"})
	require.NoError(t, err)
	require.Equal(t, true, out["success"], "result: %v", out)

	w, ok := gt.pool.Get("agent-2")
	require.True(t, ok)
	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stopped agent's worker did not exit")
	}

	status, _ := g.Status("agent-2")
	assert.True(t, status.IsTerminal())

	// Stopping a finished agent is an idempotent success.
	out, err = gt.stopAgent(context.Background(), caller, map[string]any{"id": "agent-2"})
	require.NoError(t, err)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "agent already finished", out["message"])
}

func TestStopAgentUnknownTarget(t *testing.T) {
	gt, rt, _, _ := newToolFixture(t)
	caller := startAgent(t, gt, rt, "root-1", "coordinator")

	out, err := gt.stopAgent(context.Background(), caller, map[string]any{"id": "ghost"})
	require.NoError(t, err)
	assert.Equal(t, false, out["success"])
}

func TestWaitForMessage(t *testing.T) {
	gt, rt, g, _ := newToolFixture(t)
	caller := startAgent(t, gt, rt, "root-1", "coordinator")

	out, err := gt.waitForMessage(context.Background(), caller, map[string]any{
		"reason": "blocked on recon-web's report",
	})
	require.NoError(t, err)
	require.Equal(t, true, out["success"], "result: %v", out)

	assert.True(t, caller.IsWaiting())
	status, _ := g.Status("root-1")
	assert.Equal(t, graph.StatusWaiting, status)

	out, err = gt.waitForMessage(context.Background(), caller, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, out["success"])
}

func TestViewAgentGraph(t *testing.T) {
	gt, rt, _, _ := newToolFixture(t)
	caller := startAgent(t, gt, rt, "root-1", "coordinator")
	startAgent(t, gt, rt, "agent-2", "recon-web")

	out, err := gt.viewGraph(context.Background(), caller, nil)
	require.NoError(t, err)
	require.Equal(t, true, out["success"])

	rendered, _ := out["graph"].(string)
	assert.Contains(t, rendered, "coordinator")
	assert.Contains(t, rendered, "recon-web")
}

func TestModuleArg(t *testing.T) {
	mods, err := moduleArg(nil)
	require.NoError(t, err)
	assert.Nil(t, mods)

	mods, err = moduleArg([]any{ModuleRecon, ModuleReporting})
	require.NoError(t, err)
	assert.Equal(t, []string{ModuleRecon, ModuleReporting}, mods)

	_, err = moduleArg("recon")
	require.Error(t, err)

	_, err = moduleArg([]any{42})
	require.Error(t, err)

	_, err = moduleArg([]any{"nope"})
	require.Error(t, err)
}

func TestRegisterSandboxTools(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, RegisterSandboxTools(reg))

	docs := reg.Docs()
	for _, name := range []string{
		"terminal_command", "python_code", "read_file",
		"create_file", "str_replace", "browser_action",
	} {
		assert.Contains(t, docs, name)
	}

	spec, ok := reg.Lookup("terminal_command")
	require.True(t, ok)
	assert.True(t, spec.RunsInSandbox)
	assert.True(t, spec.Parallelizable)
}
