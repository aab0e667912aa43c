package scan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/graph"
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/queue"
	"github.com/zero-day-ai/swarm/tool"
)

// GraphTools exposes the agent-graph operations as agent tools:
// delegation, messaging, stopping, waiting, and graph inspection.
type GraphTools struct {
	rt    *Runtime
	graph *graph.Graph
	pool  *agent.Pool
}

// NewGraphTools builds the graph tool set over a runtime.
func NewGraphTools(rt *Runtime, g *graph.Graph, pool *agent.Pool) (*GraphTools, error) {
	if rt == nil || g == nil || pool == nil {
		return nil, fmt.Errorf("graph tools require a runtime, graph, and pool")
	}
	return &GraphTools{rt: rt, graph: g, pool: pool}, nil
}

// Register adds the graph tools to a registry.
func (t *GraphTools) Register(r *tool.Registry) error {
	specs := []*tool.Config{
		tool.NewConfig().
			SetName("create_agent").
			SetDescription("Spawn a sub-agent with its own task. The new agent starts immediately and reports back to you via agent_finish or messages.").
			AddParam("name", "Short descriptive name for the new agent", true).
			AddParam("task", "The task the new agent should carry out", true).
			AddParam("inherit_context", "Pass your current conversation to the new agent (boolean, default false)", false).
			AddParam("prompt_modules", fmt.Sprintf("JSON array of prompt modules (max %d) from: %s", MaxPromptModules, strings.Join(ModuleNames(), ", ")), false).
			SetStateFunc(t.createAgent),

		tool.NewConfig().
			SetName("send_message_to_agent").
			SetDescription("Send a message to another agent by name or id. Wakes the recipient if it is waiting.").
			AddParam("target", "Recipient agent name or id", true).
			AddParam("content", "Message body", true).
			AddParam("kind", "query, instruction, or information (default information)", false).
			AddParam("priority", "low, normal, high, or urgent (default normal)", false).
			SetStateFunc(t.sendMessage),

		tool.NewConfig().
			SetName("send_user_message_to_agent").
			SetDescription("Relay an operator instruction to an agent. Sent with the user sender, high priority.").
			AddParam("target", "Recipient agent name or id", true).
			AddParam("content", "Instruction body", true).
			SetStateFunc(t.sendUserMessage),

		tool.NewConfig().
			SetName("stop_agent").
			SetDescription("Stop a running agent. Its in-flight work is cancelled; already-finished agents are unaffected.").
			AddParam("id", "Target agent name or id", true).
			SetStateFunc(t.stopAgent),

		tool.NewConfig().
			SetName("wait_for_message").
			SetDescription("Pause until another agent or the operator sends you a message. Use this instead of idling when you are blocked.").
			AddParam("reason", "Why you are waiting", true).
			SetStateFunc(t.waitForMessage),

		tool.NewConfig().
			SetName("view_agent_graph").
			SetDescription("Show the agent tree with each agent's status.").
			SetParallelizable(true).
			SetStateFunc(t.viewGraph),
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

func (t *GraphTools) createAgent(ctx context.Context, caller tool.AgentState, args map[string]any) (map[string]any, error) {
	name, _ := args["name"].(string)
	task, _ := args["task"].(string)
	if name == "" || task == "" {
		return failure("create_agent requires a name and a task"), nil
	}

	inherit, _ := args["inherit_context"].(bool)
	modules, err := moduleArg(args["prompt_modules"])
	if err != nil {
		return failure(err.Error()), nil
	}
	if len(modules) == 0 {
		modules = []string{ModuleRecon, ModuleReporting, ModuleCollaboration}
	}

	id := uuid.NewString()
	node := graph.Node{
		ID:       id,
		Name:     name,
		ParentID: caller.AgentID(),
		Kind:     graph.KindAgent,
		Task:     task,
	}
	if err := t.graph.AddNode(node); err != nil {
		return failure(fmt.Sprintf("could not create agent: %v", err)), nil
	}

	// Seed the child's inbox before its loop starts so the first tick
	// observes the delegation in order.
	if inherit {
		if echo := t.parentConversation(caller.AgentID()); echo != "" {
			env := graph.NewEnvelope(caller.AgentID(), id,
				fmt.Sprintf("<inherited_context_from_parent>\n%s\n</inherited_context_from_parent>", echo))
			env.FromName = caller.AgentName()
			env.Kind = graph.KindInformation
			if err := t.graph.Deliver(env); err != nil {
				return failure(fmt.Sprintf("could not seed inherited context: %v", err)), nil
			}
		}
	}
	delegation := graph.NewEnvelope(caller.AgentID(), id,
		fmt.Sprintf("<agent_delegation>\nYou are %q. Your task:\n%s\n</agent_delegation>", name, task))
	delegation.FromName = caller.AgentName()
	delegation.Kind = graph.KindInstruction
	if err := t.graph.Deliver(delegation); err != nil {
		return failure(fmt.Sprintf("could not deliver task: %v", err)), nil
	}

	if _, err := t.rt.launch(launchSpec{
		ID:            id,
		Name:          name,
		ParentID:      caller.AgentID(),
		Task:          task,
		PromptModules: modules,
	}); err != nil {
		return failure(fmt.Sprintf("could not start agent: %v", err)), nil
	}

	return map[string]any{
		"success":  true,
		"agent_id": id,
		"name":     name,
		"message":  fmt.Sprintf("agent %q started; it will contact you or finish on its own", name),
	}, nil
}

// parentConversation renders the caller's conversation for context
// inheritance, bounded by the middle-truncation limit.
func (t *GraphTools) parentConversation(callerID string) string {
	st := t.rt.State(callerID)
	if st == nil {
		return ""
	}
	var b strings.Builder
	for _, m := range st.Messages() {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, m.Text())
	}
	return llm.MiddleTruncate(b.String())
}

func (t *GraphTools) sendMessage(ctx context.Context, caller tool.AgentState, args map[string]any) (map[string]any, error) {
	target, _ := args["target"].(string)
	content, _ := args["content"].(string)
	if target == "" || content == "" {
		return failure("send_message_to_agent requires a target and content"), nil
	}

	targetID, ok := t.resolveTarget(target)
	if !ok {
		return failure(fmt.Sprintf("no agent named %q; check view_agent_graph", target)), nil
	}

	env := graph.NewEnvelope(caller.AgentID(), targetID, content)
	env.FromName = caller.AgentName()
	if kind, _ := args["kind"].(string); kind != "" {
		env.Kind = graph.MessageKind(kind)
	}
	if priority, _ := args["priority"].(string); priority != "" {
		env.Priority = graph.Priority(priority)
	}
	if err := t.graph.Deliver(env); err != nil {
		return failure(fmt.Sprintf("could not deliver message: %v", err)), nil
	}

	t.rt.publish(queue.EventMessageSent, func(e *queue.Event) {
		e.AgentID = caller.AgentID()
		e.Payload = map[string]any{"to": targetID, "kind": string(env.Kind)}
	})
	return map[string]any{"success": true, "delivered_to": targetID}, nil
}

func (t *GraphTools) sendUserMessage(ctx context.Context, caller tool.AgentState, args map[string]any) (map[string]any, error) {
	target, _ := args["target"].(string)
	content, _ := args["content"].(string)
	if target == "" || content == "" {
		return failure("send_user_message_to_agent requires a target and content"), nil
	}

	targetID, ok := t.resolveTarget(target)
	if !ok {
		return failure(fmt.Sprintf("no agent named %q; check view_agent_graph", target)), nil
	}

	env := graph.NewEnvelope(graph.UserSender, targetID, content)
	env.Kind = graph.KindInstruction
	env.Priority = graph.PriorityHigh
	if err := t.graph.Deliver(env); err != nil {
		return failure(fmt.Sprintf("could not deliver message: %v", err)), nil
	}
	return map[string]any{"success": true, "delivered_to": targetID}, nil
}

func (t *GraphTools) stopAgent(ctx context.Context, caller tool.AgentState, args map[string]any) (map[string]any, error) {
	target, _ := args["id"].(string)
	if target == "" {
		return failure("stop_agent requires an agent id"), nil
	}
	targetID, ok := t.resolveTarget(target)
	if !ok {
		return failure(fmt.Sprintf("no agent named %q", target)), nil
	}

	status, _ := t.graph.Status(targetID)
	if status.IsTerminal() {
		return map[string]any{"success": true, "status": string(status), "message": "agent already finished"}, nil
	}

	// Mark stopping first so observers see the transition, then cancel
	// the worker's in-flight work.
	if err := t.graph.SetStatus(targetID, graph.StatusStopping); err != nil {
		return failure(fmt.Sprintf("could not stop agent: %v", err)), nil
	}
	t.pool.Stop(targetID)

	return map[string]any{"success": true, "status": string(graph.StatusStopping)}, nil
}

func (t *GraphTools) waitForMessage(ctx context.Context, caller tool.AgentState, args map[string]any) (map[string]any, error) {
	reason, _ := args["reason"].(string)
	if reason == "" {
		return failure("wait_for_message requires a reason"), nil
	}

	st := t.rt.State(caller.AgentID())
	if st == nil {
		return failure("calling agent has no running worker"), nil
	}
	st.EnterWaiting(reason, false)
	if err := t.graph.SetStatus(caller.AgentID(), graph.StatusWaiting); err != nil {
		return failure(fmt.Sprintf("could not enter waiting: %v", err)), nil
	}
	return map[string]any{
		"success": true,
		"status":  string(graph.StatusWaiting),
		"message": "waiting for a message; you resume when one arrives or after the idle timeout",
	}, nil
}

func (t *GraphTools) viewGraph(ctx context.Context, caller tool.AgentState, args map[string]any) (map[string]any, error) {
	return map[string]any{
		"success": true,
		"graph":   t.graph.RenderTree(caller.AgentID()),
	}, nil
}

// resolveTarget accepts an agent id or a display name.
func (t *GraphTools) resolveTarget(target string) (string, bool) {
	if _, ok := t.graph.Node(target); ok {
		return target, true
	}
	return t.graph.ResolveName(target)
}

// moduleArg decodes the prompt_modules argument and validates it
// against the closed registry.
func moduleArg(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("prompt_modules must be a JSON array of module names")
	}
	modules := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("prompt_modules must be a JSON array of module names")
		}
		modules = append(modules, s)
	}
	if err := ValidateModules(modules); err != nil {
		return nil, err
	}
	return modules, nil
}

func failure(msg string) map[string]any {
	return map[string]any{"success": false, "message": msg}
}

// RegisterSandboxTools adds the sandbox-proxied execution tools. They
// carry no local implementation; the dispatcher routes them to the
// workspace tool-server.
func RegisterSandboxTools(r *tool.Registry) error {
	specs := []*tool.Config{
		tool.NewConfig().
			SetName("terminal_command").
			SetDescription("Run a shell command in your sandbox workspace and return its output.").
			AddParam("command", "The command line to execute", true).
			AddParam("timeout", "Seconds before the command is killed (optional)", false).
			SetRunsInSandbox(true).
			SetParallelizable(true),

		tool.NewConfig().
			SetName("python_code").
			SetDescription("Execute a Python snippet in the sandbox and return stdout plus the final expression value.").
			AddParam("code", "Python source to execute", true).
			SetRunsInSandbox(true),

		tool.NewConfig().
			SetName("read_file").
			SetDescription("Read a file from the sandbox workspace.").
			AddParam("path", "Absolute path inside the workspace", true).
			SetRunsInSandbox(true).
			SetParallelizable(true),

		tool.NewConfig().
			SetName("create_file").
			SetDescription("Create or overwrite a file in the sandbox workspace.").
			AddParam("path", "Absolute path inside the workspace", true).
			AddParam("content", "File contents", true).
			SetRunsInSandbox(true),

		tool.NewConfig().
			SetName("str_replace").
			SetDescription("Replace an exact string in a sandbox file.").
			AddParam("path", "Absolute path inside the workspace", true).
			AddParam("old_str", "Exact text to replace", true).
			AddParam("new_str", "Replacement text", true).
			SetRunsInSandbox(true),

		tool.NewConfig().
			SetName("browser_action").
			SetDescription("Drive the sandbox browser: navigate, click, type, or screenshot. Screenshots come back as image attachments.").
			AddParam("action", "One of navigate, click, type, screenshot", true).
			AddParam("url", "Target URL for navigate", false).
			AddParam("selector", "CSS selector for click/type", false).
			AddParam("text", "Text for type", false).
			SetRunsInSandbox(true),
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
