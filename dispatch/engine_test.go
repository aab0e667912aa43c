package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/swarm/agent"
	"github.com/zero-day-ai/swarm/finding"
	"github.com/zero-day-ai/swarm/llm"
	"github.com/zero-day-ai/swarm/sandbox"
	"github.com/zero-day-ai/swarm/telemetry"
	"github.com/zero-day-ai/swarm/tool"
	"github.com/zero-day-ai/swarm/vulntype"
)

func mustTool(t *testing.T, cfg *tool.Config) *tool.Spec {
	t.Helper()
	spec, err := cfg.Build()
	require.NoError(t, err)
	return spec
}

func testRegistry(t *testing.T) *tool.Registry {
	t.Helper()
	r := tool.NewRegistry()

	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("echo").
		SetDescription("Echoes its input back.").
		AddParam("text", "text to echo", true).
		SetParallelizable(true).
		SetFunc(func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"echo": args["text"]}, nil
		})))

	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("slow_echo").
		SetDescription("Echoes after a delay.").
		SetParallelizable(true).
		SetFunc(func(ctx context.Context, args map[string]any) (map[string]any, error) {
			time.Sleep(50 * time.Millisecond)
			return map[string]any{"echo": "slow"}, nil
		})))

	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("whoami").
		SetDescription("Reports the calling agent.").
		SetStateFunc(func(ctx context.Context, st tool.AgentState, args map[string]any) (map[string]any, error) {
			return map[string]any{"agent": st.AgentName()}, nil
		})))

	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("explode").
		SetDescription("Always panics.").
		SetParallelizable(true).
		SetFunc(func(ctx context.Context, args map[string]any) (map[string]any, error) {
			panic("boom")
		})))

	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("agent_finish").
		SetDescription("Ends the agent's run.").
		SetTerminal(true).
		SetFunc(func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"success": true}, nil
		})))

	return r
}

func testState(t *testing.T, opts ...agent.Option) *agent.State {
	t.Helper()
	st, err := agent.New("agent-1", "scanner", opts...)
	require.NoError(t, err)
	return st
}

func inv(name string, args map[string]any) llm.ToolInvocation {
	if args == nil {
		args = map[string]any{}
	}
	return llm.ToolInvocation{Name: name, Args: args}
}

func TestClassify(t *testing.T) {
	r := testRegistry(t)
	w := classify(r, []llm.ToolInvocation{
		inv("echo", map[string]any{"text": "a"}),
		inv("whoami", nil),
		inv("agent_finish", nil),
		inv("no_such_tool", nil),
		inv("slow_echo", nil),
	})

	require.Len(t, w.parallel, 2)
	assert.Equal(t, 0, w.parallel[0].index)
	assert.Equal(t, 4, w.parallel[1].index)

	require.Len(t, w.sequential, 2)
	assert.Equal(t, 1, w.sequential[0].index)
	assert.Equal(t, 3, w.sequential[1].index)
	assert.Nil(t, w.sequential[1].spec)

	require.Len(t, w.finish, 1)
	assert.Equal(t, 2, w.finish[0].index)
}

func TestDispatch_OrderPreserved(t *testing.T) {
	e, err := NewEngine(testRegistry(t))
	require.NoError(t, err)
	st := testState(t)

	out, err := e.Dispatch(context.Background(), st, []llm.ToolInvocation{
		inv("slow_echo", nil),
		inv("whoami", nil),
		inv("echo", map[string]any{"text": "first"}),
	})
	require.NoError(t, err)
	assert.False(t, out.ShouldFinish)

	text := out.Observation.Text()
	slowPos := strings.Index(text, `"echo":"slow"`)
	whoPos := strings.Index(text, `"agent":"scanner"`)
	echoPos := strings.Index(text, `"echo":"first"`)
	require.True(t, slowPos >= 0 && whoPos >= 0 && echoPos >= 0, text)
	assert.Less(t, slowPos, whoPos, "results must follow invocation order")
	assert.Less(t, whoPos, echoPos)
}

func TestDispatch_UnknownToolAndPanic(t *testing.T) {
	e, err := NewEngine(testRegistry(t))
	require.NoError(t, err)
	st := testState(t)

	out, err := e.Dispatch(context.Background(), st, []llm.ToolInvocation{
		inv("no_such_tool", nil),
		inv("explode", nil),
		inv("echo", map[string]any{"text": "survivor"}),
	})
	require.NoError(t, err)

	text := out.Observation.Text()
	assert.Contains(t, text, `unknown tool "no_such_tool"`)
	assert.Contains(t, text, "tool panicked: boom")
	assert.Contains(t, text, `"echo":"survivor"`, "siblings of a panicking task must still run")
	assert.Contains(t, text, `error="true"`)
}

func TestDispatch_MissingRequiredArg(t *testing.T) {
	e, err := NewEngine(testRegistry(t))
	require.NoError(t, err)
	st := testState(t)

	out, err := e.Dispatch(context.Background(), st, []llm.ToolInvocation{inv("echo", nil)})
	require.NoError(t, err)
	assert.Contains(t, out.Observation.Text(), `missing required argument "text"`)
	assert.Empty(t, st.Actions(), "invalid invocations are not recorded as actions")
}

func TestDispatch_FinishSignal(t *testing.T) {
	e, err := NewEngine(testRegistry(t))
	require.NoError(t, err)
	st := testState(t)

	out, err := e.Dispatch(context.Background(), st, []llm.ToolInvocation{
		inv("echo", map[string]any{"text": "wrap up"}),
		inv("agent_finish", nil),
	})
	require.NoError(t, err)
	assert.True(t, out.ShouldFinish)
}

func TestDispatch_ParallelConcurrency(t *testing.T) {
	r := tool.NewRegistry()
	var running, peak int32
	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("gauge").
		SetDescription("Tracks concurrent executions.").
		SetParallelizable(true).
		SetFunc(func(ctx context.Context, args map[string]any) (map[string]any, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return map[string]any{"ok": true}, nil
		})))

	st := testState(t)
	invs := make([]llm.ToolInvocation, 8)
	for i := range invs {
		invs[i] = inv("gauge", nil)
	}

	e, err := NewEngine(r)
	require.NoError(t, err)
	_, err = e.Dispatch(context.Background(), st, invs)
	require.NoError(t, err)
	assert.EqualValues(t, 8, atomic.LoadInt32(&peak), "unbounded wave runs all tasks at once")

	atomic.StoreInt32(&peak, 0)
	capped, err := NewEngine(r, WithMaxConcurrency(2))
	require.NoError(t, err)
	_, err = capped.Dispatch(context.Background(), st, invs)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestDispatch_SandboxRouting(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AgentID  string         `json:"agent_id"`
			ToolName string         `json:"tool_name"`
			Kwargs   map[string]any `json:"kwargs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		calls = append(calls, body.ToolName)
		mu.Unlock()
		fmt.Fprintf(w, `{"result": {"stdout": "hello from sandbox"}}`)
	}))
	defer srv.Close()

	r := tool.NewRegistry()
	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("terminal_command").
		SetDescription("Runs a shell command in the workspace.").
		SetRunsInSandbox(true).
		AddParam("command", "shell command", true)))

	ws := &sandbox.Workspace{ID: "ws-1", APIURL: srv.URL, AuthToken: "tok"}
	st := testState(t, agent.WithWorkspace(ws))

	e, err := NewEngine(r, WithSandboxRunner(NewRunner()))
	require.NoError(t, err)

	out, err := e.Dispatch(context.Background(), st, []llm.ToolInvocation{
		inv("terminal_command", map[string]any{"command": "echo hi"}),
	})
	require.NoError(t, err)
	assert.Contains(t, out.Observation.Text(), "hello from sandbox")
	assert.Equal(t, []string{"terminal_command"}, calls)

	// Without a workspace the call becomes an error result.
	bare := testState(t)
	out, err = e.Dispatch(context.Background(), bare, []llm.ToolInvocation{
		inv("terminal_command", map[string]any{"command": "echo hi"}),
	})
	require.NoError(t, err)
	assert.Contains(t, out.Observation.Text(), "no sandbox workspace")
}

func TestDispatch_ScreenshotLifting(t *testing.T) {
	r := tool.NewRegistry()
	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("browser_snapshot").
		SetDescription("Returns page state with a screenshot.").
		SetFunc(func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{
				"url":        "https://example.test",
				"screenshot": "aGVsbG8=",
			}, nil
		})))

	st := testState(t)
	invs := []llm.ToolInvocation{inv("browser_snapshot", nil)}

	vision, err := NewEngine(r, WithVision(true))
	require.NoError(t, err)
	out, err := vision.Dispatch(context.Background(), st, invs)
	require.NoError(t, err)
	assert.True(t, out.Observation.HasImages())
	assert.Contains(t, out.Observation.Text(), screenshotPlaceholder)
	assert.NotContains(t, out.Observation.Text(), "aGVsbG8=")

	blind, err := NewEngine(r)
	require.NoError(t, err)
	out, err = blind.Dispatch(context.Background(), st, invs)
	require.NoError(t, err)
	assert.False(t, out.Observation.HasImages(), "images dropped without vision support")
}

func TestDispatch_EmptyInvocations(t *testing.T) {
	e, err := NewEngine(testRegistry(t))
	require.NoError(t, err)
	_, err = e.Dispatch(context.Background(), testState(t), nil)
	assert.Error(t, err)
}

func TestDispatch_ErrorTruncation(t *testing.T) {
	r := tool.NewRegistry()
	r.MustRegister(mustTool(t, tool.NewConfig().
		SetName("verbose_failure").
		SetDescription("Fails with a huge message.").
		SetFunc(func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, fmt.Errorf("%s", strings.Repeat("x", 2000))
		})))

	e, err := NewEngine(r)
	require.NoError(t, err)
	out, err := e.Dispatch(context.Background(), testState(t), []llm.ToolInvocation{inv("verbose_failure", nil)})
	require.NoError(t, err)

	text := out.Observation.Text()
	assert.Less(t, len(text), 800, "tool errors are truncated before inlining")
}

func TestDispatch_WithTracerInstalled(t *testing.T) {
	tracer, err := telemetry.NewTracer(telemetry.TracerConfig{
		ScanID: "scan-test",
		Store:  finding.NewStore(vulntype.MustLoadDefault()),
	})
	require.NoError(t, err)
	telemetry.Install(tracer)
	t.Cleanup(func() { telemetry.Install(nil) })

	e, err := NewEngine(testRegistry(t))
	require.NoError(t, err)

	// Success, panic, and unknown-tool paths all pass through the
	// per-invocation accounting without disturbing their results.
	out, err := e.Dispatch(context.Background(), testState(t), []llm.ToolInvocation{
		inv("echo", map[string]any{"text": "hi"}),
		inv("explode", nil),
		inv("no_such_tool", nil),
	})
	require.NoError(t, err)

	text := out.Observation.Text()
	assert.Contains(t, text, "hi")
	assert.Contains(t, text, "panicked")
	assert.Contains(t, text, "unknown tool")
}
