package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoFunc(ctx context.Context, args map[string]any) (map[string]any, error) {
	return map[string]any{"echo": args}, nil
}

func TestSpec_Kind(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want Kind
	}{
		{"sandbox", Spec{RunsInSandbox: true}, KindSandboxProxy},
		{"state", Spec{NeedsAgentState: true}, KindStateFunc},
		{"plain", Spec{}, KindFunc},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Kind())
		})
	}
}

func TestConfig_Build(t *testing.T) {
	spec, err := NewConfig().
		SetName("web_search").
		SetDescription("Searches the web.").
		AddParam("query", "search terms", true).
		AddParam("max_results", "result cap", false).
		SetParallelizable(true).
		SetFunc(echoFunc).
		Build()

	require.NoError(t, err)
	assert.Equal(t, "web_search", spec.Name)
	assert.True(t, spec.Parallelizable)
	assert.False(t, spec.RunsInSandbox)
	assert.Len(t, spec.Params, 2)
	assert.Equal(t, KindFunc, spec.Kind())
}

func TestConfig_Build_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{
			name:    "missing name",
			cfg:     NewConfig().SetDescription("d").SetFunc(echoFunc),
			wantErr: "name cannot be empty",
		},
		{
			name:    "missing description",
			cfg:     NewConfig().SetName("t").SetFunc(echoFunc),
			wantErr: "description cannot be empty",
		},
		{
			name:    "missing implementation",
			cfg:     NewConfig().SetName("t").SetDescription("d"),
			wantErr: "implementation is required",
		},
		{
			name: "sandbox with implementation",
			cfg: NewConfig().SetName("t").SetDescription("d").
				SetRunsInSandbox(true).SetFunc(echoFunc),
			wantErr: "cannot carry a local implementation",
		},
		{
			name: "both variants",
			cfg: NewConfig().SetName("t").SetDescription("d").
				SetFunc(echoFunc).
				SetStateFunc(func(ctx context.Context, st AgentState, args map[string]any) (map[string]any, error) {
					return nil, nil
				}),
			wantErr: "only one implementation variant",
		},
		{
			name: "empty param name",
			cfg: NewConfig().SetName("t").SetDescription("d").
				AddParam("", "x", false).SetFunc(echoFunc),
			wantErr: "parameter name cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSpec_ValidateArgs(t *testing.T) {
	spec, err := NewConfig().
		SetName("file_read").
		SetDescription("Reads a file.").
		AddParam("path", "file path", true).
		AddParam("limit", "line cap", false).
		SetFunc(echoFunc).
		Build()
	require.NoError(t, err)

	assert.NoError(t, spec.ValidateArgs(map[string]any{"path": "/etc/passwd"}))
	assert.NoError(t, spec.ValidateArgs(map[string]any{"path": "/x", "extra": 1}))

	err = spec.ValidateArgs(map[string]any{"limit": 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required argument "path"`)
}

type fakeState struct{ id, name string }

func (s fakeState) AgentID() string   { return s.id }
func (s fakeState) AgentName() string { return s.name }

func TestSpec_Call(t *testing.T) {
	plain, err := NewConfig().SetName("p").SetDescription("d").SetFunc(echoFunc).Build()
	require.NoError(t, err)

	out, err := plain.Call(context.Background(), nil, map[string]any{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, out["echo"])

	withState, err := NewConfig().SetName("s").SetDescription("d").
		SetStateFunc(func(ctx context.Context, st AgentState, args map[string]any) (map[string]any, error) {
			return map[string]any{"agent": st.AgentID()}, nil
		}).Build()
	require.NoError(t, err)

	out, err = withState.Call(context.Background(), fakeState{id: "agent-7"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "agent-7", out["agent"])

	proxy, err := NewConfig().SetName("x").SetDescription("d").SetRunsInSandbox(true).Build()
	require.NoError(t, err)
	_, err = proxy.Call(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	spec, err := NewConfig().SetName("a_tool").SetDescription("does a").SetFunc(echoFunc).Build()
	require.NoError(t, err)
	require.NoError(t, r.Register(spec))

	// Duplicate rejected.
	dup, err := NewConfig().SetName("a_tool").SetDescription("again").SetFunc(echoFunc).Build()
	require.NoError(t, err)
	assert.Error(t, r.Register(dup))

	// Nil rejected.
	assert.Error(t, r.Register(nil))

	got, ok := r.Lookup("a_tool")
	require.True(t, ok)
	assert.Equal(t, "does a", got.Description)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	assert.Equal(t, 1, r.Len())
}

func TestRegistry_NamesSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		spec, err := NewConfig().SetName(name).SetDescription("d").SetFunc(echoFunc).Build()
		require.NoError(t, err)
		require.NoError(t, r.Register(spec))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRegistry_Docs(t *testing.T) {
	r := NewRegistry()
	spec, err := NewConfig().
		SetName("browser_action").
		SetDescription("Drives the browser.").
		AddParam("action", "what to do", true).
		SetRunsInSandbox(true).
		Build()
	require.NoError(t, err)
	require.NoError(t, r.Register(spec))

	docs := r.Docs()
	assert.Contains(t, docs, `<tool name="browser_action">`)
	assert.Contains(t, docs, "Drives the browser.")
	assert.Contains(t, docs, `<parameter name="action" required>`)
	assert.Contains(t, docs, "</tools>")
}
