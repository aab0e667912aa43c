package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseToolInvocations(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantName string
		wantArgs map[string]any
	}{
		{
			name:     "single invocation with string args",
			content:  `I'll check the login page.` + "\n" + `<function name="browser_action"><parameter name="action">goto</parameter><parameter name="url">https://example.test/login</parameter></function>`,
			wantName: "browser_action",
			wantArgs: map[string]any{"action": "goto", "url": "https://example.test/login"},
		},
		{
			name:     "json object argument",
			content:  `<function name="create_vulnerability_report"><parameter name="evidence">{"poc_payload":"<script>alert(1)</script>"}</parameter></function>`,
			wantName: "create_vulnerability_report",
			wantArgs: map[string]any{"evidence": map[string]any{"poc_payload": "<script>alert(1)</script>"}},
		},
		{
			name:     "boolean and number arguments",
			content:  `<function name="verify_vulnerability_report"><parameter name="verified">true</parameter><parameter name="attempts">3</parameter></function>`,
			wantName: "verify_vulnerability_report",
			wantArgs: map[string]any{"verified": true, "attempts": float64(3)},
		},
		{
			name:     "only first block honoured",
			content:  `<function name="first"><parameter name="a">1</parameter></function><function name="second"><parameter name="b">2</parameter></function>`,
			wantName: "first",
			wantArgs: map[string]any{"a": float64(1)},
		},
		{
			name:     "multiline parameter value",
			content:  "<function name=\"terminal_execute\"><parameter name=\"command\">curl -s \\\n  https://example.test</parameter></function>",
			wantName: "terminal_execute",
			wantArgs: map[string]any{"command": "curl -s \\\n  https://example.test"},
		},
		{
			name:     "no parameters",
			content:  `<function name="view_agent_graph"></function>`,
			wantName: "view_agent_graph",
			wantArgs: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolInvocations(tt.content)
			require.Len(t, got, 1)
			assert.Equal(t, tt.wantName, got[0].Name)
			assert.Equal(t, tt.wantArgs, got[0].Args)
		})
	}
}

func TestParseToolInvocations_None(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"plain prose", "Let me think about the attack surface first."},
		{"empty", ""},
		{"malformed open tag", "<function browser_action>goto</function>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ParseToolInvocations(tt.content))
		})
	}
}

func TestTruncateAtStop(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "truncates after first closing tag",
			content: `<function name="a"></function> trailing text <function name="b"></function>`,
			want:    `<function name="a"></function>`,
		},
		{
			name:    "no tag passes through",
			content: "just prose",
			want:    "just prose",
		},
		{
			name:    "empty",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateAtStop(tt.content))
		})
	}
}

func TestToolInvocation_Accessors(t *testing.T) {
	inv := ToolInvocation{Name: "t", Args: map[string]any{
		"s": "text",
		"b": true,
		"m": map[string]any{"k": "v"},
	}}

	s, ok := inv.StringArg("s")
	assert.True(t, ok)
	assert.Equal(t, "text", s)

	_, ok = inv.StringArg("missing")
	assert.False(t, ok)

	b, ok := inv.BoolArg("b")
	assert.True(t, ok)
	assert.True(t, b)

	m, ok := inv.MapArg("m")
	assert.True(t, ok)
	assert.Equal(t, map[string]any{"k": "v"}, m)
}
