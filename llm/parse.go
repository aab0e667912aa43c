package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// StopFunction is the stop sequence appended to completion requests so the
// model halts after emitting one tool invocation. Providers that do not
// honour stop sequences are handled post hoc by TruncateAtStop.
const StopFunction = "</function>"

// ToolInvocation is one tool call parsed from assistant output.
type ToolInvocation struct {
	// Name is the registered tool name.
	Name string `json:"name"`

	// Args holds the parsed argument values keyed by parameter name.
	Args map[string]any `json:"args"`
}

var (
	functionOpenRe = regexp.MustCompile(`(?s)<function\s+name="([^"]+)"\s*>`)
	parameterRe    = regexp.MustCompile(`(?s)<parameter\s+name="([^"]+)"\s*>(.*?)</parameter>`)
)

// TruncateAtStop cuts the response at the first closing function tag,
// keeping the tag itself. Responses without the tag pass through unchanged.
func TruncateAtStop(content string) string {
	idx := strings.Index(content, StopFunction)
	if idx < 0 {
		return content
	}
	return content[:idx+len(StopFunction)]
}

// ParseToolInvocations scans assistant output for a tool invocation block of
// the form
//
//	<function name="tool_name">
//	  <parameter name="arg">value</parameter>
//	</function>
//
// Only the first block is honoured; anything after it is ignored. A response
// with no block yields an empty slice, which is valid (the model chose not
// to act this turn).
func ParseToolInvocations(content string) []ToolInvocation {
	open := functionOpenRe.FindStringSubmatchIndex(content)
	if open == nil {
		return nil
	}
	name := content[open[2]:open[3]]
	rest := content[open[1]:]

	body := rest
	if end := strings.Index(rest, StopFunction); end >= 0 {
		body = rest[:end]
	}

	args := make(map[string]any)
	for _, m := range parameterRe.FindAllStringSubmatch(body, -1) {
		args[m[1]] = parseArgValue(strings.TrimSpace(m[2]))
	}

	return []ToolInvocation{{Name: name, Args: args}}
}

// parseArgValue decodes a parameter value. JSON literals (objects, arrays,
// numbers, booleans, null) are decoded; everything else stays a string.
func parseArgValue(raw string) any {
	if raw == "" {
		return ""
	}
	switch raw[0] {
	case '{', '[', '"', 't', 'f', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			// Bare words like "true-ish" fail above and fall through; a clean
			// decode that consumed the whole token is trusted.
			return v
		}
	}
	return raw
}

// StringArg extracts a string argument, tolerating non-string JSON scalars.
func (i ToolInvocation) StringArg(key string) (string, bool) {
	v, ok := i.Args[key]
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

// BoolArg extracts a boolean argument.
func (i ToolInvocation) BoolArg(key string) (bool, bool) {
	v, ok := i.Args[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// MapArg extracts a map-valued argument.
func (i ToolInvocation) MapArg(key string) (map[string]any, bool) {
	v, ok := i.Args[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}
