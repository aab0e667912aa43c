package dispatch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zero-day-ai/swarm/llm"
)

// screenshotField is the conventional result key tools put base64 PNG
// captures under.
const screenshotField = "screenshot"

const screenshotPlaceholder = "[screenshot attached]"

// result is one invocation's outcome, positioned by its original index.
type result struct {
	name    string
	text    string
	images  []string
	isError bool
}

func errorResult(name, msg string) result {
	return result{name: name, text: llm.TruncateError(msg), isError: true}
}

// valueResult renders a tool's return value. Map results have screenshot
// attachments lifted into the image list; the text is middle-truncated
// before inlining.
func valueResult(name string, value any) result {
	r := result{name: name}

	if m, ok := value.(map[string]any); ok {
		if shot, ok := m[screenshotField].(string); ok && shot != "" {
			r.images = append(r.images, shot)
			clone := make(map[string]any, len(m))
			for k, v := range m {
				clone[k] = v
			}
			clone[screenshotField] = screenshotPlaceholder
			m = clone
		}
		value = m
	}

	r.text = llm.MiddleTruncate(renderValue(value))
	return r
}

func renderValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "ok"
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// renderObservation folds a turn's results into one user message: a
// <tool_result> block per invocation in original order, followed by any
// lifted images. Images are dropped when the model has no vision.
func renderObservation(results []result, supportsVision bool) llm.Message {
	var b strings.Builder
	var images []string

	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		if r.isError {
			fmt.Fprintf(&b, "<tool_result tool=%q error=\"true\">\n%s\n</tool_result>", r.name, r.text)
		} else {
			fmt.Fprintf(&b, "<tool_result tool=%q>\n%s\n</tool_result>", r.name, r.text)
		}
		if supportsVision {
			images = append(images, r.images...)
		}
	}

	msg := llm.Message{
		Role:    llm.RoleUser,
		Content: []llm.Chunk{llm.TextChunk(b.String())},
	}
	for _, img := range images {
		msg.Content = append(msg.Content, llm.ImageChunk(img))
	}
	return msg
}
