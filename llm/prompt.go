package llm

import (
	"fmt"
	"strings"
)

// maxCachedMessages is the cap on history messages that receive an
// ephemeral cache marker, not counting the system message.
const maxCachedMessages = 3

// CacheInterval returns the marker placement interval for a history of n
// messages: the smallest multiple of 10 such that floor((n-1)/k) does not
// exceed maxCachedMessages.
func CacheInterval(n int) int {
	k := 10
	for (n-1)/k > maxCachedMessages {
		k += 10
	}
	return k
}

// PromptConfig controls prompt assembly for one agent.
type PromptConfig struct {
	// SystemPrompt is the fixed system text rendered once per agent.
	SystemPrompt string

	// AgentName and AgentID populate the identity block.
	AgentName string
	AgentID   string

	// SupportsCaching enables ephemeral cache-control markers.
	SupportsCaching bool

	// SupportsVision keeps image chunks in the outbound prompt.
	// When false, image chunks are replaced by text placeholders.
	SupportsVision bool
}

// identityBlock restates the agent's own name and id at the head of the
// conversation so the model keeps its identity across compression.
func identityBlock(name, id string) string {
	return fmt.Sprintf("<agent_identity>\nYou are agent %q (id: %s). Messages addressed to this id are for you.\n</agent_identity>", name, id)
}

// AssemblePrompt builds the outbound message sequence for one completion
// call: system prompt, identity block, then the compressed history. Cache
// markers are applied last so they land on the final shape of the prompt.
func AssemblePrompt(cfg PromptConfig, history []Message) []Message {
	out := make([]Message, 0, len(history)+2)
	out = append(out, NewTextMessage(RoleSystem, cfg.SystemPrompt))
	out = append(out, NewTextMessage(RoleUser, identityBlock(cfg.AgentName, cfg.AgentID)))

	for _, m := range Compress(history) {
		if !cfg.SupportsVision {
			m = m.StripImages()
		}
		out = append(out, m)
	}

	if cfg.SupportsCaching {
		applyCacheMarkers(out)
	}
	return out
}

// applyCacheMarkers marks the system message and up to maxCachedMessages
// history messages, placed every CacheInterval(n) messages, as ephemeral.
func applyCacheMarkers(msgs []Message) {
	if len(msgs) == 0 {
		return
	}
	msgs[0].Content = markLast(msgs[0].Content)

	n := len(msgs)
	if n < 2 {
		return
	}
	k := CacheInterval(n)
	marked := 0
	for i := k; i < n && marked < maxCachedMessages; i += k {
		msgs[i].Content = markLast(msgs[i].Content)
		marked++
	}
}

// markLast returns a copy of chunks with the final chunk marked
// ephemeral. History messages share chunk backing arrays with the
// agent's stored conversation, so marking in place would leak markers
// into the log and accumulate them as the cache interval grows.
func markLast(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return chunks
	}
	out := make([]Chunk, len(chunks))
	copy(out, chunks)
	out[len(out)-1].Ephemeral = true
	return out
}

// Compress is the history-compression pass applied before each completion
// call. It is a pure function of the log: idempotent, order-preserving, and
// never mutating its input. Oversize tool-result observations are replaced
// by middle-truncated equivalents; everything else passes through.
func Compress(history []Message) []Message {
	out := make([]Message, len(history))
	for i, m := range history {
		out[i] = compressMessage(m)
	}
	return out
}

func compressMessage(m Message) Message {
	needsWork := false
	for _, c := range m.Content {
		if c.Type == ChunkText && len(c.Text) > MaxInlineResult {
			needsWork = true
			break
		}
	}
	if !needsWork {
		return m
	}
	out := Message{Role: m.Role, Thinking: m.Thinking}
	out.Content = make([]Chunk, len(m.Content))
	for i, c := range m.Content {
		if c.Type == ChunkText && len(c.Text) > MaxInlineResult {
			c.Text = MiddleTruncate(c.Text)
		}
		out.Content[i] = c
	}
	return out
}

// EmptyResponseCorrective is the user message appended when the model
// returns an empty response, steering it toward an explicit action.
const EmptyResponseCorrective = "Your last response was empty. If you are waiting on another agent, call wait_for_message; if your work is done, call agent_finish (or finish_scan for the root agent). Otherwise continue with a concrete tool call."

// IsEmptyResponse reports whether stripped assistant content is empty.
func IsEmptyResponse(content string) bool {
	return strings.TrimSpace(content) == ""
}
