package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_IsValid(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"text message", NewTextMessage(RoleUser, "hello"), true},
		{"mixed chunks", Message{Role: RoleUser, Content: []Chunk{TextChunk("see"), ImageChunk("aGk=")}}, true},
		{"unknown role", Message{Role: "tool", Content: []Chunk{TextChunk("x")}}, false},
		{"empty content", Message{Role: RoleUser}, false},
		{"empty text chunk", Message{Role: RoleUser, Content: []Chunk{{Type: ChunkText}}}, false},
		{"empty image chunk", Message{Role: RoleUser, Content: []Chunk{{Type: ChunkImage}}}, false},
		{"unknown chunk type", Message{Role: RoleUser, Content: []Chunk{{Type: "audio"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.IsValid())
		})
	}
}

func TestMessage_Text(t *testing.T) {
	m := Message{Role: RoleAssistant, Content: []Chunk{
		TextChunk("part one "),
		ImageChunk("aW1n"),
		TextChunk("part two"),
	}}
	assert.Equal(t, "part one part two", m.Text())
}

func TestMessage_StripImages(t *testing.T) {
	m := Message{Role: RoleUser, Content: []Chunk{
		TextChunk("look:"),
		ImageChunk("aW1n"),
	}}

	stripped := m.StripImages()
	assert.False(t, stripped.HasImages())
	assert.True(t, strings.Contains(stripped.Text(), "image omitted"))

	// Original untouched.
	assert.True(t, m.HasImages())
}

func TestMessage_StripImages_NoOp(t *testing.T) {
	m := NewTextMessage(RoleUser, "plain")
	assert.Equal(t, m, m.StripImages())
}

func TestRole_IsValid(t *testing.T) {
	assert.True(t, RoleSystem.IsValid())
	assert.True(t, RoleUser.IsValid())
	assert.True(t, RoleAssistant.IsValid())
	assert.False(t, Role("tool").IsValid())
}

func TestMiddleTruncate(t *testing.T) {
	small := strings.Repeat("a", 100)
	assert.Equal(t, small, MiddleTruncate(small))

	exact := strings.Repeat("a", MaxInlineResult)
	assert.Equal(t, exact, MiddleTruncate(exact))

	big := strings.Repeat("h", 6000) + strings.Repeat("t", 6000)
	got := MiddleTruncate(big)
	assert.Less(t, len(got), len(big))
	assert.True(t, strings.HasPrefix(got, "hhhh"))
	assert.True(t, strings.HasSuffix(got, "tttt"))
	assert.Contains(t, got, "truncated")
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "short", TruncateError("short"))
	long := strings.Repeat("e", 600)
	assert.Len(t, TruncateError(long), MaxErrorLength)
}
