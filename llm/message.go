package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	// RoleSystem represents system-level instructions or context.
	RoleSystem Role = "system"

	// RoleUser represents messages from the user or the orchestrator.
	RoleUser Role = "user"

	// RoleAssistant represents messages from the model.
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the role is one of the defined constants.
func (r Role) IsValid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// ChunkType identifies the kind of content a chunk carries.
type ChunkType string

const (
	// ChunkText is a plain text chunk.
	ChunkText ChunkType = "text"

	// ChunkImage is a base64-encoded PNG image reference.
	ChunkImage ChunkType = "image"
)

// Chunk is one element of a message's content sequence.
// Text chunks carry prose; image chunks carry base64 PNG data.
type Chunk struct {
	// Type discriminates between text and image chunks.
	Type ChunkType `json:"type"`

	// Text is the chunk content. Only valid when Type is ChunkText.
	Text string `json:"text,omitempty"`

	// ImageData is base64-encoded PNG data. Only valid when Type is ChunkImage.
	ImageData string `json:"image_data,omitempty"`

	// Ephemeral marks the chunk for provider-side prompt caching.
	// Rendered as a cache_control annotation on the wire.
	Ephemeral bool `json:"-"`
}

// TextChunk creates a plain text chunk.
func TextChunk(text string) Chunk {
	return Chunk{Type: ChunkText, Text: text}
}

// ImageChunk creates an image chunk from base64 PNG data.
func ImageChunk(data string) Chunk {
	return Chunk{Type: ChunkImage, ImageData: data}
}

// Message represents a single message in a conversation.
type Message struct {
	// Role indicates who sent the message.
	Role Role `json:"role"`

	// Content is the ordered sequence of text and image chunks.
	Content []Chunk `json:"content"`

	// Thinking carries the model's reasoning output, when the provider
	// returns it separately from the visible content.
	Thinking string `json:"thinking,omitempty"`
}

// NewTextMessage creates a message holding a single text chunk.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []Chunk{TextChunk(text)}}
}

// Text returns the concatenated text of all text chunks.
func (m Message) Text() string {
	var out string
	for _, c := range m.Content {
		if c.Type == ChunkText {
			out += c.Text
		}
	}
	return out
}

// HasImages reports whether the message contains any image chunks.
func (m Message) HasImages() bool {
	for _, c := range m.Content {
		if c.Type == ChunkImage {
			return true
		}
	}
	return false
}

// IsValid validates that the message has a known role and non-empty content.
func (m Message) IsValid() bool {
	if !m.Role.IsValid() {
		return false
	}
	if len(m.Content) == 0 {
		return false
	}
	for _, c := range m.Content {
		switch c.Type {
		case ChunkText:
			if c.Text == "" {
				return false
			}
		case ChunkImage:
			if c.ImageData == "" {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// StripImages returns a copy of the message with each image chunk replaced
// by a fixed text placeholder. Used when the model does not support vision.
func (m Message) StripImages() Message {
	if !m.HasImages() {
		return m
	}
	out := Message{Role: m.Role, Thinking: m.Thinking}
	out.Content = make([]Chunk, 0, len(m.Content))
	for _, c := range m.Content {
		if c.Type == ChunkImage {
			out.Content = append(out.Content, TextChunk("[image omitted: model does not support vision]"))
			continue
		}
		out.Content = append(out.Content, c)
	}
	return out
}
