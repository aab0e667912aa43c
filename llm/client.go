package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// Usage holds the token accounting block returned with a completion.
type Usage struct {
	// InputTokens is the number of prompt tokens.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the number of generated tokens.
	OutputTokens int `json:"output_tokens"`

	// CachedTokens is the number of prompt tokens served from cache.
	CachedTokens int `json:"cached_tokens"`

	// CacheCreationTokens is the number of tokens written to cache.
	CacheCreationTokens int `json:"cache_creation_tokens"`

	// Cost is the request cost in USD, zero when model metadata is absent.
	Cost float64 `json:"cost"`
}

// Add combines two Usage values.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:         u.InputTokens + other.InputTokens,
		OutputTokens:        u.OutputTokens + other.OutputTokens,
		CachedTokens:        u.CachedTokens + other.CachedTokens,
		CacheCreationTokens: u.CacheCreationTokens + other.CacheCreationTokens,
		Cost:                u.Cost + other.Cost,
	}
}

// Completion is the successful result of one model call.
type Completion struct {
	// Content is the assistant text, already truncated at the stop tag.
	Content string

	// Thinking carries reasoning blocks when the provider returns them.
	Thinking string

	// Usage is the provider-reported token accounting for this call.
	Usage Usage
}

// Client is the completion transport consumed by the agent loop.
// Implementations return (*Completion, nil) or (nil, *RequestError); no
// other error type crosses this boundary.
type Client interface {
	Complete(ctx context.Context, messages []Message) (*Completion, error)
}

// Config holds model and transport settings for the HTTP client.
type Config struct {
	// Model is the provider model selector.
	Model string `yaml:"model"`

	// APIKey authenticates against the provider. Optional for local gateways.
	APIKey string `yaml:"api_key"`

	// APIBase overrides the chat-completion endpoint base URL.
	APIBase string `yaml:"api_base"`

	// Timeout bounds one completion call end to end.
	Timeout time.Duration `yaml:"timeout"`

	// ReasoningEffort is passed through to reasoning-capable models.
	ReasoningEffort string `yaml:"reasoning_effort"`

	// SupportsVision keeps image chunks in prompts.
	SupportsVision bool `yaml:"supports_vision"`

	// SupportsCaching enables ephemeral cache markers.
	SupportsCaching bool `yaml:"supports_caching"`

	// SupportsStops sends the stop sequence with requests. Providers that
	// ignore stops rely on post-hoc truncation instead.
	SupportsStops bool `yaml:"supports_stops"`

	// InputCostPerToken and OutputCostPerToken compute request cost.
	// Zero values yield zero cost.
	InputCostPerToken  float64 `yaml:"input_cost_per_token"`
	OutputCostPerToken float64 `yaml:"output_cost_per_token"`
}

// Validate checks the configuration for required fields.
func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

// ConfigFromEnv builds a Config from environment variables, applying
// defaults for anything unset.
func ConfigFromEnv() Config {
	cfg := Config{
		Model:           os.Getenv("SWARM_LLM_MODEL"),
		APIKey:          os.Getenv("SWARM_LLM_API_KEY"),
		APIBase:         os.Getenv("SWARM_LLM_API_BASE"),
		Timeout:         5 * time.Minute,
		SupportsVision:  true,
		SupportsCaching: true,
		SupportsStops:   true,
	}
	if v := os.Getenv("SWARM_LLM_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}
	return cfg
}

// HTTPClient is the chat-completion transport over HTTPS.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

// NewHTTPClient creates an HTTP completion client from the configuration.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm config: %w", err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// wire types for the chat-completion endpoint.

type wireContentItem struct {
	Type         string         `json:"type"`
	Text         string         `json:"text,omitempty"`
	ImageData    string         `json:"image_data,omitempty"`
	CacheControl *wireCacheCtrl `json:"cache_control,omitempty"`
}

type wireCacheCtrl struct {
	Type string `json:"type"`
}

type wireMessage struct {
	Role    string            `json:"role"`
	Content []wireContentItem `json:"content"`
}

type wireRequest struct {
	Model           string        `json:"model"`
	Messages        []wireMessage `json:"messages"`
	Stop            []string      `json:"stop,omitempty"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

type wireResponse struct {
	Choices []struct {
		Message struct {
			Content        string `json:"content"`
			ThinkingBlocks []struct {
				Thinking string `json:"thinking"`
			} `json:"thinking_blocks,omitempty"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens        int `json:"prompt_tokens"`
		CompletionTokens    int `json:"completion_tokens"`
		PromptTokensDetails *struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

func (c *HTTPClient) endpoint() string {
	base := c.cfg.APIBase
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	return base + "/chat/completions"
}

// Complete sends one chat-completion request. The response content is
// truncated at the first closing function tag regardless of whether the
// provider honoured the stop sequence.
func (c *HTTPClient) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	req := wireRequest{
		Model:           c.cfg.Model,
		Messages:        encodeMessages(messages),
		ReasoningEffort: c.cfg.ReasoningEffort,
	}
	if c.cfg.SupportsStops {
		req.Stop = []string{StopFunction}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &RequestError{Kind: FailureBadRequest, Detail: err.Error(), Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Kind: FailureBadRequest, Detail: err.Error(), Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &RequestError{Kind: ClassifyTransport(err), Detail: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Kind: FailureConnection, Detail: err.Error(), Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		detail := string(respBody)
		return nil, &RequestError{
			Kind:       ClassifyStatus(resp.StatusCode, detail),
			Detail:     detail,
			StatusCode: resp.StatusCode,
		}
	}

	var wire wireResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, &RequestError{Kind: FailureOther, Detail: fmt.Sprintf("malformed response: %v", err), Cause: err}
	}
	if len(wire.Choices) == 0 {
		return nil, &RequestError{Kind: FailureOther, Detail: "response contained no choices"}
	}

	comp := &Completion{
		Content: TruncateAtStop(wire.Choices[0].Message.Content),
	}
	for _, tb := range wire.Choices[0].Message.ThinkingBlocks {
		comp.Thinking += tb.Thinking
	}
	if u := wire.Usage; u != nil {
		comp.Usage = Usage{
			InputTokens:         u.PromptTokens,
			OutputTokens:        u.CompletionTokens,
			CacheCreationTokens: u.CacheCreationInputTokens,
		}
		if u.PromptTokensDetails != nil {
			comp.Usage.CachedTokens = u.PromptTokensDetails.CachedTokens
		}
		comp.Usage.Cost = float64(u.PromptTokens)*c.cfg.InputCostPerToken +
			float64(u.CompletionTokens)*c.cfg.OutputCostPerToken
	}
	return comp, nil
}

func encodeMessages(messages []Message) []wireMessage {
	out := make([]wireMessage, len(messages))
	for i, m := range messages {
		wm := wireMessage{Role: m.Role.String()}
		for _, chunk := range m.Content {
			item := wireContentItem{Type: string(chunk.Type)}
			switch chunk.Type {
			case ChunkText:
				item.Text = chunk.Text
			case ChunkImage:
				item.ImageData = chunk.ImageData
			}
			if chunk.Ephemeral {
				item.CacheControl = &wireCacheCtrl{Type: "ephemeral"}
			}
			wm.Content = append(wm.Content, item)
		}
		out[i] = wm
	}
	return out
}
