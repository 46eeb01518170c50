package types

import "encoding/json"

// GenerateRequest is the raw completion request payload for POST /v1/completions.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	Prompt string `json:"prompt"`
	// If true, stream results as SSE events; otherwise a single JSON response.
	Stream bool `json:"stream,omitempty"`
	// Maximum number of new tokens to generate. Defaults to 256, capped server-side.
	MaxTokens int `json:"max_tokens,omitempty"`
	// Sampling temperature (higher = more random).
	Temperature float32 `json:"temperature,omitempty"`
	// Nucleus sampling probability.
	TopP float32 `json:"top_p,omitempty"`
	// Penalty applied once per distinct token already generated.
	PresencePenalty float32 `json:"presence_penalty,omitempty"`
	// Penalty scaled by how often a token has been generated.
	FrequencyPenalty float32 `json:"frequency_penalty,omitempty"`
	// Stop sequences. Generation stops before any matched sequence is emitted.
	Stop StringOrList `json:"stop,omitempty"`
}

// Role identifies the speaker of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Display returns the prompt-rendering form of the role.
func (r Role) Display() string {
	switch r {
	case RoleSystem:
		return "System"
	case RoleAssistant:
		return "Assistant"
	default:
		return "User"
	}
}

// ChatRecord is one message in a chat conversation.
type ChatRecord struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the chat completion request payload for POST /v1/chat/completions.
type ChatRequest struct {
	Messages         []ChatRecord `json:"messages"`
	Stream           bool         `json:"stream,omitempty"`
	MaxTokens        int          `json:"max_tokens,omitempty"`
	Temperature      float32      `json:"temperature,omitempty"`
	TopP             float32      `json:"top_p,omitempty"`
	PresencePenalty  float32      `json:"presence_penalty,omitempty"`
	FrequencyPenalty float32      `json:"frequency_penalty,omitempty"`
	Stop             StringOrList `json:"stop,omitempty"`
}

// StringOrList accepts either a single JSON string or an array of strings.
type StringOrList []string

func (s *StringOrList) UnmarshalJSON(b []byte) error {
	var one string
	if err := json.Unmarshal(b, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// FinishReason explains why generation ended.
type FinishReason string

const (
	// FinishNull means generation is still in progress (streaming deltas).
	FinishNull FinishReason = ""
	// FinishStop means a stop sequence or the end-of-text token matched.
	FinishStop FinishReason = "stop"
	// FinishLength means the max_tokens bound was reached.
	FinishLength FinishReason = "length"
)

// TokenCounter is the usage accounting block of a completion response.
type TokenCounter struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Choice is one completion alternative in a response.
type Choice struct {
	Text         string       `json:"text,omitempty"`
	Message      *ChatRecord  `json:"message,omitempty"`
	Index        int          `json:"index"`
	FinishReason FinishReason `json:"finish_reason"`
}

// CompletionResponse is the buffered (non-streaming) response body.
type CompletionResponse struct {
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []Choice     `json:"choices"`
	Usage   TokenCounter `json:"usage"`
}

// StreamDelta is one SSE event payload while streaming.
type StreamDelta struct {
	Object       string       `json:"object"`
	Model        string       `json:"model"`
	Delta        string       `json:"delta"`
	FinishReason FinishReason `json:"finish_reason,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
