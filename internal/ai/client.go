package ai

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is a single prompt message, including system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenUsage reports token consumption for one completion.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// CompletionRequest describes one completion call.
type CompletionRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// CompletionResponse is the provider-agnostic completion result.
type CompletionResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client abstracts the completion provider. All callers treat failures as
// best-effort: empty or unparsable output means "nothing extracted".
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
