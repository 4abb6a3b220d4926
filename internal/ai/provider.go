package ai

import "context"

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Options tune a single completion request. Zero values leave the provider's
// configured defaults in place.
type Options struct {
	MaxTokens int
	// JSONMode asks the model for a JSON object response.
	JSONMode bool
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Completion is a model reply.
type Completion struct {
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
	Usage   Usage  `json:"usage"`
}

// Provider is a chat model backend.
type Provider interface {
	// Complete runs a chat completion over messages, in order.
	Complete(ctx context.Context, messages []Message, opts Options) (Completion, error)

	// DescribeImage asks the vision model about the image at imageURL. Both
	// http(s) and data: URLs are accepted.
	DescribeImage(ctx context.Context, imageURL, prompt string) (string, error)
}
