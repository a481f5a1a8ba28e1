package domain

// Message roles understood by the inference endpoint.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is one outbound, non-streaming inference call.
type CompletionRequest struct {
	ModelID      string
	SystemPrompt string
	Messages     []ChatMessage
	MaxTokens    int
	Temperature  float64
	TopP         float64
}

// Completion is the endpoint's answer to a CompletionRequest. Text is empty
// when the response carried no extractable text; Usage fields stay absent
// when the endpoint did not report them.
type Completion struct {
	Text       string
	StopReason string
	Usage      Usage
}

// Usage carries optional token counters reported by the inference endpoint.
// Pointer fields distinguish "not reported" from zero.
type Usage struct {
	InputTokens  *int `json:"inputTokens,omitempty"`
	OutputTokens *int `json:"outputTokens,omitempty"`
}
