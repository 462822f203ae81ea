package domain

import "time"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// CompletionRequest represents a unified LLM request.
//
// Exactly one of Prompt or Messages must be set; a prompt is shorthand for a
// single-message user conversation. Provider overrides the configured primary
// for this call only.
type CompletionRequest struct {
	Prompt      string         `json:"prompt,omitempty"`
	Messages    []Message      `json:"messages,omitempty"`
	Model       string         `json:"model,omitempty"`
	System      string         `json:"system,omitempty"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature,omitempty"`
	Provider    string         `json:"provider,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// EffectiveMessages returns the conversation to send: Messages when present,
// otherwise Prompt wrapped in a single user message.
func (r *CompletionRequest) EffectiveMessages() []Message {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	return []Message{{Role: "user", Content: r.Prompt}}
}

// ErrorRecord captures one failed attempt against a provider.
// Records are append-only and chronological; records from an abandoned
// provider survive failover into the final response's history.
type ErrorRecord struct {
	Provider  string    `json:"provider"`
	Attempt   int       `json:"attempt"`
	Error     string    `json:"error"`
	ErrorType string    `json:"error_type"`
	Timestamp time.Time `json:"timestamp"`
}

// Usage tracks token consumption.
type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}

// CompletionResponse represents a unified LLM response.
//
// A response is always produced: providers encode expected failures
// (timeouts, refused connections, malformed replies) here with Success=false
// rather than returning an error.
type CompletionResponse struct {
	ID           string        `json:"id,omitempty"`
	Content      string        `json:"content"`
	Success      bool          `json:"success"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	Usage        Usage         `json:"usage"`
	Latency      time.Duration `json:"latency_ns,omitempty"`
	Attempts     int           `json:"attempts"`
	TotalTime    time.Duration `json:"total_time_ns"`
	ErrorHistory []ErrorRecord `json:"error_history,omitempty"`
	FinishTime   time.Time     `json:"finish_time,omitempty"`
}
