package models

// Message is a role-tagged message in a conversation. ToolCallID ties a tool
// result back to the call that produced it; ToolCalls echoes an assistant
// turn that requested tools.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolSchema describes one callable tool exposed to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a single tool invocation requested by the model. Arguments is
// the raw JSON string as emitted; validation happens at the caller's boundary.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Sampling carries generation parameters for one request.
type Sampling struct {
	Model             string
	Temperature       float64
	TopP              float64
	TopK              int
	RepetitionPenalty float64
	MaxTokens         int
}

// ChatRequest is a single text-generation request.
type ChatRequest struct {
	Messages   []Message
	Tools      []ToolSchema
	ToolChoice string
	Sampling   Sampling
}

// ChatResponse is a discriminated union: either free Text or a list of
// ToolCalls, never both.
type ChatResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// HasToolCalls reports which arm of the union is populated.
func (r ChatResponse) HasToolCalls() bool { return len(r.ToolCalls) > 0 }
