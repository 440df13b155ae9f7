package providers

import (
	"context"
	"encoding/json"
	"errors"
)

// Message roles understood by all providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Stop reasons normalized across providers.
const (
	StopReasonStop      = "stop"
	StopReasonToolCalls = "tool_calls"
)

// ErrToolsUnsupported is returned by providers that cannot handle
// tool-bearing requests.
var ErrToolsUnsupported = errors.New("provider does not support tool calls")

// Tool describes one function the model may invoke. Parameters is a JSON
// Schema object.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ToolCall is a single structured invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Message is one turn in a conversation. Assistant turns that requested
// tools carry ToolCalls; tool-result turns carry ToolCallID.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// Request is the configuration for a single chat call.
type Request struct {
	Model       string
	System      string
	Messages    []Message
	Tools       []Tool
	Temperature float64
	MaxTokens   int
}

// Response is a normalized chat response: either a natural-language stop
// or one-or-more tool invocations.
type Response struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
}

// Provider defines the interface for an LLM provider.
type Provider interface {
	Chat(ctx context.Context, req Request) (Response, error)
}
