package schema

import "encoding/json"

// EventType is the top-level type emitted by the agent's stream-json output.
type EventType string

const (
	// EventSystem carries session metadata (subtype init).
	EventSystem EventType = "system"
	// EventAssistant carries assistant content blocks, including tool calls.
	EventAssistant EventType = "assistant"
	// EventUser echoes tool results back into the conversation.
	EventUser EventType = "user"
	// EventResult terminates an exchange.
	EventResult EventType = "result"
)

// BlockType describes a content block inside an assistant or user message.
type BlockType string

const (
	// BlockText is plain assistant text.
	BlockText BlockType = "text"
	// BlockToolUse is a tool invocation.
	BlockToolUse BlockType = "tool_use"
	// BlockToolResult is a tool result echoed by the user event.
	BlockToolResult BlockType = "tool_result"
)

const (
	// ResultSuccess is the subtype of a successful result event.
	ResultSuccess = "success"
	// SystemInit is the subtype of the session start event.
	SystemInit = "init"
)

// StreamEvent is one decoded line of the agent stream.
type StreamEvent struct {
	Type              EventType          `json:"type"`
	Subtype           string             `json:"subtype,omitempty"`
	SessionID         SessionID          `json:"session_id,omitempty"`
	Message           *StreamMessage     `json:"message,omitempty"`
	Result            string             `json:"result,omitempty"`
	IsError           bool               `json:"is_error,omitempty"`
	PermissionDenials []PermissionDenial `json:"permission_denials,omitempty"`
	DurationMS        int64              `json:"duration_ms,omitempty"`
	NumTurns          int                `json:"num_turns,omitempty"`
	TotalCostUSD      float64            `json:"total_cost_usd,omitempty"`
	Raw               json.RawMessage    `json:"-"`
}

// StreamMessage is the message payload of assistant and user events.
type StreamMessage struct {
	ID      string         `json:"id,omitempty"`
	Role    string         `json:"role,omitempty"`
	Model   string         `json:"model,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
}

// ContentBlock is a single block within a message.
type ContentBlock struct {
	Type      BlockType      `json:"type"`
	ID        string         `json:"id,omitempty"`
	Text      string         `json:"text,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
}

// PermissionDenial records a tool call the agent was not allowed to make.
type PermissionDenial struct {
	ToolName  string         `json:"tool_name"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`
}

// Succeeded reports whether a result event finished successfully.
func (e StreamEvent) Succeeded() bool {
	return e.Type == EventResult && e.Subtype == ResultSuccess && !e.IsError
}
