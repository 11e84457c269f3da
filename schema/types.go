package schema

// SessionID identifies an agent conversation reported by the agent itself.
type SessionID string

// ExchangeID identifies one prompt-to-result round trip.
type ExchangeID string

// SessionState is the controller's exchange lifecycle state.
type SessionState string

const (
	// SessionIdle means no exchange is in flight.
	SessionIdle SessionState = "idle"
	// SessionSending means the agent process is being spawned and fed the prompt.
	SessionSending SessionState = "sending"
	// SessionStreaming means the agent output stream is being consumed.
	SessionStreaming SessionState = "streaming"
	// SessionStopping means a user stop is tearing down the exchange.
	SessionStopping SessionState = "stopping"
)

// PermissionMode selects how much the agent may do without asking.
type PermissionMode string

const (
	// PermissionNormal asks for permission as the agent normally would.
	PermissionNormal PermissionMode = "normal"
	// PermissionSudo lets the agent apply edits without prompting.
	PermissionSudo PermissionMode = "sudo"
	// PermissionDangerous skips every permission prompt.
	PermissionDangerous PermissionMode = "dangerous"
)

// Role identifies the author of a transcript entry.
type Role string

const (
	// RoleUser marks prompts typed by the user.
	RoleUser Role = "user"
	// RoleAgent marks agent responses and the pending placeholder.
	RoleAgent Role = "agent"
	// RoleSystem marks errors and other local notices.
	RoleSystem Role = "system"
)

// StatusState is the visual state of the send/stop affordance.
type StatusState string

const (
	// StatusIdle shows the send affordance.
	StatusIdle StatusState = "idle"
	// StatusBusy shows the colour-cycling stop affordance.
	StatusBusy StatusState = "busy"
)

// StatusSnapshot captures the indicator for renderers.
type StatusSnapshot struct {
	State      StatusState
	ColorIndex int
	Color      string
}
