package schema

// TranscriptEvent carries the rendered transcript after a change.
type TranscriptEvent struct {
	Text           string
	Entries        int
	ScrollToBottom bool
}

// StatusEvent reports session and indicator state.
type StatusEvent struct {
	State  SessionState
	Status StatusSnapshot
}

// HandleState is the visual state of the resize handle.
type HandleState string

const (
	// HandleIdle is the resting look.
	HandleIdle HandleState = "idle"
	// HandleHover is shown while the pointer is over the handle.
	HandleHover HandleState = "hover"
	// HandleActive is shown while dragging.
	HandleActive HandleState = "active"
)

// GeometryEvent reports a chat window height change.
type GeometryEvent struct {
	Height  float64
	WindowY float64
	Handle  HandleState
	Final   bool
}

// ConfigEvent reports a persisted configuration change.
type ConfigEvent struct {
	Config PanelConfig
}
