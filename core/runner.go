package core

import (
	"context"

	"pkt.systems/agentpanel/schema"
)

// Runner starts agent processes and exposes their stream-json event stream.
type Runner interface {
	Start(ctx context.Context, req RunRequest) (RunHandle, error)
}

// RunRequest describes one agent invocation.
type RunRequest struct {
	ExchangeID      schema.ExchangeID
	Prompt          string
	Mode            schema.PermissionMode
	ResumeSessionID schema.SessionID
	WorkingDir      string
}

// RunHandle exposes the event stream and process lifecycle controls.
type RunHandle interface {
	Events() EventStream
	Signal(ctx context.Context, sig ProcessSignal) error
	Wait(ctx context.Context) (RunResult, error)
	Close() error
}

// EventStream yields decoded agent events. Next returns io.EOF when the
// stream ends.
type EventStream interface {
	Next(ctx context.Context) (schema.StreamEvent, error)
	Close() error
}

// RunResult describes the process outcome.
type RunResult struct {
	ExitCode int
	Signal   string
}

// ProcessSignal indicates which signal to send to the process.
type ProcessSignal string

const (
	// ProcessSignalTERM requests a termination signal.
	ProcessSignalTERM ProcessSignal = "TERM"
	// ProcessSignalKILL requests an immediate kill signal.
	ProcessSignalKILL ProcessSignal = "KILL"
)
