package schema

import "errors"

var (
	// ErrEmptyPrompt indicates the prompt was empty.
	ErrEmptyPrompt = errors.New("empty prompt")
	// ErrSessionBusy indicates an exchange is already in flight.
	ErrSessionBusy = errors.New("session is busy")
	// ErrRunnerUnavailable indicates no agent runner is configured.
	ErrRunnerUnavailable = errors.New("agent runner not configured")
	// ErrNoProcess indicates there is no running agent process.
	ErrNoProcess = errors.New("no running agent process")
	// ErrControllerClosed indicates the controller was destroyed.
	ErrControllerClosed = errors.New("controller closed")
	// ErrInvalidPermissionMode indicates an unknown permission mode.
	ErrInvalidPermissionMode = errors.New("invalid permission mode")
)
