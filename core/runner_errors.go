package core

import (
	"errors"
	"fmt"
)

// RunnerErrorKind classifies runner failures for user-facing hints.
type RunnerErrorKind string

const (
	// RunnerErrorUnknown is an uncategorized runner failure.
	RunnerErrorUnknown RunnerErrorKind = "unknown"
	// RunnerErrorSpawn indicates the agent binary could not be started.
	RunnerErrorSpawn RunnerErrorKind = "spawn"
	// RunnerErrorTransport indicates the prompt could not be handed to the agent.
	RunnerErrorTransport RunnerErrorKind = "transport"
	// RunnerErrorStream indicates reading the agent output failed.
	RunnerErrorStream RunnerErrorKind = "stream"
	// RunnerErrorCanceled indicates the request was canceled.
	RunnerErrorCanceled RunnerErrorKind = "canceled"
)

// RunnerError wraps runner failures with a stable classification.
type RunnerError struct {
	Kind    RunnerErrorKind
	Op      string
	Message string
	Err     error
}

// NewRunnerError constructs a classified runner error.
func NewRunnerError(kind RunnerErrorKind, op string, err error) *RunnerError {
	return &RunnerError{Kind: kind, Op: op, Err: err}
}

func (e *RunnerError) Error() string {
	if e == nil {
		return "runner error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %v", e.Op, e.Err)
		}
		return e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("runner %s failed", e.Op)
	}
	return "runner error"
}

func (e *RunnerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// RunnerErrorKindOf returns the classification of err, or RunnerErrorUnknown.
func RunnerErrorKindOf(err error) RunnerErrorKind {
	var runnerErr *RunnerError
	if errors.As(err, &runnerErr) && runnerErr.Kind != "" {
		return runnerErr.Kind
	}
	return RunnerErrorUnknown
}

// ErrorLine renders err as a transcript line.
func ErrorLine(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	switch RunnerErrorKindOf(err) {
	case RunnerErrorSpawn:
		msg = "could not start agent: " + msg
	case RunnerErrorTransport:
		msg = "could not send prompt: " + msg
	case RunnerErrorStream:
		msg = "agent output failed: " + msg
	}
	return "[Error: " + msg + "]"
}
