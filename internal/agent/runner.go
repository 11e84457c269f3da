// Package agent runs the claude CLI in stream-json mode and decodes its output.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"pkt.systems/agentpanel/core"
	"pkt.systems/agentpanel/internal/logx"
	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

// DefaultBinary is the agent executable looked up on PATH.
const DefaultBinary = "claude"

// Config controls how the agent is invoked.
type Config struct {
	BinaryPath string
	ExtraArgs  []string
	Env        []string
	WorkingDir string
}

// Runner implements core.Runner.
type Runner struct {
	cfg Config
}

// NewRunner constructs an agent runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinary
	}
	return &Runner{cfg: cfg}, nil
}

// Start spawns the agent in its own process group, hands it the prompt on
// stdin and returns once stdin is closed.
func (r *Runner) Start(ctx context.Context, req core.RunRequest) (core.RunHandle, error) {
	if req.Prompt == "" {
		return nil, schema.ErrEmptyPrompt
	}
	args := buildArgs(r.cfg, req)
	ctx = logx.ContextWithExchangeLogger(ctx, pslog.Ctx(ctx), req.ExchangeID)
	log := pslog.Ctx(ctx)
	log.Info(
		"agent exec start",
		"binary", r.cfg.BinaryPath,
		"args", args,
		"mode", req.Mode,
		"resume", req.ResumeSessionID != "",
		"prompt_len", len(req.Prompt),
	)

	cmd := exec.CommandContext(ctx, r.cfg.BinaryPath, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd, unix.SIGKILL)
	}
	dir := req.WorkingDir
	if dir == "" {
		dir = r.cfg.WorkingDir
	}
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), r.cfg.Env...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, core.NewRunnerError(core.RunnerErrorSpawn, "stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, core.NewRunnerError(core.RunnerErrorSpawn, "stderr pipe", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, core.NewRunnerError(core.RunnerErrorSpawn, "stdin pipe", err)
	}
	if err := cmd.Start(); err != nil {
		log.Error("agent exec start failed", "err", err)
		return nil, core.NewRunnerError(core.RunnerErrorSpawn, "start", err)
	}
	log.Info("agent exec started", "pid", cmd.Process.Pid)

	stream := newCombinedStream(ctx, stdout, stderr)
	handle := &runHandle{
		cmd:     cmd,
		stream:  stream,
		log:     log,
		started: time.Now(),
	}
	if err := writePrompt(stdin, req.Prompt); err != nil {
		log.Error("agent exec stdin failed", "err", err)
		_ = handle.Signal(ctx, core.ProcessSignalKILL)
		_, _ = handle.Wait(ctx)
		_ = handle.Close()
		return nil, core.NewRunnerError(core.RunnerErrorTransport, "write prompt", err)
	}
	return handle, nil
}

func writePrompt(stdin io.WriteCloser, prompt string) error {
	if _, err := io.WriteString(stdin, prompt+"\n"); err != nil {
		_ = stdin.Close()
		return err
	}
	return stdin.Close()
}

func buildArgs(cfg Config, req core.RunRequest) []string {
	args := []string{"-p", "--output-format", "stream-json", "--verbose"}
	args = append(args, permissionArgs(req.Mode)...)
	if req.ResumeSessionID != "" {
		args = append(args, "--resume", string(req.ResumeSessionID))
	}
	args = append(args, cfg.ExtraArgs...)
	return args
}

func permissionArgs(mode schema.PermissionMode) []string {
	switch schema.NormalizePermissionMode(string(mode)) {
	case schema.PermissionSudo:
		return []string{"--permission-mode", "acceptEdits"}
	case schema.PermissionDangerous:
		return []string{"--dangerously-skip-permissions"}
	default:
		return nil
	}
}

type runHandle struct {
	cmd     *exec.Cmd
	stream  *combinedStream
	log     pslog.Logger
	started time.Time
}

func (r *runHandle) Events() core.EventStream {
	return r.stream
}

// Signal delivers sig to the agent's whole process group so tools it spawned
// go down with it.
func (r *runHandle) Signal(ctx context.Context, sig core.ProcessSignal) error {
	_ = ctx
	if r.cmd == nil || r.cmd.Process == nil {
		return schema.ErrNoProcess
	}
	switch sig {
	case core.ProcessSignalTERM:
		return killGroup(r.cmd, unix.SIGTERM)
	case core.ProcessSignalKILL:
		return killGroup(r.cmd, unix.SIGKILL)
	default:
		return fmt.Errorf("unsupported signal: %s", sig)
	}
}

func killGroup(cmd *exec.Cmd, sig unix.Signal) error {
	if cmd == nil || cmd.Process == nil {
		return schema.ErrNoProcess
	}
	pid := cmd.Process.Pid
	if err := unix.Kill(-pid, sig); err == nil {
		return nil
	}
	err := cmd.Process.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func (r *runHandle) Wait(ctx context.Context) (core.RunResult, error) {
	_ = ctx
	if r.cmd == nil {
		return core.RunResult{}, schema.ErrNoProcess
	}
	err := r.cmd.Wait()
	result := core.RunResult{}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			r.log.Error("agent exec wait failed", "err", err)
			return core.RunResult{}, err
		}
		result.ExitCode = exitErr.ExitCode()
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			result.Signal = status.Signal().String()
		}
	}
	fields := []any{
		"exit_code", result.ExitCode,
		"duration_ms", time.Since(r.started).Milliseconds(),
	}
	if result.Signal != "" {
		fields = append(fields, "signal", result.Signal)
	}
	r.log.Info("agent exec finished", fields...)
	return result, nil
}

func (r *runHandle) Close() error {
	if r.stream != nil {
		_ = r.stream.Close()
	}
	return nil
}
