package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"pkt.systems/agentpanel/core"
	"pkt.systems/agentpanel/internal/agent"
	"pkt.systems/agentpanel/schema"
)

func TestParseMockArgs(t *testing.T) {
	cfg, err := parseMockArgs([]string{"-p", "--output-format", "stream-json", "--verbose", "--permission-mode", "acceptEdits", "--resume", "sess-1", "--seed", "7", "list", "files"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.streamJSON || !cfg.printMode {
		t.Fatalf("expected print mode with stream-json, got %+v", cfg)
	}
	if cfg.permissionMode != "acceptEdits" || !cfg.allowsEdits() {
		t.Fatalf("expected acceptEdits, got %q", cfg.permissionMode)
	}
	if cfg.resumeID != "sess-1" || cfg.seed != 7 || !cfg.seedSet {
		t.Fatalf("unexpected resume/seed: %+v", cfg)
	}
	if cfg.prompt != "list files" {
		t.Fatalf("expected prompt from trailing args, got %q", cfg.prompt)
	}

	cfg, err = parseMockArgs([]string{"-p", "--dangerously-skip-permissions", "-"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.permissionMode != "bypassPermissions" || cfg.prompt != "-" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestParseMockArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "missing-print", args: []string{"--output-format", "stream-json", "hi"}, want: "usage"},
		{name: "missing-print-stdin", args: []string{"-"}, want: "usage"},
		{name: "bad-format", args: []string{"-p", "--output-format", "xml"}, want: "unsupported output format"},
		{name: "missing-value", args: []string{"-p", "--resume"}, want: "requires a value"},
		{name: "bad-seed", args: []string{"-p", "--seed", "x"}, want: "invalid --seed"},
		{name: "unknown-flag", args: []string{"-p", "--model", "opus"}, want: "unsupported flag"},
	}
	for _, tc := range tests {
		_, err := parseMockArgs(tc.args)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q in error, got %v", tc.name, tc.want, err)
		}
	}
}

func TestMockSessionIDStable(t *testing.T) {
	if mockSessionID(42) != mockSessionID(42) {
		t.Fatalf("expected stable session id")
	}
	if mockSessionID(42) == mockSessionID(43) {
		t.Fatalf("expected distinct session ids")
	}
}

func TestPickScenario(t *testing.T) {
	scenarios := buildScenarios()
	got, err := pickScenario(mockConfig{scenario: "denied"}, scenarios)
	if err != nil || got.name != "denied" {
		t.Fatalf("expected denied scenario, got %q err=%v", got.name, err)
	}
	if _, err := pickScenario(mockConfig{scenario: "nope"}, scenarios); err == nil {
		t.Fatalf("expected unknown scenario error")
	}
	for seed := uint64(0); seed < 20; seed++ {
		got, _ := pickScenario(mockConfig{seed: seed}, scenarios)
		switch got.name {
		case "denied", "failure", "garbage", "truncated":
			t.Fatalf("seed %d picked %s implicitly", seed, got.name)
		}
	}
}

func TestRunAgentMockTextOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := runAgentMock([]string{"-p", "--seed", "0", "hello"}, strings.NewReader(""), &out, &errOut); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := out.String(); got != "Mock response: handled request \"hello\".\n" {
		t.Fatalf("unexpected output %q", got)
	}
}

// mockRunner runs the mock in-process and feeds its output to the controller.
type mockRunner struct {
	scenario string
	// hold keeps stdout open after the mock exits, like a wedged agent.
	hold bool
}

func (r mockRunner) Start(ctx context.Context, req core.RunRequest) (core.RunHandle, error) {
	args := []string{"-p", "--output-format", "stream-json", "--verbose", "--delay-ms", "0", "--scenario", r.scenario}
	switch req.Mode {
	case schema.PermissionSudo:
		args = append(args, "--permission-mode", "acceptEdits")
	case schema.PermissionDangerous:
		args = append(args, "--dangerously-skip-permissions")
	}
	if req.ResumeSessionID != "" {
		args = append(args, "--resume", string(req.ResumeSessionID))
	}
	args = append(args, req.Prompt)

	pr, pw := io.Pipe()
	h := &mockHandle{stream: agent.NewStream(ctx, pr), reader: pr, killed: make(chan struct{})}
	go func() {
		err := runAgentMock(args, strings.NewReader(""), pw, io.Discard)
		if r.hold && err == nil {
			<-h.killed
		}
		_ = pw.CloseWithError(err)
	}()
	return h, nil
}

type mockHandle struct {
	stream core.EventStream
	reader *io.PipeReader
	once   sync.Once
	killed chan struct{}
}

func (h *mockHandle) Events() core.EventStream { return h.stream }

func (h *mockHandle) Signal(context.Context, core.ProcessSignal) error {
	h.once.Do(func() { close(h.killed) })
	return h.reader.CloseWithError(errors.New("killed"))
}

func (h *mockHandle) Wait(context.Context) (core.RunResult, error) { return core.RunResult{}, nil }

func (h *mockHandle) Close() error {
	h.once.Do(func() { close(h.killed) })
	return h.reader.Close()
}

func askMock(t *testing.T, scenario string, mode schema.PermissionMode, prompt string) (string, *core.Controller) {
	t.Helper()
	cfg := schema.DefaultPanelConfig()
	cfg.PermissionMode = mode
	c := core.NewController(cfg, core.ControllerDeps{Runner: mockRunner{scenario: scenario}})
	t.Cleanup(func() { c.Destroy(context.Background()) })
	var out bytes.Buffer
	if err := runAsk(context.Background(), c, prompt, 5*time.Second, &out); err != nil {
		t.Fatalf("ask: %v", err)
	}
	return out.String(), c
}

func TestMockCommandScenarioTranscript(t *testing.T) {
	got, c := askMock(t, "command", schema.PermissionNormal, "list files")
	if !strings.HasPrefix(got, "> list files\n") {
		t.Fatalf("unexpected transcript head %q", got)
	}
	if !strings.HasSuffix(got, "< file1 file2\n[$ ls]\n") {
		t.Fatalf("unexpected transcript tail %q", got)
	}
	if c.SessionID() == "" {
		t.Fatalf("expected session id captured from init event")
	}
}

func TestMockGarbageScenarioSkipsMalformedLine(t *testing.T) {
	got, _ := askMock(t, "garbage", schema.PermissionNormal, "list files")
	if !strings.HasSuffix(got, "< file1 file2\n[$ ls]\n") {
		t.Fatalf("unexpected transcript tail %q", got)
	}
}

func TestMockDeniedScenarioDependsOnMode(t *testing.T) {
	normal, _ := askMock(t, "denied", schema.PermissionNormal, "write notes")
	if !strings.Contains(normal, "[Permission denied: Write]") {
		t.Fatalf("expected denial in normal mode, got %q", normal)
	}
	sudo, _ := askMock(t, "denied", schema.PermissionSudo, "write notes")
	if strings.Contains(sudo, "Permission denied") {
		t.Fatalf("expected no denial in sudo mode, got %q", sudo)
	}
	if !strings.Contains(sudo, "Wrote notes.txt.") {
		t.Fatalf("expected write confirmation, got %q", sudo)
	}
}

func TestMockFailureScenarioMarksError(t *testing.T) {
	got, _ := askMock(t, "failure", schema.PermissionNormal, "build")
	if !strings.HasSuffix(got, core.ErrorMarker+"\n") {
		t.Fatalf("expected error marker, got %q", got)
	}
}
