package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

const agentMockUsage = "usage: agent-mock -p [--output-format stream-json] [--verbose] [--permission-mode <mode>] [--dangerously-skip-permissions] [--resume <id>] [--scenario <name>] [--seed <n>] [--delay-ms <n>] [--linger-ms <n>] [prompt|-]"

func newAgentMockCmd() *cobra.Command {
	return &cobra.Command{
		Use:                "agent-mock -p --output-format stream-json --verbose [flags] [prompt|-]",
		Short:              "Mock claude stream-json output for testing",
		SilenceErrors:      true,
		SilenceUsage:       true,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentMock(args, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

func runAgentMock(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
	cfg, err := parseMockArgs(args)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return err
	}

	prompt, err := resolveMockPrompt(cfg.prompt, stdin)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return err
	}
	cfg.prompt = prompt

	if !cfg.seedSet {
		cfg.seed = hashSeed(cfg.prompt, cfg.resumeID, cfg.permissionMode, cfg.scenario)
	}

	sessionID := cfg.resumeID
	if sessionID == "" {
		sessionID = mockSessionID(cfg.seed)
	}

	writer := bufio.NewWriter(stdout)
	defer func() { _ = writer.Flush() }()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	signalSeen := make(chan os.Signal, 1)
	go func() {
		sig, ok := <-sigCh
		if ok {
			signalSeen <- sig
		}
	}()

	if !cfg.streamJSON {
		_, _ = fmt.Fprintln(writer, mockAnswer(cfg.seed, cfg.prompt))
		return nil
	}

	started := time.Now()
	if err := writeEvent(writer, map[string]any{
		"type":           "system",
		"subtype":        "init",
		"session_id":     sessionID,
		"permissionMode": cfg.permissionMode,
		"tools":          []string{"Bash", "Edit", "Glob", "Grep", "Read", "TodoWrite", "Write"},
	}); err != nil {
		return err
	}

	activeScenario, err := pickScenario(cfg, buildScenarios())
	if err != nil {
		return err
	}
	sc := &mockTurn{cfg: cfg, w: writer, sessionID: sessionID}
	if err := activeScenario.run(sc); err != nil {
		return err
	}

	select {
	case sig := <-signalSeen:
		return emitSignalResult(writer, sessionID, sig)
	default:
	}

	if sc.omitResult {
		return nil
	}
	subtype := "success"
	if sc.failed {
		subtype = "error_during_execution"
	}
	if err := writeEvent(writer, map[string]any{
		"type":               "result",
		"subtype":            subtype,
		"is_error":           sc.failed,
		"result":             sc.answer,
		"session_id":         sessionID,
		"duration_ms":        time.Since(started).Milliseconds(),
		"num_turns":          sc.turns + 1,
		"total_cost_usd":     float64(20+cfg.seed%50) / 10000,
		"permission_denials": sc.denials,
	}); err != nil {
		return err
	}

	if cfg.linger > 0 {
		timer := time.NewTimer(cfg.linger)
		select {
		case sig := <-signalSeen:
			timer.Stop()
			return emitSignalResult(writer, sessionID, sig)
		case <-timer.C:
		}
	}
	return nil
}

type mockConfig struct {
	streamJSON     bool
	printMode      bool
	permissionMode string
	resumeID       string
	prompt         string
	seed           uint64
	seedSet        bool
	scenario       string
	delay          time.Duration
	linger         time.Duration
}

// allowsEdits reports whether file writes go through without a prompt.
func (c mockConfig) allowsEdits() bool {
	return c.permissionMode == "acceptEdits" || c.permissionMode == "bypassPermissions"
}

type mockScenario struct {
	name string
	run  func(t *mockTurn) error
}

// mockTurn accumulates what the scenario did so the result event can report it.
type mockTurn struct {
	cfg        mockConfig
	w          *bufio.Writer
	sessionID  string
	answer     string
	turns      int
	failed     bool
	omitResult bool
	denials    []map[string]any
}

func parseMockArgs(args []string) (mockConfig, error) {
	cfg := mockConfig{
		permissionMode: "default",
		delay:          30 * time.Millisecond,
	}
parse:
	for len(args) > 0 {
		arg := args[0]
		if arg == "-" {
			cfg.prompt = "-"
			break parse
		}
		if !strings.HasPrefix(arg, "-") {
			cfg.prompt = strings.Join(args, " ")
			break parse
		}
		value := func() (string, error) {
			if len(args) < 2 {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			v := args[1]
			args = args[2:]
			return v, nil
		}
		switch arg {
		case "-p", "--print":
			cfg.printMode = true
			args = args[1:]
		case "--verbose":
			args = args[1:]
		case "--dangerously-skip-permissions":
			cfg.permissionMode = "bypassPermissions"
			args = args[1:]
		case "--output-format":
			v, err := value()
			if err != nil {
				return mockConfig{}, err
			}
			switch v {
			case "stream-json":
				cfg.streamJSON = true
			case "text":
			default:
				return mockConfig{}, fmt.Errorf("unsupported output format: %s", v)
			}
		case "--permission-mode":
			v, err := value()
			if err != nil {
				return mockConfig{}, err
			}
			cfg.permissionMode = v
		case "--resume":
			v, err := value()
			if err != nil {
				return mockConfig{}, err
			}
			if strings.TrimSpace(v) == "" {
				return mockConfig{}, errors.New("--resume requires a session id")
			}
			cfg.resumeID = v
		case "--scenario":
			v, err := value()
			if err != nil {
				return mockConfig{}, err
			}
			cfg.scenario = v
		case "--seed":
			v, err := value()
			if err != nil {
				return mockConfig{}, err
			}
			seed, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return mockConfig{}, fmt.Errorf("invalid --seed: %w", err)
			}
			cfg.seed = seed
			cfg.seedSet = true
		case "--delay-ms", "--linger-ms":
			v, err := value()
			if err != nil {
				return mockConfig{}, err
			}
			ms, err := strconv.Atoi(v)
			if err != nil || ms < 0 {
				return mockConfig{}, fmt.Errorf("invalid %s", arg)
			}
			if arg == "--delay-ms" {
				cfg.delay = time.Duration(ms) * time.Millisecond
			} else {
				cfg.linger = time.Duration(ms) * time.Millisecond
			}
		default:
			return mockConfig{}, fmt.Errorf("unsupported flag: %s", arg)
		}
	}
	if !cfg.printMode {
		return mockConfig{}, errors.New(agentMockUsage)
	}
	return cfg, nil
}

func resolveMockPrompt(arg string, stdin io.Reader) (string, error) {
	if arg == "-" {
		return readStdinPrompt(stdin)
	}
	if strings.TrimSpace(arg) != "" {
		return arg, nil
	}
	if isTerminalReader(stdin) {
		return "", errors.New("no prompt provided")
	}
	return readStdinPrompt(stdin)
}

func readStdinPrompt(stdin io.Reader) (string, error) {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return "", errors.New("no prompt provided via stdin")
	}
	return prompt, nil
}

func isTerminalReader(stdin io.Reader) bool {
	file, ok := stdin.(*os.File)
	if !ok {
		return false
	}
	info, err := file.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

func hashSeed(parts ...string) uint64 {
	hasher := fnv.New64a()
	for _, part := range parts {
		_, _ = hasher.Write([]byte(part))
	}
	return hasher.Sum64()
}

// mockSessionID derives a stable UUID from the seed so replays match.
func mockSessionID(seed uint64) string {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], seed)
	binary.LittleEndian.PutUint64(buf[8:16], seed^0x9e3779b97f4a7c15)
	return uuid.NewSHA1(uuid.NameSpaceOID, buf[:]).String()
}

func buildScenarios() []mockScenario {
	return []mockScenario{
		{name: "summary", run: scenarioSummary},
		{name: "command", run: scenarioCommand},
		{name: "filechange", run: scenarioFileChange},
		{name: "search", run: scenarioSearch},
		{name: "todo", run: scenarioTodo},
		{name: "denied", run: scenarioDenied},
		{name: "failure", run: scenarioFailure},
		{name: "garbage", run: scenarioGarbage},
		{name: "truncated", run: scenarioTruncated},
	}
}

func pickScenario(cfg mockConfig, scenarios []mockScenario) (mockScenario, error) {
	if cfg.scenario != "" {
		for _, s := range scenarios {
			if s.name == cfg.scenario {
				return s, nil
			}
		}
		return mockScenario{}, fmt.Errorf("unknown scenario: %s", cfg.scenario)
	}
	// Only the well-behaved scenarios are picked implicitly.
	idx := int(cfg.seed % 5)
	return scenarios[idx], nil
}

func scenarioSummary(t *mockTurn) error {
	t.answer = mockAnswer(t.cfg.seed, t.cfg.prompt)
	return t.say(t.answer)
}

func scenarioCommand(t *mockTurn) error {
	if err := t.tool("Bash", map[string]any{"command": "ls", "description": "List files"}, "file1\nfile2\n"); err != nil {
		return err
	}
	t.answer = "file1 file2"
	return t.say(t.answer)
}

func scenarioFileChange(t *mockTurn) error {
	if err := t.tool("Read", map[string]any{"file_path": "README.md"}, "# readme\n"); err != nil {
		return err
	}
	if err := t.tool("Edit", map[string]any{"file_path": "README.md", "old_string": "# readme", "new_string": "# README"}, "ok"); err != nil {
		return err
	}
	t.answer = "Updated the README heading."
	return t.say(t.answer)
}

func scenarioSearch(t *mockTurn) error {
	if err := t.tool("Glob", map[string]any{"pattern": "**/*.go"}, "main.go\n"); err != nil {
		return err
	}
	if err := t.tool("Grep", map[string]any{"pattern": "func main"}, "main.go:3:func main() {"); err != nil {
		return err
	}
	t.answer = "main is defined in main.go."
	return t.say(t.answer)
}

func scenarioTodo(t *mockTurn) error {
	todos := []map[string]any{
		{"content": "Inspect repo layout", "status": "completed"},
		{"content": "Run tests", "status": "in_progress"},
	}
	if err := t.tool("TodoWrite", map[string]any{"todos": todos}, "ok"); err != nil {
		return err
	}
	if err := t.tool("Bash", map[string]any{"command": "go test ./... -count=1 -race -timeout 120s"}, "ok"); err != nil {
		return err
	}
	t.answer = "All checklist items complete."
	return t.say(t.answer)
}

func scenarioDenied(t *mockTurn) error {
	input := map[string]any{"file_path": "notes.txt", "content": "hello"}
	if t.cfg.allowsEdits() {
		if err := t.tool("Write", input, "ok"); err != nil {
			return err
		}
		t.answer = "Wrote notes.txt."
		return t.say(t.answer)
	}
	id := t.nextToolID()
	if err := t.assistant(map[string]any{"type": "tool_use", "id": id, "name": "Write", "input": input}); err != nil {
		return err
	}
	if err := t.toolResult(id, "permission denied", true); err != nil {
		return err
	}
	t.denials = append(t.denials, map[string]any{"tool_name": "Write", "tool_use_id": id, "tool_input": input})
	t.answer = "I need permission to write notes.txt."
	return t.say(t.answer)
}

func scenarioFailure(t *mockTurn) error {
	if err := t.tool("Bash", map[string]any{"command": "make build"}, "make: *** [build] Error 1"); err != nil {
		return err
	}
	t.failed = true
	return nil
}

func scenarioGarbage(t *mockTurn) error {
	if _, err := t.w.WriteString("{\"type\":\"assistant\",\"message\":{\"content\":[\n"); err != nil {
		return err
	}
	if err := t.w.Flush(); err != nil {
		return err
	}
	return scenarioCommand(t)
}

func scenarioTruncated(t *mockTurn) error {
	t.omitResult = true
	return t.tool("Bash", map[string]any{"command": "sleep 600"}, "")
}

func (t *mockTurn) nextToolID() string {
	t.turns++
	return fmt.Sprintf("toolu_mock_%02d", t.turns)
}

func (t *mockTurn) tool(name string, input map[string]any, output string) error {
	id := t.nextToolID()
	if err := t.assistant(map[string]any{"type": "tool_use", "id": id, "name": name, "input": input}); err != nil {
		return err
	}
	if output == "" {
		return nil
	}
	return t.toolResult(id, output, false)
}

func (t *mockTurn) say(text string) error {
	return t.assistant(map[string]any{"type": "text", "text": text})
}

func (t *mockTurn) assistant(block map[string]any) error {
	return t.emit(map[string]any{
		"type":       "assistant",
		"session_id": t.sessionID,
		"message": map[string]any{
			"role":    "assistant",
			"model":   "mock",
			"content": []map[string]any{block},
		},
	})
}

func (t *mockTurn) toolResult(id, content string, isError bool) error {
	return t.emit(map[string]any{
		"type":       "user",
		"session_id": t.sessionID,
		"message": map[string]any{
			"role": "user",
			"content": []map[string]any{{
				"type":        "tool_result",
				"tool_use_id": id,
				"content":     content,
				"is_error":    isError,
			}},
		},
	})
}

func (t *mockTurn) emit(event map[string]any) error {
	if err := writeEvent(t.w, event); err != nil {
		return err
	}
	if t.cfg.delay > 0 {
		time.Sleep(t.cfg.delay)
	}
	return nil
}

func writeEvent(w *bufio.Writer, event map[string]any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n"); err != nil {
		return err
	}
	return w.Flush()
}

func emitSignalResult(w *bufio.Writer, sessionID string, sig os.Signal) error {
	return writeEvent(w, map[string]any{
		"type":       "result",
		"subtype":    "error_during_execution",
		"is_error":   true,
		"result":     fmt.Sprintf("mock received %s", sig),
		"session_id": sessionID,
	})
}

func mockAnswer(seed uint64, prompt string) string {
	templates := []string{
		"Mock response: handled request \"%s\".",
		"Mock response: completed task for \"%s\".",
		"Mock response: produced summary for \"%s\".",
		"Mock response: generated output for \"%s\".",
	}
	idx := int(seed % uint64(len(templates)))
	return fmt.Sprintf(templates[idx], prompt)
}
