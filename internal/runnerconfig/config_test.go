package runnerconfig

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("AGENT_HOME", "/opt/agent")
	path := writeRunnerConfig(t, `
working_dir: $AGENT_HOME/work
args: ["--model", "sonnet"]
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorkingDir != "/opt/agent/work" {
		t.Fatalf("expected expanded working dir, got %q", cfg.WorkingDir)
	}
	if cfg.Binary != DefaultBinary {
		t.Fatalf("expected default binary, got %q", cfg.Binary)
	}
	if len(cfg.Args) != 2 || cfg.Args[1] != "sonnet" {
		t.Fatalf("unexpected args %v", cfg.Args)
	}
}

func TestLoadRejectsMissingPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for empty config path")
	}
	path := writeRunnerConfig(t, `binary: [unterminated`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestMergeFlagsOverrideFile(t *testing.T) {
	base := Config{Binary: "claude", Args: []string{"--a"}, Env: map[string]string{"X": "1"}}
	got := base.Merge("/usr/local/bin/claude", []string{"--b"}, []string{"Y=2", "broken"}, "")
	if got.Binary != "/usr/local/bin/claude" || got.Args[0] != "--b" {
		t.Fatalf("unexpected merge %+v", got)
	}
	env := got.EnvList()
	sort.Strings(env)
	if strings.Join(env, ",") != "X=1,Y=2" {
		t.Fatalf("unexpected env %v", env)
	}
	if kept := base.Merge("", nil, nil, ""); kept.Binary != "claude" || kept.Args[0] != "--a" {
		t.Fatalf("empty flags should keep file values, got %+v", kept)
	}
}

func writeRunnerConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
