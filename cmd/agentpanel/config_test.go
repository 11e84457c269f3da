package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runConfigCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newConfigCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigSetModeThenShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claude-panel", "config.json")

	out, err := runConfigCmd(t, "set-mode", "sudo", "-c", path)
	if err != nil {
		t.Fatalf("set-mode: %v", err)
	}
	if !strings.Contains(out, "Sudo (System Level)") {
		t.Fatalf("unexpected set-mode output %q", out)
	}

	out, err = runConfigCmd(t, "show", "-c", path)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.HasPrefix(out, "# "+path+"\n") {
		t.Fatalf("expected path header, got %q", out)
	}
	if !strings.Contains(out, "permissionMode: sudo") || !strings.Contains(out, "chatHeight: 400") {
		t.Fatalf("unexpected show output %q", out)
	}
}

func TestConfigSetModeRejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := runConfigCmd(t, "set-mode", "root", "-c", path); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no record written, stat err=%v", err)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if _, err := runConfigCmd(t, "init", "-c", path); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := runConfigCmd(t, "init", "-c", path); err == nil {
		t.Fatalf("expected init to refuse an existing record")
	}
	if _, err := runConfigCmd(t, "init", "--force", "-c", path); err != nil {
		t.Fatalf("init --force: %v", err)
	}
}

func TestConfigPathPrintsOverride(t *testing.T) {
	out, err := runConfigCmd(t, "path", "-c", "/tmp/panel.json")
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if out != "/tmp/panel.json\n" {
		t.Fatalf("unexpected path output %q", out)
	}
}
