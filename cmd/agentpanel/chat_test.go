package main

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pkt.systems/agentpanel/core"
	"pkt.systems/agentpanel/internal/focus"
	"pkt.systems/agentpanel/schema"
)

func newTestChat(t *testing.T, scenario string) (*chatModel, *core.Controller) {
	t.Helper()
	c := core.NewController(schema.DefaultPanelConfig(), core.ControllerDeps{Runner: mockRunner{scenario: scenario}})
	t.Cleanup(func() { c.Destroy(context.Background()) })
	m := newChatModel(context.Background(), c, nil, nil)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return m, c
}

func TestChatLayoutFollowsChatHeight(t *testing.T) {
	m, _ := newTestChat(t, "summary")
	if m.viewport.Height != 20 {
		t.Fatalf("expected 20 transcript rows for 400px, got %d", m.viewport.Height)
	}
	if got := m.handleRow(); got != 7 {
		t.Fatalf("expected handle on row 7, got %d", got)
	}
	if rows := m.chatRows(schema.MaxChatHeight); rows != 26 {
		t.Fatalf("expected rows clamped to terminal, got %d", rows)
	}
}

func TestChatTabTogglesFocus(t *testing.T) {
	m, c := newTestChat(t, "summary")
	if c.FocusGrant().Owner != focus.InputField {
		t.Fatalf("expected input focus at start, got %s", c.FocusGrant().Owner)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if c.FocusGrant().Owner != focus.TranscriptViewer {
		t.Fatalf("expected viewer focus, got %s", c.FocusGrant().Owner)
	}
	if m.input.Focused() {
		t.Fatalf("expected input blurred while viewer has focus")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if c.FocusGrant().Owner != focus.None {
		t.Fatalf("expected escape to release focus, got %s", c.FocusGrant().Owner)
	}
}

func TestChatViewerKeysAreConsumed(t *testing.T) {
	m, c := newTestChat(t, "summary")
	m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlA})
	if !m.selectAll {
		t.Fatalf("expected ctrl+a to select the transcript")
	}
	cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd != nil {
		t.Fatalf("expected ctrl+c to copy instead of quitting")
	}
	if m.clipboard != c.RenderedTranscriptText() {
		t.Fatalf("expected whole transcript copied, got %q", m.clipboard)
	}
}

func TestChatCtrlCQuitsFromInput(t *testing.T) {
	m, _ := newTestChat(t, "summary")
	cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestChatModeKeyCyclesPermissionMode(t *testing.T) {
	m, c := newTestChat(t, "summary")
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlP})
	if got := c.Config().PermissionMode; got != schema.PermissionSudo {
		t.Fatalf("expected sudo, got %s", got)
	}
	if c.Snapshot().MenuOpen {
		t.Fatalf("expected menu closed after selection")
	}
	if c.FocusGrant().Owner != focus.InputField {
		t.Fatalf("expected input focus restored, got %s", c.FocusGrant().Owner)
	}
	if !strings.Contains(m.View(), "Sudo (System Level)") {
		t.Fatalf("expected mode label in title")
	}
}

func TestChatResizeDragOnHandle(t *testing.T) {
	m, c := newTestChat(t, "summary")
	handle := m.handleRow()
	m.Update(tea.MouseMsg{X: 10, Y: handle, Button: tea.MouseButtonLeft, Action: tea.MouseActionPress})
	if !c.Snapshot().Resizing {
		t.Fatalf("expected drag to start on the handle row")
	}
	m.Update(tea.MouseMsg{X: 10, Y: handle - 5, Action: tea.MouseActionMotion})
	if got := c.Config().ChatHeight; got != 500 {
		t.Fatalf("expected 500px after dragging up five rows, got %v", got)
	}
	m.Update(tea.MouseMsg{X: 10, Y: handle - 5, Button: tea.MouseButtonLeft, Action: tea.MouseActionRelease})
	if c.Snapshot().Resizing {
		t.Fatalf("expected drag to end on release")
	}
	if m.viewport.Height != 25 {
		t.Fatalf("expected 25 transcript rows, got %d", m.viewport.Height)
	}
	if c.FocusGrant().Owner != focus.InputField {
		t.Fatalf("expected input focus after drag, got %s", c.FocusGrant().Owner)
	}
}

func TestChatSubmitRunsExchange(t *testing.T) {
	m, c := newTestChat(t, "command")
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("list files")})
	cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatalf("expected send command")
	}
	if m.input.Value() != "" {
		t.Fatalf("expected input cleared, got %q", m.input.Value())
	}
	msg, ok := cmd().(sendDoneMsg)
	if !ok || msg.err != nil {
		t.Fatalf("unexpected send result %#v", msg)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.WaitIdle(ctx); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
	m.Update(msg)
	if !strings.HasSuffix(c.RenderedTranscriptText(), "< file1 file2\n[$ ls]\n") {
		t.Fatalf("unexpected transcript %q", c.RenderedTranscriptText())
	}
	if !strings.Contains(m.viewport.View(), "file1 file2") {
		t.Fatalf("expected transcript in viewport")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if m.input.Value() != "list files" {
		t.Fatalf("expected up to recall the last prompt, got %q", m.input.Value())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.input.Value() != "" {
		t.Fatalf("expected down to restore the empty draft, got %q", m.input.Value())
	}
}

func TestFocusEventTranslation(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want focus.Event
		ok   bool
	}{
		{name: "pgdown", msg: tea.KeyMsg{Type: tea.KeyPgDown}, want: focus.KeyPress(focus.KeyPageDown, 0), ok: true},
		{name: "ctrl-c", msg: tea.KeyMsg{Type: tea.KeyCtrlC}, want: focus.KeyPress("c", focus.ModCtrl), ok: true},
		{name: "rune", msg: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, want: focus.KeyPress("q", 0), ok: true},
		{name: "tab", msg: tea.KeyMsg{Type: tea.KeyTab}, ok: false},
	}
	for _, tc := range tests {
		got, ok := focusEvent(tc.msg)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: focusEvent = %+v/%v, want %+v/%v", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNextPermissionMode(t *testing.T) {
	if nextPermissionMode(schema.PermissionDangerous) != schema.PermissionNormal {
		t.Fatalf("expected dangerous to wrap to normal")
	}
}
