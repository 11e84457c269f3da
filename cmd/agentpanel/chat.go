package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"

	"pkt.systems/agentpanel/core"
	"pkt.systems/agentpanel/internal/appconfig"
	"pkt.systems/agentpanel/internal/configwatch"
	"pkt.systems/agentpanel/internal/eventbus"
	"pkt.systems/agentpanel/internal/focus"
	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

// rowPx converts terminal rows to the pixel heights stored in the record.
const rowPx = 20.0

// chromeRows are the rows not used by the transcript: title, handle, input, status.
const chromeRows = 4

func newChatCmd() *cobra.Command {
	var flags *sessionFlags
	var noWatch bool
	var logFile string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run the chat panel in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closeLog, err := chatLogger(logFile)
			if err != nil {
				return err
			}
			defer closeLog()
			ctx := pslog.ContextWithLogger(cmd.Context(), logger)

			bus := eventbus.New(logger)
			sess, err := flags.openSession(ctx, cmd, bus, nil)
			if err != nil {
				return err
			}
			defer sess.controller.Destroy(context.WithoutCancel(ctx))
			events, cancel := bus.Subscribe()
			defer cancel()

			m := newChatModel(ctx, sess.controller, sess.store, events)
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))

			if !noWatch {
				w, err := configwatch.New(sess.store.Path(), logger)
				if err != nil {
					logger.Warn("config watch unavailable", "err", err)
				} else {
					defer func() { _ = w.Close() }()
					go func() {
						for range w.Changes() {
							p.Send(configChangedMsg{})
						}
					}()
				}
			}

			logger.Info("chat start", "config", sess.store.Path(), "binary", sess.launcher.Binary)
			_, err = p.Run()
			return err
		},
	}
	flags = newSessionFlags(cmd)
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config record when it changes on disk")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs here while the panel owns the terminal")
	return cmd
}

// chatLogger keeps log output off the alternate screen.
func chatLogger(path string) (pslog.Logger, func(), error) {
	var w io.Writer = io.Discard
	closeFn := func() {}
	if strings.TrimSpace(path) != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	logger := pslog.NewWithOptions(w, pslog.Options{
		Mode:     pslog.ModeStructured,
		NoColor:  true,
		MinLevel: pslog.InfoLevel,
	})
	return logger, closeFn, nil
}

type busMsg eventbus.Event

type sendDoneMsg struct {
	err error
}

type configChangedMsg struct{}

type chatKeyMap struct {
	Send  key.Binding
	Stop  key.Binding
	Clear key.Binding
	Mode  key.Binding
	Focus key.Binding
	Prev  key.Binding
	Next  key.Binding
	Quit  key.Binding
}

var chatKeys = chatKeyMap{
	Send:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "send")),
	Stop:  key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "stop")),
	Clear: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "clear")),
	Mode:  key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("ctrl+p", "mode")),
	Focus: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "transcript")),
	Prev:  key.NewBinding(key.WithKeys("up"), key.WithHelp("↑/↓", "recall")),
	Next:  key.NewBinding(key.WithKeys("down")),
	Quit:  key.NewBinding(key.WithKeys("ctrl+c", "ctrl+q"), key.WithHelp("ctrl+q", "quit")),
}

func (k chatKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Prev, k.Stop, k.Focus, k.Mode, k.Clear, k.Quit}
}

func (k chatKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#CDD6F4")).
			Background(lipgloss.Color("#313244")).
			Padding(0, 1)

	modeStyles = map[schema.PermissionMode]lipgloss.Style{
		schema.PermissionNormal:    lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		schema.PermissionSudo:      lipgloss.NewStyle().Foreground(lipgloss.Color("#FAB387")),
		schema.PermissionDangerous: lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Bold(true),
	}

	sendStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1E1E2E")).
			Background(lipgloss.Color("#89B4FA")).
			Padding(0, 1)

	handleStyles = map[schema.HandleState]lipgloss.Style{
		schema.HandleIdle:   lipgloss.NewStyle().Foreground(lipgloss.Color("#45475A")),
		schema.HandleHover:  lipgloss.NewStyle().Foreground(lipgloss.Color("#89B4FA")),
		schema.HandleActive: lipgloss.NewStyle().Foreground(lipgloss.Color("#CBA6F7")).Bold(true),
	}

	selectedStyle = lipgloss.NewStyle().Reverse(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

type chatModel struct {
	ctx    context.Context
	ctrl   *core.Controller
	store  *appconfig.Store
	events <-chan eventbus.Event

	input    textinput.Model
	viewport viewport.Model
	scroll   focus.ScrollModel
	help     help.Model

	width       int
	height      int
	lines       []string
	hoverHandle bool
	selectAll   bool
	clipboard   string
	note        string
}

func newChatModel(ctx context.Context, ctrl *core.Controller, store *appconfig.Store, events <-chan eventbus.Event) *chatModel {
	in := textinput.New()
	in.Prompt = "> "
	in.Placeholder = "Ask claude..."
	m := &chatModel{
		ctx:      ctx,
		ctrl:     ctrl,
		store:    store,
		events:   events,
		input:    in,
		viewport: viewport.New(80, 1),
		help:     help.New(),
	}
	_ = ctrl.AcquireFocus(focus.InputField)
	m.syncFocus()
	return m
}

func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitBus(m.events))
}

func waitBus(events <-chan eventbus.Event) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return busMsg(ev)
	}
}

func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(10, msg.Width-4)
		m.layout()
		return m, nil

	case busMsg:
		if msg.Type == eventbus.EventConfig || msg.Type == eventbus.EventGeometry {
			m.layout()
		} else {
			m.refresh()
		}
		return m, waitBus(m.events)

	case sendDoneMsg:
		if msg.err != nil {
			m.note = msg.err.Error()
		}
		m.refresh()
		return m, nil

	case configChangedMsg:
		if m.store != nil {
			m.ctrl.ApplyConfig(m.store.Load())
		}
		m.layout()
		return m, nil

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *chatModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	if ev, ok := focusEvent(msg); ok {
		outcome := m.ctrl.HandleInput(ev)
		outcome.Apply(m)
		if outcome.Released {
			m.selectAll = false
			m.refresh()
		}
		cmd := m.syncFocus()
		if outcome.Consumed {
			return cmd
		}
	}

	switch {
	case key.Matches(msg, chatKeys.Quit):
		return tea.Quit

	case key.Matches(msg, chatKeys.Stop):
		if err := m.ctrl.Stop(m.ctx); err != nil {
			m.note = err.Error()
		}
		return nil

	case key.Matches(msg, chatKeys.Clear):
		m.ctrl.ClearHistory(m.ctx)
		m.note = ""
		m.selectAll = false
		return nil

	case key.Matches(msg, chatKeys.Mode):
		m.ctrl.OpenMenu()
		next := nextPermissionMode(m.ctrl.Config().PermissionMode)
		if err := m.ctrl.SetPermissionMode(next); err != nil {
			m.ctrl.CloseMenu()
			m.note = err.Error()
		} else {
			m.note = "permission mode: " + next.Label()
		}
		// Closing the menu drops focus; hand it back to the prompt.
		_ = m.ctrl.AcquireFocus(focus.InputField)
		return m.syncFocus()

	case key.Matches(msg, chatKeys.Focus):
		owner := focus.TranscriptViewer
		if m.ctrl.FocusGrant().Owner == focus.TranscriptViewer {
			owner = focus.InputField
		}
		if err := m.ctrl.AcquireFocus(owner); err != nil {
			m.note = err.Error()
		}
		return m.syncFocus()
	}

	if m.ctrl.FocusGrant().Owner != focus.InputField {
		return nil
	}
	switch {
	case key.Matches(msg, chatKeys.Send):
		return m.submit()
	case key.Matches(msg, chatKeys.Prev):
		if text, ok := m.ctrl.PreviousPrompt(m.input.Value()); ok {
			m.input.SetValue(text)
			m.input.CursorEnd()
		}
		return nil
	case key.Matches(msg, chatKeys.Next):
		if text, ok := m.ctrl.NextPrompt(); ok {
			m.input.SetValue(text)
			m.input.CursorEnd()
		}
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

func (m *chatModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if m.ctrl.State() != schema.SessionIdle {
		m.note = "agent is busy; stop it with ctrl+s"
		return nil
	}
	m.input.SetValue("")
	m.note = ""
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return sendDoneMsg{err: ctrl.Send(ctx, text)}
	}
}

func (m *chatModel) handleMouse(msg tea.MouseMsg) tea.Cmd {
	pointerY := float64(msg.Y) * rowPx
	handle := m.handleRow()
	inViewer := msg.Y > handle && msg.Y <= handle+m.viewport.Height
	onInput := msg.Y == handle+m.viewport.Height+1
	resizing := m.ctrl.Snapshot().Resizing

	switch msg.Action {
	case tea.MouseActionMotion:
		if resizing {
			if _, ok := m.ctrl.ResizeMotion(pointerY); ok {
				m.layout()
			}
			return nil
		}
		over := msg.Y == handle
		if over != m.hoverHandle {
			m.hoverHandle = over
			if over {
				m.ctrl.ResizeHandleEnter()
			} else {
				m.ctrl.ResizeHandleLeave()
			}
		}
		return nil

	case tea.MouseActionRelease:
		if resizing {
			if _, err := m.ctrl.EndResize(); err != nil {
				m.note = err.Error()
			}
			m.layout()
			_ = m.ctrl.AcquireFocus(focus.InputField)
			return m.syncFocus()
		}
		return nil

	case tea.MouseActionPress:
	default:
		return nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		dir := focus.ScrollUp
		amount := -focus.WheelStep
		if msg.Button == tea.MouseButtonWheelDown {
			dir = focus.ScrollDown
			amount = focus.WheelStep
		}
		outcome := m.ctrl.HandleInput(focus.Wheel(dir))
		if outcome.Consumed {
			outcome.Apply(m)
			return nil
		}
		if inViewer {
			m.ScrollBy(amount)
		}
		return nil

	case tea.MouseButtonLeft:
		if msg.Y == handle {
			if err := m.ctrl.BeginResize(pointerY, float64(handle)*rowPx); err != nil {
				m.note = err.Error()
			}
			return m.syncFocus()
		}
		owner := m.ctrl.FocusGrant().Owner
		inside := (owner == focus.TranscriptViewer && inViewer) || (owner == focus.InputField && onInput)
		m.ctrl.HandleInput(focus.Press(inside))
		m.selectAll = false
		switch {
		case inViewer:
			_ = m.ctrl.AcquireFocus(focus.TranscriptViewer)
		case onInput:
			_ = m.ctrl.AcquireFocus(focus.InputField)
		}
		m.refresh()
		return m.syncFocus()
	}
	return nil
}

// ScrollBy implements focus.Viewer.
func (m *chatModel) ScrollBy(amount float64) {
	m.scroll.ScrollBy(amount)
	m.viewport.SetYOffset(int(m.scroll.Value() / rowPx))
}

// CopySelection implements focus.Viewer. Without a selection the visible page is copied.
func (m *chatModel) CopySelection() {
	text := m.ctrl.RenderedTranscriptText()
	if !m.selectAll {
		text = strings.Join(m.visibleLines(), "\n")
	}
	m.clipboard = text
	m.note = fmt.Sprintf("copied %d characters", utf8.RuneCountInString(text))
}

// SelectAll implements focus.Viewer.
func (m *chatModel) SelectAll() {
	m.selectAll = true
	m.note = "transcript selected"
	m.refresh()
}

func (m *chatModel) visibleLines() []string {
	start := min(m.viewport.YOffset, len(m.lines))
	end := min(start+m.viewport.Height, len(m.lines))
	return m.lines[start:end]
}

func (m *chatModel) syncFocus() tea.Cmd {
	if m.ctrl.FocusGrant().Owner == focus.InputField {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m *chatModel) layout() {
	m.viewport.Width = max(1, m.width)
	m.viewport.Height = m.chatRows(m.ctrl.Config().ChatHeight)
	m.refresh()
}

func (m *chatModel) chatRows(heightPx float64) int {
	rows := int(heightPx / rowPx)
	avail := max(1, m.height-chromeRows)
	return min(max(rows, 1), avail)
}

func (m *chatModel) handleRow() int {
	return m.height - 3 - m.viewport.Height
}

func (m *chatModel) refresh() {
	text := strings.TrimSuffix(m.ctrl.RenderedTranscriptText(), "\n")
	lines := strings.Split(ansi.Wrap(text, max(1, m.viewport.Width), ""), "\n")
	m.lines = lines
	content := strings.Join(lines, "\n")
	if m.selectAll {
		content = selectedStyle.Render(content)
	}
	m.viewport.SetContent(content)
	m.scroll.SetBounds(float64(len(lines))*rowPx, float64(m.viewport.Height)*rowPx)
	if m.ctrl.TakeScrollRequest() {
		m.scroll.ScrollToBottom()
	}
	m.viewport.SetYOffset(int(m.scroll.Value() / rowPx))
}

func (m *chatModel) View() string {
	if m.width == 0 {
		return ""
	}
	snap := m.ctrl.Snapshot()
	rows := []string{m.renderTitle(snap)}
	for i := 1; i < m.handleRow(); i++ {
		rows = append(rows, "")
	}
	rows = append(rows, m.renderHandle(snap.Handle))
	rows = append(rows, m.viewport.View())
	rows = append(rows, m.input.View())
	rows = append(rows, m.renderStatus())
	return strings.Join(rows, "\n")
}

func (m *chatModel) renderTitle(snap core.Snapshot) string {
	mode := snap.Config.PermissionMode
	style, ok := modeStyles[mode]
	if !ok {
		style = dimStyle
	}
	left := titleStyle.Render("claude panel") + " " + style.Render(mode.Label())
	right := sendStyle.Render("send")
	if snap.Affordance.Stop {
		right = sendStyle.Background(lipgloss.Color(snap.Affordance.Color)).Render("stop")
	}
	free := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if free < 0 {
		return ansi.Truncate(left+" "+right, m.width, "…")
	}
	return left + strings.Repeat(" ", free) + right
}

func (m *chatModel) renderHandle(state schema.HandleState) string {
	grip := "═══"
	gripWidth := utf8.RuneCountInString(grip)
	side := max(0, (m.width-gripWidth)/2)
	line := strings.Repeat("─", side) + grip + strings.Repeat("─", max(0, m.width-side-gripWidth))
	style, ok := handleStyles[state]
	if !ok {
		style = dimStyle
	}
	return style.Render(line)
}

func (m *chatModel) renderStatus() string {
	if m.note != "" {
		return dimStyle.Render(m.note)
	}
	return m.help.View(chatKeys)
}

// focusEvent translates a terminal key into the arbiter's vocabulary.
func focusEvent(msg tea.KeyMsg) (focus.Event, bool) {
	var mods focus.Modifier
	if msg.Alt {
		mods |= focus.ModAlt
	}
	switch msg.Type {
	case tea.KeyEsc:
		return focus.KeyPress(focus.KeyEscape, mods), true
	case tea.KeyUp:
		return focus.KeyPress(focus.KeyUp, mods), true
	case tea.KeyDown:
		return focus.KeyPress(focus.KeyDown, mods), true
	case tea.KeyPgUp:
		return focus.KeyPress(focus.KeyPageUp, mods), true
	case tea.KeyPgDown:
		return focus.KeyPress(focus.KeyPageDown, mods), true
	case tea.KeyHome:
		return focus.KeyPress(focus.KeyHome, mods), true
	case tea.KeyEnd:
		return focus.KeyPress(focus.KeyEnd, mods), true
	case tea.KeyEnter:
		return focus.KeyPress(focus.KeyReturn, mods), true
	case tea.KeyCtrlC:
		return focus.KeyPress("c", mods|focus.ModCtrl), true
	case tea.KeyCtrlA:
		return focus.KeyPress("a", mods|focus.ModCtrl), true
	case tea.KeyRunes:
		if len(msg.Runes) == 1 {
			return focus.KeyPress(focus.Key(string(msg.Runes)), mods), true
		}
	}
	return focus.Event{}, false
}

func nextPermissionMode(current schema.PermissionMode) schema.PermissionMode {
	switch current {
	case schema.PermissionNormal:
		return schema.PermissionSudo
	case schema.PermissionSudo:
		return schema.PermissionDangerous
	default:
		return schema.PermissionNormal
	}
}
