package core

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"pkt.systems/agentpanel/internal/focus"
	"pkt.systems/agentpanel/internal/format"
	"pkt.systems/agentpanel/internal/geometry"
	"pkt.systems/agentpanel/internal/grab"
	"pkt.systems/agentpanel/internal/logx"
	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

// StoppedLine is appended when a stop arrives before the placeholder exists.
const StoppedLine = "(stopped)"

var reapGrace = 5 * time.Second

// Snapshot is a read-only view of the controller for renderers.
type Snapshot struct {
	State      schema.SessionState
	Status     schema.StatusSnapshot
	Affordance Affordance
	Config     schema.PanelConfig
	Transcript string
	Focus      focus.Grant
	Handle     schema.HandleState
	Resizing   bool
	MenuOpen   bool
}

type exchange struct {
	id      schema.ExchangeID
	token   uint64
	handle  RunHandle
	cancel  context.CancelFunc
	started time.Time
	events  int
	log     pslog.Logger
}

// Controller owns the chat session of one panel instance: the agent child
// process, the transcript, the status indicator and the modal grabs.
type Controller struct {
	runner   Runner
	renderer Renderer
	store    ConfigStore
	sink     EventSink
	log      pslog.Logger
	newID    func() schema.ExchangeID
	workDir  string

	mu         sync.Mutex
	transcript *Transcript
	prompts    *promptHistory
	indicator  *Indicator
	slot       *grab.Slot
	focus      *focus.Arbiter
	drag       *geometry.Drag
	cfg        schema.PanelConfig
	state      schema.SessionState
	token      uint64
	run        *exchange
	sessionID  schema.SessionID
	menuOpen   bool
	closed     bool
	idle       chan struct{}
	wg         sync.WaitGroup
}

// NewController constructs a controller for cfg.
func NewController(cfg schema.PanelConfig, deps ControllerDeps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if deps.Renderer == nil {
		deps.Renderer = format.NewPlainRenderer()
	}
	if deps.NewExchangeID == nil {
		deps.NewExchangeID = newExchangeID
	}
	cfg = schema.NormalizePanelConfig(cfg)
	cfg.ChatHeight = geometry.DefaultBounds().Clamp(cfg.ChatHeight)
	slot := grab.NewSlot(deps.GrabHost, logger)
	idle := make(chan struct{})
	close(idle)
	return &Controller{
		runner:     deps.Runner,
		renderer:   deps.Renderer,
		store:      deps.ConfigStore,
		sink:       deps.EventSink,
		log:        logger,
		newID:      deps.NewExchangeID,
		workDir:    deps.WorkingDir,
		transcript: NewTranscript(),
		prompts:    newPromptHistory(0),
		indicator:  NewIndicator(deps.Palette),
		slot:       slot,
		focus:      focus.New(slot, logger),
		drag:       geometry.NewDrag(slot, cfg.ChatHeight, logger),
		cfg:        cfg,
		state:      schema.SessionIdle,
		idle:       idle,
	}
}

// Send submits a prompt. Empty prompts and prompts sent while an exchange is
// in flight are rejected without touching the transcript.
func (c *Controller) Send(ctx context.Context, text string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	prompt := strings.TrimSpace(text)
	if prompt == "" {
		return schema.ErrEmptyPrompt
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return schema.ErrControllerClosed
	}
	if c.state != schema.SessionIdle {
		state := c.state
		c.mu.Unlock()
		c.log.Warn("controller send rejected", "state", state, "err", schema.ErrSessionBusy)
		return schema.ErrSessionBusy
	}
	if c.runner == nil {
		c.mu.Unlock()
		return schema.ErrRunnerUnavailable
	}
	c.token++
	x := &exchange{
		id:      c.newID(),
		token:   c.token,
		started: time.Now(),
	}
	x.log = logx.WithSession(logx.WithMode(logx.WithExchange(c.log, x.id), c.cfg.PermissionMode), c.sessionID)
	req := RunRequest{
		ExchangeID:      x.id,
		Prompt:          prompt,
		Mode:            c.cfg.PermissionMode,
		ResumeSessionID: c.sessionID,
		WorkingDir:      c.workDir,
	}
	runCtx, cancel := detachRunContext(ctx, x.log, x.id)
	x.cancel = cancel
	c.transcript.AppendUserMessage(prompt)
	c.prompts.Append(prompt)
	c.indicator.StartBusy()
	c.setStateLocked(schema.SessionSending)
	c.run = x
	c.emitTranscriptLocked()
	c.emitStatusLocked()
	c.wg.Add(1)
	c.mu.Unlock()
	defer c.wg.Done()

	x.log.Info("controller send start", "prompt_len", len(prompt), "resume", req.ResumeSessionID != "")
	handle, err := c.runner.Start(runCtx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if x.token != c.token {
		x.log.Info("controller send superseded", "started", err == nil)
		if handle != nil {
			x.handle = handle
			_ = handle.Signal(runCtx, ProcessSignalKILL)
			c.wg.Add(1)
			go func() {
				defer c.wg.Done()
				c.reap(runCtx, x)
			}()
		} else {
			cancel()
		}
		return nil
	}
	if err != nil {
		x.log.Error("controller runner start failed", "err", err)
		c.transcript.AppendError(err)
		c.indicator.Stop()
		c.run = nil
		c.setStateLocked(schema.SessionIdle)
		cancel()
		c.emitTranscriptLocked()
		c.emitStatusLocked()
		return err
	}
	x.handle = handle
	c.transcript.BeginAgentPlaceholder()
	c.setStateLocked(schema.SessionStreaming)
	c.emitTranscriptLocked()
	c.emitStatusLocked()
	c.wg.Add(1)
	go c.consume(runCtx, x)
	return nil
}

func (c *Controller) consume(ctx context.Context, x *exchange) {
	defer c.wg.Done()
	defer c.reap(ctx, x)
	x.log.Debug("controller stream start")
	stream := x.handle.Events()
	for {
		event, err := stream.Next(ctx)
		if err != nil {
			c.streamEnded(x, err)
			return
		}
		if !c.apply(x, event) {
			return
		}
	}
}

// apply handles one event and reports whether reading should continue.
func (c *Controller) apply(x *exchange, event schema.StreamEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x.token != c.token {
		return false
	}
	x.events++
	c.indicator.Cycle()
	switch event.Type {
	case schema.EventSystem:
		c.captureSessionLocked(x, event.SessionID)
	case schema.EventAssistant:
		lines := c.renderer.ActivityLines(event)
		for _, line := range lines {
			c.transcript.AppendActivity(line)
		}
		if len(lines) > 0 {
			c.emitTranscriptLocked()
		}
	case schema.EventUser:
	case schema.EventResult:
		c.captureSessionLocked(x, event.SessionID)
		text, errored := c.renderer.ResultText(event)
		c.transcript.ResolvePlaceholder(text, errored)
		c.indicator.Stop()
		c.finishLocked(x)
		x.log.Info("controller exchange finished",
			"subtype", event.Subtype,
			"errored", errored,
			"denials", len(event.PermissionDenials),
			"events", x.events,
			"duration_ms", time.Since(x.started).Milliseconds(),
		)
		c.emitTranscriptLocked()
		c.emitStatusLocked()
		return false
	default:
		x.log.Debug("controller event ignored", "type", event.Type)
	}
	c.emitStatusLocked()
	return true
}

func (c *Controller) streamEnded(x *exchange, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if x.token != c.token {
		return
	}
	if errors.Is(err, io.EOF) {
		x.log.Warn("controller stream ended without result", "events", x.events)
		c.transcript.Terminate()
	} else {
		x.log.Warn("controller stream error", "err", err)
		c.transcript.Terminate()
		c.transcript.AppendError(NewRunnerError(RunnerErrorStream, "read", err))
	}
	c.indicator.Stop()
	c.finishLocked(x)
	c.emitTranscriptLocked()
	c.emitStatusLocked()
}

func (c *Controller) reap(ctx context.Context, x *exchange) {
	if x.handle == nil {
		if x.cancel != nil {
			x.cancel()
		}
		return
	}
	_ = x.handle.Events().Close()
	done := make(chan struct{})
	go func() {
		select {
		case <-done:
		case <-time.After(reapGrace):
			x.log.Warn("controller reap timeout, killing agent")
			_ = x.handle.Signal(ctx, ProcessSignalKILL)
		}
	}()
	result, err := x.handle.Wait(ctx)
	close(done)
	if err != nil {
		x.log.Warn("controller agent wait failed", "err", err)
	} else if result.ExitCode != 0 || result.Signal != "" {
		x.log.Debug("controller agent exited", "exit_code", result.ExitCode, "signal", result.Signal)
	}
	if err := x.handle.Close(); err != nil {
		x.log.Warn("controller agent close failed", "err", err)
	}
	if x.cancel != nil {
		x.cancel()
	}
}

// Stop terminates the running exchange, if any. The placeholder is marked
// stopped and late events from the dead process are ignored.
func (c *Controller) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == schema.SessionIdle {
		c.indicator.Stop()
		c.log.Debug("controller stop ignored", "reason", "idle")
		return nil
	}
	c.stopLocked(ctx, "user")
	if !c.transcript.MarkStopped() {
		c.transcript.AppendSystem(StoppedLine)
	}
	c.emitTranscriptLocked()
	c.emitStatusLocked()
	return nil
}

// stopLocked kills the running process and returns to Idle.
func (c *Controller) stopLocked(ctx context.Context, reason string) {
	x := c.run
	c.setStateLocked(schema.SessionStopping)
	c.token++
	c.indicator.Stop()
	if x != nil {
		x.log.Info("controller stop", "reason", reason, "events", x.events)
		if x.handle != nil {
			if err := x.handle.Signal(ctx, ProcessSignalKILL); err != nil && !errors.Is(err, schema.ErrNoProcess) {
				x.log.Warn("controller stop signal failed", "err", err)
			}
		}
		if x.cancel != nil {
			x.cancel()
		}
	}
	c.run = nil
	c.setStateLocked(schema.SessionIdle)
}

// ClearHistory stops any running exchange and empties the transcript. The
// next prompt starts a fresh agent session.
func (c *Controller) ClearHistory(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != schema.SessionIdle {
		c.stopLocked(ctx, "clear")
	}
	c.transcript.ClearAll()
	c.sessionID = ""
	c.log.Info("controller history cleared")
	c.emitTranscriptLocked()
	c.emitStatusLocked()
}

// SetPermissionMode persists the mode used for the next exchange and closes
// the menu.
func (c *Controller) SetPermissionMode(mode schema.PermissionMode) error {
	parsed, err := schema.ParsePermissionMode(string(mode))
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return schema.ErrControllerClosed
	}
	c.cfg.PermissionMode = parsed
	c.log.Info("controller permission mode set", "mode", parsed)
	c.saveConfigLocked()
	c.emitConfigLocked()
	c.closeMenuLocked()
	return nil
}

// ApplyConfig adopts a record edited elsewhere. It is not written back.
func (c *Controller) ApplyConfig(cfg schema.PanelConfig) {
	cfg = schema.NormalizePanelConfig(cfg)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || cfg == c.cfg {
		return
	}
	c.cfg.PermissionMode = cfg.PermissionMode
	c.cfg.ChatWidth = cfg.ChatWidth
	if !c.drag.Active() {
		c.cfg.ChatHeight = geometry.DefaultBounds().Clamp(cfg.ChatHeight)
		c.drag.SetHeight(c.cfg.ChatHeight)
	}
	c.log.Debug("controller config reloaded", "mode", c.cfg.PermissionMode, "height", c.cfg.ChatHeight)
	c.emitConfigLocked()
}

// PreviousPrompt recalls the prompt before the current recall position.
// current is restored by NextPrompt once recall runs past the newest entry.
func (c *Controller) PreviousPrompt(current string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts.Previous(current)
}

// NextPrompt moves recall forward.
func (c *Controller) NextPrompt() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts.Next()
}

// Prompts returns the submitted prompts, oldest first.
func (c *Controller) Prompts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompts.Entries()
}

// Config returns the current panel record.
func (c *Controller) Config() schema.PanelConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// State returns the session state.
func (c *Controller) State() schema.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StatusState returns the indicator state.
func (c *Controller) StatusState() schema.StatusState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indicator.State()
}

// RenderedTranscriptText returns the transcript as displayed.
func (c *Controller) RenderedTranscriptText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.RenderedText()
}

// Entries returns a copy of the transcript entries.
func (c *Controller) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript.Entries()
}

// TakeScrollRequest returns a pending scroll-to-bottom request.
func (c *Controller) TakeScrollRequest() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.transcript.TakeScrollRequest()
	return ok
}

// SessionID returns the agent session continued by the next prompt.
func (c *Controller) SessionID() schema.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Snapshot returns a consistent view for renderers.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:      c.state,
		Status:     c.indicator.Snapshot(),
		Affordance: c.indicator.Affordance(),
		Config:     c.cfg,
		Transcript: c.transcript.RenderedText(),
		Focus:      c.focus.Grant(),
		Handle:     c.drag.Handle(),
		Resizing:   c.drag.Active(),
		MenuOpen:   c.menuOpen,
	}
}

// WaitIdle blocks until no exchange is in flight.
func (c *Controller) WaitIdle(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AcquireFocus grants keyboard focus to owner.
func (c *Controller) AcquireFocus(owner focus.Owner) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return schema.ErrControllerClosed
	}
	err := c.focus.Acquire(owner)
	c.syncDragHeightLocked()
	return err
}

// ReleaseFocus drops focus if owner holds it.
func (c *Controller) ReleaseFocus(owner focus.Owner) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus.Release(owner)
}

// FocusGrant returns the current focus grant.
func (c *Controller) FocusGrant() focus.Grant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus.Grant()
}

// HandleInput routes a host event through the focus arbiter.
func (c *Controller) HandleInput(ev focus.Event) focus.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focus.Handle(ev)
}

// OpenMenu marks the panel menu open.
func (c *Controller) OpenMenu() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.menuOpen = true
}

// CloseMenu closes the menu and releases every grab.
func (c *Controller) CloseMenu() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeMenuLocked()
}

func (c *Controller) closeMenuLocked() {
	c.menuOpen = false
	c.focus.ReleaseAll("menu closed")
	c.syncDragHeightLocked()
}

// syncDragHeightLocked adopts the drag engine's height once a drag has been
// abandoned, so the record never keeps an unpersisted drag height.
func (c *Controller) syncDragHeightLocked() {
	if c.drag.Active() || c.cfg.ChatHeight == c.drag.Height() {
		return
	}
	c.cfg.ChatHeight = c.drag.Height()
	c.emitGeometryLocked(false)
}

// ResizeHandleEnter highlights the resize handle.
func (c *Controller) ResizeHandleEnter() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag.PointerEnter()
	c.emitGeometryLocked(false)
}

// ResizeHandleLeave restores the handle unless a drag is running.
func (c *Controller) ResizeHandleLeave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag.PointerLeave()
	c.emitGeometryLocked(false)
}

// BeginResize starts a drag at pointerY with the window top at windowY.
func (c *Controller) BeginResize(pointerY, windowY float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return schema.ErrControllerClosed
	}
	if err := c.drag.Start(pointerY, windowY); err != nil {
		return err
	}
	c.emitGeometryLocked(false)
	return nil
}

// ResizeMotion applies pointer motion; false means nothing changed.
func (c *Controller) ResizeMotion(pointerY float64) (geometry.Update, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update, ok := c.drag.Motion(pointerY)
	if !ok {
		return update, false
	}
	c.cfg.ChatHeight = update.Height
	c.emitGeometryLocked(false)
	return update, true
}

// EndResize finishes the drag and persists the height.
func (c *Controller) EndResize() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	height, err := c.drag.End()
	if err != nil {
		return height, err
	}
	c.cfg.ChatHeight = height
	c.saveConfigLocked()
	c.emitGeometryLocked(true)
	return height, nil
}

// CancelResize aborts the drag without persisting.
func (c *Controller) CancelResize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drag.Cancel()
	c.cfg.ChatHeight = c.drag.Height()
	c.emitGeometryLocked(false)
}

// Destroy stops the agent, drops every grab and waits for background work.
func (c *Controller) Destroy(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.state != schema.SessionIdle {
		c.stopLocked(ctx, "destroy")
	}
	c.focus.ReleaseAll("destroy")
	c.menuOpen = false
	c.mu.Unlock()
	c.wg.Wait()
	c.log.Info("controller destroyed")
}

func (c *Controller) captureSessionLocked(x *exchange, sessionID schema.SessionID) {
	if sessionID == "" || sessionID == c.sessionID {
		return
	}
	c.sessionID = sessionID
	x.log.Debug("controller session captured", "session", sessionID)
}

func (c *Controller) finishLocked(x *exchange) {
	if c.run == x {
		c.run = nil
	}
	c.setStateLocked(schema.SessionIdle)
}

func (c *Controller) setStateLocked(state schema.SessionState) {
	if c.state == state {
		return
	}
	wasIdle := c.state == schema.SessionIdle
	c.state = state
	switch {
	case state == schema.SessionIdle:
		close(c.idle)
	case wasIdle:
		c.idle = make(chan struct{})
	}
}

func (c *Controller) saveConfigLocked() {
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.cfg); err != nil {
		c.log.Warn("controller config save failed", "err", err)
	}
}

func (c *Controller) emitTranscriptLocked() {
	if c.sink == nil {
		return
	}
	c.sink.OnTranscript(schema.TranscriptEvent{
		Text:           c.transcript.RenderedText(),
		Entries:        len(c.transcript.entries),
		ScrollToBottom: true,
	})
}

func (c *Controller) emitStatusLocked() {
	if c.sink == nil {
		return
	}
	c.sink.OnStatus(schema.StatusEvent{State: c.state, Status: c.indicator.Snapshot()})
}

func (c *Controller) emitGeometryLocked(final bool) {
	if c.sink == nil {
		return
	}
	c.sink.OnGeometry(schema.GeometryEvent{
		Height:  c.drag.Height(),
		WindowY: c.drag.WindowY(),
		Handle:  c.drag.Handle(),
		Final:   final,
	})
}

func (c *Controller) emitConfigLocked() {
	if c.sink == nil {
		return
	}
	c.sink.OnConfig(schema.ConfigEvent{Config: c.cfg})
}

// detachRunContext keeps the caller's logger but not its cancellation; the
// agent lives until it finishes or Stop kills it.
func detachRunContext(ctx context.Context, log pslog.Logger, exchangeID schema.ExchangeID) (context.Context, context.CancelFunc) {
	base := pslog.ContextWithLogger(context.WithoutCancel(ctx), log)
	return context.WithCancel(logx.ContextWithExchange(base, exchangeID))
}
