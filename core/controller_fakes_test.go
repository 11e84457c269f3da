package core

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"pkt.systems/agentpanel/schema"
)

type scriptedStream struct {
	events chan schema.StreamEvent
	err    error
	closed chan struct{}
	once   sync.Once
}

func newScriptedStream(events ...schema.StreamEvent) *scriptedStream {
	s := &scriptedStream{
		events: make(chan schema.StreamEvent, 64),
		closed: make(chan struct{}),
	}
	for _, event := range events {
		s.events <- event
	}
	return s
}

// finished returns a stream that yields events and then ends with err (io.EOF when nil).
func finishedStream(err error, events ...schema.StreamEvent) *scriptedStream {
	s := newScriptedStream(events...)
	s.err = err
	close(s.events)
	return s
}

func (s *scriptedStream) push(event schema.StreamEvent) {
	s.events <- event
}

func (s *scriptedStream) Next(ctx context.Context) (schema.StreamEvent, error) {
	select {
	case event, ok := <-s.events:
		if ok {
			return event, nil
		}
		if s.err != nil {
			return schema.StreamEvent{}, s.err
		}
		return schema.StreamEvent{}, io.EOF
	case <-s.closed:
		return schema.StreamEvent{}, io.EOF
	case <-ctx.Done():
		return schema.StreamEvent{}, ctx.Err()
	}
}

func (s *scriptedStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakeHandle struct {
	stream  *scriptedStream
	mu      sync.Mutex
	signals []ProcessSignal
	waited  bool
	closed  bool
}

func (h *fakeHandle) Events() EventStream { return h.stream }

func (h *fakeHandle) Signal(_ context.Context, sig ProcessSignal) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.signals = append(h.signals, sig)
	return nil
}

func (h *fakeHandle) Wait(context.Context) (RunResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.waited = true
	return RunResult{}, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) Signals() []ProcessSignal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ProcessSignal(nil), h.signals...)
}

func (h *fakeHandle) Reaped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.waited && h.closed
}

type fakeRunner struct {
	mu       sync.Mutex
	handles  []*fakeHandle
	err      error
	gate     chan struct{}
	entered  chan struct{}
	requests []RunRequest
}

func (r *fakeRunner) Start(_ context.Context, req RunRequest) (RunHandle, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	gate := r.gate
	entered := r.entered
	r.mu.Unlock()
	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if len(r.handles) == 0 {
		return nil, errors.New("no scripted handle")
	}
	handle := r.handles[0]
	r.handles = r.handles[1:]
	return handle, nil
}

func (r *fakeRunner) Requests() []RunRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RunRequest(nil), r.requests...)
}

func newFakeRunner(streams ...*scriptedStream) (*fakeRunner, []*fakeHandle) {
	runner := &fakeRunner{}
	handles := make([]*fakeHandle, 0, len(streams))
	for _, stream := range streams {
		handle := &fakeHandle{stream: stream}
		handles = append(handles, handle)
	}
	runner.handles = append(runner.handles, handles...)
	return runner, handles
}

type memoryStore struct {
	mu    sync.Mutex
	saved []schema.PanelConfig
	err   error
}

func (m *memoryStore) Save(cfg schema.PanelConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, cfg)
	return m.err
}

func (m *memoryStore) Last() (schema.PanelConfig, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return schema.PanelConfig{}, false
	}
	return m.saved[len(m.saved)-1], true
}

type recordingSink struct {
	mu       sync.Mutex
	statuses []schema.StatusEvent
	texts    []string
	geometry []schema.GeometryEvent
	configs  []schema.ConfigEvent
}

func (s *recordingSink) OnTranscript(event schema.TranscriptEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, event.Text)
}

func (s *recordingSink) OnStatus(event schema.StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, event)
}

func (s *recordingSink) OnGeometry(event schema.GeometryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geometry = append(s.geometry, event)
}

func (s *recordingSink) OnConfig(event schema.ConfigEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs = append(s.configs, event)
}

func (s *recordingSink) Statuses() []schema.StatusEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]schema.StatusEvent(nil), s.statuses...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.WaitIdle(ctx); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
}

func toolUse(name string, input map[string]any) schema.StreamEvent {
	return schema.StreamEvent{
		Type: schema.EventAssistant,
		Message: &schema.StreamMessage{Content: []schema.ContentBlock{
			{Type: schema.BlockToolUse, Name: name, Input: input},
		}},
	}
}

func success(text string) schema.StreamEvent {
	return schema.StreamEvent{Type: schema.EventResult, Subtype: schema.ResultSuccess, Result: text}
}

func initEvent(session schema.SessionID) schema.StreamEvent {
	return schema.StreamEvent{Type: schema.EventSystem, Subtype: schema.SystemInit, SessionID: session}
}
