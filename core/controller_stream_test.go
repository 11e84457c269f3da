package core_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"pkt.systems/agentpanel/core"
	"pkt.systems/agentpanel/internal/agent"
	"pkt.systems/agentpanel/schema"
)

type readerRunner struct {
	output string
}

func (r readerRunner) Start(ctx context.Context, _ core.RunRequest) (core.RunHandle, error) {
	return &readerHandle{stream: agent.NewStream(ctx, strings.NewReader(r.output))}, nil
}

type readerHandle struct {
	stream core.EventStream
}

func (h *readerHandle) Events() core.EventStream { return h.stream }

func (h *readerHandle) Signal(context.Context, core.ProcessSignal) error { return nil }

func (h *readerHandle) Wait(context.Context) (core.RunResult, error) { return core.RunResult{}, nil }

func (h *readerHandle) Close() error { return nil }

func TestControllerSkipsMalformedAgentLines(t *testing.T) {
	output := strings.Join([]string{
		`{"type":"system","subtype":"init","session_id":"abc"}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"ls"}}]}}`,
		`{not json at all`,
		``,
		`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"t1"}]}}`,
		`{"type":"result","subtype":"success","result":"file1 file2","session_id":"abc"}`,
	}, "\n") + "\n"

	c := core.NewController(schema.DefaultPanelConfig(), core.ControllerDeps{Runner: readerRunner{output: output}})
	defer c.Destroy(context.Background())

	if err := c.Send(context.Background(), "list files"); err != nil {
		t.Fatalf("send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.WaitIdle(ctx); err != nil {
		t.Fatalf("wait idle: %v", err)
	}
	got := c.RenderedTranscriptText()
	if !strings.HasSuffix(got, "< file1 file2\n[$ ls]\n") {
		t.Fatalf("unexpected transcript %q", got)
	}
	if c.SessionID() != "abc" {
		t.Fatalf("expected session abc, got %q", c.SessionID())
	}
}
