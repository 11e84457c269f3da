package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/pslog"
)

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

func TestWithExchangeAndSessionAddFields(t *testing.T) {
	capture := &logCapture{}
	log := WithSession(WithExchange(newCaptureLogger(capture), "ex-1"), "sess-1")
	log = WithMode(log, "sudo")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["exchange"] != "ex-1" || entry["session"] != "sess-1" || entry["mode"] != "sudo" {
		t.Fatalf("expected exchange/session/mode fields, got %+v", entry)
	}
}

func TestEmptyIdentifiersAreOmitted(t *testing.T) {
	capture := &logCapture{}
	log := WithSession(WithExchange(newCaptureLogger(capture), ""), "")
	log.Info("hello")

	entry := capture.firstEntry(t)
	if _, ok := entry["exchange"]; ok {
		t.Fatalf("did not expect exchange field, got %+v", entry)
	}
	if _, ok := entry["session"]; ok {
		t.Fatalf("did not expect session field, got %+v", entry)
	}
}

func TestContextWithExchangeLoggerDeduplicates(t *testing.T) {
	capture := &logCapture{}
	ctx := ContextWithExchangeLogger(context.Background(), newCaptureLogger(capture), "ex-1")
	if ExchangeFromContext(ctx) != "ex-1" {
		t.Fatalf("expected exchange marker on context")
	}
	ctx = ContextWithExchangeLogger(ctx, Ctx(ctx), "ex-1")
	Ctx(ctx).Info("hello")

	line := bytes.TrimSpace(capture.buf.Bytes())
	if n := bytes.Count(line, []byte(`"exchange"`)); n != 1 {
		t.Fatalf("expected a single exchange field, got %d in %s", n, line)
	}
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
