package agent

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"pkt.systems/agentpanel/core"
	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

var errMissingType = errors.New("event has no type")

type combinedStream struct {
	events    chan schema.StreamEvent
	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
	wg        sync.WaitGroup
	log       pslog.Logger
	skipped   int
}

func newCombinedStream(ctx context.Context, stdout io.Reader, stderr io.Reader) *combinedStream {
	stream := &combinedStream{
		events: make(chan schema.StreamEvent, 256),
		done:   make(chan struct{}),
		log:    pslog.Ctx(ctx),
	}
	stream.wg.Add(1)
	go stream.readJSON(ctx, stdout)
	if stderr != nil {
		stream.wg.Add(1)
		go stream.readStderr(stderr)
	}
	go func() {
		stream.wg.Wait()
		close(stream.events)
	}()
	return stream
}

func (s *combinedStream) readJSON(ctx context.Context, reader io.Reader) {
	defer s.wg.Done()
	jsonStream := newJSONLStream(reader)
	for {
		event, err := jsonStream.Next(ctx)
		if err != nil {
			var decodeErr *jsonlDecodeError
			if errors.As(err, &decodeErr) {
				line := strings.TrimSpace(string(decodeErr.Line()))
				s.skipped++
				if s.log != nil {
					preview := previewText(line, 200)
					s.log.Warn("agent stream decode failed", "preview", preview, "truncated", len(preview) < len(line), "err", err)
				}
				continue
			}
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				if s.log != nil {
					s.log.Warn("agent stream read failed", "err", err)
				}
				s.setErr(err)
			}
			if s.skipped > 0 && s.log != nil {
				s.log.Debug("agent stream completed", "skipped", s.skipped)
			}
			return
		}
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func (s *combinedStream) readStderr(reader io.Reader) {
	defer s.wg.Done()
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	count := 0
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		count++
		if s.log != nil {
			preview := previewText(text, 200)
			s.log.Trace("agent stderr", "text_len", len(text), "preview", preview, "truncated", len(preview) < len(text))
		}
	}
	if err := scanner.Err(); err != nil {
		if s.log != nil {
			s.log.Debug("agent stderr read failed", "err", err)
		}
		// Keep the pipe empty so the agent never blocks on a full stderr.
		_, _ = io.Copy(io.Discard, reader)
	}
	if count > 0 && s.log != nil {
		s.log.Debug("agent stderr completed", "lines", count)
	}
}

func (s *combinedStream) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Next returns the next event, io.EOF once stdout is exhausted, or the read
// error that ended the stream.
func (s *combinedStream) Next(ctx context.Context) (schema.StreamEvent, error) {
	select {
	case <-ctx.Done():
		return schema.StreamEvent{}, ctx.Err()
	case event, ok := <-s.events:
		if ok {
			return event, nil
		}
		s.errMu.Lock()
		err := s.err
		s.errMu.Unlock()
		if err != nil {
			return schema.StreamEvent{}, err
		}
		return schema.StreamEvent{}, io.EOF
	}
}

func (s *combinedStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

// NewStream decodes stream-json events from r. It is used by hosts that
// already own the agent's output, and by tests.
func NewStream(ctx context.Context, r io.Reader) core.EventStream {
	return newCombinedStream(ctx, r, nil)
}

func previewText(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	return value[:max]
}
