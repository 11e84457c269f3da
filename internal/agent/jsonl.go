package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"pkt.systems/agentpanel/schema"
)

type jsonlStream struct {
	reader *bufio.Reader
}

type jsonlDecodeError struct {
	line []byte
	err  error
}

func (e *jsonlDecodeError) Error() string {
	if e == nil || e.err == nil {
		return "jsonl decode error"
	}
	return e.err.Error()
}

func (e *jsonlDecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func (e *jsonlDecodeError) Line() []byte {
	if e == nil {
		return nil
	}
	return e.line
}

func newJSONLStream(r io.Reader) *jsonlStream {
	return &jsonlStream{reader: bufio.NewReader(r)}
}

// Next returns the next decoded line. Blank lines are skipped; a line that
// does not decode yields a *jsonlDecodeError and the stream stays usable.
func (s *jsonlStream) Next(ctx context.Context) (schema.StreamEvent, error) {
	for {
		if ctx.Err() != nil {
			return schema.StreamEvent{}, ctx.Err()
		}
		line, err := s.reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return schema.StreamEvent{}, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err != nil {
				return schema.StreamEvent{}, err
			}
			continue
		}
		event, decodeErr := decodeEvent(line)
		if decodeErr != nil {
			return schema.StreamEvent{}, &jsonlDecodeError{line: append([]byte(nil), line...), err: decodeErr}
		}
		return event, nil
	}
}

func decodeEvent(line []byte) (schema.StreamEvent, error) {
	var event schema.StreamEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return schema.StreamEvent{}, err
	}
	if event.Type == "" {
		return schema.StreamEvent{}, errMissingType
	}
	event.Raw = append([]byte(nil), line...)
	return event, nil
}
