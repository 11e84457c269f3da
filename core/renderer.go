package core

import "pkt.systems/agentpanel/schema"

// Renderer turns agent events into transcript text.
type Renderer interface {
	ActivityLines(event schema.StreamEvent) []string
	ResultText(event schema.StreamEvent) (text string, errored bool)
}
