package core

import (
	"strings"

	"pkt.systems/agentpanel/schema"
)

// PlaceholderText is shown while the agent is working.
const PlaceholderText = "< ..."

// StoppedSuffix is appended to a placeholder the user stopped.
const StoppedSuffix = " (stopped)"

// ErrorMarker follows a resolved exchange that did not succeed.
const ErrorMarker = "[Error]"

// Entry is one transcript item.
type Entry struct {
	ID   int
	Role schema.Role
	Text string
	// Placeholder marks an agent entry still waiting for its result.
	Placeholder bool
	Activity    []string
	Stopped     bool
	Terminated  bool
	Errored     bool
}

func (e Entry) render(first bool) string {
	var b strings.Builder
	switch {
	case e.Role == schema.RoleUser:
		if !first {
			b.WriteString("\n")
		}
		b.WriteString("> ")
		b.WriteString(e.Text)
		b.WriteString("\n")
	case e.Role == schema.RoleAgent && e.Placeholder:
		b.WriteString("\n")
		b.WriteString(PlaceholderText)
		for _, line := range e.Activity {
			b.WriteString("\n")
			b.WriteString(line)
		}
		switch {
		case e.Stopped:
			b.WriteString(StoppedSuffix)
			b.WriteString("\n")
		case e.Terminated:
			b.WriteString("\n")
		}
	case e.Role == schema.RoleAgent:
		b.WriteString("\n< ")
		b.WriteString(e.Text)
		b.WriteString("\n")
		for _, line := range e.Activity {
			b.WriteString(line)
			b.WriteString("\n")
		}
		if e.Errored {
			b.WriteString(ErrorMarker)
			b.WriteString("\n")
		}
	default:
		if !first {
			b.WriteString("\n")
		}
		b.WriteString(e.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// Transcript assembles the chat history. Entries are append-only except the
// outstanding placeholder, which is resolved in place exactly once. It is not
// safe for concurrent use.
type Transcript struct {
	entries  []Entry
	nextID   int
	pending  int
	activity []string
	scroll   bool
	scrollN  uint64
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{pending: -1}
}

// AppendUserMessage records a prompt.
func (t *Transcript) AppendUserMessage(text string) {
	t.append(Entry{Role: schema.RoleUser, Text: text})
}

// BeginAgentPlaceholder opens the pending agent entry. An already pending
// placeholder is returned unchanged.
func (t *Transcript) BeginAgentPlaceholder() int {
	if t.pending >= 0 {
		return t.entries[t.pending].ID
	}
	t.activity = nil
	id := t.append(Entry{Role: schema.RoleAgent, Placeholder: true})
	t.pending = len(t.entries) - 1
	return id
}

// HasPlaceholder reports whether a placeholder is waiting for its result.
func (t *Transcript) HasPlaceholder() bool {
	return t.pending >= 0
}

// AppendActivity records a tool-use line for the current exchange.
func (t *Transcript) AppendActivity(line string) {
	if line == "" {
		return
	}
	t.activity = append(t.activity, line)
	if t.pending >= 0 {
		t.entries[t.pending].Activity = append([]string(nil), t.activity...)
	}
	t.requestScroll()
}

// Activity returns the activity lines of the current exchange.
func (t *Transcript) Activity() []string {
	return append([]string(nil), t.activity...)
}

// ResolvePlaceholder replaces the pending placeholder with the final text and
// the accumulated activity. Without a placeholder the result is appended.
func (t *Transcript) ResolvePlaceholder(final string, errored bool) {
	resolved := Entry{
		Role:     schema.RoleAgent,
		Text:     final,
		Activity: append([]string(nil), t.activity...),
		Errored:  errored,
	}
	t.activity = nil
	if t.pending < 0 {
		t.append(resolved)
		return
	}
	resolved.ID = t.entries[t.pending].ID
	t.entries[t.pending] = resolved
	t.pending = -1
	t.requestScroll()
}

// MarkStopped closes the pending placeholder as stopped by the user.
func (t *Transcript) MarkStopped() bool {
	if t.pending < 0 {
		return false
	}
	t.entries[t.pending].Stopped = true
	t.closePending()
	return true
}

// Terminate closes the pending placeholder after the stream ended without a
// result.
func (t *Transcript) Terminate() bool {
	if t.pending < 0 {
		return false
	}
	t.entries[t.pending].Terminated = true
	t.closePending()
	return true
}

// AppendSystem records a local notice.
func (t *Transcript) AppendSystem(text string) {
	t.append(Entry{Role: schema.RoleSystem, Text: text})
}

// AppendError records err as a user-visible error line.
func (t *Transcript) AppendError(err error) {
	if err == nil {
		return
	}
	t.AppendSystem(ErrorLine(err))
}

// ClearAll empties the transcript.
func (t *Transcript) ClearAll() {
	t.entries = nil
	t.activity = nil
	t.pending = -1
	t.requestScroll()
}

// Entries returns a copy of the entries.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, entry := range t.entries {
		entry.Activity = append([]string(nil), entry.Activity...)
		out[i] = entry
	}
	return out
}

// RenderedText returns the transcript as displayed.
func (t *Transcript) RenderedText() string {
	var b strings.Builder
	for _, entry := range t.entries {
		b.WriteString(entry.render(b.Len() == 0))
	}
	return b.String()
}

// TakeScrollRequest returns the pending scroll-to-bottom request, if any, and
// clears it. Hosts call it after laying out new content.
func (t *Transcript) TakeScrollRequest() (uint64, bool) {
	if !t.scroll {
		return t.scrollN, false
	}
	t.scroll = false
	return t.scrollN, true
}

func (t *Transcript) append(entry Entry) int {
	t.nextID++
	entry.ID = t.nextID
	t.entries = append(t.entries, entry)
	t.requestScroll()
	return entry.ID
}

func (t *Transcript) closePending() {
	t.entries[t.pending].Activity = append([]string(nil), t.activity...)
	t.pending = -1
	t.activity = nil
	t.requestScroll()
}

func (t *Transcript) requestScroll() {
	t.scroll = true
	t.scrollN++
}
