package core

import "strings"

const defaultPromptHistoryMax = 200

// promptHistory keeps submitted prompts for Up/Down recall in the input
// field. The cursor sits past the newest entry until recall starts.
type promptHistory struct {
	entries []string
	max     int
	cursor  int
	draft   string
}

func newPromptHistory(max int) *promptHistory {
	if max <= 0 {
		max = defaultPromptHistoryMax
	}
	return &promptHistory{max: max}
}

// Append records prompt and resets recall. Blank prompts and immediate
// repeats are not stored.
func (h *promptHistory) Append(prompt string) bool {
	defer h.reset()
	if strings.TrimSpace(prompt) == "" {
		return false
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == prompt {
		return false
	}
	h.entries = append(h.entries, prompt)
	if len(h.entries) > h.max {
		h.entries = h.entries[len(h.entries)-h.max:]
	}
	return true
}

// Previous steps back. current is the input text, kept as the draft when
// recall starts so Next can restore it.
func (h *promptHistory) Previous(current string) (string, bool) {
	if len(h.entries) == 0 || h.cursor == 0 {
		return "", false
	}
	if h.cursor == len(h.entries) {
		h.draft = current
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Next steps forward, ending on the saved draft.
func (h *promptHistory) Next() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return h.draft, true
	}
	return h.entries[h.cursor], true
}

func (h *promptHistory) Entries() []string {
	return append([]string(nil), h.entries...)
}

func (h *promptHistory) reset() {
	h.cursor = len(h.entries)
	h.draft = ""
}
