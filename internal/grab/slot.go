// Package grab holds the single exclusive input grab shared by every modal
// interaction of the panel (input field focus, transcript viewer focus and
// resize drags). At most one host-level grab is held at any time.
package grab

import (
	"fmt"

	"pkt.systems/pslog"
)

// Holder identifies who owns the grab.
type Holder string

const (
	// HolderNone means the slot is empty.
	HolderNone Holder = ""
	// HolderInputField is the prompt entry.
	HolderInputField Holder = "input_field"
	// HolderTranscriptViewer is the scrollable transcript.
	HolderTranscriptViewer Holder = "transcript_viewer"
	// HolderResizeDrag is an active resize-handle drag.
	HolderResizeDrag Holder = "resize_drag"
)

// Host is the shell-side input capture channel.
type Host interface {
	Grab(holder Holder) error
	Ungrab(holder Holder)
}

// NopHost accepts every grab without side effects.
type NopHost struct{}

// Grab implements Host.
func (NopHost) Grab(Holder) error { return nil }

// Ungrab implements Host.
func (NopHost) Ungrab(Holder) {}

// Slot is a single "current grab owner" cell. It is not safe for concurrent
// use; callers serialize access (the controller holds its mutex).
type Slot struct {
	host    Host
	owner   Holder
	depth   int
	onLost  map[Holder]func(by Holder)
	log     pslog.Logger
	grabs   int
	ungrabs int
}

// NewSlot constructs an empty slot bound to host.
func NewSlot(host Host, logger pslog.Logger) *Slot {
	if host == nil {
		host = NopHost{}
	}
	return &Slot{host: host, log: logger, onLost: make(map[Holder]func(Holder))}
}

// OnLost registers a callback invoked when holder is pre-empted or force released.
func (s *Slot) OnLost(holder Holder, fn func(by Holder)) {
	if fn == nil {
		delete(s.onLost, holder)
		return
	}
	s.onLost[holder] = fn
}

// Owner returns the current holder.
func (s *Slot) Owner() Holder {
	return s.owner
}

// Depth returns the number of host grabs held (0 or 1).
func (s *Slot) Depth() int {
	return s.depth
}

// Held reports whether holder currently owns the slot.
func (s *Slot) Held(holder Holder) bool {
	return holder != HolderNone && s.owner == holder
}

// Acquire grants the slot to holder. Acquiring for the current owner is a
// no-op; any other owner is released first so the host never sees two grabs.
func (s *Slot) Acquire(holder Holder) (bool, error) {
	if holder == HolderNone {
		return false, fmt.Errorf("grab: empty holder")
	}
	if s.owner == holder {
		return false, nil
	}
	if prev := s.owner; prev != HolderNone {
		s.drop(holder)
	}
	if err := s.host.Grab(holder); err != nil {
		if s.log != nil {
			s.log.Warn("grab acquire failed", "holder", holder, "err", err)
		}
		return false, err
	}
	s.grabs++
	s.owner = holder
	s.depth = 1
	if s.log != nil {
		s.log.Trace("grab acquired", "holder", holder)
	}
	return true, nil
}

// Release drops the grab if holder owns it. Releasing a non-holder is a no-op.
func (s *Slot) Release(holder Holder) bool {
	if holder == HolderNone || s.owner != holder {
		return false
	}
	s.host.Ungrab(holder)
	s.ungrabs++
	s.owner = HolderNone
	s.depth = 0
	if s.log != nil {
		s.log.Trace("grab released", "holder", holder)
	}
	return true
}

// ReleaseAll unconditionally empties the slot and notifies the previous owner.
func (s *Slot) ReleaseAll() Holder {
	prev := s.owner
	if prev == HolderNone {
		return HolderNone
	}
	s.drop(HolderNone)
	return prev
}

func (s *Slot) drop(by Holder) {
	prev := s.owner
	s.host.Ungrab(prev)
	s.ungrabs++
	s.owner = HolderNone
	s.depth = 0
	if s.log != nil {
		s.log.Trace("grab pre-empted", "holder", prev, "by", by)
	}
	if fn := s.onLost[prev]; fn != nil {
		fn(by)
	}
}

// Balance returns host grab and ungrab counts, used to detect leaked grabs.
func (s *Slot) Balance() (grabs, ungrabs int) {
	return s.grabs, s.ungrabs
}
