// Package focus arbitrates exclusive keyboard and pointer focus between the
// panel's prompt entry and transcript viewer and the rest of the desktop.
package focus

import (
	"fmt"
	"math"

	"pkt.systems/agentpanel/internal/grab"
	"pkt.systems/pslog"
)

// Owner identifies a focus grabber.
type Owner = grab.Holder

const (
	// None means no focus grant is held.
	None Owner = grab.HolderNone
	// InputField is the prompt entry.
	InputField Owner = grab.HolderInputField
	// TranscriptViewer is the transcript surface.
	TranscriptViewer Owner = grab.HolderTranscriptViewer
)

// Scroll amounts applied by viewer key and wheel bindings.
const (
	LineStep  = 30.0
	PageStep  = 150.0
	WheelStep = 50.0
)

// Grant is the arbiter's view of the grab slot.
type Grant struct {
	Owner Owner
	Depth int
}

// EffectKind names a side effect requested by the dispatch table.
type EffectKind string

const (
	EffectScroll    EffectKind = "scroll"
	EffectCopy      EffectKind = "copy"
	EffectSelectAll EffectKind = "select_all"
)

// Effect is a side effect for the host to perform.
type Effect struct {
	Kind   EffectKind
	Amount float64
}

// Outcome is the result of intercepting one event.
type Outcome struct {
	Consumed bool
	Released bool
	Effects  []Effect
}

// Propagate reports whether normal dispatch should see the event.
func (o Outcome) Propagate() bool {
	return !o.Consumed
}

// Viewer receives the viewer effects.
type Viewer interface {
	ScrollBy(amount float64)
	CopySelection()
	SelectAll()
}

// Apply performs the outcome's effects on v.
func (o Outcome) Apply(v Viewer) {
	if v == nil {
		return
	}
	for _, effect := range o.Effects {
		switch effect.Kind {
		case EffectScroll:
			v.ScrollBy(effect.Amount)
		case EffectCopy:
			v.CopySelection()
		case EffectSelectAll:
			v.SelectAll()
		}
	}
}

type handler func(Event) Outcome

func consume(effects ...Effect) handler {
	return func(Event) Outcome {
		return Outcome{Consumed: true, Effects: effects}
	}
}

func scrollBy(amount float64) handler {
	return consume(Effect{Kind: EffectScroll, Amount: amount})
}

var viewerKeys = map[binding]handler{
	{key: "c", ctrl: true}: consume(Effect{Kind: EffectCopy}),
	{key: "a", ctrl: true}: consume(Effect{Kind: EffectSelectAll}),
	{key: KeyUp}:           scrollBy(-LineStep),
	{key: KeyDown}:         scrollBy(LineStep),
	{key: KeyPageUp}:       scrollBy(-PageStep),
	{key: KeyPageDown}:     scrollBy(PageStep),
	{key: KeyHome}:         scrollBy(math.Inf(-1)),
	{key: KeyEnd}:          scrollBy(math.Inf(1)),
}

var viewerWheel = map[ScrollDirection]handler{
	ScrollUp:   scrollBy(-WheelStep),
	ScrollDown: scrollBy(WheelStep),
}

// Arbiter grants focus to one owner at a time through the shared grab slot.
// It is not safe for concurrent use.
type Arbiter struct {
	slot *grab.Slot
	log  pslog.Logger
}

// New constructs an arbiter on slot.
func New(slot *grab.Slot, logger pslog.Logger) *Arbiter {
	if slot == nil {
		slot = grab.NewSlot(nil, logger)
	}
	return &Arbiter{slot: slot, log: logger}
}

// Grant returns the current focus grant. A slot held by a non-focus holder
// (a resize drag) reports no owner.
func (a *Arbiter) Grant() Grant {
	owner := a.slot.Owner()
	if owner != InputField && owner != TranscriptViewer {
		return Grant{}
	}
	return Grant{Owner: owner, Depth: a.slot.Depth()}
}

// Acquire grants focus to owner, pre-empting any other holder.
func (a *Arbiter) Acquire(owner Owner) error {
	if owner != InputField && owner != TranscriptViewer {
		return fmt.Errorf("focus: unknown owner %q", owner)
	}
	changed, err := a.slot.Acquire(owner)
	if err != nil {
		return err
	}
	if changed && a.log != nil {
		a.log.Debug("focus acquired", "owner", owner)
	}
	return nil
}

// Release drops focus if owner holds it; otherwise it does nothing.
func (a *Arbiter) Release(owner Owner) bool {
	if owner != InputField && owner != TranscriptViewer {
		return false
	}
	released := a.slot.Release(owner)
	if released && a.log != nil {
		a.log.Debug("focus released", "owner", owner)
	}
	return released
}

// ReleaseAll drops whatever the slot holds. Used on menu close and destroy.
func (a *Arbiter) ReleaseAll(reason string) {
	if prev := a.slot.ReleaseAll(); prev != grab.HolderNone && a.log != nil {
		a.log.Debug("focus released", "owner", prev, "reason", reason)
	}
}

// Handle intercepts ev before normal dispatch.
func (a *Arbiter) Handle(ev Event) Outcome {
	owner := a.Grant().Owner
	if owner == None {
		return Outcome{}
	}
	if ev.Kind == EventButtonPress && !ev.Inside {
		a.Release(owner)
		return Outcome{Released: true}
	}
	if ev.Kind == EventKeyPress && ev.Key == KeyEscape {
		a.Release(owner)
		return Outcome{Consumed: true, Released: true}
	}
	if owner != TranscriptViewer {
		return Outcome{}
	}
	switch ev.Kind {
	case EventKeyPress:
		if h, ok := viewerKeys[bindingFor(ev)]; ok {
			return h(ev)
		}
	case EventScroll:
		if h, ok := viewerWheel[ev.Scroll]; ok {
			return h(ev)
		}
	}
	return Outcome{}
}
