package focus

import "strings"

// EventKind classifies host input events.
type EventKind int

const (
	// EventButtonPress is a pointer button press.
	EventButtonPress EventKind = iota
	// EventButtonRelease is a pointer button release.
	EventButtonRelease
	// EventKeyPress is a key press.
	EventKeyPress
	// EventScroll is a mouse wheel step.
	EventScroll
	// EventMotion is pointer motion.
	EventMotion
)

// Key is a key symbol name.
type Key string

const (
	KeyEscape   Key = "Escape"
	KeyUp       Key = "Up"
	KeyDown     Key = "Down"
	KeyPageUp   Key = "Page_Up"
	KeyPageDown Key = "Page_Down"
	KeyHome     Key = "Home"
	KeyEnd      Key = "End"
	KeyReturn   Key = "Return"
)

// Modifier is a bit set of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
)

// ScrollDirection is the wheel direction of a scroll event.
type ScrollDirection int

const (
	ScrollNone ScrollDirection = iota
	ScrollUp
	ScrollDown
)

// Event is a host input event as seen by the interception point.
// Inside reports whether the event target lies within the grab owner's
// designated surface.
type Event struct {
	Kind   EventKind
	Key    Key
	Mods   Modifier
	Scroll ScrollDirection
	Inside bool
}

// Press returns a button press event.
func Press(inside bool) Event {
	return Event{Kind: EventButtonPress, Inside: inside}
}

// KeyPress returns a key press event.
func KeyPress(key Key, mods Modifier) Event {
	return Event{Kind: EventKeyPress, Key: key, Mods: mods}
}

// Wheel returns a scroll event.
func Wheel(dir ScrollDirection) Event {
	return Event{Kind: EventScroll, Scroll: dir, Inside: true}
}

type binding struct {
	key  Key
	ctrl bool
}

func bindingFor(ev Event) binding {
	key := ev.Key
	if len(key) == 1 {
		key = Key(strings.ToLower(string(key)))
	}
	return binding{key: key, ctrl: ev.Mods&ModCtrl != 0}
}
