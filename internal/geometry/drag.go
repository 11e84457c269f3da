package geometry

import (
	"errors"

	"pkt.systems/agentpanel/internal/grab"
	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

// ErrNotDragging is returned when a drag operation runs without a session.
var ErrNotDragging = errors.New("no resize drag in progress")

// HandleState is the visual state of the resize handle.
type HandleState = schema.HandleState

const (
	HandleIdle   = schema.HandleIdle
	HandleHover  = schema.HandleHover
	HandleActive = schema.HandleActive
)

// DragSession captures the anchors of a resize drag.
type DragSession struct {
	AnchorPointerY float64
	AnchorHeight   float64
	AnchorWindowY  float64
}

// Update is a geometry change to apply to the overlay.
type Update struct {
	Height  float64
	WindowY float64
}

// Drag runs the resize-handle state machine on top of the shared grab slot.
// Like the slot it is not safe for concurrent use.
type Drag struct {
	slot    *grab.Slot
	bounds  Bounds
	session *DragSession
	height  float64
	windowY float64
	handle  HandleState
	log     pslog.Logger
}

// NewDrag constructs a drag engine starting at height.
func NewDrag(slot *grab.Slot, height float64, logger pslog.Logger) *Drag {
	d := &Drag{
		slot:   slot,
		bounds: DefaultBounds(),
		height: DefaultBounds().Clamp(height),
		handle: HandleIdle,
		log:    logger,
	}
	if slot != nil {
		slot.OnLost(grab.HolderResizeDrag, func(grab.Holder) {
			d.abandon("grab lost")
		})
	}
	return d
}

// SetHeight adopts an externally changed height. Ignored during a drag.
func (d *Drag) SetHeight(height float64) {
	if d.session != nil {
		return
	}
	d.height = d.bounds.Clamp(height)
}

// Height returns the current overlay height.
func (d *Drag) Height() float64 {
	return d.height
}

// WindowY returns the last computed top edge.
func (d *Drag) WindowY() float64 {
	return d.windowY
}

// Active reports whether a drag is in progress.
func (d *Drag) Active() bool {
	return d.session != nil
}

// Session returns a copy of the active drag anchors.
func (d *Drag) Session() (DragSession, bool) {
	if d.session == nil {
		return DragSession{}, false
	}
	return *d.session, true
}

// Handle returns the handle's visual state.
func (d *Drag) Handle() HandleState {
	return d.handle
}

// PointerEnter highlights the handle.
func (d *Drag) PointerEnter() {
	if d.session == nil {
		d.handle = HandleHover
	}
}

// PointerLeave restores the resting look unless a drag is running.
func (d *Drag) PointerLeave() {
	if d.session == nil {
		d.handle = HandleIdle
	}
}

// Start captures the anchors and takes the exclusive grab.
func (d *Drag) Start(pointerY, windowY float64) error {
	if d.session != nil {
		return nil
	}
	if d.slot != nil {
		if _, err := d.slot.Acquire(grab.HolderResizeDrag); err != nil {
			return err
		}
	}
	d.session = &DragSession{
		AnchorPointerY: pointerY,
		AnchorHeight:   d.height,
		AnchorWindowY:  windowY,
	}
	d.windowY = windowY
	d.handle = HandleActive
	if d.log != nil {
		d.log.Debug("resize drag start", "pointer_y", pointerY, "height", d.height, "window_y", windowY)
	}
	return nil
}

// Motion recomputes the geometry. The boolean is false when the change is
// below MinDelta or no drag is active.
func (d *Drag) Motion(pointerY float64) (Update, bool) {
	if d.session == nil {
		return Update{}, false
	}
	next := d.bounds.computeResize(d.session.AnchorHeight, d.session.AnchorPointerY, pointerY)
	if !ShouldApply(d.height, next) {
		return Update{}, false
	}
	d.height = next
	d.windowY = ComputeWindowY(d.session.AnchorWindowY, d.session.AnchorHeight, next)
	return Update{Height: d.height, WindowY: d.windowY}, true
}

// End finishes the drag, releases the grab and returns the height to persist.
func (d *Drag) End() (float64, error) {
	if d.session == nil {
		return d.height, ErrNotDragging
	}
	d.session = nil
	d.handle = HandleIdle
	if d.slot != nil {
		d.slot.Release(grab.HolderResizeDrag)
	}
	if d.log != nil {
		d.log.Debug("resize drag end", "height", d.height)
	}
	return d.height, nil
}

// Cancel aborts the drag without persisting and restores the anchor geometry.
func (d *Drag) Cancel() {
	if d.session == nil {
		return
	}
	if d.slot != nil {
		d.slot.Release(grab.HolderResizeDrag)
	}
	d.abandon("cancel")
}

func (d *Drag) abandon(reason string) {
	if d.session == nil {
		return
	}
	d.height = d.session.AnchorHeight
	d.windowY = d.session.AnchorWindowY
	d.session = nil
	d.handle = HandleIdle
	if d.log != nil {
		d.log.Debug("resize drag abandoned", "reason", reason, "height", d.height)
	}
}
