// Package geometry computes resize deltas for the transcript overlay and runs
// the resize-handle drag lifecycle.
package geometry

import (
	"math"

	"pkt.systems/agentpanel/schema"
)

// MinDelta is the smallest height change worth a relayout.
const MinDelta = 1.0

// Bounds limits the height a drag may produce.
type Bounds struct {
	Min float64
	Max float64
}

// DefaultBounds returns the 100..800 clamp.
func DefaultBounds() Bounds {
	return Bounds{Min: schema.MinChatHeight, Max: schema.MaxChatHeight}
}

// Clamp limits value to the bounds.
func (b Bounds) Clamp(value float64) float64 {
	return math.Max(b.Min, math.Min(b.Max, value))
}

// ComputeResize returns the clamped height for a drag from anchorPointerY to
// currentPointerY. Dragging up (smaller Y) grows the overlay.
func ComputeResize(anchorHeight, anchorPointerY, currentPointerY float64) float64 {
	return DefaultBounds().computeResize(anchorHeight, anchorPointerY, currentPointerY)
}

func (b Bounds) computeResize(anchorHeight, anchorPointerY, currentPointerY float64) float64 {
	desired := anchorHeight + (anchorPointerY - currentPointerY)
	return b.Clamp(desired)
}

// ComputeWindowY returns the new top edge so the bottom edge stays put.
func ComputeWindowY(anchorWindowY, anchorHeight, clampedHeight float64) float64 {
	return anchorWindowY - (clampedHeight - anchorHeight)
}

// ShouldApply reports whether next differs enough from current to relayout.
func ShouldApply(current, next float64) bool {
	return math.Abs(next-current) >= MinDelta
}
