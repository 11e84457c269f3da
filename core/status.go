package core

import "pkt.systems/agentpanel/schema"

// DefaultPalette is the stop affordance colour cycle.
var DefaultPalette = []string{
	"#ff6b6b",
	"#ffa94d",
	"#ffd43b",
	"#69db7c",
	"#4dabf7",
	"#b197fc",
}

// Affordance is what the send/stop button shows.
type Affordance struct {
	Stop  bool
	Color string
}

// Indicator tracks the Idle/Busy status and the stop colour cycle. It is not
// safe for concurrent use.
type Indicator struct {
	state   schema.StatusState
	index   int
	palette []string
}

// NewIndicator returns an idle indicator. An empty palette uses DefaultPalette.
func NewIndicator(palette []string) *Indicator {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return &Indicator{
		state:   schema.StatusIdle,
		palette: append([]string(nil), palette...),
	}
}

// StartBusy swaps to the stop affordance. Only valid from Idle.
func (i *Indicator) StartBusy() bool {
	if i.state == schema.StatusBusy {
		return false
	}
	i.state = schema.StatusBusy
	i.index = 0
	return true
}

// Cycle advances the colour. Only valid while Busy.
func (i *Indicator) Cycle() bool {
	if i.state != schema.StatusBusy {
		return false
	}
	i.index = (i.index + 1) % len(i.palette)
	return true
}

// Stop restores the send affordance. Valid from any state.
func (i *Indicator) Stop() {
	i.state = schema.StatusIdle
	i.index = 0
}

// State returns the current status.
func (i *Indicator) State() schema.StatusState {
	return i.state
}

// Affordance returns the button presentation.
func (i *Indicator) Affordance() Affordance {
	if i.state != schema.StatusBusy {
		return Affordance{}
	}
	return Affordance{Stop: true, Color: i.palette[i.index]}
}

// Snapshot returns the indicator state for renderers.
func (i *Indicator) Snapshot() schema.StatusSnapshot {
	snap := schema.StatusSnapshot{State: i.state, ColorIndex: i.index}
	if i.state == schema.StatusBusy {
		snap.Color = i.palette[i.index]
	}
	return snap
}
