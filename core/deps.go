package core

import (
	"pkt.systems/agentpanel/internal/grab"
	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

// ConfigStore persists the panel record. Save failures are non-fatal.
type ConfigStore interface {
	Save(cfg schema.PanelConfig) error
}

// ControllerDeps captures optional dependencies for the controller.
type ControllerDeps struct {
	Runner        Runner
	Renderer      Renderer
	ConfigStore   ConfigStore
	EventSink     EventSink
	GrabHost      grab.Host
	Palette       []string
	WorkingDir    string
	NewExchangeID func() schema.ExchangeID
	Logger        pslog.Logger
}
