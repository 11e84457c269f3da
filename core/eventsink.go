package core

import "pkt.systems/agentpanel/schema"

// EventSink receives change notifications from the controller. Calls are
// made while the controller lock is held and must not block.
type EventSink interface {
	OnTranscript(event schema.TranscriptEvent)
	OnStatus(event schema.StatusEvent)
	OnGeometry(event schema.GeometryEvent)
	OnConfig(event schema.ConfigEvent)
}
