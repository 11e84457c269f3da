package eventbus

import (
	"context"
	"sync"

	"pkt.systems/agentpanel/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventTranscript carries the rendered transcript.
	EventTranscript EventType = "transcript"
	// EventStatus carries session and indicator state.
	EventStatus EventType = "status"
	// EventGeometry carries chat window geometry.
	EventGeometry EventType = "geometry"
	// EventConfig carries a persisted configuration change.
	EventConfig EventType = "config"
)

// Event represents a UI-facing event emitted by the controller.
type Event struct {
	Type       EventType
	Transcript schema.TranscriptEvent
	Status     schema.StatusEvent
	Geometry   schema.GeometryEvent
	Config     schema.ConfigEvent
}

// Bus fans out controller events to UI subscribers. Publishing never blocks;
// a subscriber that falls behind loses events.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	b.log.Debug("eventbus subscribe", "subs", count)
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
			b.log.Debug("eventbus unsubscribe")
		})
	}
}

// OnTranscript publishes a transcript event.
func (b *Bus) OnTranscript(event schema.TranscriptEvent) {
	b.publish(Event{Type: EventTranscript, Transcript: event})
}

// OnStatus publishes a status event.
func (b *Bus) OnStatus(event schema.StatusEvent) {
	b.publish(Event{Type: EventStatus, Status: event})
}

// OnGeometry publishes a geometry event.
func (b *Bus) OnGeometry(event schema.GeometryEvent) {
	b.publish(Event{Type: EventGeometry, Geometry: event})
}

// OnConfig publishes a config event.
func (b *Bus) OnConfig(event schema.ConfigEvent) {
	b.publish(Event{Type: EventConfig, Config: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) == 0 {
		return
	}
	dropped := 0
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Trace("eventbus dropped", "type", event.Type, "count", dropped)
	}
}
