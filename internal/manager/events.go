package manager

import "time"

// Event represents a manager lifecycle event.
// Minimal and stable: name + variant ID and optional fields via key/values.
type Event struct {
	Name      string
	VariantID string
	At        time.Time
	Fields    map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MultiPublisher fans an event out to several publishers.
type MultiPublisher []EventPublisher

func (mp MultiPublisher) Publish(e Event) {
	for _, p := range mp {
		if p != nil {
			p.Publish(e)
		}
	}
}

func (m *Manager) emit(name, variant string, fields map[string]any) {
	if fields == nil {
		fields = map[string]any{}
	}
	m.publisher.Publish(Event{Name: name, VariantID: variant, At: m.now(), Fields: fields})
}
