package manager

import "github.com/rs/zerolog"

// LogPublisher writes every event to a zerolog logger at info level.
type LogPublisher struct {
	Log zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Log.Info().Str("event", e.Name)
	if e.VariantID != "" {
		ev = ev.Str("variant", e.VariantID)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("model event")
}
