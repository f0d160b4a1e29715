package notify

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/nurpe/condo-ledger/internal/model"
)

// LogPublisher writes events to the log. Used in development and whenever no
// broker is configured.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(log zerolog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, event model.OutboxEvent) error {
	p.log.Info().
		Str("event_id", event.ID.String()).
		Str("type", string(event.EventType)).
		Str("building_id", event.BuildingID.String()).
		Str("recipient_kind", string(event.RecipientKind)).
		Str("recipient_id", event.RecipientID.String()).
		RawJSON("data", NewEnvelope(event).Data).
		Msg("notification")
	return nil
}

func (p *LogPublisher) Close() error {
	return nil
}
