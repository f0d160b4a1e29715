package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/model"
)

// Publisher hands an outbox event to the notification collaborator.
// Implementations must be safe to call again for the same event: the relay
// retries anything that was not acknowledged.
type Publisher interface {
	Publish(ctx context.Context, event model.OutboxEvent) error
	Close() error
}

// Envelope is the wire form of an event shared by every sink.
type Envelope struct {
	ID            string          `json:"id"`
	Type          model.EventType `json:"type"`
	EntityID      string          `json:"entity_id"`
	BuildingID    string          `json:"building_id"`
	RecipientKind string          `json:"recipient_kind"`
	RecipientID   string          `json:"recipient_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Data          json.RawMessage `json:"data"`
}

func NewEnvelope(event model.OutboxEvent) Envelope {
	data := json.RawMessage(event.Payload)
	if !json.Valid(data) {
		data = json.RawMessage("null")
	}
	return Envelope{
		ID:            event.ID.String(),
		Type:          event.EventType,
		EntityID:      event.EntityID.String(),
		BuildingID:    event.BuildingID.String(),
		RecipientKind: string(event.RecipientKind),
		RecipientID:   event.RecipientID.String(),
		OccurredAt:    event.CreatedAt.UTC(),
		Data:          data,
	}
}

func (e Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// New builds the publisher selected by NOTIFY_DRIVER.
func New(cfg config.NotifyConfig, log zerolog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case config.NotifyDriverAMQP:
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
	case config.NotifyDriverRedis:
		return NewRedisPublisher(cfg.RedisURL, cfg.RedisStream, log)
	case config.NotifyDriverLog, "":
		return NewLogPublisher(log), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}
