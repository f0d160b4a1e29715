package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nurpe/condo-ledger/internal/model"
)

// RedisPublisher appends events to a Redis stream.
type RedisPublisher struct {
	client *redis.Client
	stream string
	log    zerolog.Logger
}

func NewRedisPublisher(url, stream string, log zerolog.Logger) (*RedisPublisher, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisPublisher{client: client, stream: stream, log: log}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event model.OutboxEvent) error {
	body, err := NewEnvelope(event).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	id, err := p.client.XAdd(ctx, streamArgs(p.stream, event, body)).Result()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	p.log.Debug().
		Str("event_id", event.ID.String()).
		Str("type", string(event.EventType)).
		Str("stream_id", id).
		Msg("event published")
	return nil
}

func streamArgs(stream string, event model.OutboxEvent, body []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"event_id":    event.ID.String(),
			"type":        string(event.EventType),
			"building_id": event.BuildingID.String(),
			"body":        string(body),
		},
	}
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
