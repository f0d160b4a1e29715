package outbox

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/notify"
	"github.com/nurpe/condo-ledger/internal/repository"
)

// Relay moves committed outbox events to the notification publisher. A
// failed publish is recorded on the event and retried on a later pass until
// MaxAttempts is reached; it never affects the state change that produced it.
type Relay struct {
	store       *repository.Store
	publisher   notify.Publisher
	log         zerolog.Logger
	interval    time.Duration
	batchSize   int
	maxAttempts int
	now         func() time.Time
}

func NewRelay(store *repository.Store, publisher notify.Publisher, cfg config.NotifyConfig, log zerolog.Logger) *Relay {
	r := &Relay{
		store:       store,
		publisher:   publisher,
		log:         log,
		interval:    cfg.PollInterval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if r.interval <= 0 {
		r.interval = 5 * time.Second
	}
	if r.batchSize <= 0 {
		r.batchSize = 100
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = 10
	}
	return r
}

// RunOnce relays one batch and returns how many events were published.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.store.Transaction(ctx, func(tx *repository.Store) error {
		events, err := tx.Outbox.ClaimUnpublished(ctx, r.batchSize, r.maxAttempts)
		if err != nil {
			return err
		}
		for _, event := range events {
			if err := r.publisher.Publish(ctx, event); err != nil {
				r.logFailure(event, err)
				if err := tx.Outbox.MarkFailed(ctx, event.ID, err.Error()); err != nil {
					return err
				}
				continue
			}
			if err := tx.Outbox.MarkPublished(ctx, event.ID, r.now()); err != nil {
				return err
			}
			published++
		}
		return nil
	})
	return published, err
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Relay) tick(ctx context.Context) {
	n, err := r.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error().Err(err).Msg("outbox relay pass failed")
		}
		return
	}
	if n > 0 {
		r.log.Info().Int("published", n).Msg("outbox events relayed")
	}
}

func (r *Relay) logFailure(event model.OutboxEvent, err error) {
	r.log.Warn().
		Err(err).
		Str("event_id", event.ID.String()).
		Str("type", string(event.EventType)).
		Int("attempt", event.Attempts+1).
		Msg("publish failed")
}
