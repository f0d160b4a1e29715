package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nurpe/condo-ledger/internal/model"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Enqueue(ctx context.Context, events ...model.OutboxEvent) error {
	for _, e := range events {
		if err := r.db.WithContext(ctx).Exec(`
			INSERT INTO outbox_events (id, event_type, entity_id, building_id, recipient_kind, recipient_id, payload, created_at, attempts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
		`, e.ID, e.EventType, e.EntityID, e.BuildingID, e.RecipientKind, e.RecipientID, e.Payload, e.CreatedAt).Error; err != nil {
			return err
		}
	}
	return nil
}

// ClaimUnpublished locks a batch of unpublished events, skipping rows another
// relay already holds.
func (r *OutboxRepository) ClaimUnpublished(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Table("outbox_events").
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("published_at IS NULL AND attempts < ?", maxAttempts).
		Order("created_at ASC").
		Limit(limit).
		Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE outbox_events SET published_at = ?, attempts = attempts + 1, last_error = NULL WHERE id = ?
	`, at, id).Error
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE outbox_events SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, reason, id).Error
}

func (r *OutboxRepository) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]model.OutboxEvent, error) {
	var events []model.OutboxEvent
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, event_type, entity_id, building_id, recipient_kind, recipient_id, payload, created_at, published_at, attempts, last_error
		FROM outbox_events
		WHERE entity_id = ?
		ORDER BY created_at ASC
	`, entityID).Scan(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
