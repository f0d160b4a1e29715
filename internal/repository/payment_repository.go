package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/model"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `
	id,
	due_id,
	amount,
	method,
	reference,
	proof_uri,
	status,
	notes,
	rejection_reason,
	paid_at,
	reviewed_by,
	reviewed_at,
	created_by,
	created_at
`

// CreatePayment returns gorm.ErrDuplicatedKey when the due already has a
// pending (or confirmed) payment, enforced by partial unique indexes.
func (r *PaymentRepository) CreatePayment(ctx context.Context, p model.Payment) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID,
		p.DueID,
		p.Amount,
		p.Method,
		p.Reference,
		p.ProofURI,
		p.Status,
		p.Notes,
		p.RejectionReason,
		p.PaidAt,
		p.ReviewedBy,
		p.ReviewedAt,
		p.CreatedBy,
		p.CreatedAt,
	).Error
	return insertErr(err)
}

func (r *PaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := r.db.WithContext(ctx).Raw(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *PaymentRepository) LockPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	var p model.Payment
	if err := lockRow(ctx, r.db, "payments", id, &p); err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *PaymentRepository) HasPending(ctx context.Context, dueID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM payments WHERE due_id = ? AND status = ?
	`, dueID, model.PaymentStatusPending).Scan(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Confirm only transitions pending payments; it reports how many rows changed.
func (r *PaymentRepository) Confirm(ctx context.Context, id, reviewer uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE payments
		SET
			status = ?,
			reviewed_by = ?,
			reviewed_at = ?,
			paid_at = COALESCE(paid_at, ?)
		WHERE id = ? AND status = ?
	`, model.PaymentStatusConfirmed, reviewer, at, at, id, model.PaymentStatusPending)
	return res.RowsAffected, res.Error
}

func (r *PaymentRepository) Reject(ctx context.Context, id, reviewer uuid.UUID, at time.Time, reason *string) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE payments
		SET
			status = ?,
			reviewed_by = ?,
			reviewed_at = ?,
			rejection_reason = ?
		WHERE id = ? AND status = ?
	`, model.PaymentStatusRejected, reviewer, at, reason, id, model.PaymentStatusPending)
	return res.RowsAffected, res.Error
}

func (r *PaymentRepository) ListByDue(ctx context.Context, dueID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.WithContext(ctx).Raw(`
		SELECT `+paymentColumns+`
		FROM payments
		WHERE due_id = ?
		ORDER BY created_at DESC
	`, dueID).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// ListPendingByBuilding is the review queue of submitted proofs for a building.
func (r *PaymentRepository) ListPendingByBuilding(ctx context.Context, buildingID uuid.UUID) ([]model.Payment, error) {
	var payments []model.Payment
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			pay.id,
			pay.due_id,
			pay.amount,
			pay.method,
			pay.reference,
			pay.proof_uri,
			pay.status,
			pay.notes,
			pay.rejection_reason,
			pay.paid_at,
			pay.reviewed_by,
			pay.reviewed_at,
			pay.created_by,
			pay.created_at
		FROM payments pay
		JOIN unit_dues d ON d.id = pay.due_id
		JOIN billing_periods p ON p.id = d.period_id
		WHERE p.building_id = ? AND pay.status = ?
		ORDER BY pay.created_at ASC
	`, buildingID, model.PaymentStatusPending).Scan(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
