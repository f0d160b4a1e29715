package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/model"
)

type BillingRepository struct {
	db *gorm.DB
}

func NewBillingRepository(db *gorm.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

type DueStatusTotal struct {
	Status model.DueStatus
	Count  int64
	Amount decimal.Decimal
}

const dueSelect = `
	SELECT
		d.id,
		d.period_id,
		d.unit_id,
		d.amount,
		d.status,
		d.paid_at,
		d.created_at,
		p.building_id,
		p.due_date,
		u.number AS unit_number
	FROM unit_dues d
	JOIN billing_periods p ON p.id = d.period_id
	JOIN units u ON u.id = d.unit_id
`

func (r *BillingRepository) CreatePeriod(ctx context.Context, p model.BillingPeriod) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO billing_periods (id, building_id, month, year, total_amount, due_date, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.BuildingID, p.Month, p.Year, p.TotalAmount, p.DueDate, p.Notes, p.Status, p.CreatedAt).Error
	return insertErr(err)
}

func (r *BillingRepository) GetPeriod(ctx context.Context, id uuid.UUID) (*model.BillingPeriod, error) {
	var p model.BillingPeriod
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, building_id, month, year, total_amount, due_date, notes, status, created_at
		FROM billing_periods
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

// LockPeriod loads the period and holds a row lock until the transaction ends.
func (r *BillingRepository) LockPeriod(ctx context.Context, id uuid.UUID) (*model.BillingPeriod, error) {
	var p model.BillingPeriod
	if err := lockRow(ctx, r.db, "billing_periods", id, &p); err != nil {
		return nil, err
	}
	if p.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r *BillingRepository) ListPeriods(ctx context.Context, buildingID uuid.UUID) ([]model.BillingPeriod, error) {
	var periods []model.BillingPeriod
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, building_id, month, year, total_amount, due_date, notes, status, created_at
		FROM billing_periods
		WHERE building_id = ?
		ORDER BY year DESC, month DESC
	`, buildingID).Scan(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

func (r *BillingRepository) UpdatePeriod(ctx context.Context, id uuid.UUID, status model.PeriodStatus, notes *string) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE billing_periods SET status = ?, notes = ? WHERE id = ?
	`, status, notes, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BillingRepository) CountDues(ctx context.Context, periodID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM unit_dues WHERE period_id = ?
	`, periodID).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateDues inserts all dues of a period. Callers run it inside a
// transaction so a failure leaves no dues behind.
func (r *BillingRepository) CreateDues(ctx context.Context, dues []model.UnitDue) error {
	for _, d := range dues {
		if err := r.db.WithContext(ctx).Exec(`
			INSERT INTO unit_dues (id, period_id, unit_id, amount, status, paid_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, d.ID, d.PeriodID, d.UnitID, d.Amount, d.Status, d.PaidAt, d.CreatedAt).Error; err != nil {
			return insertErr(err)
		}
	}
	return nil
}

func (r *BillingRepository) GetDue(ctx context.Context, id uuid.UUID) (*model.UnitDue, error) {
	var due model.UnitDue
	if err := r.db.WithContext(ctx).Raw(dueSelect+` WHERE d.id = ? LIMIT 1`, id).Scan(&due).Error; err != nil {
		return nil, err
	}
	if due.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &due, nil
}

// LockDue takes a row lock on the due and returns it with period and unit data.
func (r *BillingRepository) LockDue(ctx context.Context, id uuid.UUID) (*model.UnitDue, error) {
	var locked model.UnitDue
	if err := lockRow(ctx, r.db, "unit_dues", id, &locked); err != nil {
		return nil, err
	}
	if locked.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetDue(ctx, id)
}

func (r *BillingRepository) ListDues(ctx context.Context, periodID uuid.UUID) ([]model.UnitDue, error) {
	var dues []model.UnitDue
	if err := r.db.WithContext(ctx).Raw(dueSelect+` WHERE d.period_id = ? ORDER BY u.number ASC`, periodID).Scan(&dues).Error; err != nil {
		return nil, err
	}
	return dues, nil
}

func (r *BillingRepository) ListDuesForUnit(ctx context.Context, unitID uuid.UUID) ([]model.UnitDue, error) {
	var dues []model.UnitDue
	if err := r.db.WithContext(ctx).Raw(dueSelect+` WHERE d.unit_id = ? ORDER BY p.year DESC, p.month DESC`, unitID).Scan(&dues).Error; err != nil {
		return nil, err
	}
	return dues, nil
}

// MarkDuePaid moves a pending or overdue due to paid. It never rewrites an
// already paid due, so paid_at keeps its first value.
func (r *BillingRepository) MarkDuePaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE unit_dues
		SET status = ?, paid_at = ?
		WHERE id = ? AND status IN (?, ?)
	`, model.DueStatusPaid, paidAt, id, model.DueStatusPending, model.DueStatusOverdue)
	return res.RowsAffected, res.Error
}

// MarkOverdue moves pending dues whose period due date is before asOf to overdue.
func (r *BillingRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE unit_dues
		SET status = ?
		WHERE status = ?
			AND period_id IN (
				SELECT id FROM billing_periods WHERE due_date < ?
			)
	`, model.DueStatusOverdue, model.DueStatusPending, asOf)
	return res.RowsAffected, res.Error
}

func (r *BillingRepository) PeriodTotals(ctx context.Context, periodID uuid.UUID) ([]DueStatusTotal, error) {
	var totals []DueStatusTotal
	if err := r.db.WithContext(ctx).Raw(`
		SELECT status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount
		FROM unit_dues
		WHERE period_id = ?
		GROUP BY status
	`, periodID).Scan(&totals).Error; err != nil {
		return nil, err
	}
	return totals, nil
}
