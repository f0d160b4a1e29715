package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/repository"
)

var hundred = decimal.NewFromInt(100)

type BillingService struct {
	store    *repository.Store
	decimals int32
	now      Clock
}

func NewBillingService(store *repository.Store, cfg *config.Config, clock Clock) *BillingService {
	return &BillingService{
		store:    store,
		decimals: cfg.Billing.CurrencyDecimals,
		now:      utcClock(clock),
	}
}

type CreatePeriodInput struct {
	BuildingID  uuid.UUID
	Month       int
	Year        int
	TotalAmount decimal.Decimal
	DueDate     time.Time
	Notes       *string
}

func (s *BillingService) CreatePeriod(ctx context.Context, actor model.Principal, input CreatePeriodInput) (*model.BillingPeriod, error) {
	if !actor.CanManageBuilding(input.BuildingID) {
		return nil, ErrPermissionDenied
	}
	switch {
	case input.Month < 1 || input.Month > 12:
		return nil, fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidInput)
	case input.Year < 2000:
		return nil, fmt.Errorf("%w: year must be 2000 or later", ErrInvalidInput)
	case !input.TotalAmount.IsPositive():
		return nil, fmt.Errorf("%w: total_amount must be positive", ErrInvalidInput)
	case !fitsScale(input.TotalAmount, moneyScale):
		return nil, fmt.Errorf("%w: total_amount allows at most %d decimal places", ErrInvalidInput, moneyScale)
	case input.DueDate.IsZero():
		return nil, fmt.Errorf("%w: due_date is required", ErrInvalidInput)
	}

	if _, err := s.store.Buildings.GetBuilding(ctx, input.BuildingID); err != nil {
		return nil, notFound(err, "building")
	}

	period := model.BillingPeriod{
		ID:          uuid.New(),
		BuildingID:  input.BuildingID,
		Month:       input.Month,
		Year:        input.Year,
		TotalAmount: input.TotalAmount,
		DueDate:     dateOnly(input.DueDate),
		Notes:       trimmedPtr(input.Notes),
		Status:      model.PeriodStatusOpen,
		CreatedAt:   s.now(),
	}
	if err := s.store.Billing.CreatePeriod(ctx, period); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %04d-%02d", ErrPeriodExists, input.Year, input.Month)
		}
		return nil, err
	}
	return &period, nil
}

// AllocateToAllUnits creates one pending due per unit of the period's
// building. Amounts are total * share / 100 rounded half up to the currency
// minor unit, so their sum may drift from the period total by rounding or by
// shares that do not add up to 100.
func (s *BillingService) AllocateToAllUnits(ctx context.Context, actor model.Principal, periodID uuid.UUID) ([]model.UnitDue, error) {
	var dues []model.UnitDue
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		period, err := tx.Billing.LockPeriod(ctx, periodID)
		if err != nil {
			return notFound(err, "billing period")
		}
		if !actor.CanManageBuilding(period.BuildingID) {
			return ErrPermissionDenied
		}
		if period.Status == model.PeriodStatusClosed {
			return fmt.Errorf("%w: period is closed", ErrInvalidState)
		}

		existing, err := tx.Billing.CountDues(ctx, periodID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyAllocated
		}

		units, err := tx.Buildings.ListUnits(ctx, period.BuildingID)
		if err != nil {
			return err
		}
		if len(units) == 0 {
			return fmt.Errorf("%w: building has no units", ErrInvalidInput)
		}

		now := s.now()
		dues = make([]model.UnitDue, 0, len(units))
		events := make([]model.OutboxEvent, 0, len(units))
		for _, unit := range units {
			due := model.UnitDue{
				ID:         uuid.New(),
				PeriodID:   period.ID,
				UnitID:     unit.ID,
				Amount:     s.share(period.TotalAmount, unit.SharePercent),
				Status:     model.DueStatusPending,
				CreatedAt:  now,
				BuildingID: period.BuildingID,
				DueDate:    period.DueDate,
				UnitNumber: unit.Number,
			}
			dues = append(dues, due)

			event, err := newEvent(toUnit(model.EventDueGenerated, due.ID, period.BuildingID, unit.ID, map[string]interface{}{
				"due_id":      due.ID,
				"period_id":   period.ID,
				"unit_number": unit.Number,
				"month":       period.Month,
				"year":        period.Year,
				"amount":      due.Amount,
				"due_date":    period.DueDate,
			}), now)
			if err != nil {
				return err
			}
			events = append(events, event)
		}

		if err := tx.Billing.CreateDues(ctx, dues); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyAllocated
			}
			return err
		}
		return tx.Outbox.Enqueue(ctx, events...)
	})
	if err != nil {
		return nil, err
	}
	return dues, nil
}

func (s *BillingService) share(total, percent decimal.Decimal) decimal.Decimal {
	return total.Mul(percent).Div(hundred).Round(s.decimals)
}

func (s *BillingService) PeriodStats(ctx context.Context, actor model.Principal, periodID uuid.UUID) (*model.PeriodStats, error) {
	period, err := s.store.Billing.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, notFound(err, "billing period")
	}
	if !actor.CanManageBuilding(period.BuildingID) {
		return nil, ErrPermissionDenied
	}

	totals, err := s.store.Billing.PeriodTotals(ctx, periodID)
	if err != nil {
		return nil, err
	}

	stats := &model.PeriodStats{
		PeriodID:       period.ID,
		TotalAmount:    period.TotalAmount,
		Allocated:      decimal.Zero,
		Paid:           model.StatusBucket{Amount: decimal.Zero},
		Pending:        model.StatusBucket{Amount: decimal.Zero},
		Overdue:        model.StatusBucket{Amount: decimal.Zero},
		CollectionRate: decimal.Zero,
	}
	for _, t := range totals {
		bucket := model.StatusBucket{Count: t.Count, Amount: t.Amount}
		switch t.Status {
		case model.DueStatusPaid:
			stats.Paid = bucket
		case model.DueStatusPending:
			stats.Pending = bucket
		case model.DueStatusOverdue:
			stats.Overdue = bucket
		}
		stats.Dues += t.Count
		stats.Allocated = stats.Allocated.Add(t.Amount)
	}
	if stats.Allocated.IsPositive() {
		stats.CollectionRate = stats.Paid.Amount.Div(stats.Allocated).Round(4)
	}
	return stats, nil
}

func (s *BillingService) GetPeriod(ctx context.Context, actor model.Principal, periodID uuid.UUID) (*model.BillingPeriod, error) {
	period, err := s.store.Billing.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, notFound(err, "billing period")
	}
	if !actor.CanViewBuilding(period.BuildingID) {
		return nil, ErrPermissionDenied
	}
	return period, nil
}

func (s *BillingService) ListPeriods(ctx context.Context, actor model.Principal, buildingID uuid.UUID) ([]model.BillingPeriod, error) {
	if !actor.CanViewBuilding(buildingID) {
		return nil, ErrPermissionDenied
	}
	return s.store.Billing.ListPeriods(ctx, buildingID)
}

// ListDues returns a period's dues. Residents only see their own unit's due.
func (s *BillingService) ListDues(ctx context.Context, actor model.Principal, periodID uuid.UUID) ([]model.UnitDue, error) {
	period, err := s.store.Billing.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, notFound(err, "billing period")
	}
	if !actor.CanViewBuilding(period.BuildingID) {
		return nil, ErrPermissionDenied
	}
	dues, err := s.store.Billing.ListDues(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() {
		return dues, nil
	}
	own := make([]model.UnitDue, 0, 1)
	for _, d := range dues {
		if actor.OwnsUnit(d.UnitID) {
			own = append(own, d)
		}
	}
	return own, nil
}

func (s *BillingService) ListUnitDues(ctx context.Context, actor model.Principal, unitID uuid.UUID) ([]model.UnitDue, error) {
	unit, err := s.store.Buildings.GetUnit(ctx, unitID)
	if err != nil {
		return nil, notFound(err, "unit")
	}
	if !actor.CanActForUnit(unit.BuildingID, unit.ID) {
		return nil, ErrPermissionDenied
	}
	return s.store.Billing.ListDuesForUnit(ctx, unitID)
}

type UpdatePeriodInput struct {
	Status *model.PeriodStatus
	Notes  *string
}

// UpdatePeriod changes only status and notes; amounts and dates are fixed
// once a period exists.
func (s *BillingService) UpdatePeriod(ctx context.Context, actor model.Principal, periodID uuid.UUID, input UpdatePeriodInput) (*model.BillingPeriod, error) {
	if input.Status != nil && !input.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown period status %q", ErrInvalidInput, *input.Status)
	}

	var updated *model.BillingPeriod
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		period, err := tx.Billing.LockPeriod(ctx, periodID)
		if err != nil {
			return notFound(err, "billing period")
		}
		if !actor.CanManageBuilding(period.BuildingID) {
			return ErrPermissionDenied
		}
		if input.Status != nil {
			period.Status = *input.Status
		}
		if input.Notes != nil {
			period.Notes = trimmedPtr(input.Notes)
		}
		if err := tx.Billing.UpdatePeriod(ctx, period.ID, period.Status, period.Notes); err != nil {
			return notFound(err, "billing period")
		}
		updated = period
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func dateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
