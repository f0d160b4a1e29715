package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/repository"
)

type PaymentService struct {
	store *repository.Store
	now   Clock
}

func NewPaymentService(store *repository.Store, clock Clock) *PaymentService {
	return &PaymentService{
		store: store,
		now:   utcClock(clock),
	}
}

type SubmitPaymentInput struct {
	DueID     uuid.UUID
	Amount    decimal.Decimal
	Method    model.PaymentMethod
	ProofURI  string
	Reference *string
	Notes     *string
	PaidAt    *time.Time
}

// SubmitPayment records a resident's proof of payment for review. At most
// one proof per due can be pending; the due row lock orders concurrent
// submissions and the partial unique index rejects whatever slips past it.
func (s *PaymentService) SubmitPayment(ctx context.Context, actor model.Principal, input SubmitPaymentInput) (*model.Payment, error) {
	method, err := normalizeMethod(input.Method)
	if err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !fitsScale(input.Amount, moneyScale) {
		return nil, fmt.Errorf("%w: amount allows at most %d decimal places", ErrInvalidInput, moneyScale)
	}
	proof := strings.TrimSpace(input.ProofURI)
	if proof == "" {
		return nil, fmt.Errorf("%w: proof_uri is required", ErrInvalidInput)
	}

	var payment model.Payment
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		due, err := tx.Billing.LockDue(ctx, input.DueID)
		if err != nil {
			return notFound(err, "due")
		}
		if !actor.CanActForUnit(due.BuildingID, due.UnitID) {
			return ErrPermissionDenied
		}
		if due.Status == model.DueStatusPaid {
			return ErrUnitAlreadyPaid
		}
		pending, err := tx.Payments.HasPending(ctx, due.ID)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingPaymentExists
		}

		now := s.now()
		payment = model.Payment{
			ID:        uuid.New(),
			DueID:     due.ID,
			Amount:    input.Amount,
			Method:    method,
			Reference: trimmedPtr(input.Reference),
			ProofURI:  &proof,
			Status:    model.PaymentStatusPending,
			Notes:     trimmedPtr(input.Notes),
			PaidAt:    utcPtr(input.PaidAt),
			CreatedBy: actor.UserID,
			CreatedAt: now,
		}
		if err := tx.Payments.CreatePayment(ctx, payment); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrPendingPaymentExists
			}
			return err
		}

		event, err := newEvent(toAdmins(model.EventPaymentSubmitted, payment.ID, due.BuildingID, map[string]interface{}{
			"payment_id":  payment.ID,
			"due_id":      due.ID,
			"unit_id":     due.UnitID,
			"unit_number": due.UnitNumber,
			"amount":      payment.Amount,
		}), now)
		if err != nil {
			return err
		}
		return tx.Outbox.Enqueue(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// ConfirmPayment approves a pending proof and marks its due paid in the same
// transaction. Confirming an already confirmed payment returns the due as is.
// A pending proof whose due was settled some other way is rejected with
// alreadyPaidReason and ErrUnitAlreadyPaid is returned, so it leaves the
// review queue.
func (s *PaymentService) ConfirmPayment(ctx context.Context, actor model.Principal, paymentID uuid.UUID) (*model.UnitDue, error) {
	var result *model.UnitDue
	var settled bool
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		payment, err := tx.Payments.LockPayment(ctx, paymentID)
		if err != nil {
			return notFound(err, "payment")
		}
		due, err := tx.Billing.LockDue(ctx, payment.DueID)
		if err != nil {
			return notFound(err, "due")
		}
		if !actor.CanManageBuilding(due.BuildingID) {
			return ErrPermissionDenied
		}

		switch payment.Status {
		case model.PaymentStatusConfirmed:
			result = due
			return nil
		case model.PaymentStatusRejected:
			return fmt.Errorf("%w: payment was rejected", ErrInvalidState)
		}

		now := s.now()
		if due.Status == model.DueStatusPaid {
			settled = true
			reason := alreadyPaidReason
			return s.rejectPending(ctx, tx, payment, due, actor.UserID, now, &reason)
		}

		if _, err := tx.Payments.Confirm(ctx, payment.ID, actor.UserID, now); err != nil {
			return err
		}
		if _, err := tx.Billing.MarkDuePaid(ctx, due.ID, now); err != nil {
			return err
		}
		due.Status = model.DueStatusPaid
		due.PaidAt = &now

		event, err := newEvent(toUnit(model.EventPaymentConfirmed, payment.ID, due.BuildingID, due.UnitID, map[string]interface{}{
			"payment_id": payment.ID,
			"due_id":     due.ID,
			"amount":     payment.Amount,
			"paid_at":    now,
		}), now)
		if err != nil {
			return err
		}
		if err := tx.Outbox.Enqueue(ctx, event); err != nil {
			return err
		}
		result = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	if settled {
		return nil, ErrUnitAlreadyPaid
	}
	return result, nil
}

// RejectPayment leaves the due untouched so the resident can submit again.
func (s *PaymentService) RejectPayment(ctx context.Context, actor model.Principal, paymentID uuid.UUID, reason *string) (*model.Payment, error) {
	var result *model.Payment
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		payment, err := tx.Payments.LockPayment(ctx, paymentID)
		if err != nil {
			return notFound(err, "payment")
		}
		due, err := tx.Billing.GetDue(ctx, payment.DueID)
		if err != nil {
			return notFound(err, "due")
		}
		if !actor.CanManageBuilding(due.BuildingID) {
			return ErrPermissionDenied
		}

		switch payment.Status {
		case model.PaymentStatusRejected:
			result = payment
			return nil
		case model.PaymentStatusConfirmed:
			return fmt.Errorf("%w: payment was already confirmed", ErrInvalidState)
		}

		if err := s.rejectPending(ctx, tx, payment, due, actor.UserID, s.now(), trimmedPtr(reason)); err != nil {
			return err
		}
		result = payment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

const alreadyPaidReason = "due already paid"

func (s *PaymentService) rejectPending(ctx context.Context, tx *repository.Store, payment *model.Payment, due *model.UnitDue, reviewer uuid.UUID, now time.Time, reason *string) error {
	if _, err := tx.Payments.Reject(ctx, payment.ID, reviewer, now, reason); err != nil {
		return err
	}
	payment.Status = model.PaymentStatusRejected
	payment.ReviewedBy = &reviewer
	payment.ReviewedAt = &now
	payment.RejectionReason = reason

	data := map[string]interface{}{
		"payment_id": payment.ID,
		"due_id":     due.ID,
		"amount":     payment.Amount,
	}
	if reason != nil {
		data["reason"] = *reason
	}
	event, err := newEvent(toUnit(model.EventPaymentRejected, payment.ID, due.BuildingID, due.UnitID, data), now)
	if err != nil {
		return err
	}
	return tx.Outbox.Enqueue(ctx, event)
}

type ManualPaymentInput struct {
	DueID     uuid.UUID
	Amount    decimal.Decimal
	Method    model.PaymentMethod
	Reference *string
	Notes     *string
	PaidAt    *time.Time
}

// RecordManualPayment registers a payment taken by an admin (cash at the
// desk, a bank statement line). It is confirmed immediately and settles the due.
func (s *PaymentService) RecordManualPayment(ctx context.Context, actor model.Principal, input ManualPaymentInput) (*model.Payment, error) {
	method, err := normalizeMethod(input.Method)
	if err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !fitsScale(input.Amount, moneyScale) {
		return nil, fmt.Errorf("%w: amount allows at most %d decimal places", ErrInvalidInput, moneyScale)
	}

	var payment model.Payment
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		due, err := tx.Billing.LockDue(ctx, input.DueID)
		if err != nil {
			return notFound(err, "due")
		}
		if !actor.CanManageBuilding(due.BuildingID) {
			return ErrPermissionDenied
		}
		if due.Status == model.DueStatusPaid {
			return ErrUnitAlreadyPaid
		}
		pending, err := tx.Payments.HasPending(ctx, due.ID)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingPaymentExists
		}

		now := s.now()
		paidAt := now
		if input.PaidAt != nil {
			paidAt = input.PaidAt.UTC()
		}
		reviewer := actor.UserID
		payment = model.Payment{
			ID:         uuid.New(),
			DueID:      due.ID,
			Amount:     input.Amount,
			Method:     method,
			Reference:  trimmedPtr(input.Reference),
			Status:     model.PaymentStatusConfirmed,
			Notes:      trimmedPtr(input.Notes),
			PaidAt:     &paidAt,
			ReviewedBy: &reviewer,
			ReviewedAt: &now,
			CreatedBy:  actor.UserID,
			CreatedAt:  now,
		}
		if err := tx.Payments.CreatePayment(ctx, payment); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUnitAlreadyPaid
			}
			return err
		}
		if _, err := tx.Billing.MarkDuePaid(ctx, due.ID, paidAt); err != nil {
			return err
		}

		event, err := newEvent(toUnit(model.EventPaymentConfirmed, payment.ID, due.BuildingID, due.UnitID, map[string]interface{}{
			"payment_id": payment.ID,
			"due_id":     due.ID,
			"amount":     payment.Amount,
			"paid_at":    paidAt,
			"manual":     true,
		}), now)
		if err != nil {
			return err
		}
		return tx.Outbox.Enqueue(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkOverdue flips pending dues past their due date to overdue. Paid and
// already overdue dues are never touched, so repeated sweeps are harmless.
func (s *PaymentService) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.store.Billing.MarkOverdue(ctx, asOf.UTC())
}

func (s *PaymentService) ListPayments(ctx context.Context, actor model.Principal, dueID uuid.UUID) ([]model.Payment, error) {
	due, err := s.store.Billing.GetDue(ctx, dueID)
	if err != nil {
		return nil, notFound(err, "due")
	}
	if !actor.CanActForUnit(due.BuildingID, due.UnitID) {
		return nil, ErrPermissionDenied
	}
	return s.store.Payments.ListByDue(ctx, dueID)
}

func (s *PaymentService) GetPayment(ctx context.Context, actor model.Principal, paymentID uuid.UUID) (*model.Payment, error) {
	payment, err := s.store.Payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, notFound(err, "payment")
	}
	due, err := s.store.Billing.GetDue(ctx, payment.DueID)
	if err != nil {
		return nil, notFound(err, "due")
	}
	if !actor.CanActForUnit(due.BuildingID, due.UnitID) {
		return nil, ErrPermissionDenied
	}
	return payment, nil
}

// ListPendingPayments is the admin review queue of a building.
func (s *PaymentService) ListPendingPayments(ctx context.Context, actor model.Principal, buildingID uuid.UUID) ([]model.Payment, error) {
	if !actor.CanManageBuilding(buildingID) {
		return nil, ErrPermissionDenied
	}
	return s.store.Payments.ListPendingByBuilding(ctx, buildingID)
}

func normalizeMethod(m model.PaymentMethod) (model.PaymentMethod, error) {
	m = model.PaymentMethod(strings.ToLower(strings.TrimSpace(string(m))))
	if m == "" {
		return model.PaymentMethodTransfer, nil
	}
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, m)
	}
	return m, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}
