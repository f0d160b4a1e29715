package service

import (
	"errors"
	"fmt"

	"github.com/nurpe/condo-ledger/internal/model"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidWindow        = fmt.Errorf("%w: end_at must be after start_at", ErrInvalidInput)
	ErrAlreadyAllocated     = errors.New("period already allocated")
	ErrUnitAlreadyPaid      = errors.New("due already paid")
	ErrPendingPaymentExists = errors.New("a pending payment already exists for this due")
	ErrInvalidState         = errors.New("invalid state")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInUse                = errors.New("resource in use")
	ErrPeriodExists         = errors.New("billing period already exists")
	ErrSlotConflict         = errors.New("time slot not available")
)

// SlotConflictError carries the bookings that overlap a requested window.
type SlotConflictError struct {
	Conflicts []model.Booking
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("%s: %d conflicting booking(s)", ErrSlotConflict.Error(), len(e.Conflicts))
}

func (e *SlotConflictError) Is(target error) bool {
	return target == ErrSlotConflict
}
