package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/repository"
)

type BookingService struct {
	store *repository.Store
	now   Clock
}

func NewBookingService(store *repository.Store, clock Clock) *BookingService {
	return &BookingService{
		store: store,
		now:   utcClock(clock),
	}
}

type CreateSpaceInput struct {
	Name             string
	Description      *string
	Capacity         *int
	RequiresApproval bool
}

func (s *BookingService) CreateSpace(ctx context.Context, actor model.Principal, buildingID uuid.UUID, input CreateSpaceInput) (*model.CommonSpace, error) {
	if !actor.CanManageBuilding(buildingID) {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if input.Capacity != nil && *input.Capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidInput)
	}
	if _, err := s.store.Buildings.GetBuilding(ctx, buildingID); err != nil {
		return nil, notFound(err, "building")
	}

	space := model.CommonSpace{
		ID:               uuid.New(),
		BuildingID:       buildingID,
		Name:             name,
		Description:      trimmedPtr(input.Description),
		Capacity:         input.Capacity,
		Active:           true,
		RequiresApproval: input.RequiresApproval,
		CreatedAt:        s.now(),
	}
	if err := s.store.Bookings.CreateSpace(ctx, space); err != nil {
		return nil, err
	}
	return &space, nil
}

// DeleteSpace removes a space with no booking history. Spaces that were ever
// booked can only be deactivated.
func (s *BookingService) DeleteSpace(ctx context.Context, actor model.Principal, spaceID uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		space, err := tx.Bookings.LockSpace(ctx, spaceID)
		if err != nil {
			return notFound(err, "space")
		}
		if !actor.CanManageBuilding(space.BuildingID) {
			return ErrPermissionDenied
		}
		count, err := tx.Bookings.CountSpaceBookings(ctx, spaceID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: space has bookings", ErrInUse)
		}
		return notFound(tx.Bookings.DeleteSpace(ctx, spaceID), "space")
	})
}

func (s *BookingService) ListSpaces(ctx context.Context, actor model.Principal, buildingID uuid.UUID) ([]model.CommonSpace, error) {
	if !actor.CanViewBuilding(buildingID) {
		return nil, ErrPermissionDenied
	}
	return s.store.Bookings.ListSpaces(ctx, buildingID)
}

func (s *BookingService) SetSpaceActive(ctx context.Context, actor model.Principal, spaceID uuid.UUID, active bool) (*model.CommonSpace, error) {
	space, err := s.store.Bookings.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, notFound(err, "space")
	}
	if !actor.CanManageBuilding(space.BuildingID) {
		return nil, ErrPermissionDenied
	}
	if err := s.store.Bookings.SetSpaceActive(ctx, spaceID, active); err != nil {
		return nil, notFound(err, "space")
	}
	space.Active = active
	return space, nil
}

// CheckAvailability lists the live bookings overlapping [start, end) on a
// space. excludeID leaves one booking out, used when re-validating it.
func (s *BookingService) CheckAvailability(
	ctx context.Context,
	actor model.Principal,
	spaceID uuid.UUID,
	start, end time.Time,
	excludeID *uuid.UUID,
) (*model.Availability, error) {
	start, end, err := normalizeWindow(start, end)
	if err != nil {
		return nil, err
	}
	space, err := s.store.Bookings.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, notFound(err, "space")
	}
	if !actor.CanViewBuilding(space.BuildingID) {
		return nil, ErrPermissionDenied
	}
	return availability(ctx, s.store, spaceID, start, end, excludeID)
}

func availability(ctx context.Context, store *repository.Store, spaceID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (*model.Availability, error) {
	conflicts, err := store.Bookings.FindConflicts(ctx, spaceID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	if conflicts == nil {
		conflicts = []model.Booking{}
	}
	return &model.Availability{
		Available: len(conflicts) == 0,
		Conflicts: conflicts,
	}, nil
}

type CreateBookingInput struct {
	BuildingID  uuid.UUID
	SpaceID     uuid.UUID
	UnitID      uuid.UUID
	StartAt     time.Time
	EndAt       time.Time
	Notes       *string
	AsConfirmed bool
}

// CreateBooking reserves a space for a unit. The availability check and the
// insert run under a lock on the space row, so two overlapping requests for
// the same space cannot both succeed.
func (s *BookingService) CreateBooking(ctx context.Context, actor model.Principal, input CreateBookingInput) (*model.Booking, error) {
	start, end, err := normalizeWindow(input.StartAt, input.EndAt)
	if err != nil {
		return nil, err
	}
	if !actor.CanActForUnit(input.BuildingID, input.UnitID) {
		return nil, ErrPermissionDenied
	}

	var booking model.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		space, err := tx.Bookings.LockSpace(ctx, input.SpaceID)
		if err != nil {
			return notFound(err, "space")
		}
		if space.BuildingID != input.BuildingID {
			return fmt.Errorf("%w: space does not belong to the building", ErrInvalidInput)
		}
		if !space.Active {
			return fmt.Errorf("%w: space is not active", ErrInvalidInput)
		}
		unit, err := tx.Buildings.GetUnit(ctx, input.UnitID)
		if err != nil {
			return notFound(err, "unit")
		}
		if unit.BuildingID != input.BuildingID {
			return fmt.Errorf("%w: unit does not belong to the building", ErrInvalidInput)
		}
		building, err := tx.Buildings.GetBuilding(ctx, input.BuildingID)
		if err != nil {
			return notFound(err, "building")
		}

		avail, err := availability(ctx, tx, space.ID, start, end, nil)
		if err != nil {
			return err
		}
		if !avail.Available {
			return &SlotConflictError{Conflicts: avail.Conflicts}
		}

		status := model.BookingStatusConfirmed
		switch {
		case input.AsConfirmed && actor.CanManageBuilding(input.BuildingID):
		case building.BookingRequiresApproval || space.RequiresApproval:
			status = model.BookingStatusPending
		}

		now := s.now()
		booking = model.Booking{
			ID:         uuid.New(),
			BuildingID: input.BuildingID,
			SpaceID:    space.ID,
			UnitID:     unit.ID,
			StartAt:    start,
			EndAt:      end,
			Status:     status,
			Notes:      trimmedPtr(input.Notes),
			CreatedBy:  actor.UserID,
			CreatedAt:  now,
			UnitNumber: unit.Number,
		}
		if err := tx.Bookings.CreateBooking(ctx, booking); err != nil {
			return err
		}

		eventType := model.EventBookingConfirmed
		if status == model.BookingStatusPending {
			eventType = model.EventBookingRequested
		}
		event, err := newEvent(toAdmins(eventType, booking.ID, booking.BuildingID, bookingData(booking, space)), now)
		if err != nil {
			return err
		}
		return tx.Outbox.Enqueue(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// UpdateBookingStatus applies one of the allowed transitions:
// pending to confirmed (admins), pending or confirmed to cancelled.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, actor model.Principal, bookingID uuid.UUID, status model.BookingStatus) (*model.Booking, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown booking status %q", ErrInvalidInput, status)
	}

	current, err := s.store.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking")
	}

	var result *model.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		space, err := tx.Bookings.LockSpace(ctx, current.SpaceID)
		if err != nil {
			return notFound(err, "space")
		}
		booking, err := tx.Bookings.GetBooking(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking")
		}
		if !actor.CanActForUnit(booking.BuildingID, booking.UnitID) {
			return ErrPermissionDenied
		}
		if !transitionAllowed(booking.Status, status) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, booking.Status, status)
		}

		if status == model.BookingStatusConfirmed {
			if !actor.CanManageBuilding(booking.BuildingID) {
				return ErrPermissionDenied
			}
			avail, err := availability(ctx, tx, booking.SpaceID, booking.StartAt, booking.EndAt, &booking.ID)
			if err != nil {
				return err
			}
			if !avail.Available {
				return &SlotConflictError{Conflicts: avail.Conflicts}
			}
		}

		if err := tx.Bookings.UpdateBookingStatus(ctx, booking.ID, status); err != nil {
			return notFound(err, "booking")
		}
		booking.Status = status

		if err := s.enqueueStatusEvent(ctx, tx, actor, *booking, space); err != nil {
			return err
		}
		result = booking
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelBooking is terminal and idempotent: cancelling a cancelled booking
// returns it unchanged without emitting another event.
func (s *BookingService) CancelBooking(ctx context.Context, actor model.Principal, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.store.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking")
	}
	if !actor.CanActForUnit(booking.BuildingID, booking.UnitID) {
		return nil, ErrPermissionDenied
	}
	if booking.Status == model.BookingStatusCancelled {
		return booking, nil
	}

	var result *model.Booking
	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		space, err := tx.Bookings.LockSpace(ctx, booking.SpaceID)
		if err != nil {
			return notFound(err, "space")
		}
		current, err := tx.Bookings.GetBooking(ctx, bookingID)
		if err != nil {
			return notFound(err, "booking")
		}
		result = current
		if current.Status == model.BookingStatusCancelled {
			return nil
		}
		if err := tx.Bookings.UpdateBookingStatus(ctx, current.ID, model.BookingStatusCancelled); err != nil {
			return notFound(err, "booking")
		}
		current.Status = model.BookingStatusCancelled
		return s.enqueueStatusEvent(ctx, tx, actor, *current, space)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *BookingService) GetBooking(ctx context.Context, actor model.Principal, bookingID uuid.UUID) (*model.Booking, error) {
	booking, err := s.store.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, notFound(err, "booking")
	}
	if !actor.CanViewBuilding(booking.BuildingID) {
		return nil, ErrPermissionDenied
	}
	return booking, nil
}

// ListBookings returns bookings of a building overlapping [from, to); either
// bound may be nil.
func (s *BookingService) ListBookings(ctx context.Context, actor model.Principal, buildingID uuid.UUID, from, to *time.Time) ([]model.Booking, error) {
	if !actor.CanViewBuilding(buildingID) {
		return nil, ErrPermissionDenied
	}
	return s.store.Bookings.ListBookings(ctx, buildingID, utcPtr(from), utcPtr(to))
}

// enqueueStatusEvent notifies the other side of a status change: admins when
// a resident acts, the unit when an admin does.
func (s *BookingService) enqueueStatusEvent(ctx context.Context, tx *repository.Store, actor model.Principal, booking model.Booking, space *model.CommonSpace) error {
	eventType := model.EventBookingConfirmed
	if booking.Status == model.BookingStatusCancelled {
		eventType = model.EventBookingCancelled
	}
	data := bookingData(booking, space)

	draft := toAdmins(eventType, booking.ID, booking.BuildingID, data)
	if actor.CanManageBuilding(booking.BuildingID) {
		draft = toUnit(eventType, booking.ID, booking.BuildingID, booking.UnitID, data)
	}
	event, err := newEvent(draft, s.now())
	if err != nil {
		return err
	}
	return tx.Outbox.Enqueue(ctx, event)
}

func transitionAllowed(from, to model.BookingStatus) bool {
	switch from {
	case model.BookingStatusPending:
		return to == model.BookingStatusConfirmed || to == model.BookingStatusCancelled
	case model.BookingStatusConfirmed:
		return to == model.BookingStatusCancelled
	}
	return false
}

// normalizeWindow stores windows in UTC at second precision. Sub-second
// bounds widen outward so the stored window always covers the requested one.
func normalizeWindow(start, end time.Time) (time.Time, time.Time, error) {
	if start.IsZero() || end.IsZero() {
		return start, end, fmt.Errorf("%w: start_at and end_at are required", ErrInvalidInput)
	}
	if !end.After(start) {
		return start, end, ErrInvalidWindow
	}
	start = start.UTC().Truncate(time.Second)
	if t := end.UTC().Truncate(time.Second); t.Before(end) {
		end = t.Add(time.Second)
	} else {
		end = t
	}
	return start, end, nil
}

func bookingData(b model.Booking, space *model.CommonSpace) map[string]interface{} {
	return map[string]interface{}{
		"booking_id":  b.ID,
		"space_id":    b.SpaceID,
		"space_name":  space.Name,
		"unit_id":     b.UnitID,
		"unit_number": b.UnitNumber,
		"start_at":    b.StartAt,
		"end_at":      b.EndAt,
		"status":      b.Status,
	}
}
