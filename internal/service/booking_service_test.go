package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/condo-ledger/internal/model"
)

type bookingFixture struct {
	*fixture
	building *model.Building
	space    *model.CommonSpace
	unitA    *model.Unit
	unitB    *model.Unit
}

func newBookingFixture(t *testing.T, buildingApproval, spaceApproval bool) *bookingFixture {
	t.Helper()
	f := newFixture(t)
	b := f.building(t, buildingApproval)
	return &bookingFixture{
		fixture:  f,
		building: b,
		space:    f.space(t, b.ID, spaceApproval),
		unitA:    f.unit(t, b.ID, "201", "50"),
		unitB:    f.unit(t, b.ID, "202", "50"),
	}
}

func (bf *bookingFixture) book(actor model.Principal, unit *model.Unit, from, to int) (*model.Booking, error) {
	return bf.bookings.CreateBooking(bf.ctx, actor, CreateBookingInput{
		BuildingID: bf.building.ID,
		SpaceID:    bf.space.ID,
		UnitID:     unit.ID,
		StartAt:    at(from),
		EndAt:      at(to),
	})
}

func TestBookingConflicts(t *testing.T) {
	bf := newBookingFixture(t, false, false)

	first, err := bf.book(resident(bf.unitA), bf.unitA, 10, 12)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, first.Status)

	_, err = bf.book(resident(bf.unitB), bf.unitB, 11, 13)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSlotConflict)
	var conflict *SlotConflictError
	require.True(t, errors.As(err, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, first.ID, conflict.Conflicts[0].ID)
	assert.Equal(t, "201", conflict.Conflicts[0].UnitNumber)

	// touching windows do not overlap
	adjacent, err := bf.book(resident(bf.unitB), bf.unitB, 12, 14)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, adjacent.Status)

	events := bf.events(t, first.ID)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBookingConfirmed, events[0].EventType)
}

func TestCancelFreesSlot(t *testing.T) {
	bf := newBookingFixture(t, false, false)
	owner := resident(bf.unitA)

	first, err := bf.book(owner, bf.unitA, 10, 12)
	require.NoError(t, err)

	cancelled, err := bf.bookings.CancelBooking(bf.ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)

	again, err := bf.bookings.CancelBooking(bf.ctx, owner, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, again.Status)

	var cancelEvents int
	for _, e := range bf.events(t, first.ID) {
		if e.EventType == model.EventBookingCancelled {
			cancelEvents++
			assert.Equal(t, model.RecipientBuildingAdmins, e.RecipientKind)
		}
	}
	assert.Equal(t, 1, cancelEvents)

	avail, err := bf.bookings.CheckAvailability(bf.ctx, owner, bf.space.ID, at(10), at(12), nil)
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Empty(t, avail.Conflicts)

	_, err = bf.book(resident(bf.unitB), bf.unitB, 10, 12)
	require.NoError(t, err)
}

func TestBookingWindowValidation(t *testing.T) {
	bf := newBookingFixture(t, false, false)

	_, err := bf.book(bf.admin, bf.unitA, 12, 12)
	assert.ErrorIs(t, err, ErrInvalidWindow)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = bf.book(bf.admin, bf.unitA, 12, 10)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = bf.bookings.CheckAvailability(bf.ctx, bf.admin, bf.space.ID, at(12), at(11), nil)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestSubSecondWindowWidensToWholeSeconds(t *testing.T) {
	bf := newBookingFixture(t, false, false)

	booking, err := bf.bookings.CreateBooking(bf.ctx, bf.admin, CreateBookingInput{
		BuildingID: bf.building.ID,
		SpaceID:    bf.space.ID,
		UnitID:     bf.unitA.ID,
		StartAt:    at(10).Add(200 * time.Millisecond),
		EndAt:      at(10).Add(700 * time.Millisecond),
	})
	require.NoError(t, err)
	assert.True(t, booking.StartAt.Equal(at(10)))
	assert.True(t, booking.EndAt.Equal(at(10).Add(time.Second)))

	_, err = bf.bookings.CreateBooking(bf.ctx, bf.admin, CreateBookingInput{
		BuildingID: bf.building.ID,
		SpaceID:    bf.space.ID,
		UnitID:     bf.unitB.ID,
		StartAt:    at(10).Add(700 * time.Millisecond),
		EndAt:      at(10).Add(200 * time.Millisecond),
	})
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestBookingPolicy(t *testing.T) {
	t.Run("building requires approval", func(t *testing.T) {
		bf := newBookingFixture(t, true, false)

		b, err := bf.book(resident(bf.unitA), bf.unitA, 9, 10)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPending, b.Status)
		events := bf.events(t, b.ID)
		require.Len(t, events, 1)
		assert.Equal(t, model.EventBookingRequested, events[0].EventType)
	})

	t.Run("space requires approval", func(t *testing.T) {
		bf := newBookingFixture(t, false, true)

		b, err := bf.book(resident(bf.unitA), bf.unitA, 9, 10)
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPending, b.Status)
	})

	t.Run("admin books as confirmed", func(t *testing.T) {
		bf := newBookingFixture(t, true, true)

		b, err := bf.bookings.CreateBooking(bf.ctx, bf.admin, CreateBookingInput{
			BuildingID:  bf.building.ID,
			SpaceID:     bf.space.ID,
			UnitID:      bf.unitA.ID,
			StartAt:     at(9),
			EndAt:       at(10),
			AsConfirmed: true,
		})
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusConfirmed, b.Status)
	})

	t.Run("resident cannot self confirm", func(t *testing.T) {
		bf := newBookingFixture(t, true, false)

		b, err := bf.bookings.CreateBooking(bf.ctx, resident(bf.unitA), CreateBookingInput{
			BuildingID:  bf.building.ID,
			SpaceID:     bf.space.ID,
			UnitID:      bf.unitA.ID,
			StartAt:     at(9),
			EndAt:       at(10),
			AsConfirmed: true,
		})
		require.NoError(t, err)
		assert.Equal(t, model.BookingStatusPending, b.Status)
	})
}

func TestPendingBookingsBlockSlot(t *testing.T) {
	bf := newBookingFixture(t, true, false)

	_, err := bf.book(resident(bf.unitA), bf.unitA, 10, 12)
	require.NoError(t, err)

	_, err = bf.book(resident(bf.unitB), bf.unitB, 11, 12)
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestBookingStatusTransitions(t *testing.T) {
	bf := newBookingFixture(t, true, false)
	owner := resident(bf.unitA)

	b, err := bf.book(owner, bf.unitA, 10, 12)
	require.NoError(t, err)
	require.Equal(t, model.BookingStatusPending, b.Status)

	_, err = bf.bookings.UpdateBookingStatus(bf.ctx, owner, b.ID, model.BookingStatusConfirmed)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = bf.bookings.UpdateBookingStatus(bf.ctx, bf.admin, b.ID, model.BookingStatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	confirmed, err := bf.bookings.UpdateBookingStatus(bf.ctx, bf.admin, b.ID, model.BookingStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)

	_, err = bf.bookings.UpdateBookingStatus(bf.ctx, bf.admin, b.ID, model.BookingStatusPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = bf.bookings.UpdateBookingStatus(bf.ctx, bf.admin, b.ID, model.BookingStatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	cancelled, err := bf.bookings.UpdateBookingStatus(bf.ctx, owner, b.ID, model.BookingStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, cancelled.Status)

	_, err = bf.bookings.UpdateBookingStatus(bf.ctx, bf.admin, b.ID, model.BookingStatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = bf.bookings.UpdateBookingStatus(bf.ctx, bf.admin, b.ID, model.BookingStatus("done"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	var types []model.EventType
	for _, e := range bf.events(t, b.ID) {
		types = append(types, e.EventType)
	}
	assert.ElementsMatch(t, []model.EventType{
		model.EventBookingRequested,
		model.EventBookingConfirmed,
		model.EventBookingCancelled,
	}, types)
}

func TestBookingScopeChecks(t *testing.T) {
	bf := newBookingFixture(t, false, false)

	_, err := bf.book(resident(bf.unitA), bf.unitB, 10, 11)
	assert.ErrorIs(t, err, ErrPermissionDenied)

	other := bf.fixture.building(t, false)
	foreignUnit := bf.fixture.unit(t, other.ID, "1", "100")
	_, err = bf.book(bf.admin, foreignUnit, 10, 11)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = bf.bookings.SetSpaceActive(bf.ctx, bf.admin, bf.space.ID, false)
	require.NoError(t, err)
	_, err = bf.book(bf.admin, bf.unitA, 10, 11)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = bf.bookings.CreateBooking(bf.ctx, bf.admin, CreateBookingInput{
		BuildingID: bf.building.ID,
		SpaceID:    uuid.New(),
		UnitID:     bf.unitA.ID,
		StartAt:    at(10),
		EndAt:      at(11),
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckAvailabilityExcludesBooking(t *testing.T) {
	bf := newBookingFixture(t, false, false)
	b, err := bf.book(bf.admin, bf.unitA, 10, 12)
	require.NoError(t, err)

	avail, err := bf.bookings.CheckAvailability(bf.ctx, bf.admin, bf.space.ID, at(11), at(13), nil)
	require.NoError(t, err)
	assert.False(t, avail.Available)
	require.Len(t, avail.Conflicts, 1)

	avail, err = bf.bookings.CheckAvailability(bf.ctx, bf.admin, bf.space.ID, at(11), at(13), &b.ID)
	require.NoError(t, err)
	assert.True(t, avail.Available)
}

func TestSpaceLifecycle(t *testing.T) {
	bf := newBookingFixture(t, false, false)

	spaces, err := bf.bookings.ListSpaces(bf.ctx, resident(bf.unitA), bf.building.ID)
	require.NoError(t, err)
	require.Len(t, spaces, 1)
	assert.True(t, spaces[0].Active)

	_, err = bf.book(bf.admin, bf.unitA, 10, 11)
	require.NoError(t, err)
	err = bf.bookings.DeleteSpace(bf.ctx, bf.admin, bf.space.ID)
	assert.ErrorIs(t, err, ErrInUse)

	unused := bf.fixture.space(t, bf.building.ID, false)
	require.NoError(t, bf.bookings.DeleteSpace(bf.ctx, bf.admin, unused.ID))
	err = bf.bookings.DeleteSpace(bf.ctx, bf.admin, unused.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = bf.bookings.CreateSpace(bf.ctx, resident(bf.unitA), bf.building.ID, CreateSpaceInput{Name: "Gym"})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestListBookingsWindow(t *testing.T) {
	bf := newBookingFixture(t, false, false)
	_, err := bf.book(bf.admin, bf.unitA, 8, 9)
	require.NoError(t, err)
	late, err := bf.book(bf.admin, bf.unitB, 18, 20)
	require.NoError(t, err)

	from := at(12)
	list, err := bf.bookings.ListBookings(bf.ctx, resident(bf.unitA), bf.building.ID, &from, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, late.ID, list[0].ID)

	all, err := bf.bookings.ListBookings(bf.ctx, bf.admin, bf.building.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := bf.bookings.GetBooking(bf.ctx, resident(bf.unitB), late.ID)
	require.NoError(t, err)
	assert.Equal(t, "202", got.UnitNumber)
	assert.True(t, got.StartAt.Equal(at(18)))
}

func TestConcurrentOverlappingBookingsKeepOne(t *testing.T) {
	bf := newBookingFixture(t, false, false)

	const n = 8
	errs := concurrently(n, func(i int) error {
		unit := bf.unitA
		if i%2 == 1 {
			unit = bf.unitB
		}
		// every window overlaps 12:00-13:00
		_, err := bf.book(bf.admin, unit, 10+i%3, 13+i%2)
		return err
	})

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var conflict *SlotConflictError
		require.True(t, errors.As(err, &conflict), "unexpected error: %v", err)
		assert.NotEmpty(t, conflict.Conflicts)
		assert.ErrorIs(t, err, ErrSlotConflict)
	}
	assert.Equal(t, 1, succeeded)

	bookings, err := bf.bookings.ListBookings(bf.ctx, bf.admin, bf.building.ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}
