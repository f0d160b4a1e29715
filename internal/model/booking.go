package model

import (
	"time"

	"github.com/google/uuid"
)

type CommonSpace struct {
	ID               uuid.UUID `json:"id"`
	BuildingID       uuid.UUID `json:"building_id"`
	Name             string    `json:"name"`
	Description      *string   `json:"description,omitempty"`
	Capacity         *int      `json:"capacity,omitempty"`
	Active           bool      `json:"active"`
	RequiresApproval bool      `json:"requires_approval"`
	CreatedAt        time.Time `json:"created_at"`
}

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled:
		return true
	}
	return false
}

// Booking holds a half-open window [StartAt, EndAt) on a space.
type Booking struct {
	ID         uuid.UUID     `json:"id"`
	BuildingID uuid.UUID     `json:"building_id"`
	SpaceID    uuid.UUID     `json:"space_id"`
	UnitID     uuid.UUID     `json:"unit_id"`
	StartAt    time.Time     `json:"start_at"`
	EndAt      time.Time     `json:"end_at"`
	Status     BookingStatus `json:"status"`
	Notes      *string       `json:"notes,omitempty"`
	CreatedBy  uuid.UUID     `json:"created_by"`
	CreatedAt  time.Time     `json:"created_at"`
	UnitNumber string        `json:"unit_number,omitempty"`
}

// Overlaps reports whether b intersects [start, end). Touching endpoints do not overlap.
func (b Booking) Overlaps(start, end time.Time) bool {
	return b.StartAt.Before(end) && b.EndAt.After(start)
}

type Availability struct {
	Available bool      `json:"available"`
	Conflicts []Booking `json:"conflicts"`
}
