package model

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventDueGenerated     EventType = "due_generated"
	EventPaymentSubmitted EventType = "payment_submitted"
	EventPaymentConfirmed EventType = "payment_confirmed"
	EventPaymentRejected  EventType = "payment_rejected"
	EventBookingRequested EventType = "booking_requested"
	EventBookingConfirmed EventType = "booking_confirmed"
	EventBookingCancelled EventType = "booking_cancelled"
)

type RecipientKind string

const (
	RecipientUnit           RecipientKind = "unit"
	RecipientBuildingAdmins RecipientKind = "building_admins"
)

// OutboxEvent is written in the same transaction as the state change it
// describes and relayed to the notification collaborator after commit.
type OutboxEvent struct {
	ID            uuid.UUID     `json:"id"`
	EventType     EventType     `json:"event_type"`
	EntityID      uuid.UUID     `json:"entity_id"`
	BuildingID    uuid.UUID     `json:"building_id"`
	RecipientKind RecipientKind `json:"recipient_kind"`
	RecipientID   uuid.UUID     `json:"recipient_id"`
	Payload       string        `json:"payload"`
	CreatedAt     time.Time     `json:"created_at"`
	PublishedAt   *time.Time    `json:"published_at,omitempty"`
	Attempts      int           `json:"attempts"`
	LastError     *string       `json:"last_error,omitempty"`
}
