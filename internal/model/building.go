package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Building struct {
	ID                      uuid.UUID `json:"id"`
	Name                    string    `json:"name"`
	Address                 string    `json:"address"`
	City                    string    `json:"city"`
	Country                 string    `json:"country"`
	BookingRequiresApproval bool      `json:"booking_requires_approval"`
	CreatedAt               time.Time `json:"created_at"`
}

// Unit is a billable apartment. SharePercent is used as-is by the allocator;
// shares across a building are not required to add up to 100.
type Unit struct {
	ID           uuid.UUID        `json:"id"`
	BuildingID   uuid.UUID        `json:"building_id"`
	Number       string           `json:"number"`
	Floor        *int             `json:"floor,omitempty"`
	Area         *decimal.Decimal `json:"area,omitempty"`
	SharePercent decimal.Decimal  `json:"share_percent"`
	CreatedAt    time.Time        `json:"created_at"`
}

type BuildingStats struct {
	BuildingID    uuid.UUID       `json:"building_id"`
	Units         int64           `json:"units"`
	SharePercent  decimal.Decimal `json:"share_percent_total"`
	PendingDues   int64           `json:"pending_dues"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	OverdueDues   int64           `json:"overdue_dues"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
}
