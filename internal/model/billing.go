package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "open"
	PeriodStatusClosed PeriodStatus = "closed"
)

func (s PeriodStatus) Valid() bool {
	return s == PeriodStatusOpen || s == PeriodStatusClosed
}

type DueStatus string

const (
	DueStatusPending DueStatus = "pending"
	DueStatusPaid    DueStatus = "paid"
	DueStatusOverdue DueStatus = "overdue"
)

type BillingPeriod struct {
	ID          uuid.UUID       `json:"id"`
	BuildingID  uuid.UUID       `json:"building_id"`
	Month       int             `json:"month"`
	Year        int             `json:"year"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	DueDate     time.Time       `json:"due_date"`
	Notes       *string         `json:"notes,omitempty"`
	Status      PeriodStatus    `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// UnitDue is one unit's share of a billing period. BuildingID, DueDate and
// UnitNumber are read from the period and unit when the due is loaded.
type UnitDue struct {
	ID         uuid.UUID       `json:"id"`
	PeriodID   uuid.UUID       `json:"period_id"`
	UnitID     uuid.UUID       `json:"unit_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     DueStatus       `json:"status"`
	PaidAt     *time.Time      `json:"paid_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	BuildingID uuid.UUID       `json:"building_id"`
	DueDate    time.Time       `json:"due_date"`
	UnitNumber string          `json:"unit_number"`
}

type StatusBucket struct {
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type PeriodStats struct {
	PeriodID       uuid.UUID       `json:"period_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Allocated      decimal.Decimal `json:"allocated"`
	Dues           int64           `json:"dues"`
	Paid           StatusBucket    `json:"paid"`
	Pending        StatusBucket    `json:"pending"`
	Overdue        StatusBucket    `json:"overdue"`
	CollectionRate decimal.Decimal `json:"collection_rate"`
}
