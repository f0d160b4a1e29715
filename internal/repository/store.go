package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store groups the repositories so a service can run several of them inside
// one transaction.
type Store struct {
	db        *gorm.DB
	Buildings *BuildingRepository
	Billing   *BillingRepository
	Payments  *PaymentRepository
	Bookings  *BookingRepository
	Outbox    *OutboxRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		Buildings: NewBuildingRepository(db),
		Billing:   NewBillingRepository(db),
		Payments:  NewPaymentRepository(db),
		Bookings:  NewBookingRepository(db),
		Outbox:    NewOutboxRepository(db),
	}
}

// Transaction runs fn with a Store bound to a single database transaction.
// Any error returned by fn rolls the whole transaction back.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// lockRow loads a row with SELECT ... FOR UPDATE. SQLite ignores the locking
// clause and serializes writers on its own.
func lockRow(ctx context.Context, db *gorm.DB, table string, id uuid.UUID, dest interface{}) error {
	return db.WithContext(ctx).
		Table(table).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Scan(dest).Error
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

// insertErr normalizes unique violations to gorm.ErrDuplicatedKey.
func insertErr(err error) error {
	if isUniqueViolation(err) {
		return gorm.ErrDuplicatedKey
	}
	return err
}
