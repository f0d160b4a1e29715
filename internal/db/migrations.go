package db

import (
	"fmt"

	"gorm.io/gorm"
)

// Statements stick to SQL understood by both Postgres and SQLite; ids and
// timestamps are generated by the application.
var migrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS buildings (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		address VARCHAR(255) NOT NULL DEFAULT '',
		city VARCHAR(128) NOT NULL DEFAULT '',
		country VARCHAR(128) NOT NULL DEFAULT '',
		booking_requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS units (
		id UUID PRIMARY KEY,
		building_id UUID NOT NULL REFERENCES buildings(id),
		number VARCHAR(32) NOT NULL,
		floor INTEGER,
		area NUMERIC(10,2),
		share_percent NUMERIC(7,4) NOT NULL DEFAULT 0 CHECK (share_percent >= 0 AND share_percent <= 100),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_units_building_number ON units (building_id, number);`,
	`CREATE TABLE IF NOT EXISTS billing_periods (
		id UUID PRIMARY KEY,
		building_id UUID NOT NULL REFERENCES buildings(id),
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		year INTEGER NOT NULL,
		total_amount NUMERIC(18,4) NOT NULL CHECK (total_amount > 0),
		due_date TIMESTAMP NOT NULL,
		notes TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'closed')),
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_billing_periods_building_month ON billing_periods (building_id, year, month);`,
	`CREATE TABLE IF NOT EXISTS unit_dues (
		id UUID PRIMARY KEY,
		period_id UUID NOT NULL REFERENCES billing_periods(id),
		unit_id UUID NOT NULL REFERENCES units(id),
		amount NUMERIC(18,4) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'paid', 'overdue')),
		paid_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_unit_dues_period_unit ON unit_dues (period_id, unit_id);`,
	`CREATE INDEX IF NOT EXISTS idx_unit_dues_status ON unit_dues (status);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		due_id UUID NOT NULL REFERENCES unit_dues(id),
		amount NUMERIC(18,4) NOT NULL CHECK (amount > 0),
		method VARCHAR(16) NOT NULL,
		reference VARCHAR(255),
		proof_uri TEXT,
		status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed', 'rejected')),
		notes TEXT,
		rejection_reason TEXT,
		paid_at TIMESTAMP,
		reviewed_by UUID,
		reviewed_at TIMESTAMP,
		created_by UUID NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE INDEX IF NOT EXISTS idx_payments_due_id ON payments (due_id);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_pending_due ON payments (due_id) WHERE status = 'pending';`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_payments_confirmed_due ON payments (due_id) WHERE status = 'confirmed';`,
	`CREATE TABLE IF NOT EXISTS common_spaces (
		id UUID PRIMARY KEY,
		building_id UUID NOT NULL REFERENCES buildings(id),
		name VARCHAR(255) NOT NULL,
		description TEXT,
		capacity INTEGER,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		requires_approval BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		building_id UUID NOT NULL REFERENCES buildings(id),
		space_id UUID NOT NULL REFERENCES common_spaces(id),
		unit_id UUID NOT NULL REFERENCES units(id),
		start_at TIMESTAMP NOT NULL,
		end_at TIMESTAMP NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed', 'cancelled')),
		notes TEXT,
		created_by UUID NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CHECK (end_at > start_at)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_space_window ON bookings (space_id, start_at, end_at);`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_building ON bookings (building_id);`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id UUID PRIMARY KEY,
		event_type VARCHAR(64) NOT NULL,
		entity_id UUID NOT NULL,
		building_id UUID NOT NULL,
		recipient_kind VARCHAR(32) NOT NULL,
		recipient_id UUID NOT NULL,
		payload TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		published_at TIMESTAMP,
		attempts INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_events_unpublished ON outbox_events (created_at) WHERE published_at IS NULL;`,
}

func Migrate(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
