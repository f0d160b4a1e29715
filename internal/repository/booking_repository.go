package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/model"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingSelect = `
	SELECT
		b.id,
		b.building_id,
		b.space_id,
		b.unit_id,
		b.start_at,
		b.end_at,
		b.status,
		b.notes,
		b.created_by,
		b.created_at,
		u.number AS unit_number
	FROM bookings b
	JOIN units u ON u.id = b.unit_id
`

func (r *BookingRepository) CreateSpace(ctx context.Context, s model.CommonSpace) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO common_spaces (id, building_id, name, description, capacity, active, requires_approval, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.BuildingID, s.Name, s.Description, s.Capacity, s.Active, s.RequiresApproval, s.CreatedAt).Error
}

func (r *BookingRepository) GetSpace(ctx context.Context, id uuid.UUID) (*model.CommonSpace, error) {
	var s model.CommonSpace
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, building_id, name, description, capacity, active, requires_approval, created_at
		FROM common_spaces
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&s).Error; err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

// LockSpace serializes booking writes on one space for the rest of the transaction.
func (r *BookingRepository) LockSpace(ctx context.Context, id uuid.UUID) (*model.CommonSpace, error) {
	var s model.CommonSpace
	if err := lockRow(ctx, r.db, "common_spaces", id, &s); err != nil {
		return nil, err
	}
	if s.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &s, nil
}

func (r *BookingRepository) ListSpaces(ctx context.Context, buildingID uuid.UUID) ([]model.CommonSpace, error) {
	var spaces []model.CommonSpace
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, building_id, name, description, capacity, active, requires_approval, created_at
		FROM common_spaces
		WHERE building_id = ?
		ORDER BY name ASC
	`, buildingID).Scan(&spaces).Error; err != nil {
		return nil, err
	}
	return spaces, nil
}

func (r *BookingRepository) SetSpaceActive(ctx context.Context, id uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).Exec(`UPDATE common_spaces SET active = ? WHERE id = ?`, active, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BookingRepository) DeleteSpace(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM common_spaces WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BookingRepository) CountSpaceBookings(ctx context.Context, spaceID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM bookings WHERE space_id = ?
	`, spaceID).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BookingRepository) CreateBooking(ctx context.Context, b model.Booking) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO bookings (id, building_id, space_id, unit_id, start_at, end_at, status, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.BuildingID, b.SpaceID, b.UnitID, b.StartAt, b.EndAt, b.Status, b.Notes, b.CreatedBy, b.CreatedAt).Error
}

func (r *BookingRepository) GetBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).Raw(bookingSelect+` WHERE b.id = ? LIMIT 1`, id).Scan(&b).Error; err != nil {
		return nil, err
	}
	if b.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (r *BookingRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus) error {
	res := r.db.WithContext(ctx).Exec(`UPDATE bookings SET status = ? WHERE id = ?`, status, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindConflicts returns live bookings on the space whose window intersects
// [start, end). Windows are half-open, so touching endpoints never conflict.
func (r *BookingRepository) FindConflicts(
	ctx context.Context,
	spaceID uuid.UUID,
	start, end time.Time,
	excludeID *uuid.UUID,
) ([]model.Booking, error) {
	query := bookingSelect + `
		WHERE b.space_id = ?
			AND b.status <> ?
			AND b.start_at < ?
			AND b.end_at > ?
	`
	args := []interface{}{spaceID, model.BookingStatusCancelled, end, start}
	if excludeID != nil {
		query += " AND b.id <> ?"
		args = append(args, *excludeID)
	}
	query += " ORDER BY b.start_at ASC"

	var conflicts []model.Booking
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&conflicts).Error; err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (r *BookingRepository) ListBookings(ctx context.Context, buildingID uuid.UUID, from, to *time.Time) ([]model.Booking, error) {
	query := bookingSelect + " WHERE b.building_id = ?"
	args := []interface{}{buildingID}
	if from != nil {
		query += " AND b.end_at > ?"
		args = append(args, *from)
	}
	if to != nil {
		query += " AND b.start_at < ?"
		args = append(args, *to)
	}
	query += " ORDER BY b.start_at ASC"

	var bookings []model.Booking
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}
