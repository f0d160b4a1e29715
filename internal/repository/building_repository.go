package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/model"
)

type BuildingRepository struct {
	db *gorm.DB
}

func NewBuildingRepository(db *gorm.DB) *BuildingRepository {
	return &BuildingRepository{db: db}
}

func (r *BuildingRepository) CreateBuilding(ctx context.Context, b model.Building) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO buildings (id, name, address, city, country, booking_requires_approval, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.Name, b.Address, b.City, b.Country, b.BookingRequiresApproval, b.CreatedAt).Error
}

func (r *BuildingRepository) GetBuilding(ctx context.Context, id uuid.UUID) (*model.Building, error) {
	var b model.Building
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, name, address, city, country, booking_requires_approval, created_at
		FROM buildings
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&b).Error; err != nil {
		return nil, err
	}
	if b.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

// ListBuildings returns every building when ids is empty.
func (r *BuildingRepository) ListBuildings(ctx context.Context, ids []uuid.UUID) ([]model.Building, error) {
	query := `
		SELECT id, name, address, city, country, booking_requires_approval, created_at
		FROM buildings
	`
	args := []interface{}{}
	if len(ids) > 0 {
		query += " WHERE id IN ?"
		args = append(args, ids)
	}
	query += " ORDER BY name ASC"

	var buildings []model.Building
	if err := r.db.WithContext(ctx).Raw(query, args...).Scan(&buildings).Error; err != nil {
		return nil, err
	}
	return buildings, nil
}

func (r *BuildingRepository) UpdateBookingPolicy(ctx context.Context, id uuid.UUID, requiresApproval bool) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE buildings SET booking_requires_approval = ? WHERE id = ?
	`, requiresApproval, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BuildingRepository) DeleteBuilding(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM buildings WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountBuildingDependents counts units and spaces still attached to a building.
func (r *BuildingRepository) CountBuildingDependents(ctx context.Context, id uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM units WHERE building_id = ?) +
			(SELECT COUNT(*) FROM common_spaces WHERE building_id = ?)
	`, id, id).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BuildingRepository) CreateUnit(ctx context.Context, u model.Unit) error {
	err := r.db.WithContext(ctx).Exec(`
		INSERT INTO units (id, building_id, number, floor, area, share_percent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.BuildingID, u.Number, u.Floor, u.Area, u.SharePercent, u.CreatedAt).Error
	return insertErr(err)
}

func (r *BuildingRepository) GetUnit(ctx context.Context, id uuid.UUID) (*model.Unit, error) {
	var u model.Unit
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, building_id, number, floor, area, share_percent, created_at
		FROM units
		WHERE id = ?
		LIMIT 1
	`, id).Scan(&u).Error; err != nil {
		return nil, err
	}
	if u.ID == uuid.Nil {
		return nil, gorm.ErrRecordNotFound
	}
	return &u, nil
}

func (r *BuildingRepository) UpdateUnit(ctx context.Context, u model.Unit) error {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE units
		SET number = ?, floor = ?, area = ?, share_percent = ?
		WHERE id = ?
	`, u.Number, u.Floor, u.Area, u.SharePercent, u.ID)
	if res.Error != nil {
		return insertErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BuildingRepository) DeleteUnit(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Exec(`DELETE FROM units WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *BuildingRepository) ListUnits(ctx context.Context, buildingID uuid.UUID) ([]model.Unit, error) {
	var units []model.Unit
	if err := r.db.WithContext(ctx).Raw(`
		SELECT id, building_id, number, floor, area, share_percent, created_at
		FROM units
		WHERE building_id = ?
		ORDER BY number ASC
	`, buildingID).Scan(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// CountUnitReferences counts dues and bookings that point at a unit.
func (r *BuildingRepository) CountUnitReferences(ctx context.Context, unitID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM unit_dues WHERE unit_id = ?) +
			(SELECT COUNT(*) FROM bookings WHERE unit_id = ?)
	`, unitID, unitID).Scan(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *BuildingRepository) BuildingStats(ctx context.Context, buildingID uuid.UUID) (*model.BuildingStats, error) {
	var units struct {
		Units        int64
		SharePercent decimal.Decimal
	}
	if err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) AS units, COALESCE(SUM(share_percent), 0) AS share_percent
		FROM units
		WHERE building_id = ?
	`, buildingID).Scan(&units).Error; err != nil {
		return nil, err
	}

	var totals []DueStatusTotal
	if err := r.db.WithContext(ctx).Raw(`
		SELECT d.status, COUNT(*) AS count, COALESCE(SUM(d.amount), 0) AS amount
		FROM unit_dues d
		JOIN billing_periods p ON p.id = d.period_id
		WHERE p.building_id = ? AND d.status IN (?, ?)
		GROUP BY d.status
	`, buildingID, model.DueStatusPending, model.DueStatusOverdue).Scan(&totals).Error; err != nil {
		return nil, err
	}

	stats := &model.BuildingStats{
		BuildingID:    buildingID,
		Units:         units.Units,
		SharePercent:  units.SharePercent,
		PendingAmount: decimal.Zero,
		OverdueAmount: decimal.Zero,
	}
	for _, t := range totals {
		switch t.Status {
		case model.DueStatusPending:
			stats.PendingDues, stats.PendingAmount = t.Count, t.Amount
		case model.DueStatusOverdue:
			stats.OverdueDues, stats.OverdueAmount = t.Count, t.Amount
		}
	}
	return stats, nil
}
