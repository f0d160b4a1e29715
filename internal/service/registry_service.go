package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/repository"
)

var maxSharePercent = decimal.NewFromInt(100)

type RegistryService struct {
	store                   *repository.Store
	defaultRequiresApproval bool
	now                     Clock
}

func NewRegistryService(store *repository.Store, cfg *config.Config, clock Clock) *RegistryService {
	return &RegistryService{
		store:                   store,
		defaultRequiresApproval: cfg.Booking.RequiresApproval,
		now:                     utcClock(clock),
	}
}

type CreateBuildingInput struct {
	Name             string
	Address          string
	City             string
	Country          string
	RequiresApproval *bool
}

func (s *RegistryService) CreateBuilding(ctx context.Context, actor model.Principal, input CreateBuildingInput) (*model.Building, error) {
	if !actor.IsPlatformAdmin() {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	requiresApproval := s.defaultRequiresApproval
	if input.RequiresApproval != nil {
		requiresApproval = *input.RequiresApproval
	}

	building := model.Building{
		ID:                      uuid.New(),
		Name:                    name,
		Address:                 strings.TrimSpace(input.Address),
		City:                    strings.TrimSpace(input.City),
		Country:                 strings.TrimSpace(input.Country),
		BookingRequiresApproval: requiresApproval,
		CreatedAt:               s.now(),
	}
	if err := s.store.Buildings.CreateBuilding(ctx, building); err != nil {
		return nil, err
	}
	return &building, nil
}

func (s *RegistryService) GetBuilding(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Building, error) {
	if !actor.CanViewBuilding(id) {
		return nil, ErrPermissionDenied
	}
	building, err := s.store.Buildings.GetBuilding(ctx, id)
	if err != nil {
		return nil, notFound(err, "building")
	}
	return building, nil
}

// ListBuildings returns the buildings visible to the actor.
func (s *RegistryService) ListBuildings(ctx context.Context, actor model.Principal) ([]model.Building, error) {
	if actor.IsPlatformAdmin() {
		return s.store.Buildings.ListBuildings(ctx, nil)
	}
	if len(actor.BuildingIDs) == 0 {
		return []model.Building{}, nil
	}
	return s.store.Buildings.ListBuildings(ctx, actor.BuildingIDs)
}

func (s *RegistryService) SetBookingPolicy(ctx context.Context, actor model.Principal, id uuid.UUID, requiresApproval bool) (*model.Building, error) {
	if !actor.CanManageBuilding(id) {
		return nil, ErrPermissionDenied
	}
	if err := s.store.Buildings.UpdateBookingPolicy(ctx, id, requiresApproval); err != nil {
		return nil, notFound(err, "building")
	}
	return s.store.Buildings.GetBuilding(ctx, id)
}

func (s *RegistryService) DeleteBuilding(ctx context.Context, actor model.Principal, id uuid.UUID) error {
	if !actor.CanManageBuilding(id) {
		return ErrPermissionDenied
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		if _, err := tx.Buildings.GetBuilding(ctx, id); err != nil {
			return notFound(err, "building")
		}
		deps, err := tx.Buildings.CountBuildingDependents(ctx, id)
		if err != nil {
			return err
		}
		if deps > 0 {
			return fmt.Errorf("%w: building still has units or spaces", ErrInUse)
		}
		return notFound(tx.Buildings.DeleteBuilding(ctx, id), "building")
	})
}

type UnitInput struct {
	Number       string
	Floor        *int
	Area         *decimal.Decimal
	SharePercent decimal.Decimal
}

func (in UnitInput) validate() error {
	if strings.TrimSpace(in.Number) == "" {
		return fmt.Errorf("%w: number is required", ErrInvalidInput)
	}
	if in.SharePercent.IsNegative() || in.SharePercent.GreaterThan(maxSharePercent) {
		return fmt.Errorf("%w: share_percent must be between 0 and 100", ErrInvalidInput)
	}
	if !fitsScale(in.SharePercent, shareScale) {
		return fmt.Errorf("%w: share_percent allows at most %d decimal places", ErrInvalidInput, shareScale)
	}
	if in.Area != nil && in.Area.IsNegative() {
		return fmt.Errorf("%w: area must not be negative", ErrInvalidInput)
	}
	if in.Area != nil && !fitsScale(*in.Area, areaScale) {
		return fmt.Errorf("%w: area allows at most %d decimal places", ErrInvalidInput, areaScale)
	}
	return nil
}

func (s *RegistryService) CreateUnit(ctx context.Context, actor model.Principal, buildingID uuid.UUID, input UnitInput) (*model.Unit, error) {
	if !actor.CanManageBuilding(buildingID) {
		return nil, ErrPermissionDenied
	}
	if err := input.validate(); err != nil {
		return nil, err
	}
	if _, err := s.store.Buildings.GetBuilding(ctx, buildingID); err != nil {
		return nil, notFound(err, "building")
	}

	unit := model.Unit{
		ID:           uuid.New(),
		BuildingID:   buildingID,
		Number:       strings.TrimSpace(input.Number),
		Floor:        input.Floor,
		Area:         input.Area,
		SharePercent: input.SharePercent,
		CreatedAt:    s.now(),
	}
	if err := s.store.Buildings.CreateUnit(ctx, unit); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: unit %s already exists", ErrInvalidInput, unit.Number)
		}
		return nil, err
	}
	return &unit, nil
}

func (s *RegistryService) GetUnit(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Unit, error) {
	unit, err := s.store.Buildings.GetUnit(ctx, id)
	if err != nil {
		return nil, notFound(err, "unit")
	}
	if !actor.CanViewBuilding(unit.BuildingID) {
		return nil, ErrPermissionDenied
	}
	return unit, nil
}

func (s *RegistryService) UpdateUnit(ctx context.Context, actor model.Principal, id uuid.UUID, input UnitInput) (*model.Unit, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	unit, err := s.store.Buildings.GetUnit(ctx, id)
	if err != nil {
		return nil, notFound(err, "unit")
	}
	if !actor.CanManageBuilding(unit.BuildingID) {
		return nil, ErrPermissionDenied
	}

	unit.Number = strings.TrimSpace(input.Number)
	unit.Floor = input.Floor
	unit.Area = input.Area
	unit.SharePercent = input.SharePercent
	if err := s.store.Buildings.UpdateUnit(ctx, *unit); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: unit %s already exists", ErrInvalidInput, unit.Number)
		}
		return nil, notFound(err, "unit")
	}
	return unit, nil
}

func (s *RegistryService) DeleteUnit(ctx context.Context, actor model.Principal, id uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		unit, err := tx.Buildings.GetUnit(ctx, id)
		if err != nil {
			return notFound(err, "unit")
		}
		if !actor.CanManageBuilding(unit.BuildingID) {
			return ErrPermissionDenied
		}
		refs, err := tx.Buildings.CountUnitReferences(ctx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return fmt.Errorf("%w: unit has dues or bookings", ErrInUse)
		}
		return notFound(tx.Buildings.DeleteUnit(ctx, id), "unit")
	})
}

func (s *RegistryService) ListUnits(ctx context.Context, actor model.Principal, buildingID uuid.UUID) ([]model.Unit, error) {
	if !actor.CanViewBuilding(buildingID) {
		return nil, ErrPermissionDenied
	}
	return s.store.Buildings.ListUnits(ctx, buildingID)
}

// BuildingStats is the dashboard aggregate of a building.
func (s *RegistryService) BuildingStats(ctx context.Context, actor model.Principal, buildingID uuid.UUID) (*model.BuildingStats, error) {
	if !actor.CanManageBuilding(buildingID) {
		return nil, ErrPermissionDenied
	}
	if _, err := s.store.Buildings.GetBuilding(ctx, buildingID); err != nil {
		return nil, notFound(err, "building")
	}
	return s.store.Buildings.BuildingStats(ctx, buildingID)
}
