package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleResident Role = "RESIDENT"
)

// Principal is the acting user of a request. Admins with no BuildingIDs
// manage every building; residents carry their unit and its building.
type Principal struct {
	UserID      uuid.UUID
	Role        Role
	UnitID      *uuid.UUID
	BuildingIDs []uuid.UUID
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsResident() bool {
	return p.Role == RoleResident
}

func (p Principal) CanManageBuilding(buildingID uuid.UUID) bool {
	if !p.IsAdmin() {
		return false
	}
	return len(p.BuildingIDs) == 0 || p.inBuilding(buildingID)
}

func (p Principal) CanViewBuilding(buildingID uuid.UUID) bool {
	if p.IsAdmin() {
		return p.CanManageBuilding(buildingID)
	}
	return p.IsResident() && p.inBuilding(buildingID)
}

func (p Principal) inBuilding(buildingID uuid.UUID) bool {
	for _, id := range p.BuildingIDs {
		if id == buildingID {
			return true
		}
	}
	return false
}

func (p Principal) OwnsUnit(unitID uuid.UUID) bool {
	return p.IsResident() && p.UnitID != nil && *p.UnitID == unitID
}

// CanActForUnit is true for the unit's residents and for admins of its building.
func (p Principal) CanActForUnit(buildingID, unitID uuid.UUID) bool {
	return p.OwnsUnit(unitID) || p.CanManageBuilding(buildingID)
}

// IsPlatformAdmin is an admin not scoped to specific buildings.
func (p Principal) IsPlatformAdmin() bool {
	return p.IsAdmin() && len(p.BuildingIDs) == 0
}
