package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/model"
)

func TestCreateBuildingPermissions(t *testing.T) {
	f := newFixture(t)

	scoped := model.Principal{UserID: uuid.New(), Role: model.RoleAdmin, BuildingIDs: []uuid.UUID{uuid.New()}}
	_, err := f.registry.CreateBuilding(f.ctx, scoped, CreateBuildingInput{Name: "Edificio"})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = f.registry.CreateBuilding(f.ctx, f.admin, CreateBuildingInput{Name: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBuildingDefaultsBookingPolicy(t *testing.T) {
	cfg := &config.Config{}
	cfg.Booking.RequiresApproval = true
	f := newFixtureWithConfig(t, cfg)

	b, err := f.registry.CreateBuilding(f.ctx, f.admin, CreateBuildingInput{Name: "Edificio Norte"})
	require.NoError(t, err)
	assert.True(t, b.BookingRequiresApproval)

	updated, err := f.registry.SetBookingPolicy(f.ctx, f.admin, b.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.BookingRequiresApproval)
}

func TestUnitValidation(t *testing.T) {
	f := newFixture(t)
	b := f.building(t, false)

	cases := []struct {
		name  string
		input UnitInput
	}{
		{"missing number", UnitInput{SharePercent: decimal.NewFromInt(10)}},
		{"share above 100", UnitInput{Number: "1", SharePercent: decimal.NewFromInt(101)}},
		{"negative share", UnitInput{Number: "1", SharePercent: decimal.NewFromInt(-1)}},
		{"share finer than column", UnitInput{Number: "1", SharePercent: decimal.RequireFromString("12.34567")}},
		{"area finer than column", UnitInput{Number: "1", SharePercent: decimal.NewFromInt(1), Area: decimalPtr("54.125")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.registry.CreateUnit(f.ctx, f.admin, b.ID, tc.input)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	f.unit(t, b.ID, "301", "10")
	_, err := f.registry.CreateUnit(f.ctx, f.admin, b.ID, UnitInput{Number: "301", SharePercent: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDeleteGuards(t *testing.T) {
	f := newFixture(t)
	b := f.building(t, false)
	u := f.unit(t, b.ID, "101", "100")

	err := f.registry.DeleteBuilding(f.ctx, f.admin, b.ID)
	assert.ErrorIs(t, err, ErrInUse)

	p := f.period(t, b.ID, "1000", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))
	_, err = f.billing.AllocateToAllUnits(f.ctx, f.admin, p.ID)
	require.NoError(t, err)

	err = f.registry.DeleteUnit(f.ctx, f.admin, u.ID)
	assert.ErrorIs(t, err, ErrInUse)

	spare := f.unit(t, b.ID, "102", "0")
	require.NoError(t, f.registry.DeleteUnit(f.ctx, f.admin, spare.ID))
	_, err = f.registry.GetUnit(f.ctx, f.admin, spare.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	empty := f.building(t, false)
	require.NoError(t, f.registry.DeleteBuilding(f.ctx, f.admin, empty.ID))
}

func TestUpdateUnitAndVisibility(t *testing.T) {
	f := newFixture(t)
	b := f.building(t, false)
	u := f.unit(t, b.ID, "101", "10")

	floor := 1
	updated, err := f.registry.UpdateUnit(f.ctx, f.admin, u.ID, UnitInput{
		Number:       "101A",
		Floor:        &floor,
		SharePercent: decimal.RequireFromString("12.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "101A", updated.Number)

	got, err := f.registry.GetUnit(f.ctx, resident(u), u.ID)
	require.NoError(t, err)
	requireAmount(t, "12.5", got.SharePercent)
	require.NotNil(t, got.Floor)
	assert.Equal(t, 1, *got.Floor)

	_, err = f.registry.UpdateUnit(f.ctx, resident(u), u.ID, UnitInput{Number: "X", SharePercent: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	list, err := f.registry.ListBuildings(f.ctx, resident(u))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
}
