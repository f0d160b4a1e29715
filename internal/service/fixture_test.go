package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/db/dbtest"
	"github.com/nurpe/condo-ledger/internal/model"
	"github.com/nurpe/condo-ledger/internal/repository"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctx      context.Context
	db       *gorm.DB
	store    *repository.Store
	registry *RegistryService
	billing  *BillingService
	payments *PaymentService
	bookings *BookingService
	admin    model.Principal
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, &config.Config{})
}

func newFixtureWithConfig(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		ctx:   context.Background(),
		db:    conn,
		store: repository.NewStore(conn),
		admin: model.Principal{UserID: uuid.New(), Role: model.RoleAdmin},
		now:   testNow,
	}
	clock := func() time.Time { return f.now }
	f.registry = NewRegistryService(f.store, cfg, clock)
	f.billing = NewBillingService(f.store, cfg, clock)
	f.payments = NewPaymentService(f.store, clock)
	f.bookings = NewBookingService(f.store, clock)
	return f
}

func (f *fixture) building(t *testing.T, requiresApproval bool) *model.Building {
	t.Helper()
	b, err := f.registry.CreateBuilding(f.ctx, f.admin, CreateBuildingInput{
		Name:             "Torre " + uuid.NewString()[:8],
		City:             "Santiago",
		Country:          "CL",
		RequiresApproval: &requiresApproval,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) unit(t *testing.T, buildingID uuid.UUID, number, share string) *model.Unit {
	t.Helper()
	u, err := f.registry.CreateUnit(f.ctx, f.admin, buildingID, UnitInput{
		Number:       number,
		SharePercent: decimal.RequireFromString(share),
	})
	require.NoError(t, err)
	return u
}

func (f *fixture) period(t *testing.T, buildingID uuid.UUID, total string, due time.Time) *model.BillingPeriod {
	t.Helper()
	p, err := f.billing.CreatePeriod(f.ctx, f.admin, CreatePeriodInput{
		BuildingID:  buildingID,
		Month:       int(due.Month()),
		Year:        due.Year(),
		TotalAmount: decimal.RequireFromString(total),
		DueDate:     due,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) space(t *testing.T, buildingID uuid.UUID, requiresApproval bool) *model.CommonSpace {
	t.Helper()
	s, err := f.bookings.CreateSpace(f.ctx, f.admin, buildingID, CreateSpaceInput{
		Name:             "Quincho",
		RequiresApproval: requiresApproval,
	})
	require.NoError(t, err)
	return s
}

func resident(unit *model.Unit) model.Principal {
	id := unit.ID
	return model.Principal{
		UserID:      uuid.New(),
		Role:        model.RoleResident,
		UnitID:      &id,
		BuildingIDs: []uuid.UUID{unit.BuildingID},
	}
}

func (f *fixture) events(t *testing.T, entityID uuid.UUID) []model.OutboxEvent {
	t.Helper()
	events, err := f.store.Outbox.ListByEntity(f.ctx, entityID)
	require.NoError(t, err)
	return events
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func (f *fixture) countEvents(t *testing.T, eventType model.EventType) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM outbox_events WHERE event_type = ?`, eventType).Scan(&n).Error)
	return n
}

// concurrently runs fn n times from separate goroutines released together and
// returns each call's error.
func concurrently(n int, fn func(i int) error) []error {
	errs := make([]error, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}(i)
	}
	close(start)
	wg.Wait()
	return errs
}

func decimalPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func at(hour int) time.Time {
	return time.Date(2024, 4, 6, hour, 0, 0, 0, time.UTC)
}
