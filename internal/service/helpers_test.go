package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	"fleetbook/internal/interval"
	"fleetbook/internal/notify"
	"fleetbook/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testNow   = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	adminUser = auth.Actor{ID: "admin-1", Role: auth.RoleAdmin}
	shopUser  = auth.Actor{ID: "seller-1", Role: auth.RoleShop, ShopID: "shop-1"}
	otherShop = auth.Actor{ID: "seller-2", Role: auth.RoleShop, ShopID: "shop-2"}
	customer  = auth.Actor{ID: "cust-1", Role: auth.RoleCustomer}
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *recordingNotifier) Notify(ctx context.Context, ev notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) kinds() []notify.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventKind, len(n.events))
	for i, ev := range n.events {
		out[i] = ev.Kind
	}
	return out
}

type fixture struct {
	svc      *ReservationService
	store    *repository.MemoryStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()
	opts := DefaultOptions()
	opts.AllocationTimeout = 0
	for _, m := range mutate {
		m(&opts)
	}
	store := repository.NewMemoryStore()
	rec := &recordingNotifier{}
	svc := NewReservationService(Deps{Store: store, Notifier: rec, Logger: zap.NewNop()}, opts)

	var seq int64
	svc.now = func() time.Time { return testNow }
	svc.newID = func() string { return fmt.Sprintf("id-%03d", atomic.AddInt64(&seq, 1)) }
	return &fixture{svc: svc, store: store, notifier: rec}
}

func (f *fixture) vehicle(t *testing.T, id, shopID string, price float64, created time.Time) {
	t.Helper()
	err := f.store.Update(context.Background(), func(repo repository.Repository) error {
		return repo.InsertVehicle(context.Background(), &db.Vehicle{
			ID: id, ShopID: shopID, Name: id, Type: "scooter", Category: "125cc",
			IsAvailable: true, PricePerDay: price, CreatedAt: created, UpdatedAt: created,
		})
	})
	require.NoError(t, err)
}

func (f *fixture) book(t *testing.T, vehicleID, start, end string) *db.Reservation {
	t.Helper()
	out, err := f.svc.Allocate(context.Background(), AllocationRequest{
		VehicleID: vehicleID,
		Interval:  interval.MustParse(start, end),
		Guest:     Guest{Name: "Ana", Email: "ana@example.com"},
	})
	require.NoError(t, err)
	return out.Reservation
}

func (f *fixture) reservation(t *testing.T, id string) *db.Reservation {
	t.Helper()
	var res *db.Reservation
	require.NoError(t, f.store.View(context.Background(), func(repo repository.Repository) error {
		var err error
		res, err = repo.GetReservation(context.Background(), id, false)
		return err
	}))
	return res
}

func (f *fixture) blockedDays(t *testing.T, vehicleID string) []db.BlockedDay {
	t.Helper()
	var days []db.BlockedDay
	require.NoError(t, f.store.View(context.Background(), func(repo repository.Repository) error {
		var err error
		days, err = repo.ListBlockedDays(context.Background(), vehicleID, interval.From(time.Time{}))
		return err
	}))
	return days
}

func day(s string) time.Time {
	d, err := time.Parse(interval.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}
