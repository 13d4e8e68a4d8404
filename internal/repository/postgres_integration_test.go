package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestPostgres connects to DATABASE_URL and applies the schema. Tests that need
// it are skipped when the variable is unset.
func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { store.Close() })
	return store
}

func pgVehicle(t *testing.T, store *PostgresStore) string {
	t.Helper()
	ctx := context.Background()
	id := "it-" + uuid.NewString()
	now := time.Now().UTC()
	require.NoError(t, store.Update(ctx, func(repo Repository) error {
		return repo.InsertVehicle(ctx, &db.Vehicle{
			ID: id, ShopID: "shop-it", Name: id, Type: "scooter", Category: "125cc",
			IsAvailable: true, PricePerDay: 20, CreatedAt: now, UpdatedAt: now,
		})
	}))
	t.Cleanup(func() {
		for _, q := range []string{
			`DELETE FROM blocked_days WHERE vehicle_id = $1`,
			`DELETE FROM manual_blocks WHERE vehicle_id = $1`,
			`DELETE FROM override_audits WHERE reservation_id IN (SELECT id FROM reservations WHERE vehicle_id = $1)`,
			`DELETE FROM reservations WHERE vehicle_id = $1`,
			`DELETE FROM vehicles WHERE id = $1`,
		} {
			store.DB.Exec(q, id)
		}
	})
	return id
}

func pgReservation(vehicleID, start, end, status string, pickup time.Time) *db.Reservation {
	iv := interval.MustParse(start, end)
	now := time.Now().UTC()
	return &db.Reservation{
		ID: "it-" + uuid.NewString(), VehicleID: vehicleID, ShopID: "shop-it", Language: "en",
		StartDate: iv.Start, EndDate: iv.End, PickupAt: pickup, Status: status,
		PaymentStatus: db.PaymentUnpaid, DailyRate: 20, Days: iv.Days(), TotalPrice: 20 * float64(iv.Days()),
		CreatedAt: now, UpdatedAt: now,
	}
}

func pgBlockedDays(t *testing.T, store *PostgresStore, vehicleID string) []db.BlockedDay {
	t.Helper()
	var days []db.BlockedDay
	require.NoError(t, store.View(context.Background(), func(repo Repository) error {
		var err error
		days, err = repo.ListBlockedDays(context.Background(), vehicleID, interval.From(time.Time{}))
		return err
	}))
	return days
}

func TestPostgresBlockedDaySources(t *testing.T) {
	store := openTestPostgres(t)
	vehicleID := pgVehicle(t, store)
	ctx := context.Background()
	booking := db.ReservationSource("r1")
	manual := db.ManualSource("b1")

	upsert := func(iv interval.Interval, source, reason string) {
		require.NoError(t, store.Update(ctx, func(repo Repository) error {
			return repo.UpsertBlockedDays(ctx, vehicleID, iv.EachDay(), source, reason)
		}))
	}
	upsert(interval.MustParse("2030-06-12", "2030-06-14"), manual, db.BlockReasonManual)
	upsert(interval.MustParse("2030-06-10", "2030-06-13"), booking, db.BlockReasonBooking)
	upsert(interval.MustParse("2030-06-10", "2030-06-13"), booking, db.BlockReasonBooking)

	days := pgBlockedDays(t, store, vehicleID)
	require.Len(t, days, 4)
	assert.Equal(t, []string{booking}, days[0].Sources)
	assert.Equal(t, []string{manual, booking}, days[2].Sources)
	assert.Equal(t, db.BlockReasonBooking, days[2].Reason)
	assert.Equal(t, db.BlockReasonManual, days[3].Reason)

	require.NoError(t, store.Update(ctx, func(repo Repository) error {
		return repo.RemoveBlockedDaySource(ctx, vehicleID, booking)
	}))
	days = pgBlockedDays(t, store, vehicleID)
	require.Len(t, days, 2)
	assert.True(t, days[0].Day.Equal(interval.Day(time.Date(2030, 6, 12, 0, 0, 0, 0, time.UTC))))
	assert.Equal(t, []string{manual}, days[0].Sources)
	assert.Equal(t, db.BlockReasonManual, days[0].Reason)

	require.NoError(t, store.Update(ctx, func(repo Repository) error {
		return repo.RemoveBlockedDaySource(ctx, vehicleID, manual)
	}))
	assert.Empty(t, pgBlockedDays(t, store, vehicleID))
}

func TestPostgresOverdueKeyset(t *testing.T) {
	store := openTestPostgres(t)
	vehicleID := pgVehicle(t, store)
	ctx := context.Background()
	pickup := time.Date(2001, 1, 1, 10, 0, 0, 0, time.UTC)
	deadline := pickup.Add(time.Hour)

	first := pgReservation(vehicleID, "2001-01-01", "2001-01-02", db.StatusPending, pickup)
	second := pgReservation(vehicleID, "2001-01-03", "2001-01-04", db.StatusPending, pickup)
	overridden := pgReservation(vehicleID, "2001-01-05", "2001-01-06", db.StatusPending, pickup)
	overridden.AutoCancelOverride = true
	late := pgReservation(vehicleID, "2001-01-07", "2001-01-08", db.StatusPending, deadline.Add(time.Minute))
	if second.ID < first.ID {
		first, second = second, first
	}
	require.NoError(t, store.Update(ctx, func(repo Repository) error {
		for _, res := range []*db.Reservation{first, second, overridden, late} {
			if err := repo.InsertReservation(ctx, res); err != nil {
				return err
			}
		}
		return nil
	}))

	overdue := func(afterID string) []string {
		var ids []string
		require.NoError(t, store.View(ctx, func(repo Repository) error {
			var err error
			ids, err = repo.ListOverdueReservationIDs(ctx, deadline, afterID, 1000)
			return err
		}))
		return ids
	}
	ids := overdue("")
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
	assert.NotContains(t, ids, overridden.ID)
	assert.NotContains(t, ids, late.ID)

	ids = overdue(first.ID)
	assert.NotContains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestPostgresRejectsOverlappingActiveReservations(t *testing.T) {
	store := openTestPostgres(t)
	vehicleID := pgVehicle(t, store)
	ctx := context.Background()
	pickup := time.Date(2030, 6, 10, 10, 0, 0, 0, time.UTC)

	held := pgReservation(vehicleID, "2030-06-10", "2030-06-13", db.StatusPending, pickup)
	require.NoError(t, store.Update(ctx, func(repo Repository) error {
		return repo.InsertReservation(ctx, held)
	}))

	err := store.Update(ctx, func(repo Repository) error {
		return repo.InsertReservation(ctx, pgReservation(vehicleID, "2030-06-12", "2030-06-14", db.StatusPending, pickup))
	})
	assert.True(t, apperrors.IsConflict(err))

	// touching ranges are fine
	require.NoError(t, store.Update(ctx, func(repo Repository) error {
		return repo.InsertReservation(ctx, pgReservation(vehicleID, "2030-06-13", "2030-06-15", db.StatusPending, pickup))
	}))

	// reactivating a cancelled reservation over held days is refused too
	cancelled := pgReservation(vehicleID, "2030-06-11", "2030-06-12", db.StatusAutoCancelled, pickup)
	require.NoError(t, store.Update(ctx, func(repo Repository) error {
		return repo.InsertReservation(ctx, cancelled)
	}))
	cancelled.Status = db.StatusPending
	err = store.Update(ctx, func(repo Repository) error {
		return repo.UpdateReservation(ctx, cancelled)
	})
	assert.True(t, apperrors.IsConflict(err))
}
