package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedVehicle(t *testing.T, s *MemoryStore, id string) {
	t.Helper()
	err := s.Update(context.Background(), func(r Repository) error {
		return r.InsertVehicle(context.Background(), &db.Vehicle{ID: id, ShopID: "shop-1", Name: id, Type: "car", IsAvailable: true})
	})
	require.NoError(t, err)
}

func reservation(id, vehicleID string, iv interval.Interval) *db.Reservation {
	return &db.Reservation{
		ID: id, VehicleID: vehicleID, ShopID: "shop-1",
		StartDate: iv.Start, EndDate: iv.End, PickupAt: iv.Start,
		Status: db.StatusPending, PaymentStatus: db.PaymentUnpaid,
	}
}

func TestMemoryStoreUpdateRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedVehicle(t, s, "v1")

	boom := errors.New("boom")
	err := s.Update(ctx, func(r Repository) error {
		require.NoError(t, r.InsertReservation(ctx, reservation("r1", "v1", interval.MustParse("2024-06-10", "2024-06-12"))))
		require.NoError(t, r.UpsertBlockedDays(ctx, "v1", []time.Time{interval.Day(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC))}, "reservation:r1", db.BlockReasonBooking))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = s.View(ctx, func(r Repository) error {
		_, err := r.GetReservation(ctx, "r1", false)
		assert.True(t, apperrors.IsNotFound(err))
		days, err := r.ListBlockedDays(ctx, "v1", interval.MustParse("2024-06-01", "2024-07-01"))
		require.NoError(t, err)
		assert.Empty(t, days)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryStoreViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	err := s.View(ctx, func(r Repository) error {
		return r.InsertVehicle(ctx, &db.Vehicle{ID: "v1"})
	})
	assert.ErrorIs(t, err, errReadOnly)
}

func TestMemoryStoreRejectsOverlappingActiveReservations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedVehicle(t, s, "v1")

	require.NoError(t, s.Update(ctx, func(r Repository) error {
		return r.InsertReservation(ctx, reservation("r1", "v1", interval.MustParse("2024-06-10", "2024-06-13")))
	}))

	err := s.Update(ctx, func(r Repository) error {
		return r.InsertReservation(ctx, reservation("r2", "v1", interval.MustParse("2024-06-12", "2024-06-15")))
	})
	assert.True(t, apperrors.IsConflict(err))

	err = s.Update(ctx, func(r Repository) error {
		return r.InsertReservation(ctx, reservation("r3", "v1", interval.MustParse("2024-06-13", "2024-06-15")))
	})
	assert.NoError(t, err)
}

func TestMemoryStoreIdempotencyKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedVehicle(t, s, "v1")
	key := "key-1"

	first := reservation("r1", "v1", interval.MustParse("2024-06-10", "2024-06-11"))
	first.IdempotencyKey = &key
	require.NoError(t, s.Update(ctx, func(r Repository) error { return r.InsertReservation(ctx, first) }))

	second := reservation("r2", "v1", interval.MustParse("2024-07-10", "2024-07-11"))
	second.IdempotencyKey = &key
	err := s.Update(ctx, func(r Repository) error { return r.InsertReservation(ctx, second) })
	assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)

	require.NoError(t, s.View(ctx, func(r Repository) error {
		got, err := r.GetReservationByIdempotencyKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "r1", got.ID)
		return nil
	}))
}

func TestMemoryBlockedDayProvenance(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedVehicle(t, s, "v1")
	iv := interval.MustParse("2024-06-10", "2024-06-13")
	overlap := interval.MustParse("2024-06-12", "2024-06-14")

	require.NoError(t, s.Update(ctx, func(r Repository) error {
		require.NoError(t, r.UpsertBlockedDays(ctx, "v1", iv.EachDay(), "manual:b1", db.BlockReasonManual))
		require.NoError(t, r.UpsertBlockedDays(ctx, "v1", overlap.EachDay(), "reservation:r1", db.BlockReasonBooking))
		// repeated upsert keeps a single tag
		return r.UpsertBlockedDays(ctx, "v1", overlap.EachDay(), "reservation:r1", db.BlockReasonBooking)
	}))

	all := interval.MustParse("2024-06-01", "2024-07-01")
	require.NoError(t, s.View(ctx, func(r Repository) error {
		days, err := r.ListBlockedDays(ctx, "v1", all)
		require.NoError(t, err)
		require.Len(t, days, 4)
		assert.Equal(t, db.BlockReasonManual, days[0].Reason)
		assert.Equal(t, db.BlockReasonBooking, days[2].Reason)
		assert.ElementsMatch(t, []string{"manual:b1", "reservation:r1"}, days[2].Sources)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(r Repository) error {
		return r.RemoveBlockedDaySource(ctx, "v1", "reservation:r1")
	}))

	require.NoError(t, s.View(ctx, func(r Repository) error {
		days, err := r.ListBlockedDays(ctx, "v1", all)
		require.NoError(t, err)
		require.Len(t, days, 3)
		for _, d := range days {
			assert.Equal(t, []string{"manual:b1"}, d.Sources)
			assert.Equal(t, db.BlockReasonManual, d.Reason)
		}
		return nil
	}))
}

func TestMemoryOverduePagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedVehicle(t, s, "v1")
	base := interval.MustParse("2024-06-01", "2024-06-02")

	require.NoError(t, s.Update(ctx, func(r Repository) error {
		for i, id := range []string{"a", "b", "c"} {
			res := reservation(id, "v1", interval.Interval{Start: base.Start.AddDate(0, 0, i*2), End: base.End.AddDate(0, 0, i*2)})
			if id == "b" {
				res.AutoCancelOverride = true
			}
			if err := r.InsertReservation(ctx, res); err != nil {
				return err
			}
		}
		return nil
	}))

	deadline := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.View(ctx, func(r Repository) error {
		page, err := r.ListOverdueReservationIDs(ctx, deadline, "", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, page)

		page, err = r.ListOverdueReservationIDs(ctx, deadline, "a", 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, page)
		return nil
	}))
}

func TestMemoryStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemoryStore().Update(ctx, func(r Repository) error { return nil })
	require.Error(t, err)
}
