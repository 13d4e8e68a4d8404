package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepOverdueCancelsPastGracePeriod(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	f.vehicle(t, "v2", "shop-1", 20, testNow)
	f.vehicle(t, "v3", "shop-1", 20, testNow)
	overdue := f.book(t, "v1", "2024-06-10", "2024-06-12")
	overridden := f.book(t, "v2", "2024-06-10", "2024-06-12")
	paid := f.book(t, "v3", "2024-06-10", "2024-06-12")
	ctx := context.Background()

	_, err := f.svc.Override(ctx, overridden.ID, shopUser)
	require.NoError(t, err)
	_, err = f.svc.ConfirmPayment(ctx, PaymentConfirmation{EventID: "evt", ReservationID: paid.ID, Kind: PaymentCompleted})
	require.NoError(t, err)

	// pickup is 10:00, grace is two hours
	result, err := f.svc.SweepOverdue(ctx, time.Date(2024, 6, 10, 11, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Cancelled)
	assert.Equal(t, db.StatusPending, f.reservation(t, overdue.ID).Status)

	result, err = f.svc.SweepOverdue(ctx, time.Date(2024, 6, 10, 12, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Scanned)
	assert.Equal(t, 1, result.Cancelled)
	assert.Empty(t, result.Failed)

	got := f.reservation(t, overdue.ID)
	assert.Equal(t, db.StatusAutoCancelled, got.Status)
	require.NotNil(t, got.CancelledBy)
	assert.Equal(t, "system", *got.CancelledBy)
	assert.Equal(t, db.StatusPending, f.reservation(t, overridden.ID).Status)
	assert.Equal(t, db.StatusConfirmed, f.reservation(t, paid.ID).Status)

	kinds := f.notifier.kinds()
	assert.Equal(t, notify.EventAutoCancelled, kinds[len(kinds)-1])

	// already cancelled reservations are not picked up again
	result, err = f.svc.SweepOverdue(ctx, time.Date(2024, 6, 10, 13, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
}

func TestSweepOverdueWalksBatches(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.SweepBatchSize = 2 })
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("v%d", i)
		f.vehicle(t, id, "shop-1", 20, testNow)
		f.book(t, id, "2024-06-10", "2024-06-11")
	}

	result, err := f.svc.SweepOverdue(context.Background(), time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Scanned)
	assert.Equal(t, 5, result.Cancelled)
}

func TestAutoCancelRechecksOverride(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")
	_, err := f.svc.Override(context.Background(), res.ID, adminUser)
	require.NoError(t, err)

	// the candidate list was read before the override committed
	now := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	cancelled, err := f.svc.autoCancel(context.Background(), res.ID, now.Add(-f.svc.opts.GracePeriod), now)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, db.StatusPending, f.reservation(t, res.ID).Status)
}

func TestOverrideWinsOverSweepInAnyOrder(t *testing.T) {
	now := time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		f.vehicle(t, "v1", "shop-1", 20, testNow)
		res := f.book(t, "v1", "2024-06-10", "2024-06-12")

		var wg sync.WaitGroup
		var overrideErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, overrideErr = f.svc.Override(context.Background(), res.ID, shopUser)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.svc.SweepOverdue(context.Background(), now)
		}()
		wg.Wait()

		require.NoError(t, overrideErr)
		got := f.reservation(t, res.ID)
		assert.Equal(t, db.StatusPending, got.Status)
		assert.True(t, got.AutoCancelOverride)
		assert.Nil(t, got.CancelledBy)
	}
}

func TestOverrideAfterSweepReinstates(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")
	ctx := context.Background()

	result, err := f.svc.SweepOverdue(ctx, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, result.Cancelled)

	got, err := f.svc.Override(ctx, res.ID, shopUser)
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, got.Status)
	assert.True(t, got.AutoCancelOverride)
	assert.Nil(t, got.CancelledAt)

	stored := f.reservation(t, res.ID)
	assert.Equal(t, db.StatusPending, stored.Status)
	assert.True(t, stored.AutoCancelOverride)

	audits, err := f.svc.OverrideHistory(ctx, res.ID, shopUser)
	require.NoError(t, err)
	assert.Len(t, audits, 1)
	assert.Equal(t, []notify.EventKind{notify.EventCreated, notify.EventAutoCancelled, notify.EventOverridden}, f.notifier.kinds())

	// a later sweep leaves it alone
	result, err = f.svc.SweepOverdue(ctx, time.Date(2024, 6, 11, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Cancelled)
	assert.Equal(t, db.StatusPending, f.reservation(t, res.ID).Status)
}

func TestOverrideAfterSweepConflictsWhenDaysRebooked(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")
	ctx := context.Background()

	_, err := f.svc.SweepOverdue(ctx, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	f.book(t, "v1", "2024-06-11", "2024-06-13")

	_, err = f.svc.Override(ctx, res.ID, shopUser)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	got := f.reservation(t, res.ID)
	assert.Equal(t, db.StatusAutoCancelled, got.Status)
	assert.False(t, got.AutoCancelOverride)
}

func TestOverrideDoesNotReviveCustomerCancellation(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")
	ctx := context.Background()

	_, err := f.svc.Cancel(ctx, res.ID, shopUser, "")
	require.NoError(t, err)
	_, err = f.svc.Override(ctx, res.ID, shopUser)
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, db.StatusCancelled, f.reservation(t, res.ID).Status)
}

func TestCompleteFinished(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	f.vehicle(t, "v2", "shop-1", 20, testNow)
	done := f.book(t, "v1", "2024-06-10", "2024-06-13")
	ongoing := f.book(t, "v2", "2024-06-10", "2024-06-20")
	ctx := context.Background()
	for _, id := range []string{done.ID, ongoing.ID} {
		_, err := f.svc.ConfirmPayment(ctx, PaymentConfirmation{ReservationID: id, Kind: PaymentCompleted})
		require.NoError(t, err)
	}

	n, err := f.svc.CompleteFinished(ctx, time.Date(2024, 6, 13, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, db.StatusCompleted, f.reservation(t, done.ID).Status)
	assert.Equal(t, db.StatusConfirmed, f.reservation(t, ongoing.ID).Status)
	assert.Empty(t, f.blockedDays(t, "v1"))
	assert.Len(t, f.blockedDays(t, "v2"), 10)
}
