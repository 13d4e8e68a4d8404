package service

import (
	"context"
	"testing"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfirmPaymentMaterializesCalendar(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-13")
	ctx := context.Background()

	got, err := f.svc.ConfirmPayment(ctx, PaymentConfirmation{EventID: "evt_1", ReservationID: res.ID, Kind: PaymentCompleted})
	require.NoError(t, err)
	assert.Equal(t, db.StatusConfirmed, got.Status)
	assert.Equal(t, db.PaymentPaid, got.PaymentStatus)

	days := f.blockedDays(t, "v1")
	require.Len(t, days, 3)
	assert.Equal(t, day("2024-06-10"), days[0].Day)
	assert.Equal(t, day("2024-06-12"), days[2].Day)
	for _, d := range days {
		assert.Equal(t, db.BlockReasonBooking, d.Reason)
		assert.Equal(t, []string{db.ReservationSource(res.ID)}, d.Sources)
	}

	// provider redelivery
	_, err = f.svc.ConfirmPayment(ctx, PaymentConfirmation{EventID: "evt_1", ReservationID: res.ID, Kind: PaymentCompleted})
	require.NoError(t, err)
	assert.Len(t, f.blockedDays(t, "v1"), 3)
	assert.Equal(t, []notify.EventKind{notify.EventCreated, notify.EventConfirmed}, f.notifier.kinds())
}

func TestConfirmDepositLocksCalendar(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")

	_, err := f.svc.ConfirmDeposit(context.Background(), res.ID, otherShop)
	assert.True(t, apperrors.IsForbidden(err))

	got, err := f.svc.ConfirmDeposit(context.Background(), res.ID, shopUser)
	require.NoError(t, err)
	assert.Equal(t, db.StatusConfirmed, got.Status)
	assert.True(t, got.DepositPaid)
	assert.Equal(t, db.PaymentDepositPaid, got.PaymentStatus)
	assert.Len(t, f.blockedDays(t, "v1"), 2)
}

func TestConfirmPaymentUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ConfirmPayment(context.Background(), PaymentConfirmation{ReservationID: "r", Kind: "bitcoin"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestCancelReleasesDaysAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-13")
	ctx := context.Background()
	_, err := f.svc.ConfirmPayment(ctx, PaymentConfirmation{EventID: "evt_1", ReservationID: res.ID, Kind: PaymentCompleted})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, res.ID, customer, "")
	assert.True(t, apperrors.IsForbidden(err))

	got, err := f.svc.Cancel(ctx, res.ID, customer, "ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, db.StatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Empty(t, f.blockedDays(t, "v1"))

	_, err = f.svc.Cancel(ctx, res.ID, shopUser, "")
	require.NoError(t, err)
	kinds := f.notifier.kinds()
	assert.Equal(t, notify.EventCancelled, kinds[len(kinds)-1])
	assert.Len(t, kinds, 3)

	// the freed days can be booked again
	f.book(t, "v1", "2024-06-10", "2024-06-13")
}

func TestPaymentAfterCancelIsConflict(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-13")
	_, err := f.svc.Cancel(context.Background(), res.ID, adminUser, "")
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(context.Background(), PaymentConfirmation{EventID: "evt_late", ReservationID: res.ID, Kind: PaymentCompleted})
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, db.StatusCancelled, f.reservation(t, res.ID).Status)
}

func TestRefundCancelsAndReleases(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")
	ctx := context.Background()
	_, err := f.svc.ConfirmPayment(ctx, PaymentConfirmation{EventID: "evt_1", ReservationID: res.ID, Kind: PaymentCompleted})
	require.NoError(t, err)

	got, err := f.svc.ConfirmPayment(ctx, PaymentConfirmation{EventID: "evt_2", ReservationID: res.ID, Kind: PaymentRefunded})
	require.NoError(t, err)
	assert.Equal(t, db.StatusCancelled, got.Status)
	assert.Equal(t, db.PaymentRefunded, got.PaymentStatus)
	assert.Empty(t, f.blockedDays(t, "v1"))
}

func TestOverrideIsAuditedAndOneWay(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")
	ctx := context.Background()

	_, err := f.svc.Override(ctx, res.ID, customer)
	assert.True(t, apperrors.IsForbidden(err))

	got, err := f.svc.Override(ctx, res.ID, shopUser)
	require.NoError(t, err)
	assert.True(t, got.AutoCancelOverride)

	_, err = f.svc.Override(ctx, res.ID, adminUser)
	require.NoError(t, err)

	audits, err := f.svc.OverrideHistory(ctx, res.ID, adminUser)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, shopUser.ID, audits[0].ActorID)
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")
	ctx := context.Background()

	_, err := f.svc.Complete(ctx, res.ID, shopUser)
	assert.True(t, apperrors.IsConflict(err))

	_, err = f.svc.ConfirmPayment(ctx, PaymentConfirmation{ReservationID: res.ID, Kind: PaymentCompleted})
	require.NoError(t, err)
	got, err := f.svc.Complete(ctx, res.ID, shopUser)
	require.NoError(t, err)
	assert.Equal(t, db.StatusCompleted, got.Status)
	assert.Empty(t, f.blockedDays(t, "v1"))

	_, err = f.svc.Cancel(ctx, res.ID, adminUser, "")
	assert.True(t, apperrors.IsConflict(err))
}

func TestGetReservationAccess(t *testing.T) {
	f := newFixture(t)
	f.vehicle(t, "v1", "shop-1", 20, testNow)
	res := f.book(t, "v1", "2024-06-10", "2024-06-12")
	ctx := context.Background()

	_, err := f.svc.GetReservation(ctx, res.ID, customer, "")
	assert.True(t, apperrors.IsForbidden(err))
	_, err = f.svc.GetReservation(ctx, res.ID, otherShop, "")
	assert.True(t, apperrors.IsForbidden(err))

	got, err := f.svc.GetReservation(ctx, res.ID, customer, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
	_, err = f.svc.GetReservation(ctx, res.ID, shopUser, "")
	assert.NoError(t, err)
}
