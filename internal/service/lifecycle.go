package service

import (
	"context"
	"fmt"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/notify"
	"fleetbook/internal/repository"

	"go.uber.org/zap"
)

// Payment event kinds delivered by the payment collaborator.
const (
	PaymentCompleted = "payment_completed"
	PaymentDeposit   = "deposit_paid"
	PaymentRefunded  = "refunded"
)

// PaymentConfirmation is a provider-agnostic "money moved" signal. EventID makes
// redelivery harmless; it may be empty for manual confirmations.
type PaymentConfirmation struct {
	EventID       string
	ReservationID string
	Kind          string
}

// transition is the outcome of one lifecycle unit of work.
type transition struct {
	res     *db.Reservation
	event   notify.EventKind
	changed bool
}

func (s *ReservationService) finish(ctx context.Context, t *transition) *db.Reservation {
	if t.changed {
		s.calendar.Invalidate(ctx, t.res.VehicleID)
		if t.event != "" {
			s.emit(ctx, t.event, t.res)
		}
	}
	return t.res
}

func terminalConflict(res *db.Reservation) error {
	return apperrors.Conflict(fmt.Sprintf("reservation is already %s", res.Status)).
		WithDetail("status", res.Status)
}

// ConfirmPayment applies a payment signal. A pending reservation becomes confirmed
// and, once it locks the calendar, its days are materialized in the same
// transaction. Paying for a terminal reservation is a conflict.
func (s *ReservationService) ConfirmPayment(ctx context.Context, pc PaymentConfirmation) (*db.Reservation, error) {
	switch pc.Kind {
	case PaymentCompleted, PaymentDeposit, PaymentRefunded:
	default:
		return nil, apperrors.Validation(fmt.Sprintf("unknown payment kind %q", pc.Kind))
	}

	t := &transition{}
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		res, err := repo.GetReservation(ctx, pc.ReservationID, true)
		if err != nil {
			return err
		}
		t.res = res

		if pc.EventID != "" {
			fresh, err := repo.MarkPaymentEventProcessed(ctx, &db.PaymentEvent{
				EventID: pc.EventID, ReservationID: pc.ReservationID, Kind: pc.Kind, ProcessedAt: s.now().UTC(),
			})
			if err != nil {
				return err
			}
			if !fresh {
				s.logger.Info("duplicate payment event ignored", zap.String("event_id", pc.EventID))
				return nil
			}
		}

		if pc.Kind == PaymentRefunded {
			return s.applyRefund(ctx, repo, t)
		}
		return s.applyPayment(ctx, repo, t, pc.Kind)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, t), nil
}

func (s *ReservationService) applyPayment(ctx context.Context, repo repository.Repository, t *transition, kind string) error {
	res := t.res
	if res.IsTerminal() {
		return terminalConflict(res)
	}

	switch kind {
	case PaymentCompleted:
		res.PaymentStatus = db.PaymentPaid
	case PaymentDeposit:
		res.DepositPaid = true
		if res.PaymentStatus == db.PaymentUnpaid {
			res.PaymentStatus = db.PaymentDepositPaid
		}
	}
	if res.Status == db.StatusPending {
		res.Status = db.StatusConfirmed
		t.event = notify.EventConfirmed
	}
	res.UpdatedAt = s.now().UTC()
	t.changed = true

	if err := repo.UpdateReservation(ctx, res); err != nil {
		return err
	}
	return s.calendar.Materialize(ctx, repo, res)
}

// applyRefund cancels an active reservation whose money went back to the customer.
func (s *ReservationService) applyRefund(ctx context.Context, repo repository.Repository, t *transition) error {
	res := t.res
	now := s.now().UTC()
	res.PaymentStatus = db.PaymentRefunded
	res.UpdatedAt = now
	t.changed = true
	if res.IsActive() {
		res.Status = db.StatusCancelled
		res.CancelledAt = &now
		by := auth.SystemActor.ID
		res.CancelledBy = &by
		t.event = notify.EventCancelled
	}
	if err := repo.UpdateReservation(ctx, res); err != nil {
		return err
	}
	return s.calendar.Release(ctx, repo, res)
}

// ConfirmDeposit records a deposit taken by the shop outside the payment provider.
func (s *ReservationService) ConfirmDeposit(ctx context.Context, reservationID string, actor auth.Actor) (*db.Reservation, error) {
	if err := s.requireShopAccess(ctx, reservationID, actor); err != nil {
		return nil, err
	}
	return s.ConfirmPayment(ctx, PaymentConfirmation{ReservationID: reservationID, Kind: PaymentDeposit})
}

func (s *ReservationService) requireShopAccess(ctx context.Context, reservationID string, actor auth.Actor) error {
	return s.store.View(ctx, func(repo repository.Repository) error {
		res, err := repo.GetReservation(ctx, reservationID, false)
		if err != nil {
			return err
		}
		if !s.authz.CanManageShop(actor, res.ShopID) {
			return apperrors.Forbidden("only the owning shop may do this")
		}
		return nil
	})
}

// Cancel moves a pending or confirmed reservation to cancelled and releases its
// days in the same transaction. Cancelling twice is a no-op.
func (s *ReservationService) Cancel(ctx context.Context, reservationID string, actor auth.Actor, guestEmail string) (*db.Reservation, error) {
	t := &transition{}
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		res, err := repo.GetReservation(ctx, reservationID, true)
		if err != nil {
			return err
		}
		t.res = res
		if !s.canAccess(actor, res, guestEmail) {
			return apperrors.Forbidden("not allowed to cancel this reservation")
		}
		switch res.Status {
		case db.StatusCancelled:
			return nil
		case db.StatusAutoCancelled, db.StatusCompleted:
			return terminalConflict(res)
		}

		now := s.now().UTC()
		by := actor.ID
		if by == "" {
			by = "guest"
		}
		res.Status = db.StatusCancelled
		res.CancelledAt = &now
		res.CancelledBy = &by
		res.UpdatedAt = now
		t.changed, t.event = true, notify.EventCancelled

		if err := repo.UpdateReservation(ctx, res); err != nil {
			return err
		}
		return s.calendar.Release(ctx, repo, res)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, t), nil
}

// Override exempts a reservation from auto-cancellation. It is one-way and audited;
// repeating it changes nothing. A reservation the sweep already auto-cancelled is
// put back to pending, unless its days were booked again in the meantime.
func (s *ReservationService) Override(ctx context.Context, reservationID string, actor auth.Actor) (*db.Reservation, error) {
	t := &transition{}
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		res, err := repo.GetReservation(ctx, reservationID, true)
		if err != nil {
			return err
		}
		t.res = res
		if !s.authz.CanOverride(actor, res) {
			return apperrors.Forbidden("only the owning shop or an admin may override")
		}
		if sweptBySystem(res) {
			if err := s.reinstate(ctx, repo, res); err != nil {
				return err
			}
		} else if res.IsTerminal() {
			return terminalConflict(res)
		}
		if res.AutoCancelOverride {
			return nil
		}

		now := s.now().UTC()
		res.AutoCancelOverride = true
		res.UpdatedAt = now
		t.changed, t.event = true, notify.EventOverridden

		if err := repo.UpdateReservation(ctx, res); err != nil {
			return err
		}
		return repo.InsertOverrideAudit(ctx, &db.OverrideAudit{
			ID:            s.newID(),
			ReservationID: res.ID,
			ActorID:       actor.ID,
			ActorRole:     actor.Role,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, t), nil
}

func sweptBySystem(res *db.Reservation) bool {
	return res.Status == db.StatusAutoCancelled && res.CancelledBy != nil && *res.CancelledBy == auth.SystemActor.ID
}

// reinstate moves an auto-cancelled reservation back to pending. The vehicle row is
// locked first so a concurrent allocation cannot take the days between the check and
// the update.
func (s *ReservationService) reinstate(ctx context.Context, repo repository.Repository, res *db.Reservation) error {
	if _, err := repo.LockVehicle(ctx, res.VehicleID); err != nil {
		return err
	}
	conflicts, err := liveConflicts(ctx, repo, res.VehicleID, res.Interval())
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return apperrors.Unavailable().WithDetail("status", res.Status)
	}
	res.Status = db.StatusPending
	res.CancelledAt = nil
	res.CancelledBy = nil
	return nil
}

// Complete closes a confirmed reservation once the rental is over.
func (s *ReservationService) Complete(ctx context.Context, reservationID string, actor auth.Actor) (*db.Reservation, error) {
	t := &transition{}
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		res, err := repo.GetReservation(ctx, reservationID, true)
		if err != nil {
			return err
		}
		t.res = res
		if !s.authz.CanManageShop(actor, res.ShopID) {
			return apperrors.Forbidden("only the owning shop may complete a reservation")
		}
		return s.completeTx(ctx, repo, t)
	})
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, t), nil
}

func (s *ReservationService) completeTx(ctx context.Context, repo repository.Repository, t *transition) error {
	res := t.res
	switch res.Status {
	case db.StatusCompleted:
		return nil
	case db.StatusConfirmed:
	default:
		return apperrors.Conflict(fmt.Sprintf("only confirmed reservations can be completed, this one is %s", res.Status))
	}
	res.Status = db.StatusCompleted
	res.UpdatedAt = s.now().UTC()
	t.changed, t.event = true, notify.EventCompleted
	if err := repo.UpdateReservation(ctx, res); err != nil {
		return err
	}
	return s.calendar.Release(ctx, repo, res)
}

// OverrideHistory lists the audit trail of a reservation.
func (s *ReservationService) OverrideHistory(ctx context.Context, reservationID string, actor auth.Actor) ([]db.OverrideAudit, error) {
	var audits []db.OverrideAudit
	err := s.store.View(ctx, func(repo repository.Repository) error {
		res, err := repo.GetReservation(ctx, reservationID, false)
		if err != nil {
			return err
		}
		if !s.authz.CanManageShop(actor, res.ShopID) {
			return apperrors.Forbidden("not allowed to view this audit trail")
		}
		audits, err = repo.ListOverrideAudits(ctx, reservationID)
		return err
	})
	return audits, err
}
