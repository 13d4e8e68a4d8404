package service

import (
	"context"
	"fmt"

	"fleetbook/internal/auth"
	"fleetbook/internal/cache"
	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"
	"fleetbook/internal/repository"

	"go.uber.org/zap"
)

// CalendarIndex maintains the blocked-day rows. Its write methods take the
// Repository of the caller's unit of work so the index changes commit or roll back
// together with the status change that triggered them.
type CalendarIndex struct {
	cache  cache.CalendarCache
	logger *zap.Logger
}

func NewCalendarIndex(c cache.CalendarCache, logger *zap.Logger) *CalendarIndex {
	return &CalendarIndex{cache: c, logger: logger}
}

// Materialize blocks the reservation's days if it locks the calendar. Repeating it
// leaves the index unchanged.
func (c *CalendarIndex) Materialize(ctx context.Context, repo repository.Repository, res *db.Reservation) error {
	if !res.LocksCalendar() {
		return nil
	}
	err := repo.UpsertBlockedDays(ctx, res.VehicleID, res.Interval().EachDay(), db.ReservationSource(res.ID), db.BlockReasonBooking)
	if err != nil {
		return fmt.Errorf("materialize reservation %s: %w", res.ID, err)
	}
	return nil
}

// Release removes the reservation's tag. Days still held by another source stay blocked.
func (c *CalendarIndex) Release(ctx context.Context, repo repository.Repository, res *db.Reservation) error {
	if err := repo.RemoveBlockedDaySource(ctx, res.VehicleID, db.ReservationSource(res.ID)); err != nil {
		return fmt.Errorf("release reservation %s: %w", res.ID, err)
	}
	return nil
}

func (c *CalendarIndex) BlockManual(ctx context.Context, repo repository.Repository, b *db.ManualBlock) error {
	return repo.UpsertBlockedDays(ctx, b.VehicleID, b.Interval().EachDay(), db.ManualSource(b.ID), db.BlockReasonManual)
}

func (c *CalendarIndex) UnblockManual(ctx context.Context, repo repository.Repository, b *db.ManualBlock) error {
	return repo.RemoveBlockedDaySource(ctx, b.VehicleID, db.ManualSource(b.ID))
}

// Rebuild regenerates the vehicle's rows from reservations and manual blocks.
func (c *CalendarIndex) Rebuild(ctx context.Context, repo repository.Repository, vehicleID string) (int, error) {
	if err := repo.DeleteBlockedDays(ctx, vehicleID); err != nil {
		return 0, err
	}
	reservations, err := repo.ListCalendarReservations(ctx, vehicleID)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range reservations {
		if !reservations[i].LocksCalendar() {
			continue
		}
		if err := c.Materialize(ctx, repo, &reservations[i]); err != nil {
			return 0, err
		}
		n++
	}
	blocks, err := repo.ListManualBlocks(ctx, vehicleID, interval.Interval{End: interval.Horizon})
	if err != nil {
		return 0, err
	}
	for i := range blocks {
		if err := c.BlockManual(ctx, repo, &blocks[i]); err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Invalidate drops cached reads for the vehicle. Call it after the unit of work commits.
func (c *CalendarIndex) Invalidate(ctx context.Context, vehicleID string) {
	if err := c.cache.Invalidate(ctx, vehicleID); err != nil {
		c.logger.Warn("calendar cache invalidation failed", zap.String("vehicle_id", vehicleID), zap.Error(err))
	}
}

// BlockedDays is the fast read path: cache first, then the index rows.
func (s *ReservationService) BlockedDays(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.BlockedDay, error) {
	cached, version, hit, cacheErr := s.calendar.cache.Get(ctx, vehicleID, iv)
	if cacheErr != nil {
		s.logger.Warn("calendar cache read failed", zap.String("vehicle_id", vehicleID), zap.Error(cacheErr))
	} else if hit {
		return cached, nil
	}

	var days []db.BlockedDay
	err := s.store.View(ctx, func(repo repository.Repository) error {
		if _, err := repo.GetVehicle(ctx, vehicleID); err != nil {
			return err
		}
		var err error
		days, err = repo.ListBlockedDays(ctx, vehicleID, iv)
		return err
	})
	if err != nil {
		return nil, err
	}
	if days == nil {
		days = []db.BlockedDay{}
	}
	if cacheErr == nil {
		if err := s.calendar.cache.Set(ctx, vehicleID, version, iv, days); err != nil {
			s.logger.Warn("calendar cache write failed", zap.String("vehicle_id", vehicleID), zap.Error(err))
		}
	}
	return days, nil
}

// RebuildCalendar regenerates a vehicle's blocked days. Returns the number of
// sources written.
func (s *ReservationService) RebuildCalendar(ctx context.Context, vehicleID string, actor auth.Actor) (int, error) {
	var n int
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		v, err := repo.LockVehicle(ctx, vehicleID)
		if err != nil {
			return err
		}
		if !s.authz.CanManageShop(actor, v.ShopID) {
			return apperrors.Forbidden("not allowed to manage this vehicle")
		}
		n, err = s.calendar.Rebuild(ctx, repo, vehicleID)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.calendar.Invalidate(ctx, vehicleID)
	s.logger.Info("calendar rebuilt", zap.String("vehicle_id", vehicleID), zap.Int("sources", n))
	return n, nil
}
