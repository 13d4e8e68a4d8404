package service

import (
	"context"
	"fmt"
	"time"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	"fleetbook/internal/interval"
	"fleetbook/internal/notify"
	"fleetbook/internal/repository"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SweepResult reports one grace-period sweep.
type SweepResult struct {
	Scanned   int      `json:"scanned"`
	Cancelled int      `json:"cancelled"`
	Failed    []string `json:"failed,omitempty"`
}

// SweepOverdue auto-cancels pending reservations whose pickup time plus the grace
// period is before now, unless a shop or admin overrode them. Candidates are read in
// small batches and each one transitions in its own transaction that re-checks the
// status, the override flag and the deadline, so a concurrent payment or override
// always wins over the sweep. Per-reservation failures are collected, not fatal.
func (s *ReservationService) SweepOverdue(ctx context.Context, now time.Time) (SweepResult, error) {
	deadline := now.Add(-s.opts.GracePeriod)
	var result SweepResult
	var errs error

	afterID := ""
	for {
		var ids []string
		err := s.store.View(ctx, func(repo repository.Repository) error {
			var err error
			ids, err = repo.ListOverdueReservationIDs(ctx, deadline, afterID, s.opts.SweepBatchSize)
			return err
		})
		if err != nil {
			return result, multierr.Append(errs, fmt.Errorf("list overdue reservations: %w", err))
		}

		for _, id := range ids {
			result.Scanned++
			cancelled, err := s.autoCancel(ctx, id, deadline, now)
			if err != nil {
				result.Failed = append(result.Failed, id)
				errs = multierr.Append(errs, fmt.Errorf("auto-cancel %s: %w", id, err))
				continue
			}
			if cancelled {
				result.Cancelled++
			}
		}

		if len(ids) < s.opts.SweepBatchSize || ctx.Err() != nil {
			break
		}
		afterID = ids[len(ids)-1]
	}

	if result.Scanned > 0 {
		s.logger.Info("grace-period sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("cancelled", result.Cancelled),
			zap.Int("failed", len(result.Failed)))
	}
	return result, errs
}

func (s *ReservationService) autoCancel(ctx context.Context, id string, deadline, now time.Time) (bool, error) {
	t := &transition{}
	err := s.store.Update(ctx, func(repo repository.Repository) error {
		res, err := repo.GetReservation(ctx, id, true)
		if err != nil {
			return err
		}
		t.res = res
		if res.Status != db.StatusPending || res.AutoCancelOverride || !res.PickupAt.Before(deadline) {
			return nil
		}

		at := now.UTC()
		by := auth.SystemActor.ID
		res.Status = db.StatusAutoCancelled
		res.CancelledAt = &at
		res.CancelledBy = &by
		res.UpdatedAt = at
		t.changed, t.event = true, notify.EventAutoCancelled

		if err := repo.UpdateReservation(ctx, res); err != nil {
			return err
		}
		return s.calendar.Release(ctx, repo, res)
	})
	if err != nil {
		return false, err
	}
	s.finish(ctx, t)
	return t.changed, nil
}

// CompleteFinished marks confirmed reservations whose last day has passed as
// completed. Returns how many transitioned.
func (s *ReservationService) CompleteFinished(ctx context.Context, now time.Time) (int, error) {
	today := interval.Day(now)
	var ids []string
	err := s.store.View(ctx, func(repo repository.Repository) error {
		var err error
		ids, err = repo.ListFinishedReservationIDs(ctx, today)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("list finished reservations: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	completed := 0
	var errs error
	for _, id := range ids {
		t := &transition{}
		err := s.store.Update(ctx, func(repo repository.Repository) error {
			res, err := repo.GetReservation(ctx, id, true)
			if err != nil {
				return err
			}
			t.res = res
			if res.Status != db.StatusConfirmed || res.EndDate.After(today) {
				return nil
			}
			return s.completeTx(ctx, repo, t)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("complete %s: %w", id, err))
			continue
		}
		s.finish(ctx, t)
		if t.changed {
			completed++
		}
	}

	s.logger.Info("finished reservations completed", zap.Int("count", completed), zap.Int("candidates", len(ids)))
	return completed, errs
}
