package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"
	"fleetbook/internal/notify"
	"fleetbook/internal/repository"

	"go.uber.org/zap"
)

type Guest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// AllocationRequest asks for a reservation on one vehicle, or on any free unit of a
// group when AutoSelect is set.
type AllocationRequest struct {
	VehicleID       string
	GroupID         string
	AutoSelect      bool
	Interval        interval.Interval
	RequesterID     string
	Guest           Guest
	Language        string
	ExpectedTotal   *float64
	PickupAt        *time.Time
	DepositRequired bool
	IdempotencyKey  string
}

type AllocationResult struct {
	Reservation *db.Reservation `json:"reservation"`
	// Replayed is set when the idempotency key matched an earlier reservation.
	Replayed bool `json:"replayed"`
}

func (r *AllocationRequest) validate(today time.Time) error {
	if (r.VehicleID == "") == (r.GroupID == "") {
		return apperrors.Validation("exactly one of vehicle_id or group_id is required")
	}
	if r.GroupID != "" && !r.AutoSelect {
		return apperrors.Validation("group bookings require auto_select")
	}
	if err := validateInterval(r.Interval); err != nil {
		return err
	}
	if r.Interval.Start.Before(today) {
		return apperrors.Validation("start date is in the past")
	}
	if r.RequesterID == "" && strings.TrimSpace(r.Guest.Email) == "" {
		return apperrors.Validation("a requester or a guest email is required")
	}
	if r.PickupAt != nil && !r.Interval.Contains(*r.PickupAt) {
		return apperrors.Validation("pickup time must fall on a reserved day")
	}
	return nil
}

// sameBooking reports whether an existing reservation answers this request, which
// is what makes a replayed idempotency key safe.
func (r *AllocationRequest) sameBooking(res *db.Reservation) bool {
	if !res.StartDate.Equal(r.Interval.Start) || !res.EndDate.Equal(r.Interval.End) {
		return false
	}
	if r.GroupID != "" {
		return res.GroupID != nil && *res.GroupID == r.GroupID
	}
	return res.VehicleID == r.VehicleID
}

// Allocate is the only path that creates reservations. It prices the request,
// then under serializable isolation locks the candidate vehicle(s), re-checks them
// against live data and inserts a pending reservation. Two requests racing for the
// same vehicle and days get exactly one success; the other sees a conflict.
func (s *ReservationService) Allocate(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	if err := req.validate(interval.Day(s.now())); err != nil {
		return nil, err
	}

	quote, err := s.pricer.Quote(ctx, PricingTarget{VehicleID: req.VehicleID, GroupID: req.GroupID}, req.Interval)
	if err != nil {
		return nil, err
	}
	if req.ExpectedTotal != nil && !priceMatches(*req.ExpectedTotal, quote.Total, s.opts.PriceTolerance) {
		return nil, apperrors.PriceMismatch(*req.ExpectedTotal, quote.Total)
	}

	if s.opts.AllocationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.AllocationTimeout)
		defer cancel()
	}

	var result *AllocationResult
	err = withRetry(ctx, s.opts.AllocationRetries, func() error {
		result = nil
		return s.store.Update(ctx, func(repo repository.Repository) error {
			var err error
			result, err = s.allocateTx(ctx, repo, &req, quote)
			return err
		})
	})
	if errors.Is(err, repository.ErrDuplicateIdempotencyKey) {
		// A concurrent request with the same key committed first.
		result, err = s.replay(ctx, &req)
	}
	if err != nil {
		return nil, err
	}

	if !result.Replayed {
		s.logger.Info("reservation allocated",
			zap.String("reservation_id", result.Reservation.ID),
			zap.String("vehicle_id", result.Reservation.VehicleID),
			zap.Stringer("interval", result.Reservation.Interval()))
		s.emit(ctx, notify.EventCreated, result.Reservation)
	}
	return result, nil
}

func (s *ReservationService) allocateTx(ctx context.Context, repo repository.Repository, req *AllocationRequest, quote Quote) (*AllocationResult, error) {
	if req.IdempotencyKey != "" {
		existing, err := repo.GetReservationByIdempotencyKey(ctx, req.IdempotencyKey)
		switch {
		case err == nil:
			if !req.sameBooking(existing) {
				return nil, apperrors.Validation("idempotency key already used for a different booking")
			}
			return &AllocationResult{Reservation: existing, Replayed: true}, nil
		case !apperrors.IsNotFound(err):
			return nil, err
		}
	}

	vehicle, err := s.pickVehicle(ctx, repo, req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	res := &db.Reservation{
		ID:              s.newID(),
		VehicleID:       vehicle.ID,
		ShopID:          vehicle.ShopID,
		GuestName:       strings.TrimSpace(req.Guest.Name),
		GuestEmail:      strings.TrimSpace(req.Guest.Email),
		GuestPhone:      strings.TrimSpace(req.Guest.Phone),
		Language:        req.Language,
		StartDate:       req.Interval.Start,
		EndDate:         req.Interval.End,
		PickupAt:        s.pickupTime(req),
		Status:          db.StatusPending,
		PaymentStatus:   db.PaymentUnpaid,
		DepositRequired: req.DepositRequired,
		DailyRate:       quote.DailyRate,
		Days:            quote.Days,
		TotalPrice:      quote.Total,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.GroupID != "" {
		groupID := req.GroupID
		res.GroupID = &groupID
	}
	if req.RequesterID != "" {
		requester := req.RequesterID
		res.RequesterID = &requester
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		res.IdempotencyKey = &key
	}
	if res.Language == "" {
		res.Language = "en"
	}

	if err := repo.InsertReservation(ctx, res); err != nil {
		return nil, err
	}
	return &AllocationResult{Reservation: res}, nil
}

// pickVehicle locks and re-checks the requested vehicle, or walks the group in
// group_index order and takes the first free unit.
func (s *ReservationService) pickVehicle(ctx context.Context, repo repository.Repository, req *AllocationRequest) (*db.Vehicle, error) {
	if req.VehicleID != "" {
		v, err := repo.LockVehicle(ctx, req.VehicleID)
		if err != nil {
			return nil, err
		}
		ok, err := unitAvailable(ctx, repo, v, req.Interval)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperrors.Unavailable()
		}
		return v, nil
	}

	if _, err := repo.GetGroup(ctx, req.GroupID); err != nil {
		return nil, err
	}
	members, err := repo.ListGroupMembers(ctx, req.GroupID, true)
	if err != nil {
		return nil, err
	}
	for i := range members {
		ok, err := unitAvailable(ctx, repo, &members[i], req.Interval)
		if err != nil {
			return nil, err
		}
		if ok {
			return &members[i], nil
		}
	}
	return nil, apperrors.Unavailable()
}

func (s *ReservationService) pickupTime(req *AllocationRequest) time.Time {
	if req.PickupAt != nil {
		return req.PickupAt.UTC()
	}
	return req.Interval.Start.Add(time.Duration(s.opts.DefaultPickupHour) * time.Hour)
}

func (s *ReservationService) replay(ctx context.Context, req *AllocationRequest) (*AllocationResult, error) {
	var existing *db.Reservation
	err := s.store.View(ctx, func(repo repository.Repository) error {
		var err error
		existing, err = repo.GetReservationByIdempotencyKey(ctx, req.IdempotencyKey)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("replay idempotency key: %w", err)
	}
	if !req.sameBooking(existing) {
		return nil, apperrors.Validation("idempotency key already used for a different booking")
	}
	return &AllocationResult{Reservation: existing, Replayed: true}, nil
}
