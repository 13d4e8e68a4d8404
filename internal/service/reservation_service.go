package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fleetbook/internal/auth"
	"fleetbook/internal/cache"
	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/notify"
	"fleetbook/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options are the tunables of the booking engine.
type Options struct {
	GracePeriod       time.Duration
	SweepBatchSize    int
	AllocationTimeout time.Duration
	AllocationRetries int
	PriceTolerance    float64
	DefaultPickupHour int
}

func DefaultOptions() Options {
	return Options{
		GracePeriod:       2 * time.Hour,
		SweepBatchSize:    50,
		AllocationTimeout: 5 * time.Second,
		AllocationRetries: 3,
		PriceTolerance:    0.01,
		DefaultPickupHour: 10,
	}
}

// ReservationService is the booking engine: availability, allocation, the
// reservation lifecycle and fleet grouping all go through it.
type ReservationService struct {
	store    repository.Store
	pricer   Pricer
	notifier notify.Notifier
	authz    auth.Authorizer
	calendar *CalendarIndex
	logger   *zap.Logger
	opts     Options

	now   func() time.Time
	newID func() string
}

type Deps struct {
	Store    repository.Store
	Pricer   Pricer
	Notifier notify.Notifier
	Authz    auth.Authorizer
	Cache    cache.CalendarCache
	Logger   *zap.Logger
}

func NewReservationService(deps Deps, opts Options) *ReservationService {
	if deps.Pricer == nil {
		deps.Pricer = NewDailyRatePricer(deps.Store)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Authz == nil {
		deps.Authz = auth.OwnershipAuthorizer{}
	}
	if deps.Cache == nil {
		deps.Cache = cache.NopCalendarCache{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.SweepBatchSize <= 0 {
		opts.SweepBatchSize = DefaultOptions().SweepBatchSize
	}
	return &ReservationService{
		store:    deps.Store,
		pricer:   deps.Pricer,
		notifier: deps.Notifier,
		authz:    deps.Authz,
		calendar: NewCalendarIndex(deps.Cache, deps.Logger),
		logger:   deps.Logger,
		opts:     opts,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// emit hands an event to the notifier. Failures are logged and never returned.
func (s *ReservationService) emit(ctx context.Context, kind notify.EventKind, res *db.Reservation) {
	if err := s.notifier.Notify(ctx, notify.NewEvent(kind, res, s.now())); err != nil {
		s.logger.Warn("notification failed",
			zap.String("kind", string(kind)),
			zap.String("reservation_id", res.ID),
			zap.Error(err))
	}
}

// withRetry repeats fn while it fails with a retryable error, backing off
// exponentially, up to attempts times in total.
func withRetry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 20 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !apperrors.IsRetryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return apperrors.Transient("allocation timed out", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

// canAccess allows the requester, the owning shop and admins. Guests prove
// ownership with the email they booked with.
func (s *ReservationService) canAccess(actor auth.Actor, res *db.Reservation, guestEmail string) bool {
	if s.authz.CanCancel(actor, res) {
		return true
	}
	return guestEmail != "" && res.GuestEmail != "" && strings.EqualFold(strings.TrimSpace(guestEmail), res.GuestEmail)
}

func (s *ReservationService) GetReservation(ctx context.Context, id string, actor auth.Actor, guestEmail string) (*db.Reservation, error) {
	var res *db.Reservation
	err := s.store.View(ctx, func(repo repository.Repository) error {
		var err error
		res, err = repo.GetReservation(ctx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	if !s.canAccess(actor, res, guestEmail) {
		return nil, apperrors.Forbidden("not allowed to view this reservation")
	}
	return res, nil
}

// ReservationPage is one page of the admin listing.
type ReservationPage struct {
	Total        int64            `json:"total"`
	Limit        int              `json:"limit"`
	Offset       int              `json:"offset"`
	Reservations []db.Reservation `json:"reservations"`
}

// ListReservations lists reservations for admins, or a shop's own reservations.
func (s *ReservationService) ListReservations(ctx context.Context, f repository.ReservationFilter, actor auth.Actor) (*ReservationPage, error) {
	if !actor.IsAdmin() {
		if actor.Role != auth.RoleShop {
			return nil, apperrors.Forbidden("listing reservations requires a shop or admin account")
		}
		f.ShopID = actor.ShopID
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	page := &ReservationPage{Limit: f.Limit, Offset: f.Offset}
	err := s.store.View(ctx, func(repo repository.Repository) error {
		var err error
		page.Reservations, page.Total, err = repo.ListReservations(ctx, f)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	if page.Reservations == nil {
		page.Reservations = []db.Reservation{}
	}
	return page, nil
}
