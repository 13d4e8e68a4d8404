// Package repository persists vehicles, groups, reservations and the blocked-day
// calendar. All access goes through a Store: View for reads, Update for writes that
// must be serializable.
package repository

import (
	"context"
	"time"

	"fleetbook/internal/db"
	"fleetbook/internal/interval"
)

// Store runs units of work against the backing storage.
type Store interface {
	// View runs fn without taking exclusive locks. Results may be stale by the
	// time they are used.
	View(ctx context.Context, fn func(Repository) error) error
	// Update runs fn in a serializable transaction. If fn returns an error nothing
	// it wrote is kept.
	Update(ctx context.Context, fn func(Repository) error) error
	Migrate(ctx context.Context) error
	Close() error
}

// ReservationFilter narrows the admin reservation listing.
type ReservationFilter struct {
	ShopID    string
	VehicleID string
	Status    string
	Date      *time.Time // reservations covering this day
	Limit     int
	Offset    int
}

// Repository is the set of queries available inside a unit of work.
// Lookups of a single row return a NotFound AppError when nothing matches.
type Repository interface {
	GetVehicle(ctx context.Context, id string) (*db.Vehicle, error)
	// LockVehicle reads the vehicle and holds its row lock until the unit of work ends.
	LockVehicle(ctx context.Context, id string) (*db.Vehicle, error)
	// LockVehicles locks the given vehicles in id order; missing ids are skipped.
	LockVehicles(ctx context.Context, ids []string) ([]db.Vehicle, error)
	InsertVehicle(ctx context.Context, v *db.Vehicle) error
	UpdateVehicle(ctx context.Context, v *db.Vehicle) error

	GetGroup(ctx context.Context, id string) (*db.VehicleGroup, error)
	InsertGroup(ctx context.Context, g *db.VehicleGroup) error
	DeleteGroup(ctx context.Context, id string) error
	// ListGroupMembers returns members ordered by group_index, locking them when lock is set.
	ListGroupMembers(ctx context.Context, groupID string, lock bool) ([]db.Vehicle, error)

	InsertReservation(ctx context.Context, r *db.Reservation) error
	GetReservation(ctx context.Context, id string, lock bool) (*db.Reservation, error)
	GetReservationByIdempotencyKey(ctx context.Context, key string) (*db.Reservation, error)
	UpdateReservation(ctx context.Context, r *db.Reservation) error
	// ListActiveReservations returns pending and confirmed reservations of the vehicle
	// overlapping iv, ordered by start date.
	ListActiveReservations(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.Reservation, error)
	// ListCalendarReservations returns every active reservation of the vehicle.
	ListCalendarReservations(ctx context.Context, vehicleID string) ([]db.Reservation, error)
	ListOverdueReservationIDs(ctx context.Context, deadline time.Time, afterID string, limit int) ([]string, error)
	ListFinishedReservationIDs(ctx context.Context, today time.Time) ([]string, error)
	CountReservationsForVehicles(ctx context.Context, vehicleIDs []string) (int, error)
	ListReservations(ctx context.Context, f ReservationFilter) ([]db.Reservation, int64, error)

	InsertOverrideAudit(ctx context.Context, a *db.OverrideAudit) error
	ListOverrideAudits(ctx context.Context, reservationID string) ([]db.OverrideAudit, error)

	InsertManualBlock(ctx context.Context, b *db.ManualBlock) error
	GetManualBlock(ctx context.Context, id string) (*db.ManualBlock, error)
	DeleteManualBlock(ctx context.Context, id string) error
	// ListManualBlocks returns blocks of the vehicle overlapping iv, ordered by start date.
	ListManualBlocks(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.ManualBlock, error)

	// UpsertBlockedDays adds source to each day's provenance, creating rows as needed.
	UpsertBlockedDays(ctx context.Context, vehicleID string, days []time.Time, source, reason string) error
	// RemoveBlockedDaySource drops source everywhere on the vehicle's calendar and
	// deletes days left without any source.
	RemoveBlockedDaySource(ctx context.Context, vehicleID, source string) error
	DeleteBlockedDays(ctx context.Context, vehicleID string) error
	ListBlockedDays(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.BlockedDay, error)

	// MarkPaymentEventProcessed records ev and reports false if it was already recorded.
	MarkPaymentEventProcessed(ctx context.Context, ev *db.PaymentEvent) (bool, error)

	GetAccountByEmail(ctx context.Context, email string) (*db.Account, error)
	InsertAccount(ctx context.Context, a *db.Account, password string) error
}
