// Package notify hands reservation lifecycle events to delivery channels. Delivery
// is best effort: a failed notification never undoes the state change behind it.
package notify

import (
	"context"
	"time"

	"fleetbook/internal/db"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type EventKind string

const (
	EventCreated       EventKind = "created"
	EventConfirmed     EventKind = "confirmed"
	EventCancelled     EventKind = "cancelled"
	EventAutoCancelled EventKind = "auto_cancelled"
	EventOverridden    EventKind = "overridden"
	EventCompleted     EventKind = "completed"
)

// Event is a snapshot of the reservation at the moment of the transition.
type Event struct {
	Kind          EventKind `json:"kind"`
	ReservationID string    `json:"reservation_id"`
	VehicleID     string    `json:"vehicle_id"`
	ShopID        string    `json:"shop_id"`
	Status        string    `json:"status"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	PickupAt      time.Time `json:"pickup_at"`
	TotalPrice    float64   `json:"total_price"`
	GuestName     string    `json:"guest_name,omitempty"`
	GuestEmail    string    `json:"guest_email,omitempty"`
	GuestPhone    string    `json:"guest_phone,omitempty"`
	Language      string    `json:"language,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewEvent(kind EventKind, res *db.Reservation, at time.Time) Event {
	return Event{
		Kind:          kind,
		ReservationID: res.ID,
		VehicleID:     res.VehicleID,
		ShopID:        res.ShopID,
		Status:        res.Status,
		StartDate:     res.StartDate,
		EndDate:       res.EndDate,
		PickupAt:      res.PickupAt,
		TotalPrice:    res.TotalPrice,
		GuestName:     res.GuestName,
		GuestEmail:    res.GuestEmail,
		GuestPhone:    res.GuestPhone,
		Language:      res.Language,
		OccurredAt:    at.UTC(),
	}
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs error
	for _, n := range m {
		errs = multierr.Append(errs, n.Notify(ctx, ev))
	}
	return errs
}

// LogNotifier only records the event.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(ctx context.Context, ev Event) error {
	n.Logger.Info("reservation event",
		zap.String("kind", string(ev.Kind)),
		zap.String("reservation_id", ev.ReservationID),
		zap.String("vehicle_id", ev.VehicleID),
		zap.String("status", ev.Status),
	)
	return nil
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
