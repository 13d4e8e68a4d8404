package db

import (
	"time"

	"fleetbook/internal/interval"
)

// Reservation statuses.
const (
	StatusPending       = "pending"
	StatusConfirmed     = "confirmed"
	StatusCancelled     = "cancelled"
	StatusAutoCancelled = "auto_cancelled"
	StatusCompleted     = "completed"
)

// Payment statuses.
const (
	PaymentUnpaid      = "unpaid"
	PaymentDepositPaid = "deposit_paid"
	PaymentPaid        = "paid"
	PaymentRefunded    = "refunded"
)

// Blocked day reasons.
const (
	BlockReasonBooking = "booking"
	BlockReasonManual  = "manual"
)

type Vehicle struct {
	ID             string    `json:"id"`
	ShopID         string    `json:"shop_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Category       string    `json:"category"`
	IsAvailable    bool      `json:"is_available"`
	PricePerDay    float64   `json:"price_per_day"`
	GroupID        *string   `json:"group_id,omitempty"`
	GroupIndex     int       `json:"group_index,omitempty"`
	IsGroupPrimary bool      `json:"is_group_primary"`
	DisplayID      string    `json:"display_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (v *Vehicle) InGroup() bool {
	return v.GroupID != nil && *v.GroupID != ""
}

type VehicleGroup struct {
	ID            string    `json:"id"`
	ShopID        string    `json:"shop_id"`
	Name          string    `json:"name"`
	NamePattern   string    `json:"name_pattern,omitempty"`
	TotalQuantity int       `json:"total_quantity"`
	CreatedAt     time.Time `json:"created_at"`
}

type Reservation struct {
	ID                 string     `json:"id"`
	VehicleID          string     `json:"vehicle_id"`
	GroupID            *string    `json:"group_id,omitempty"`
	ShopID             string     `json:"shop_id"`
	RequesterID        *string    `json:"requester_id,omitempty"`
	GuestName          string     `json:"guest_name,omitempty"`
	GuestEmail         string     `json:"guest_email,omitempty"`
	GuestPhone         string     `json:"guest_phone,omitempty"`
	Language           string     `json:"language,omitempty"`
	StartDate          time.Time  `json:"start_date"`
	EndDate            time.Time  `json:"end_date"`
	PickupAt           time.Time  `json:"pickup_at"`
	Status             string     `json:"status"`
	PaymentStatus      string     `json:"payment_status"`
	DepositRequired    bool       `json:"deposit_required"`
	DepositPaid        bool       `json:"deposit_paid"`
	AutoCancelOverride bool       `json:"auto_cancel_override"`
	DailyRate          float64    `json:"daily_rate"`
	Days               int        `json:"days"`
	TotalPrice         float64    `json:"total_price"`
	IdempotencyKey     *string    `json:"-"`
	CancelledBy        *string    `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (r *Reservation) Interval() interval.Interval {
	return interval.Interval{Start: r.StartDate, End: r.EndDate}
}

// IsActive is true for statuses that hold the vehicle.
func (r *Reservation) IsActive() bool {
	return IsActiveStatus(r.Status)
}

// IsTerminal is true once no further transition is possible.
func (r *Reservation) IsTerminal() bool {
	switch r.Status {
	case StatusCancelled, StatusAutoCancelled, StatusCompleted:
		return true
	}
	return false
}

// LocksCalendar decides whether the reservation belongs in the blocked-day index:
// paid, or confirmed with a deposit.
func (r *Reservation) LocksCalendar() bool {
	if !r.IsActive() {
		return false
	}
	return r.PaymentStatus == PaymentPaid || (r.Status == StatusConfirmed && r.DepositPaid)
}

func IsActiveStatus(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// ManualBlock is a seller-entered unavailability range.
type ManualBlock struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicle_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Reason    string    `json:"reason,omitempty"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (b *ManualBlock) Interval() interval.Interval {
	return interval.Interval{Start: b.StartDate, End: b.EndDate}
}

// BlockedDay is one row of the denormalized calendar. Sources holds the provenance
// tags ("reservation:<id>", "manual:<id>") that keep the day blocked.
type BlockedDay struct {
	VehicleID string    `json:"vehicle_id"`
	Day       time.Time `json:"day"`
	Reason    string    `json:"reason"`
	Sources   []string  `json:"sources"`
}

type OverrideAudit struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id"`
	ActorID       string    `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	CreatedAt     time.Time `json:"created_at"`
}

type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	ShopID       string    `json:"shop_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PaymentEvent records a processed provider event so redelivery is a no-op.
type PaymentEvent struct {
	EventID       string    `json:"event_id"`
	ReservationID string    `json:"reservation_id"`
	Kind          string    `json:"kind"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// ReservationSource builds the provenance tag of a reservation.
func ReservationSource(id string) string { return "reservation:" + id }

// ManualSource builds the provenance tag of a manual block.
func ManualSource(id string) string { return "manual:" + id }
