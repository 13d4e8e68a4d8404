package api

import (
	"time"

	"fleetbook/internal/auth"
	"fleetbook/internal/db"
	"fleetbook/internal/service"
)

// Availability
type AvailabilityRequest struct {
	VehicleID string `json:"vehicle_id"`
	GroupID   string `json:"group_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Reservation
type CreateReservationRequest struct {
	VehicleID       string     `json:"vehicle_id"`
	GroupID         string     `json:"group_id"`
	AutoSelect      bool       `json:"auto_select"`
	StartDate       string     `json:"start_date"`
	EndDate         string     `json:"end_date"`
	GuestName       string     `json:"guest_name"`
	GuestEmail      string     `json:"guest_email"`
	GuestPhone      string     `json:"guest_phone"`
	Language        string     `json:"language"`
	ExpectedTotal   *float64   `json:"expected_total"`
	PickupAt        *time.Time `json:"pickup_at"`
	DepositRequired bool       `json:"deposit_required"`
}

type CreateReservationResponse struct {
	Reservation *db.Reservation `json:"reservation"`
	Replayed    bool            `json:"replayed"`
	Message     string          `json:"message"`
}

type CalendarResponse struct {
	VehicleID string          `json:"vehicle_id"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Days      []db.BlockedDay `json:"days"`
}

// Fleet
type SetAvailabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

type BlockDatesRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// Admin
type SweepResponse struct {
	Result service.SweepResult `json:"result"`
	Errors []string            `json:"errors,omitempty"`
}

type RebuildResponse struct {
	VehicleID string `json:"vehicle_id"`
	Sources   int    `json:"sources"`
}

// Auth
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	Actor auth.Actor `json:"actor"`
}
