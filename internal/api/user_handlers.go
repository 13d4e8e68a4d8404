package api

import (
	"net/http"

	"fleetbook/internal/auth"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"
	"fleetbook/internal/service"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// ReservationHandler serves the customer-facing booking endpoints.
type ReservationHandler struct {
	Service *service.ReservationService
	logger  *zap.Logger
}

func NewReservationHandler(svc *service.ReservationService, logger *zap.Logger) *ReservationHandler {
	return &ReservationHandler{Service: svc, logger: logger}
}

func (h *ReservationHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	iv, err := interval.Parse(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	target := service.AvailabilityTarget{VehicleID: req.VehicleID, GroupID: req.GroupID}
	out, err := h.Service.CheckAvailability(r.Context(), target, iv)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ReservationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	var req CreateReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	iv, err := interval.Parse(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	actor := auth.ActorFromContext(r.Context())
	alloc := service.AllocationRequest{
		VehicleID:       req.VehicleID,
		GroupID:         req.GroupID,
		AutoSelect:      req.AutoSelect,
		Interval:        iv,
		Guest:           service.Guest{Name: req.GuestName, Email: req.GuestEmail, Phone: req.GuestPhone},
		Language:        req.Language,
		ExpectedTotal:   req.ExpectedTotal,
		PickupAt:        req.PickupAt,
		DepositRequired: req.DepositRequired,
		IdempotencyKey:  r.Header.Get("Idempotency-Key"),
	}
	if !actor.IsGuest() {
		alloc.RequesterID = actor.ID
	}

	out, err := h.Service.Allocate(r.Context(), alloc)
	if err != nil {
		if apperrors.IsConflict(err) {
			err = apperrors.Unavailable()
		}
		writeError(w, r, h.logger, err)
		return
	}

	status, msg := http.StatusCreated, "Reservation created."
	if out.Replayed {
		status, msg = http.StatusOK, "Reservation already exists for this idempotency key."
	}
	writeJSON(w, status, CreateReservationResponse{Reservation: out.Reservation, Replayed: out.Replayed, Message: msg})
}

func (h *ReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := h.Service.GetReservation(r.Context(), id, auth.ActorFromContext(r.Context()), guestEmail(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := h.Service.Cancel(r.Context(), id, auth.ActorFromContext(r.Context()), guestEmail(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) OverrideReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := h.Service.Override(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) ConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := h.Service.ConfirmDeposit(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) CompleteReservation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := h.Service.Complete(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ReservationHandler) VehicleCalendar(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	start, end := r.URL.Query().Get("start"), r.URL.Query().Get("end")
	iv, err := interval.Parse(start, end)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	days, err := h.Service.BlockedDays(r.Context(), id, iv)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, CalendarResponse{VehicleID: id, StartDate: start, EndDate: end, Days: days})
}
