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

// FleetHandler lets shops manage vehicles, manual blocks and groups.
type FleetHandler struct {
	Service *service.ReservationService
	logger  *zap.Logger
}

func NewFleetHandler(svc *service.ReservationService, logger *zap.Logger) *FleetHandler {
	return &FleetHandler{Service: svc, logger: logger}
}

func (h *FleetHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req service.CreateVehicleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	v, err := h.Service.CreateVehicle(r.Context(), req, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *FleetHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req SetAvailabilityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.IsAvailable == nil {
		writeError(w, r, h.logger, apperrors.Validation("is_available is required"))
		return
	}
	v, err := h.Service.SetAvailability(r.Context(), mux.Vars(r)["id"], *req.IsAvailable, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *FleetHandler) BlockDates(w http.ResponseWriter, r *http.Request) {
	var req BlockDatesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	iv, err := interval.Parse(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	block, err := h.Service.BlockDates(r.Context(), mux.Vars(r)["id"], iv, req.Reason, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, block)
}

func (h *FleetHandler) UnblockDates(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.Service.UnblockDates(r.Context(), vars["id"], vars["blockID"], auth.ActorFromContext(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) ConvertToGroup(w http.ResponseWriter, r *http.Request) {
	var req service.ConvertGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	actor := auth.ActorFromContext(r.Context())
	if req.ShopID == "" && actor.Role == auth.RoleShop {
		req.ShopID = actor.ShopID
	}
	out, err := h.Service.ConvertToGroup(r.Context(), req, actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *FleetHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.GetGroup(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *FleetHandler) DissolveGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.DissolveGroup(r.Context(), mux.Vars(r)["id"], auth.ActorFromContext(r.Context())); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
