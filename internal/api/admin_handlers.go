package api

import (
	"net/http"
	"strconv"
	"time"

	"fleetbook/internal/auth"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/interval"
	"fleetbook/internal/repository"
	"fleetbook/internal/service"

	"github.com/gorilla/mux"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type AdminHandler struct {
	Service *service.ReservationService
	logger  *zap.Logger
	now     func() time.Time
}

func NewAdminHandler(svc *service.ReservationService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{Service: svc, logger: logger, now: time.Now}
}

func (h *AdminHandler) ListReservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repository.ReservationFilter{
		ShopID:    q.Get("shop_id"),
		VehicleID: q.Get("vehicle_id"),
		Status:    q.Get("status"),
	}
	if date := q.Get("date"); date != "" {
		d, err := time.Parse(interval.DateLayout, date)
		if err != nil {
			writeError(w, r, h.logger, apperrors.Validation("date must be YYYY-MM-DD"))
			return
		}
		f.Date = &d
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if f.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	page, err := h.Service.ListReservations(r.Context(), f, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Sweep runs the grace-period sweep now. Per-reservation failures are reported,
// not treated as a failed request.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.SweepOverdue(r.Context(), h.now())
	resp := SweepResponse{Result: result}
	for _, e := range multierr.Errors(err) {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) RebuildCalendar(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	n, err := h.Service.RebuildCalendar(r.Context(), id, auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, RebuildResponse{VehicleID: id, Sources: n})
}

func (h *AdminHandler) OverrideHistory(w http.ResponseWriter, r *http.Request) {
	audits, err := h.Service.OverrideHistory(r.Context(), mux.Vars(r)["id"], auth.ActorFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, audits)
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperrors.Validation("limit and offset must be non-negative integers")
	}
	return n, nil
}
