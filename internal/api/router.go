package api

import (
	"net/http"

	"fleetbook/internal/auth"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handlers struct {
	Reservations *ReservationHandler
	Fleet        *FleetHandler
	Admin        *AdminHandler
	Auth         *AuthHandler
	Stripe       *StripeWebhookHandler
}

type RouterConfig struct {
	JWT             *auth.JWTManager
	Logger          *zap.Logger
	RateLimitPerMin int
	CORSOrigins     []string
}

func NewRouter(h Handlers, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(requestID, requestLogger(cfg.Logger), rateLimit(cfg.RateLimitPerMin, cfg.Logger), auth.Middleware(cfg.JWT))

	shopOnly := auth.RequireRole(auth.RoleShop, auth.RoleAdmin)
	protect := func(fn http.HandlerFunc) http.Handler { return shopOnly(fn) }

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")

	// Public endpoints; guests identify themselves by the email they booked with
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/availability", h.Reservations.CheckAvailability).Methods("POST")
	api.HandleFunc("/reservations", h.Reservations.CreateReservation).Methods("POST")
	api.HandleFunc("/reservations/{id}", h.Reservations.GetReservation).Methods("GET")
	api.HandleFunc("/reservations/{id}/cancel", h.Reservations.CancelReservation).Methods("POST")
	api.HandleFunc("/vehicles/{id}/calendar", h.Reservations.VehicleCalendar).Methods("GET")
	api.HandleFunc("/groups/{id}", h.Fleet.GetGroup).Methods("GET")
	api.HandleFunc("/auth/login", h.Auth.Login).Methods("POST")
	api.HandleFunc("/accounts", h.Auth.CreateAccount).Methods("POST")
	api.HandleFunc("/stripe/webhook", h.Stripe.HandleWebhook).Methods("POST")

	// Shop endpoints
	api.Handle("/reservations/{id}/override", protect(h.Reservations.OverrideReservation)).Methods("POST")
	api.Handle("/reservations/{id}/deposit", protect(h.Reservations.ConfirmDeposit)).Methods("POST")
	api.Handle("/reservations/{id}/complete", protect(h.Reservations.CompleteReservation)).Methods("POST")
	api.Handle("/vehicles", protect(h.Fleet.CreateVehicle)).Methods("POST")
	api.Handle("/vehicles/{id}/availability", protect(h.Fleet.SetAvailability)).Methods("PUT")
	api.Handle("/vehicles/{id}/blocks", protect(h.Fleet.BlockDates)).Methods("POST")
	api.Handle("/vehicles/{id}/blocks/{blockID}", protect(h.Fleet.UnblockDates)).Methods("DELETE")
	api.Handle("/groups", protect(h.Fleet.ConvertToGroup)).Methods("POST")
	api.Handle("/groups/{id}", protect(h.Fleet.DissolveGroup)).Methods("DELETE")

	// Admin endpoints (shops see their own reservations only)
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(auth.RequireRole(auth.RoleShop, auth.RoleAdmin))
	admin.HandleFunc("/reservations", h.Admin.ListReservations).Methods("GET")
	admin.HandleFunc("/reservations/{id}/overrides", h.Admin.OverrideHistory).Methods("GET")
	admin.HandleFunc("/vehicles/{id}/calendar/rebuild", h.Admin.RebuildCalendar).Methods("POST")
	admin.Handle("/sweep", auth.RequireRole(auth.RoleAdmin)(http.HandlerFunc(h.Admin.Sweep))).Methods("POST")

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Idempotency-Key", "X-Guest-Email", "Stripe-Signature"}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{logger: cfg.Logger}),
		handlers.PrintRecoveryStack(false),
	)
	return recovery(cors(r))
}
