package api

import (
	"encoding/json"
	"net/http"

	apperrors "fleetbook/internal/errors"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError renders any error as {"error", "message", "details"}. Errors that are
// not an AppError are logged and hidden behind a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		logger.Error("unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   string(apperrors.KindInternal),
			Message: "internal server error",
		})
		return
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(err))
	}
	if appErr.Retryable() {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, errorResponse{
		Error:   string(appErr.Kind),
		Message: appErr.Message,
		Details: appErr.Details,
	})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperrors.Validation("invalid request body")
	}
	return nil
}

// guestEmail is how a caller without an account proves a reservation is theirs.
func guestEmail(r *http.Request) string {
	if email := r.Header.Get("X-Guest-Email"); email != "" {
		return email
	}
	return r.URL.Query().Get("email")
}
