package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"fleetbook/internal/db"
	apperrors "fleetbook/internal/errors"
	"fleetbook/internal/service"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// Checkout sessions and payment intents carry these metadata keys.
const (
	metadataReservationID = "reservation_id"
	metadataKind          = "kind"
	kindDeposit           = "deposit"
)

// PaymentConfirmer applies provider-agnostic payment signals.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, pc service.PaymentConfirmation) (*db.Reservation, error)
}

type StripeWebhookHandler struct {
	StripeSecret string
	payments     PaymentConfirmer
	logger       *zap.Logger
}

func NewStripeWebhookHandler(stripeSecret string, payments PaymentConfirmer, logger *zap.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		StripeSecret: stripeSecret,
		payments:     payments,
		logger:       logger,
	}
}

func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("error reading webhook body", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.StripeSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.handleEvent(r.Context(), event); err != nil {
		// Stripe retries anything that is not 2xx, which only helps for transient failures.
		if apperrors.IsTransient(err) || apperrors.StatusCode(err) >= http.StatusInternalServerError {
			h.logger.Error("stripe event failed", zap.String("event_id", event.ID), zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		h.logger.Warn("stripe event rejected",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
	w.WriteHeader(http.StatusOK)
}

func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	var reservationID, kind string
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return apperrors.Validation(fmt.Sprintf("error parsing checkout.session: %v", err))
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			h.logger.Info("checkout session not paid yet", zap.String("session_id", sess.ID))
			return nil
		}
		reservationID = sess.Metadata[metadataReservationID]
		if reservationID == "" {
			reservationID = sess.ClientReferenceID
		}
		kind = paymentKind(sess.Metadata)

	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return apperrors.Validation(fmt.Sprintf("error parsing payment_intent: %v", err))
		}
		reservationID = pi.Metadata[metadataReservationID]
		kind = paymentKind(pi.Metadata)

	case "charge.refunded":
		var charge stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
			return apperrors.Validation(fmt.Sprintf("error parsing charge: %v", err))
		}
		reservationID = charge.Metadata[metadataReservationID]
		kind = service.PaymentRefunded

	default:
		h.logger.Debug("unhandled stripe event type", zap.String("type", string(event.Type)))
		return nil
	}

	if reservationID == "" {
		h.logger.Warn("stripe event without reservation id", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
		return nil
	}

	res, err := h.payments.ConfirmPayment(ctx, service.PaymentConfirmation{
		EventID:       event.ID,
		ReservationID: reservationID,
		Kind:          kind,
	})
	if err != nil {
		return err
	}
	h.logger.Info("payment applied",
		zap.String("event_id", event.ID),
		zap.String("reservation_id", res.ID),
		zap.String("status", res.Status))
	return nil
}

func paymentKind(metadata map[string]string) string {
	if metadata[metadataKind] == kindDeposit {
		return service.PaymentDeposit
	}
	return service.PaymentCompleted
}
