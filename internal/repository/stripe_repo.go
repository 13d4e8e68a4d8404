package repository

import (
	"context"
	"fmt"

	"fleetbook/internal/db"
)

func (r *pgRepo) MarkPaymentEventProcessed(ctx context.Context, ev *db.PaymentEvent) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		INSERT INTO payment_events (event_id, reservation_id, kind, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.EventID, ev.ReservationID, ev.Kind, ev.ProcessedAt)
	if err != nil {
		return false, fmt.Errorf("error recording payment event %s: %w", ev.EventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
