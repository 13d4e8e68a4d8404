package repository

import (
	"context"
	"fmt"
	"time"
)

// ListOverdueReservationIDs returns pending, non-overridden reservations whose pickup
// time is before deadline. Pages are keyed on id so a batch that fails to transition
// does not stall the scan.
func (r *pgRepo) ListOverdueReservationIDs(ctx context.Context, deadline time.Time, afterID string, limit int) ([]string, error) {
	query := `
		SELECT id FROM reservations
		WHERE status = 'pending'
			AND NOT auto_cancel_override
			AND pickup_at < $1
			AND id > $2
		ORDER BY id
		LIMIT $3`
	return r.queryIDs(ctx, query, deadline, afterID, limit)
}

// ListFinishedReservationIDs returns confirmed reservations whose last day is over.
func (r *pgRepo) ListFinishedReservationIDs(ctx context.Context, today time.Time) ([]string, error) {
	query := `SELECT id FROM reservations WHERE status = 'confirmed' AND end_date <= $1 ORDER BY id`
	return r.queryIDs(ctx, query, today)
}

func (r *pgRepo) queryIDs(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying reservation ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning reservation ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return ids, nil
}
