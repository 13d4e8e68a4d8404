package repository

import (
	"context"
	"fmt"
	"strconv"

	"fleetbook/internal/db"
)

// ListReservations is the admin listing. It returns one page plus the total match count.
func (r *pgRepo) ListReservations(ctx context.Context, f ReservationFilter) ([]db.Reservation, int64, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if f.ShopID != "" {
		where += " AND shop_id = $" + strconv.Itoa(idx)
		args = append(args, f.ShopID)
		idx++
	}
	if f.VehicleID != "" {
		where += " AND vehicle_id = $" + strconv.Itoa(idx)
		args = append(args, f.VehicleID)
		idx++
	}
	if f.Status != "" {
		where += " AND status = $" + strconv.Itoa(idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Date != nil {
		where += " AND start_date <= $" + strconv.Itoa(idx) + " AND end_date > $" + strconv.Itoa(idx)
		args = append(args, *f.Date)
		idx++
	}

	var total int64
	if err := r.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("error counting reservations: %w", err)
	}

	query := "SELECT " + reservationColumns + " FROM reservations" + where + " ORDER BY start_date DESC, id"
	if f.Limit > 0 {
		query += " LIMIT $" + strconv.Itoa(idx)
		args = append(args, f.Limit)
		idx++
	}
	if f.Offset > 0 {
		query += " OFFSET $" + strconv.Itoa(idx)
		args = append(args, f.Offset)
	}

	reservations, err := r.queryReservations(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return reservations, total, nil
}
