package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fleetbook/internal/db"
	"fleetbook/internal/interval"

	"github.com/lib/pq"
)

const reservationColumns = `id, vehicle_id, group_id, shop_id, requester_id, guest_name, guest_email, guest_phone,
	language, start_date, end_date, pickup_at, status, payment_status, deposit_required, deposit_paid,
	auto_cancel_override, daily_rate, days, total_price, idempotency_key, cancelled_by, cancelled_at,
	created_at, updated_at`

func scanReservation(row rowScanner) (*db.Reservation, error) {
	var res db.Reservation
	var groupID, requesterID, idemKey, cancelledBy sql.NullString
	var cancelledAt sql.NullTime
	err := row.Scan(
		&res.ID, &res.VehicleID, &groupID, &res.ShopID, &requesterID, &res.GuestName, &res.GuestEmail, &res.GuestPhone,
		&res.Language, &res.StartDate, &res.EndDate, &res.PickupAt, &res.Status, &res.PaymentStatus,
		&res.DepositRequired, &res.DepositPaid, &res.AutoCancelOverride, &res.DailyRate, &res.Days, &res.TotalPrice,
		&idemKey, &cancelledBy, &cancelledAt, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.StartDate = interval.Day(res.StartDate)
	res.EndDate = interval.Day(res.EndDate)
	res.GroupID = nullableString(groupID)
	res.RequesterID = nullableString(requesterID)
	res.IdempotencyKey = nullableString(idemKey)
	res.CancelledBy = nullableString(cancelledBy)
	if cancelledAt.Valid {
		res.CancelledAt = &cancelledAt.Time
	}
	return &res, nil
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func (r *pgRepo) queryReservations(ctx context.Context, query string, args ...interface{}) ([]db.Reservation, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying reservations: %w", err)
	}
	defer rows.Close()

	var reservations []db.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning reservation: %w", err)
		}
		reservations = append(reservations, *res)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating reservation rows: %w", err)
	}
	return reservations, nil
}

func (r *pgRepo) InsertReservation(ctx context.Context, res *db.Reservation) error {
	query := `
		INSERT INTO reservations
		(id, vehicle_id, group_id, shop_id, requester_id, guest_name, guest_email, guest_phone, language,
		 start_date, end_date, pickup_at, status, payment_status, deposit_required, deposit_paid,
		 auto_cancel_override, daily_rate, days, total_price, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
		RETURNING created_at, updated_at`
	err := r.q.QueryRowContext(ctx, query,
		res.ID,
		res.VehicleID,
		res.GroupID,
		res.ShopID,
		res.RequesterID,
		res.GuestName,
		res.GuestEmail,
		res.GuestPhone,
		res.Language,
		res.StartDate,
		res.EndDate,
		res.PickupAt,
		res.Status,
		res.PaymentStatus,
		res.DepositRequired,
		res.DepositPaid,
		res.AutoCancelOverride,
		res.DailyRate,
		res.Days,
		res.TotalPrice,
		res.IdempotencyKey,
		res.CreatedAt,
		res.UpdatedAt,
	).Scan(&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting reservation: %w", err)
	}
	return nil
}

func (r *pgRepo) GetReservation(ctx context.Context, id string, lock bool) (*db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1` + lockClause(lock)
	res, err := scanReservation(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundIfNoRows(err, "reservation %s not found", id)
	}
	return res, nil
}

func (r *pgRepo) GetReservationByIdempotencyKey(ctx context.Context, key string) (*db.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE idempotency_key = $1`
	res, err := scanReservation(r.q.QueryRowContext(ctx, query, key))
	if err != nil {
		return nil, notFoundIfNoRows(err, "no reservation for idempotency key")
	}
	return res, nil
}

func (r *pgRepo) UpdateReservation(ctx context.Context, res *db.Reservation) error {
	query := `
		UPDATE reservations
		SET status = $2,
			payment_status = $3,
			deposit_paid = $4,
			auto_cancel_override = $5,
			cancelled_by = $6,
			cancelled_at = $7,
			updated_at = $8
		WHERE id = $1`
	result, err := r.q.ExecContext(ctx, query,
		res.ID, res.Status, res.PaymentStatus, res.DepositPaid, res.AutoCancelOverride,
		res.CancelledBy, res.CancelledAt, res.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error updating reservation %s: %w", res.ID, err)
	}
	return expectOneRow(result, "reservation %s not found", res.ID)
}

func (r *pgRepo) ListActiveReservations(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE vehicle_id = $1
			AND status IN ('pending', 'confirmed')
			AND start_date < $3
			AND end_date > $2
		ORDER BY start_date`
	return r.queryReservations(ctx, query, vehicleID, iv.Start, iv.End)
}

func (r *pgRepo) ListCalendarReservations(ctx context.Context, vehicleID string) ([]db.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
		FROM reservations
		WHERE vehicle_id = $1 AND status IN ('pending', 'confirmed')
		ORDER BY start_date`
	return r.queryReservations(ctx, query, vehicleID)
}

func (r *pgRepo) CountReservationsForVehicles(ctx context.Context, vehicleIDs []string) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE vehicle_id = ANY($1)`, pq.Array(vehicleIDs)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting reservations: %w", err)
	}
	return n, nil
}

func (r *pgRepo) InsertOverrideAudit(ctx context.Context, a *db.OverrideAudit) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO override_audits (id, reservation_id, actor_id, actor_role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.ReservationID, a.ActorID, a.ActorRole, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting override audit: %w", err)
	}
	return nil
}

func (r *pgRepo) ListOverrideAudits(ctx context.Context, reservationID string) ([]db.OverrideAudit, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, reservation_id, actor_id, actor_role, created_at
		FROM override_audits WHERE reservation_id = $1 ORDER BY created_at`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("error querying override audits: %w", err)
	}
	defer rows.Close()

	var audits []db.OverrideAudit
	for rows.Next() {
		var a db.OverrideAudit
		if err := rows.Scan(&a.ID, &a.ReservationID, &a.ActorID, &a.ActorRole, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning override audit: %w", err)
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}
