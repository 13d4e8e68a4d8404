package repository

import (
	"context"
	"fmt"
	"time"

	"fleetbook/internal/db"
	"fleetbook/internal/interval"

	"github.com/lib/pq"
)

func (r *pgRepo) InsertManualBlock(ctx context.Context, b *db.ManualBlock) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO manual_blocks (id, vehicle_id, start_date, end_date, reason, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.VehicleID, b.StartDate, b.EndDate, b.Reason, b.CreatedBy, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting manual block: %w", err)
	}
	return nil
}

func (r *pgRepo) GetManualBlock(ctx context.Context, id string) (*db.ManualBlock, error) {
	var b db.ManualBlock
	err := r.q.QueryRowContext(ctx, `
		SELECT id, vehicle_id, start_date, end_date, reason, created_by, created_at
		FROM manual_blocks WHERE id = $1`, id).
		Scan(&b.ID, &b.VehicleID, &b.StartDate, &b.EndDate, &b.Reason, &b.CreatedBy, &b.CreatedAt)
	if err != nil {
		return nil, notFoundIfNoRows(err, "block %s not found", id)
	}
	b.StartDate, b.EndDate = interval.Day(b.StartDate), interval.Day(b.EndDate)
	return &b, nil
}

func (r *pgRepo) DeleteManualBlock(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM manual_blocks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting manual block %s: %w", id, err)
	}
	return expectOneRow(res, "block %s not found", id)
}

func (r *pgRepo) ListManualBlocks(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.ManualBlock, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, vehicle_id, start_date, end_date, reason, created_by, created_at
		FROM manual_blocks
		WHERE vehicle_id = $1 AND start_date < $3 AND end_date > $2
		ORDER BY start_date`, vehicleID, iv.Start, iv.End)
	if err != nil {
		return nil, fmt.Errorf("error querying manual blocks: %w", err)
	}
	defer rows.Close()

	var blocks []db.ManualBlock
	for rows.Next() {
		var b db.ManualBlock
		if err := rows.Scan(&b.ID, &b.VehicleID, &b.StartDate, &b.EndDate, &b.Reason, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning manual block: %w", err)
		}
		b.StartDate, b.EndDate = interval.Day(b.StartDate), interval.Day(b.EndDate)
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// UpsertBlockedDays writes one row per day. A day that is already blocked gains the
// source tag unless it already carries it; booking wins over manual as the reason.
func (r *pgRepo) UpsertBlockedDays(ctx context.Context, vehicleID string, days []time.Time, source, reason string) error {
	if len(days) == 0 {
		return nil
	}
	query := `
		INSERT INTO blocked_days (vehicle_id, day, reason, sources)
		SELECT $1, d, $3, ARRAY[$4::text]
		FROM unnest($2::date[]) AS d
		ON CONFLICT (vehicle_id, day) DO UPDATE
		SET sources = CASE
				WHEN $4 = ANY(blocked_days.sources) THEN blocked_days.sources
				ELSE array_append(blocked_days.sources, $4::text)
			END,
			reason = CASE
				WHEN blocked_days.reason = 'booking' OR EXCLUDED.reason = 'booking' THEN 'booking'
				ELSE EXCLUDED.reason
			END`
	_, err := r.q.ExecContext(ctx, query, vehicleID, pq.Array(dayStrings(days)), reason, source)
	if err != nil {
		return fmt.Errorf("error upserting blocked days for vehicle %s: %w", vehicleID, err)
	}
	return nil
}

func (r *pgRepo) RemoveBlockedDaySource(ctx context.Context, vehicleID, source string) error {
	_, err := r.q.ExecContext(ctx, `
		UPDATE blocked_days
		SET sources = array_remove(sources, $2::text),
			reason = CASE
				WHEN EXISTS (SELECT 1 FROM unnest(array_remove(sources, $2::text)) s WHERE s LIKE 'reservation:%') THEN 'booking'
				ELSE 'manual'
			END
		WHERE vehicle_id = $1 AND $2 = ANY(sources)`, vehicleID, source)
	if err != nil {
		return fmt.Errorf("error releasing %s on vehicle %s: %w", source, vehicleID, err)
	}
	_, err = r.q.ExecContext(ctx,
		`DELETE FROM blocked_days WHERE vehicle_id = $1 AND cardinality(sources) = 0`, vehicleID)
	if err != nil {
		return fmt.Errorf("error pruning blocked days for vehicle %s: %w", vehicleID, err)
	}
	return nil
}

func (r *pgRepo) DeleteBlockedDays(ctx context.Context, vehicleID string) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM blocked_days WHERE vehicle_id = $1`, vehicleID); err != nil {
		return fmt.Errorf("error clearing blocked days for vehicle %s: %w", vehicleID, err)
	}
	return nil
}

func (r *pgRepo) ListBlockedDays(ctx context.Context, vehicleID string, iv interval.Interval) ([]db.BlockedDay, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT vehicle_id, day, reason, sources
		FROM blocked_days
		WHERE vehicle_id = $1 AND day >= $2 AND day < $3
		ORDER BY day`, vehicleID, iv.Start, iv.End)
	if err != nil {
		return nil, fmt.Errorf("error querying blocked days: %w", err)
	}
	defer rows.Close()

	var days []db.BlockedDay
	for rows.Next() {
		var d db.BlockedDay
		if err := rows.Scan(&d.VehicleID, &d.Day, &d.Reason, pq.Array(&d.Sources)); err != nil {
			return nil, fmt.Errorf("error scanning blocked day: %w", err)
		}
		d.Day = interval.Day(d.Day)
		days = append(days, d)
	}
	return days, rows.Err()
}

func dayStrings(days []time.Time) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(interval.DateLayout)
	}
	return out
}
