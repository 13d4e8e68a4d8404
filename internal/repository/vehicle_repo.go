package repository

import (
	"context"
	"database/sql"
	"fmt"

	"fleetbook/internal/db"

	"github.com/lib/pq"
)

const vehicleColumns = `id, shop_id, name, type, category, is_available, price_per_day,
	group_id, group_index, is_group_primary, display_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVehicle(row rowScanner) (*db.Vehicle, error) {
	var v db.Vehicle
	var groupID sql.NullString
	err := row.Scan(&v.ID, &v.ShopID, &v.Name, &v.Type, &v.Category, &v.IsAvailable, &v.PricePerDay,
		&groupID, &v.GroupIndex, &v.IsGroupPrimary, &v.DisplayID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if groupID.Valid {
		v.GroupID = &groupID.String
	}
	return &v, nil
}

func (r *pgRepo) queryVehicles(ctx context.Context, query string, args ...interface{}) ([]db.Vehicle, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []db.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning vehicle: %w", err)
		}
		vehicles = append(vehicles, *v)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating vehicle rows: %w", err)
	}
	return vehicles, nil
}

func (r *pgRepo) getVehicle(ctx context.Context, id string, lock bool) (*db.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = $1` + lockClause(lock)
	v, err := scanVehicle(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, notFoundIfNoRows(err, "vehicle %s not found", id)
	}
	return v, nil
}

func (r *pgRepo) GetVehicle(ctx context.Context, id string) (*db.Vehicle, error) {
	return r.getVehicle(ctx, id, false)
}

func (r *pgRepo) LockVehicle(ctx context.Context, id string) (*db.Vehicle, error) {
	return r.getVehicle(ctx, id, true)
}

func (r *pgRepo) LockVehicles(ctx context.Context, ids []string) ([]db.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	return r.queryVehicles(ctx, query, pq.Array(ids))
}

func (r *pgRepo) InsertVehicle(ctx context.Context, v *db.Vehicle) error {
	query := `
		INSERT INTO vehicles (id, shop_id, name, type, category, is_available, price_per_day,
			group_id, group_index, is_group_primary, display_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.ExecContext(ctx, query,
		v.ID, v.ShopID, v.Name, v.Type, v.Category, v.IsAvailable, v.PricePerDay,
		v.GroupID, v.GroupIndex, v.IsGroupPrimary, v.DisplayID, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting vehicle %s: %w", v.ID, err)
	}
	return nil
}

func (r *pgRepo) UpdateVehicle(ctx context.Context, v *db.Vehicle) error {
	query := `
		UPDATE vehicles
		SET name = $2,
			is_available = $3,
			price_per_day = $4,
			group_id = $5,
			group_index = $6,
			is_group_primary = $7,
			display_id = $8,
			updated_at = $9
		WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query,
		v.ID, v.Name, v.IsAvailable, v.PricePerDay, v.GroupID, v.GroupIndex, v.IsGroupPrimary, v.DisplayID, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error updating vehicle %s: %w", v.ID, err)
	}
	return expectOneRow(res, "vehicle %s not found", v.ID)
}

func (r *pgRepo) GetGroup(ctx context.Context, id string) (*db.VehicleGroup, error) {
	var g db.VehicleGroup
	err := r.q.QueryRowContext(ctx,
		`SELECT id, shop_id, name, name_pattern, total_quantity, created_at FROM vehicle_groups WHERE id = $1`, id).
		Scan(&g.ID, &g.ShopID, &g.Name, &g.NamePattern, &g.TotalQuantity, &g.CreatedAt)
	if err != nil {
		return nil, notFoundIfNoRows(err, "group %s not found", id)
	}
	return &g, nil
}

func (r *pgRepo) InsertGroup(ctx context.Context, g *db.VehicleGroup) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO vehicle_groups (id, shop_id, name, name_pattern, total_quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.ShopID, g.Name, g.NamePattern, g.TotalQuantity, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting group %s: %w", g.ID, err)
	}
	return nil
}

func (r *pgRepo) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM vehicle_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting group %s: %w", id, err)
	}
	return expectOneRow(res, "group %s not found", id)
}

func (r *pgRepo) ListGroupMembers(ctx context.Context, groupID string, lock bool) ([]db.Vehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM vehicles WHERE group_id = $1 ORDER BY group_index` + lockClause(lock)
	return r.queryVehicles(ctx, query, groupID)
}

func expectOneRow(res sql.Result, format string, args ...interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFoundIfNoRows(sql.ErrNoRows, format, args...)
	}
	return nil
}
