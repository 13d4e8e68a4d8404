package repository

import (
	"context"
	"fmt"

	"fleetbook/internal/db"

	"golang.org/x/crypto/bcrypt"
)

func (r *pgRepo) GetAccountByEmail(ctx context.Context, email string) (*db.Account, error) {
	var a db.Account
	err := r.q.QueryRowContext(ctx,
		`SELECT id, email, password_hash, role, shop_id, created_at FROM accounts WHERE email = $1`, email).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &a.Role, &a.ShopID, &a.CreatedAt)
	if err != nil {
		return nil, notFoundIfNoRows(err, "account %s not found", email)
	}
	return &a, nil
}

func (r *pgRepo) InsertAccount(ctx context.Context, a *db.Account, password string) error {
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	_, err = r.q.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, role, shop_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Email, a.PasswordHash, a.Role, a.ShopID, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("error inserting account %s: %w", a.Email, err)
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	return string(hashed), nil
}
