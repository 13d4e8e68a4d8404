package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	apperrors "fleetbook/internal/errors"

	"github.com/lib/pq"
)

//go:embed schema.sql
var schema string

const (
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqUniqueViolation      = "23505"
	pqExclusionViolation   = "23P01"
)

const idempotencyKeyConstraint = "reservations_idempotency_key_key"

// ErrDuplicateIdempotencyKey is returned when a concurrent request already
// inserted a reservation with the same idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type PostgresStore struct {
	DB *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// OpenPostgres opens and pings the database at dsn.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return NewPostgresStore(conn), nil
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error applying schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.DB.Close()
}

func (s *PostgresStore) View(ctx context.Context, fn func(Repository) error) error {
	return mapError(fn(&pgRepo{q: s.DB}))
}

func (s *PostgresStore) Update(ctx context.Context, fn func(Repository) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapError(fmt.Errorf("error starting transaction: %w", err))
	}
	if err := fn(&pgRepo{q: tx}); err != nil {
		tx.Rollback()
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("error committing transaction: %w", err))
	}
	return nil
}

// mapError turns driver failures into AppErrors callers can branch on.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Transient("store timeout", err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable:
			return apperrors.Transient("concurrent update, retry", err)
		case pqExclusionViolation:
			return apperrors.Unavailable()
		case pqUniqueViolation:
			if pqErr.Constraint == idempotencyKeyConstraint {
				return fmt.Errorf("%w: %v", ErrDuplicateIdempotencyKey, err)
			}
			return apperrors.Conflict("duplicate record")
		}
	}
	return err
}

type pgRepo struct {
	q querier
}

// lockClause appends FOR UPDATE when the caller wants row locks.
func lockClause(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

func notFoundIfNoRows(err error, format string, args ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound(fmt.Sprintf(format, args...))
	}
	return err
}
