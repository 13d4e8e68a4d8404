package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	apperrors "fleetbook/internal/errors"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestMapError(t *testing.T) {
	t.Run("serialization failure is transient", func(t *testing.T) {
		err := mapError(fmt.Errorf("insert: %w", &pq.Error{Code: pqSerializationFailure}))
		assert.True(t, apperrors.IsTransient(err))
		assert.True(t, apperrors.IsRetryable(err))
	})
	t.Run("deadlock is transient", func(t *testing.T) {
		assert.True(t, apperrors.IsTransient(mapError(&pq.Error{Code: pqDeadlockDetected})))
	})
	t.Run("exclusion violation is unavailable", func(t *testing.T) {
		err := mapError(&pq.Error{Code: pqExclusionViolation, Constraint: "reservations_no_overlap"})
		assert.True(t, apperrors.IsConflict(err))
		assert.Contains(t, err.Error(), apperrors.UnavailableMessage)
	})
	t.Run("idempotency key collision", func(t *testing.T) {
		err := mapError(&pq.Error{Code: pqUniqueViolation, Constraint: idempotencyKeyConstraint})
		assert.True(t, errors.Is(err, ErrDuplicateIdempotencyKey))
	})
	t.Run("other unique violation", func(t *testing.T) {
		assert.True(t, apperrors.IsConflict(mapError(&pq.Error{Code: pqUniqueViolation, Constraint: "accounts_email_key"})))
	})
	t.Run("deadline", func(t *testing.T) {
		assert.True(t, apperrors.IsTransient(mapError(context.DeadlineExceeded)))
	})
	t.Run("app errors pass through", func(t *testing.T) {
		err := apperrors.NotFound("x")
		assert.Same(t, err, mapError(err))
	})
	t.Run("nil", func(t *testing.T) {
		assert.NoError(t, mapError(nil))
	})
}
