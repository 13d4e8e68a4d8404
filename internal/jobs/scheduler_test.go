package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetbook/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) SweepOverdue(ctx context.Context, now time.Time) (service.SweepResult, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(service.SweepResult), args.Error(1)
}

func (m *mockRunner) CompleteFinished(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func TestNewSchedulerRejectsBadSpec(t *testing.T) {
	_, err := NewScheduler(&mockRunner{}, Schedules{Sweep: "every now and then", Completion: "@hourly"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewScheduler(&mockRunner{}, Schedules{Sweep: "@every 5m", Completion: "61 * * * *"}, zap.NewNop())
	assert.Error(t, err)
}

func TestSchedulerRegistersBothJobs(t *testing.T) {
	s, err := NewScheduler(&mockRunner{}, Schedules{Sweep: "@every 5m", Completion: "0 3 * * *"}, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 2)
	assert.Equal(t, time.Minute, s.timeout)
}

func TestSchedulerRunsJobsWithCurrentTime(t *testing.T) {
	fixed := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	runner := &mockRunner{}
	runner.On("SweepOverdue", mock.Anything, fixed).
		Return(service.SweepResult{Scanned: 2, Cancelled: 1, Failed: []string{"r2"}}, errors.New("auto-cancel r2: boom")).Once()
	runner.On("CompleteFinished", mock.Anything, fixed).Return(3, nil).Once()

	s, err := NewScheduler(runner, Schedules{Sweep: "@every 5m", Completion: "@hourly", Timeout: time.Second}, zap.NewNop())
	require.NoError(t, err)
	s.now = func() time.Time { return fixed }

	s.runSweep()
	s.runCompletion()
	runner.AssertExpectations(t)
}
