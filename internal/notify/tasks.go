package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeReservationNotify = "reservation:notify"

// NewNotifyTask wraps ev in a queue task.
func NewNotifyTask(ev Event) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReservationNotify, payload), nil
}

// Enqueuer is the part of *asynq.Client the notifier needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskNotifier queues events for the worker instead of delivering them inline, so a
// slow mail provider never holds a request open.
type TaskNotifier struct {
	client Enqueuer
	logger *zap.Logger
}

func NewTaskNotifier(client Enqueuer, logger *zap.Logger) *TaskNotifier {
	return &TaskNotifier{client: client, logger: logger}
}

func (n *TaskNotifier) Notify(ctx context.Context, ev Event) error {
	task, err := NewNotifyTask(ev)
	if err != nil {
		return fmt.Errorf("build notify task: %w", err)
	}
	info, err := n.client.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("enqueue notify task: %w", err)
	}
	n.logger.Debug("notification queued",
		zap.String("task_id", info.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("reservation_id", ev.ReservationID))
	return nil
}
