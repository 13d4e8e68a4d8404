package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker consumes queued notification tasks and delivers them.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewWorker(redisOpt asynq.RedisClientOpt, sender Sender, logger *zap.Logger) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 10,
		Queues: map[string]int{
			"default": 1,
		},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeReservationNotify, HandleNotifyTask(sender, logger))
	return &Worker{server: srv, mux: mux, logger: logger}
}

// Start runs the worker in the background.
func (w *Worker) Start() error {
	w.logger.Info("starting notification worker")
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func HandleNotifyTask(sender Sender, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var ev Event
		if err := json.Unmarshal(task.Payload(), &ev); err != nil {
			logger.Error("invalid notify payload", zap.Error(err))
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
		if err := Deliver(ctx, sender, ev); err != nil {
			logger.Warn("notification delivery failed",
				zap.String("reservation_id", ev.ReservationID),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
			return err
		}
		return nil
	}
}
