package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// Handlers wires the notification tasks to m.
func Handlers(m Mailer) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskRecharge, HandleRecharge(m))
	mux.HandleFunc(TaskOrder, HandleOrder(m))

	return mux
}

func HandleRecharge(m Mailer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p RechargePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decoding %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}

		return deliver(ctx, m, p.Message())
	}
}

func HandleOrder(m Mailer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p OrderPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decoding %s: %v: %w", t.Type(), err, asynq.SkipRetry)
		}

		return deliver(ctx, m, p.Message())
	}
}

func deliver(ctx context.Context, m Mailer, msg Message) error {
	if msg.To == "" {
		return nil
	}

	return m.Send(ctx, msg)
}

// NewServer builds the asynq server that drains the notifications queue.
func NewServer(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{Queue: 1},
	})
}
