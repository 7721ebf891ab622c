package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
)

const (
	Queue = "notifications"

	TaskRecharge = "notify:recharge"
	TaskOrder    = "notify:order"
)

func NewRechargeTask(p RechargePayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskRecharge, data), nil
}

func NewOrderTask(p OrderPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskOrder, data), nil
}

// QueueNotifier hands notifications to the worker through asynq.
type QueueNotifier struct {
	client *asynq.Client
}

func NewQueueNotifier(opt asynq.RedisConnOpt) *QueueNotifier {
	return &QueueNotifier{client: asynq.NewClient(opt)}
}

func (n *QueueNotifier) Recharged(ctx context.Context, acct *account.Account, entry *ledger.Entry) {
	if acct.Email == "" {
		return
	}

	task, err := NewRechargeTask(NewRechargePayload(acct, entry))
	n.enqueue(ctx, TaskRecharge, task, err)
}

func (n *QueueNotifier) OrderPlaced(ctx context.Context, acct *account.Account, order *checkout.Order) {
	if acct.Email == "" {
		return
	}

	task, err := NewOrderTask(NewOrderPayload(acct, order))
	n.enqueue(ctx, TaskOrder, task, err)
}

func (n *QueueNotifier) enqueue(ctx context.Context, typ string, task *asynq.Task, err error) {
	if err == nil {
		_, err = n.client.EnqueueContext(ctx, task, asynq.Queue(Queue), asynq.MaxRetry(3))
	}

	if err != nil {
		slog.Error("failed to enqueue notification", "error", fmt.Errorf("enqueueing %s: %w", typ, err))
	}
}

func (n *QueueNotifier) Close() error {
	return n.client.Close()
}
