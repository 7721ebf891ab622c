// Package events streams committed ledger entries to Kafka for downstream
// reporting.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
)

type EntryEvent struct {
	EntryID       uuid.UUID   `json:"entry_id"`
	Seq           int64       `json:"seq"`
	AccountID     uuid.UUID   `json:"account_id"`
	UserCode      string      `json:"user_code"`
	Kind          ledger.Kind `json:"kind"`
	AmountMinor   int64       `json:"amount_minor"`
	BalanceBefore int64       `json:"balance_before_minor"`
	BalanceAfter  int64       `json:"balance_after_minor"`
	Description   string      `json:"description"`
	Reference     string      `json:"reference,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func NewEntryEvent(acct *account.Account, e *ledger.Entry) EntryEvent {
	return EntryEvent{
		EntryID:       e.ID,
		Seq:           e.Seq,
		AccountID:     e.AccountID,
		UserCode:      acct.UserCode,
		Kind:          e.Kind,
		AmountMinor:   e.Amount.Minor(),
		BalanceBefore: e.BalanceBefore.Minor(),
		BalanceAfter:  e.BalanceAfter.Minor(),
		Description:   e.Description,
		Reference:     e.Reference,
		CreatedAt:     e.CreatedAt,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event EntryEvent) error
	Close() error
}

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer MessageWriter
}

// NewKafkaPublisher writes asynchronously; delivery errors are logged by the
// writer's completion callback.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return NewPublisherWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				slog.Error("failed to publish ledger events", "count", len(messages), "error", err)
			}
		},
	})
}

func NewPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w}
}

// Publish keys messages by account so one account's entries stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event EntryEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding ledger event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AccountID.String()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("publishing ledger event: %w", err)
	}

	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type Nop struct{}

func (Nop) Publish(context.Context, EntryEvent) error { return nil }
func (Nop) Close() error { return nil }

// New returns a Kafka publisher, or Nop when no brokers are configured.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}

	return NewKafkaPublisher(brokers, topic)
}

// LedgerHook publishes every committed entry.
func LedgerHook(p Publisher) ledger.Hook {
	return ledger.HookFunc(func(ctx context.Context, acct *account.Account, entry *ledger.Entry) {
		if err := p.Publish(ctx, NewEntryEvent(acct, entry)); err != nil {
			slog.Error("failed to publish ledger event", "entry_id", entry.ID, "error", err)
		}
	})
}
