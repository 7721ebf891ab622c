// Package notify tells account holders about recharges and orders. Delivery
// is best effort: failures are logged and never reach the caller.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
)

type Notifier interface {
	Recharged(ctx context.Context, acct *account.Account, entry *ledger.Entry)
	OrderPlaced(ctx context.Context, acct *account.Account, order *checkout.Order)
}

// LedgerHook forwards committed recharges to n.
func LedgerHook(n Notifier) ledger.Hook {
	return ledger.HookFunc(func(ctx context.Context, acct *account.Account, entry *ledger.Entry) {
		if entry.Kind == ledger.KindRecharge {
			n.Recharged(ctx, acct, entry)
		}
	})
}

type RechargePayload struct {
	AccountID   uuid.UUID `json:"account_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Amount      string    `json:"amount"`
	Balance     string    `json:"balance"`
	Description string    `json:"description"`
	At          time.Time `json:"at"`
}

func NewRechargePayload(acct *account.Account, entry *ledger.Entry) RechargePayload {
	return RechargePayload{
		AccountID:   acct.ID,
		Name:        acct.Name,
		Email:       acct.Email,
		Amount:      entry.Amount.String(),
		Balance:     entry.BalanceAfter.String(),
		Description: entry.Description,
		At:          entry.CreatedAt,
	}
}

type OrderPayload struct {
	AccountID uuid.UUID `json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	OrderID   uuid.UUID `json:"order_id"`
	Token     string    `json:"token"`
	Items     []string  `json:"items"`
	Total     string    `json:"total"`
	Balance   string    `json:"balance"`
	At        time.Time `json:"at"`
}

func NewOrderPayload(acct *account.Account, order *checkout.Order) OrderPayload {
	items := make([]string, len(order.Items))
	for i, it := range order.Items {
		items[i] = fmt.Sprintf("%d x %s @ %s = %s", it.Quantity, it.ProductName, it.UnitPrice, it.Subtotal())
	}

	return OrderPayload{
		AccountID: acct.ID,
		Name:      acct.Name,
		Email:     acct.Email,
		OrderID:   order.ID,
		Token:     order.Token,
		Items:     items,
		Total:     order.Total.String(),
		Balance:   acct.Balance.String(),
		At:        order.CreatedAt,
	}
}

// Message is a rendered plain-text notification.
type Message struct {
	To      string
	Subject string
	Body    string
}

func (p RechargePayload) Message() Message {
	var b strings.Builder

	fmt.Fprintf(&b, "Hello %s,\n\n", p.Name)
	fmt.Fprintf(&b, "Your canteen account was recharged with %s.\n", p.Amount)
	fmt.Fprintf(&b, "%s\n\n", p.Description)
	fmt.Fprintf(&b, "New balance: %s\n", p.Balance)
	fmt.Fprintf(&b, "Time: %s\n", p.At.Format(time.RFC1123))

	return Message{To: p.Email, Subject: "Recharge of " + p.Amount + " received", Body: b.String()}
}

func (p OrderPayload) Message() Message {
	var b strings.Builder

	fmt.Fprintf(&b, "Hello %s,\n\n", p.Name)
	fmt.Fprintf(&b, "Your order %s is paid. Show this token at the counter.\n\n", p.Token)

	for _, it := range p.Items {
		fmt.Fprintf(&b, "  %s\n", it)
	}

	fmt.Fprintf(&b, "\nTotal: %s\n", p.Total)
	fmt.Fprintf(&b, "Remaining balance: %s\n", p.Balance)

	return Message{To: p.Email, Subject: "Order " + p.Token + " confirmed", Body: b.String()}
}
