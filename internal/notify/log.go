package notify

import (
	"context"
	"log/slog"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
)

// LogNotifier writes notifications to the log instead of delivering them.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Recharged(ctx context.Context, acct *account.Account, entry *ledger.Entry) {
	n.logger.InfoContext(ctx, "recharge notification",
		"account_id", acct.ID,
		"amount", entry.Amount.String(),
		"balance", entry.BalanceAfter.String(),
	)
}

func (n *LogNotifier) OrderPlaced(ctx context.Context, acct *account.Account, order *checkout.Order) {
	n.logger.InfoContext(ctx, "order notification",
		"account_id", acct.ID,
		"order_id", order.ID,
		"token", order.Token,
		"total", order.Total.String(),
	)
}
