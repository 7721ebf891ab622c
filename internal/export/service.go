package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

// OrderLister is the read side of checkout.Service.
type OrderLister interface {
	List(ctx context.Context, filter checkout.ListFilter) ([]*checkout.Order, error)
}

// Service exports order history for the admin panel.
type Service struct {
	orders OrderLister
}

func NewService(orders OrderLister) *Service {
	return &Service{orders: orders}
}

var header = []string{"date", "token", "account_code", "account_name", "items", "total"}

// Export writes the orders matching filter as CSV and returns how many rows
// were written.
func (s *Service) Export(ctx context.Context, w io.Writer, filter checkout.ListFilter) (int, error) {
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("listing orders: %w", err)
	}

	if err := WriteOrdersCSV(w, orders); err != nil {
		return 0, err
	}

	return len(orders), nil
}

func WriteOrdersCSV(w io.Writer, orders []*checkout.Order) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, o := range orders {
		record := []string{
			o.CreatedAt.UTC().Format(time.RFC3339),
			o.Token,
			o.AccountCode,
			o.AccountName,
			o.Summary(),
			o.Total.String(),
		}

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing order %s: %w", o.ID, err)
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}

	return nil
}

// Summary renders a per-day takings report suitable for pasting into an
// email to the canteen manager.
func Summary(orders []*checkout.Order) string {
	type day struct {
		date    string
		count   int
		revenue money.Amount
	}

	var (
		days  []*day
		index = map[string]*day{}
		total money.Amount
	)

	for _, o := range orders {
		key := o.CreatedAt.UTC().Format(time.DateOnly)

		d, ok := index[key]
		if !ok {
			d = &day{date: key}
			index[key] = d
			days = append(days, d)
		}

		d.count++
		d.revenue = d.revenue.Add(o.Total)
		total = total.Add(o.Total)
	}

	var b strings.Builder

	b.WriteString("Canteen sales summary\n\n")

	for _, d := range days {
		fmt.Fprintf(&b, "%s: %d orders, %s\n", d.date, d.count, d.revenue)
	}

	fmt.Fprintf(&b, "\nTotal: %d orders, %s\n", len(orders), total)

	return b.String()
}
