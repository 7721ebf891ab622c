package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/export"
)

const exportTimeout = 2 * time.Minute

type salesState int

const (
	salesStateBrowse salesState = iota
	salesStatePath
	salesStateExporting
	salesStateResult
)

type SalesModel struct {
	CommonModel
	orders *checkout.Service

	state   salesState
	period  Period
	table   table.Model
	sales   []*checkout.ProductSales
	form    *huh.Form
	dir     *string
	spinner spinner.Model
	summary string
	err     error
}

func NewSalesModel(orders *checkout.Service) SalesModel {
	t := newTable([]table.Column{
		{Title: "Item", Width: 28},
		{Title: "Sold", Width: 6},
		{Title: "Orders", Width: 7},
		{Title: "Revenue", Width: 14},
	}, 12)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	dir := "./exports"

	return SalesModel{orders: orders, period: PeriodToday, table: t, dir: &dir, spinner: s}
}

func (m SalesModel) Title() string { return "Sales" }

func (m SalesModel) ShortHelp() string {
	switch m.state {
	case salesStatePath:
		return "Enter: export | Esc: cancel"
	case salesStateResult:
		return "Esc: back"
	}

	return "p: period | e: export orders | r: refresh | Esc: back"
}

func (m SalesModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m SalesModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case salesLoadedMsg:
		m.err = msg.err
		m.sales = msg.sales
		m.refreshTable()

		return m, nil

	case exportedMsg:
		m.state = salesStateResult
		m.err = msg.err
		m.summary = msg.summary

		return m, nil
	}

	switch m.state {
	case salesStatePath:
		return m.updatePath(msg)
	case salesStateExporting:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)

		return m, cmd
	case salesStateResult:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
			m.state = salesStateBrowse
			m.err = nil
			m.table.Focus()
		}

		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "p":
			m.period = m.period.Next()
			return m, m.loadCmd()
		case "r":
			return m, m.loadCmd()
		case "e":
			m.form = huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Key("dir").
						Title("Output directory").
						Description("Directory will be created if it doesn't exist").
						Placeholder("./exports").
						Value(m.dir),
				),
			).WithWidth(50).WithShowHelp(false)
			m.state = salesStatePath
			m.table.Blur()

			return m, m.form.Init()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m SalesModel) updatePath(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = salesStateBrowse
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = salesStateExporting

	return m, tea.Batch(m.spinner.Tick, m.exportCmd(*m.dir))
}

func (m SalesModel) View() string {
	switch m.state {
	case salesStatePath:
		return frame.Render(m.form.View())
	case salesStateExporting:
		return frame.Render(m.spinner.View() + " Exporting orders...")
	case salesStateResult:
		if m.err != nil {
			return frame.Render(errorText.Render(fmt.Sprintf("Error: %v", m.err)))
		}

		return frame.Render(lipgloss.JoinVertical(lipgloss.Left, okText.Render("Export complete"), "", m.summary))
	}

	if m.err != nil {
		return frame.Render(errorText.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	units, revenue := checkout.Totals(m.sales)
	header := fmt.Sprintf("[p] Period: %s | %d items sold | revenue %s",
		activeStyle(m.period.String()), units, activeStyle(FormatAmount(revenue)))

	return frame.Render(lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		boxed(m.table),
	))
}

func (m *SalesModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.sales))
	for _, s := range m.sales {
		rows = append(rows, table.Row{
			s.ProductName,
			strconv.FormatInt(s.Quantity, 10),
			strconv.FormatInt(s.Orders, 10),
			FormatAmount(s.Revenue),
		})
	}

	m.table.SetRows(rows)
}

type salesLoadedMsg struct {
	sales []*checkout.ProductSales
	err   error
}

func (m SalesModel) loadCmd() tea.Cmd {
	from, to := m.period.Range(time.Now())

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		sales, err := m.orders.SalesByProduct(ctx, checkout.SalesFilter{From: from, To: to})

		return salesLoadedMsg{sales: sales, err: err}
	}
}

type exportedMsg struct {
	summary string
	err     error
}

func (m SalesModel) exportCmd(dir string) tea.Cmd {
	from, to := m.period.Range(time.Now())

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()

		orders, err := m.orders.List(ctx, checkout.ListFilter{From: from, To: to})
		if err != nil {
			return exportedMsg{err: err}
		}

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return exportedMsg{err: fmt.Errorf("creating %s: %w", dir, err)}
		}

		path := filepath.Join(dir, fmt.Sprintf("orders_%s.csv", time.Now().Format("20060102_150405")))

		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{err: err}
		}
		defer f.Close()

		if err := export.WriteOrdersCSV(f, orders); err != nil {
			return exportedMsg{err: err}
		}

		return exportedMsg{summary: fmt.Sprintf("Wrote %d orders to %s\n\n%s", len(orders), path, export.Summary(orders))}
	}
}
