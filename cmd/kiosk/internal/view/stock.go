package view

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
)

const importTimeout = 2 * time.Minute

type stockState int

const (
	stockStateBrowse stockState = iota
	stockStateCount
	stockStatePick
)

type StockModel struct {
	CommonModel
	catalog *catalog.Service

	state      stockState
	table      table.Model
	products   []*catalog.Product
	lowOnly    bool
	form       *huh.Form
	count      *string
	filePicker filepicker.Model

	status string
	err    error
}

func NewStockModel(svc *catalog.Service) StockModel {
	t := newTable([]table.Column{
		{Title: "Item", Width: 28},
		{Title: "Category", Width: 14},
		{Title: "Price", Width: 12},
		{Title: "Stock", Width: 6},
		{Title: "Min", Width: 5},
	}, 15)

	fp := filepicker.New()
	fp.CurrentDirectory, _ = os.Getwd()
	fp.AllowedTypes = []string{".csv", ".txt"}
	fp.DirAllowed = false
	fp.FileAllowed = true
	fp.SetHeight(15)

	return StockModel{catalog: svc, table: t, count: new(string), filePicker: fp}
}

func (m StockModel) Title() string { return "Stock" }

func (m StockModel) ShortHelp() string {
	switch m.state {
	case stockStateCount:
		return "Enter: save | Esc: cancel"
	case stockStatePick:
		return "Enter: import file | Esc: cancel"
	}

	return "c: count | i: import sheet | l: low stock only | r: refresh | Esc: back"
}

func (m StockModel) Init() tea.Cmd {
	return m.loadCmd()
}

func (m StockModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stockLoadedMsg:
		m.err = msg.err
		m.products = msg.products
		m.refreshTable()

		return m, nil

	case stockSavedMsg:
		m.state = stockStateBrowse
		m.form = nil
		m.table.Focus()
		m.status = msg.status

		if msg.err != nil {
			m.status = fmt.Sprintf("Error: %v", msg.err)
		}

		return m, m.loadCmd()

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 10)
		return m, nil
	}

	switch m.state {
	case stockStateCount:
		return m.updateCount(msg)
	case stockStatePick:
		return m.updatePick(msg)
	}

	return m.updateBrowse(msg)
}

func (m StockModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			return m, m.loadCmd()
		case "l":
			m.lowOnly = !m.lowOnly
			return m, m.loadCmd()
		case "c":
			return m.enterCount()
		case "i":
			m.state = stockStatePick
			m.table.Blur()

			return m, m.filePicker.Init()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m StockModel) enterCount() (tea.Model, tea.Cmd) {
	p, ok := m.selected()
	if !ok {
		return m, nil
	}

	*m.count = strconv.FormatInt(p.Stock, 10)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("stock").
				Title("Counted stock for " + p.Name).
				Value(m.count).
				Validate(func(s string) error {
					n, err := strconv.ParseInt(s, 10, 64)
					if err != nil || n < 0 {
						return errors.New("enter a whole number, zero or more")
					}

					return nil
				}),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = stockStateCount
	m.table.Blur()

	return m, m.form.Init()
}

func (m StockModel) updateCount(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = stockStateBrowse
		m.form = nil
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

	p, _ := m.selected()
	n, _ := strconv.ParseInt(*m.count, 10, 64)

	return m, m.setStockCmd(p, n)
}

func (m StockModel) updatePick(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = stockStateBrowse
		m.table.Focus()

		return m, nil
	}

	var cmd tea.Cmd
	m.filePicker, cmd = m.filePicker.Update(msg)

	if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
		m.status = "Importing " + path + "..."
		return m, m.importCmd(path)
	}

	return m, cmd
}

func (m StockModel) selected() (*catalog.Product, bool) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.products) {
		return nil, false
	}

	return m.products[idx], true
}

func (m StockModel) View() string {
	if m.err != nil {
		return frame.Render(errorText.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	if m.state == stockStatePick {
		return frame.Render(lipgloss.JoinVertical(lipgloss.Left, "Pick a product sheet", "", m.filePicker.View()))
	}

	filter := "All items"
	if m.lowOnly {
		filter = "Low stock only"
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render("Showing: "+activeStyle(filter)),
		boxed(m.table),
	)

	if m.state == stockStateCount && m.form != nil {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel.Width(48).Render(m.form.View()))
	}

	if m.status != "" {
		content = faint.Render(m.status) + "\n" + content
	}

	return frame.Render(content)
}

func (m *StockModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.products))
	for _, p := range m.products {
		stock := strconv.FormatInt(p.Stock, 10)
		if p.LowStock() {
			stock += "!"
		}

		rows = append(rows, table.Row{p.Name, p.Category, FormatAmount(p.Price), stock, strconv.FormatInt(p.MinStock, 10)})
	}

	m.table.SetRows(rows)
}

type stockLoadedMsg struct {
	products []*catalog.Product
	err      error
}

func (m StockModel) loadCmd() tea.Cmd {
	filter := catalog.ListFilter{LowStock: m.lowOnly}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		products, err := m.catalog.List(ctx, filter)

		return stockLoadedMsg{products: products, err: err}
	}
}

type stockSavedMsg struct {
	status string
	err    error
}

func (m StockModel) setStockCmd(p *catalog.Product, n int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if _, err := m.catalog.SetStock(ctx, p.ID, n); err != nil {
			return stockSavedMsg{err: err}
		}

		return stockSavedMsg{status: fmt.Sprintf("%s stock set to %d", p.Name, n)}
	}
}

func (m StockModel) importCmd(path string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), importTimeout)
		defer cancel()

		f, err := os.Open(path)
		if err != nil {
			return stockSavedMsg{err: err}
		}
		defer f.Close()

		res, err := m.catalog.Import(ctx, f)
		if err != nil {
			return stockSavedMsg{err: err}
		}

		return stockSavedMsg{status: fmt.Sprintf("Imported %d products (%s), %d skipped, %d invalid rows",
			len(res.Imported), res.Charset, len(res.Skipped), len(res.Invalid))}
	}
}
