package view

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type orderState int

const (
	orderStateBrowse orderState = iota
	orderStatePIN
	orderStatePaying
	orderStateReceipt
)

type OrderModel struct {
	CommonModel
	accounts *account.Service
	catalog  *catalog.Service
	orders   *checkout.Service

	account  *account.Account
	state    orderState
	table    table.Model
	products []*catalog.Product
	cart     map[uuid.UUID]int64
	// key is reused while the cart is unchanged so a retried payment cannot
	// charge twice.
	key string

	form *huh.Form
	pin  *string

	receipt *checkout.Receipt
	status  string
	err     error
}

func NewOrderModel(accounts *account.Service, products *catalog.Service, orders *checkout.Service, acct *account.Account) OrderModel {
	t := newTable([]table.Column{
		{Title: "Item", Width: 28},
		{Title: "Category", Width: 14},
		{Title: "Price", Width: 12},
		{Title: "Stock", Width: 6},
		{Title: "Cart", Width: 5},
	}, 12)

	return OrderModel{
		accounts: accounts,
		catalog:  products,
		orders:   orders,
		account:  acct,
		table:    t,
		cart:     make(map[uuid.UUID]int64),
		key:      uuid.NewString(),
		pin:      new(string),
	}
}

func (m OrderModel) Title() string { return "New Order" }

func (m OrderModel) ShortHelp() string {
	switch m.state {
	case orderStatePIN:
		return "Enter: confirm | Esc: cancel"
	case orderStateReceipt:
		return "Esc: done"
	}

	return "+/Enter: add | -: remove | p: pay | Esc: back"
}

func (m OrderModel) Init() tea.Cmd {
	return m.loadProductsCmd()
}

func (m OrderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case orderProductsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.products = msg.products
		m.refreshTable()

		return m, nil

	case paidMsg:
		if msg.err != nil {
			m.state = orderStateBrowse
			m.status = describeCheckoutError(msg.err)
			m.table.Focus()

			return m, m.loadProductsCmd()
		}

		m.state = orderStateReceipt
		m.receipt = msg.receipt

		return m, nil

	case tea.WindowSizeMsg:
		m.table.SetHeight(msg.Height - 14)
		return m, nil
	}

	switch m.state {
	case orderStateBrowse:
		return m.updateBrowse(msg)
	case orderStatePIN:
		return m.updatePIN(msg)
	case orderStateReceipt:
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
			return m, Back
		}
	}

	return m, nil
}

func (m OrderModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "+", "enter":
			m.changeQuantity(1)
			return m, nil
		case "-":
			m.changeQuantity(-1)
			return m, nil
		case "p":
			return m.startPayment()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m *OrderModel) changeQuantity(delta int64) {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.products) {
		return
	}

	p := m.products[idx]

	qty := m.cart[p.ID] + delta
	if qty > p.Stock {
		m.status = fmt.Sprintf("Only %d %s left", p.Stock, p.Name)
		return
	}

	if qty <= 0 {
		delete(m.cart, p.ID)
	} else {
		m.cart[p.ID] = qty
	}

	m.key = uuid.NewString()
	m.status = ""
	m.refreshTable()
}

func (m OrderModel) total() money.Amount {
	var total money.Amount

	for _, p := range m.products {
		total = total.Add(p.Price.Mul(m.cart[p.ID]))
	}

	return total
}

func (m OrderModel) startPayment() (tea.Model, tea.Cmd) {
	if len(m.cart) == 0 {
		m.status = "Cart is empty"
		return m, nil
	}

	if !m.account.HasPIN() {
		m.state = orderStatePaying
		return m, m.payCmd("")
	}

	*m.pin = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("pin").
				Title("PIN for " + m.account.Name).
				EchoMode(huh.EchoModePassword).
				CharLimit(6).
				Value(m.pin),
		),
	).WithWidth(40).WithShowHelp(false)

	m.state = orderStatePIN

	return m, m.form.Init()
}

func (m OrderModel) updatePIN(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = orderStateBrowse
		m.form = nil

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = orderStatePaying

	return m, m.payCmd(*m.pin)
}

func (m OrderModel) View() string {
	if m.err != nil {
		return frame.Render(errorText.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	switch m.state {
	case orderStatePaying:
		return frame.Render("Processing payment...")
	case orderStateReceipt:
		return frame.Render(m.viewReceipt())
	}

	header := fmt.Sprintf("%s  balance %s  |  cart total %s",
		m.account.Name, activeStyle(FormatAmount(m.account.Balance)), activeStyle(FormatAmount(m.total())))

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		boxed(m.table),
	)

	if m.state == orderStatePIN && m.form != nil {
		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel.Width(44).Render(m.form.View()))
	}

	if m.status != "" {
		content = errorText.Render(m.status) + "\n" + content
	}

	return frame.Render(content)
}

func (m OrderModel) viewReceipt() string {
	o := m.receipt.Order

	var b strings.Builder
	fmt.Fprintf(&b, "Pickup token: %s\n\n", activeStyle(o.Token))

	for _, it := range o.Items {
		fmt.Fprintf(&b, "  %2d x %-24s %s\n", it.Quantity, it.ProductName, FormatAmount(it.Subtotal()))
	}

	fmt.Fprintf(&b, "\nTotal:   %s\n", FormatAmount(o.Total))
	fmt.Fprintf(&b, "Balance: %s\n", FormatAmount(m.receipt.Account.Balance))

	return lipgloss.JoinVertical(lipgloss.Left, okText.Render("Order placed"), "", panel.Render(b.String()))
}

func (m *OrderModel) refreshTable() {
	rows := make([]table.Row, 0, len(m.products))
	for _, p := range m.products {
		stock := strconv.FormatInt(p.Stock, 10)
		if p.LowStock() {
			stock += "!"
		}

		inCart := ""
		if qty := m.cart[p.ID]; qty > 0 {
			inCart = strconv.FormatInt(qty, 10)
		}

		rows = append(rows, table.Row{p.Name, p.Category, FormatAmount(p.Price), stock, inCart})
	}

	m.table.SetRows(rows)
}

func describeCheckoutError(err error) string {
	var ibe *ledger.InsufficientBalanceError
	if errors.As(err, &ibe) {
		return fmt.Sprintf("Insufficient balance: short by %s", FormatAmount(ibe.Shortfall()))
	}

	var oos *checkout.OutOfStockError
	if errors.As(err, &oos) {
		return fmt.Sprintf("%s is out of stock (%d left)", oos.Name, oos.Available)
	}

	switch {
	case errors.Is(err, account.ErrInvalidPIN):
		return "Wrong PIN"
	case errors.Is(err, account.ErrPINLocked):
		return "Too many wrong PINs, try again later"
	case errors.Is(err, ledger.ErrTransactionAborted):
		return "Payment did not go through, press p to retry"
	}

	return fmt.Sprintf("Error: %v", err)
}

type orderProductsMsg struct {
	products []*catalog.Product
	err      error
}

func (m OrderModel) loadProductsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		products, err := m.catalog.List(ctx, catalog.ListFilter{})

		return orderProductsMsg{products: products, err: err}
	}
}

type paidMsg struct {
	receipt *checkout.Receipt
	err     error
}

func (m OrderModel) payCmd(pin string) tea.Cmd {
	items := make([]checkout.LineItem, 0, len(m.cart))
	for id, qty := range m.cart {
		items = append(items, checkout.LineItem{ProductID: id, Quantity: qty})
	}

	params := checkout.Params{AccountID: m.account.ID, Items: items, IdempotencyKey: m.key}
	needPIN := m.account.HasPIN()

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		if needPIN {
			if _, err := m.accounts.VerifyPIN(ctx, params.AccountID, pin); err != nil {
				return paidMsg{err: err}
			}
		}

		receipt, err := m.orders.Checkout(ctx, params)

		return paidMsg{receipt: receipt, err: err}
	}
}
