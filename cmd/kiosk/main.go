package main

import (
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/KPRAHUL1/Roriri-Cafe/cmd/kiosk/internal/view"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	accountStore "github.com/KPRAHUL1/Roriri-Cafe/internal/account/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	catalogStore "github.com/KPRAHUL1/Roriri-Cafe/internal/catalog/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	checkoutStore "github.com/KPRAHUL1/Roriri-Cafe/internal/checkout/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/config"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	ledgerStore "github.com/KPRAHUL1/Roriri-Cafe/internal/ledger/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/logging"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/pinguard"
)

type model struct {
	accountService  *account.Service
	ledgerService   *ledger.Service
	catalogService  *catalog.Service
	checkoutService *checkout.Service

	currentView View

	scanView     view.ScanModel
	orderView    view.OrderModel
	rechargeView view.RechargeModel
	stockView    view.StockModel
	salesView    view.SalesModel
}

type View int

const (
	ViewMenu     View = 0
	ViewScan     View = 1
	ViewOrder    View = 2
	ViewRecharge View = 3
	ViewStock    View = 4
	ViewSales    View = 5
)

func initialModel() model {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI, so logs go to stderr.
	slog.SetDefault(logging.NewWithWriter(os.Stderr, cfg.App.LogFormat, "warn"))

	db, err := database.New(database.Dialect(cfg.DB.Driver), cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	ledgerSvc := ledger.NewService(ledgerStore.New(db))
	accountSvc := account.NewService(accountStore.New(db), ledgerSvc,
		pinguard.NewMemory(cfg.Kiosk.PINMaxAttempts, cfg.Kiosk.PINLockout))
	catalogSvc := catalog.NewService(catalogStore.New(db))
	checkoutSvc := checkout.NewService(checkoutStore.New(db), ledgerSvc)

	return model{
		accountService:  accountSvc,
		ledgerService:   ledgerSvc,
		catalogService:  catalogSvc,
		checkoutService: checkoutSvc,
		currentView:     ViewMenu,
		scanView:        view.NewScanModel(accountSvc, ledgerSvc),
		stockView:       view.NewStockModel(catalogSvc),
		salesView:       view.NewSalesModel(checkoutSvc),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewScan
				m.scanView = view.NewScanModel(m.accountService, m.ledgerService)

				return m, m.scanView.Init()
			case "2":
				m.currentView = ViewStock
				m.stockView = view.NewStockModel(m.catalogService)

				return m, m.stockView.Init()
			case "3":
				m.currentView = ViewSales
				m.salesView = view.NewSalesModel(m.checkoutService)

				return m, m.salesView.Init()
			}
		}
	case view.OpenOrderMsg:
		m.currentView = ViewOrder
		m.orderView = view.NewOrderModel(m.accountService, m.catalogService, m.checkoutService, msg.Account)

		return m, m.orderView.Init()
	case view.OpenRechargeMsg:
		m.currentView = ViewRecharge
		m.rechargeView = view.NewRechargeModel(m.ledgerService, msg.Account)

		return m, m.rechargeView.Init()
	case view.BackMsg:
		if m.currentView == ViewOrder || m.currentView == ViewRecharge {
			m.currentView = ViewScan
			m.scanView = view.NewScanModel(m.accountService, m.ledgerService)

			return m, m.scanView.Init()
		}

		m.currentView = ViewMenu

		return m, nil
	}

	switch m.currentView {
	case ViewScan:
		var newModel tea.Model
		newModel, cmd = m.scanView.Update(msg)
		m.scanView = newModel.(view.ScanModel)
	case ViewOrder:
		var newModel tea.Model
		newModel, cmd = m.orderView.Update(msg)
		m.orderView = newModel.(view.OrderModel)
	case ViewRecharge:
		var newModel tea.Model
		newModel, cmd = m.rechargeView.Update(msg)
		m.rechargeView = newModel.(view.RechargeModel)
	case ViewStock:
		var newModel tea.Model
		newModel, cmd = m.stockView.Update(msg)
		m.stockView = newModel.(view.StockModel)
	case ViewSales:
		var newModel tea.Model
		newModel, cmd = m.salesView.Update(msg)
		m.salesView = newModel.(view.SalesModel)
	}

	return m, cmd
}

type screen interface {
	View() string
	Title() string
	ShortHelp() string
}

func (m model) View() string {
	var s screen

	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			"Roriri Cafe Kiosk\n\n" +
				"1. Scan Account\n" +
				"2. Stock\n" +
				"3. Sales\n\n" +
				"q. Quit",
		)
	case ViewScan:
		s = m.scanView
	case ViewOrder:
		s = m.orderView
	case ViewRecharge:
		s = m.rechargeView
	case ViewStock:
		s = m.stockView
	case ViewSales:
		s = m.salesView
	default:
		return "Unknown View"
	}

	title := lipgloss.NewStyle().Bold(true).Padding(0, 1).Render(s.Title())
	help := lipgloss.NewStyle().Faint(true).Padding(0, 1).Render(s.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left, title, s.View(), help)
}

func main() {
	p := tea.NewProgram(initialModel(), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		slog.Error("failed to run kiosk", "error", err)
		os.Exit(1)
	}
}
