package view

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
)

const recentPurchases = 5

// OpenOrderMsg and OpenRechargeMsg ask the shell to switch screens for the
// scanned account.
type OpenOrderMsg struct{ Account *account.Account }

type OpenRechargeMsg struct{ Account *account.Account }

type ScanModel struct {
	CommonModel
	accounts *account.Service
	ledger   *ledger.Service

	input   textinput.Model
	account *account.Account
	recent  []*ledger.Entry
	err     error
}

func NewScanModel(accounts *account.Service, l *ledger.Service) ScanModel {
	ti := textinput.New()
	ti.Placeholder = "Scan QR card or type user code"
	ti.CharLimit = 64
	ti.Width = 40
	ti.Focus()

	return ScanModel{accounts: accounts, ledger: l, input: ti}
}

func (m ScanModel) Title() string { return "Scan Account" }

func (m ScanModel) ShortHelp() string {
	if m.account != nil {
		return "o: order | r: recharge | n: next customer | Esc: back"
	}

	return "Enter: look up | Esc: back"
}

func (m ScanModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scannedMsg:
		m.err = msg.err
		m.account = msg.account
		m.recent = msg.recent

		if m.account != nil {
			m.input.Blur()
		}

		return m, nil

	case tea.KeyMsg:
		if m.account != nil {
			return m.updateScanned(msg)
		}

		switch msg.Type {
		case tea.KeyEsc:
			return m, Back
		case tea.KeyEnter:
			return m, m.lookupCmd(m.input.Value())
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)

	return m, cmd
}

func (m ScanModel) updateScanned(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	acct := m.account

	switch msg.String() {
	case "esc":
		return m, Back
	case "o":
		return m, func() tea.Msg { return OpenOrderMsg{Account: acct} }
	case "r":
		return m, func() tea.Msg { return OpenRechargeMsg{Account: acct} }
	case "n":
		m.account = nil
		m.recent = nil
		m.err = nil
		m.input.SetValue("")

		return m, m.input.Focus()
	}

	return m, nil
}

func (m ScanModel) View() string {
	prompt := lipgloss.JoinVertical(lipgloss.Left, "Identifier", m.input.View())

	if m.err != nil {
		return frame.Render(lipgloss.JoinVertical(lipgloss.Left,
			prompt, "", errorText.Render(fmt.Sprintf("Error: %v", m.err))))
	}

	if m.account == nil {
		return frame.Render(prompt)
	}

	return frame.Render(lipgloss.JoinVertical(lipgloss.Left, prompt, "", m.viewAccount()))
}

func (m ScanModel) viewAccount() string {
	a := m.account

	var b strings.Builder
	fmt.Fprintf(&b, "%s  (%s, %s)\n", lipgloss.NewStyle().Bold(true).Render(a.Name), a.UserCode, a.Type)

	if a.Department != "" {
		fmt.Fprintf(&b, "%s\n", a.Department)
	}

	fmt.Fprintf(&b, "\nBalance: %s\n", activeStyle(FormatAmount(a.Balance)))

	if len(m.recent) > 0 {
		b.WriteString("\nRecent purchases\n")

		for _, e := range m.recent {
			fmt.Fprintf(&b, "  %s  %-10s %s\n", FormatTime(e.CreatedAt), FormatAmount(e.Amount), e.Description)
		}
	}

	return panel.Width(64).Render(b.String())
}

type scannedMsg struct {
	account *account.Account
	recent  []*ledger.Entry
	err     error
}

func (m ScanModel) lookupCmd(identifier string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		a, err := m.accounts.Lookup(ctx, identifier)
		if err != nil {
			return scannedMsg{err: err}
		}

		kind := ledger.KindPurchase

		recent, err := m.ledger.History(ctx, a.ID, ledger.HistoryFilter{
			Kind:       &kind,
			Limit:      recentPurchases,
			Descending: true,
		})
		if err != nil {
			return scannedMsg{err: err}
		}

		return scannedMsg{account: a, recent: recent}
	}
}
