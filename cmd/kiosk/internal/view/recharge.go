package view

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type rechargeState int

const (
	rechargeStateForm rechargeState = iota
	rechargeStateSaving
	rechargeStateResult
)

type rechargeFields struct {
	amount string
	method string
	by     string
	note   string
}

type RechargeModel struct {
	CommonModel
	ledger *ledger.Service

	account *account.Account
	state   rechargeState
	form    *huh.Form
	fields  *rechargeFields
	key     string

	result *ledger.Result
	err    error
}

func NewRechargeModel(l *ledger.Service, acct *account.Account) RechargeModel {
	fields := &rechargeFields{method: "Cash"}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("amount").
				Title("Amount").
				Placeholder("100.00").
				Value(&fields.amount).
				Validate(validateAmount),

			huh.NewSelect[string]().
				Key("method").
				Title("Method").
				Options(huh.NewOptions("Cash", "UPI", "Card")...).
				Value(&fields.method),

			huh.NewInput().
				Key("by").
				Title("Recharged by").
				Placeholder("Counter staff name").
				Value(&fields.by),

			huh.NewInput().
				Key("note").
				Title("Note").
				Value(&fields.note),
		),
	).WithWidth(50).WithShowHelp(false)

	return RechargeModel{
		ledger:  l,
		account: acct,
		form:    form,
		fields:  fields,
		key:     uuid.NewString(),
	}
}

func validateAmount(s string) error {
	a, err := money.Parse(s)
	if err != nil {
		return errors.New("enter an amount like 100 or 99.50")
	}

	if !a.IsPositive() {
		return errors.New("amount must be positive")
	}

	return nil
}

func (m RechargeModel) Title() string { return "Recharge" }

func (m RechargeModel) ShortHelp() string {
	if m.state == rechargeStateResult {
		return "Esc: back"
	}

	return "Enter: next | Esc: cancel"
}

func (m RechargeModel) Init() tea.Cmd {
	return m.form.Init()
}

func (m RechargeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if res, ok := msg.(rechargedMsg); ok {
		m.state = rechargeStateResult
		m.result = res.result
		m.err = res.err

		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		if m.state != rechargeStateSaving {
			return m, Back
		}
	}

	if m.state != rechargeStateForm {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = rechargeStateSaving

	return m, m.saveCmd()
}

func (m RechargeModel) View() string {
	switch m.state {
	case rechargeStateSaving:
		return frame.Render("Saving recharge...")
	case rechargeStateResult:
		if m.err != nil {
			return frame.Render(errorText.Render(fmt.Sprintf("Error: %v", m.err)))
		}

		e := m.result.Entry

		return frame.Render(lipgloss.JoinVertical(lipgloss.Left,
			okText.Render("Recharge complete"),
			"",
			fmt.Sprintf("%s: %s -> %s", m.account.Name, FormatAmount(e.BalanceBefore), activeStyle(FormatAmount(e.BalanceAfter))),
			faint.Render(e.Description),
		))
	}

	header := fmt.Sprintf("Recharge %s (%s)  balance %s", m.account.Name, m.account.UserCode, FormatAmount(m.account.Balance))

	return frame.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", m.form.View()))
}

type rechargedMsg struct {
	result *ledger.Result
	err    error
}

func (m RechargeModel) saveCmd() tea.Cmd {
	params := ledger.CreditParams{
		AccountID:      m.account.ID,
		Amount:         money.MustParse(m.fields.amount),
		Method:         m.fields.method,
		RechargedBy:    m.fields.by,
		Note:           m.fields.note,
		IdempotencyKey: m.key,
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		res, err := m.ledger.Credit(ctx, params)

		return rechargedMsg{result: res, err: err}
	}
}
