package account

import (
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type accountResponse struct {
	ID         uuid.UUID      `json:"id"`
	UserCode   string         `json:"user_code"`
	QRCode     string         `json:"qr_code"`
	Name       string         `json:"name"`
	Email      string         `json:"email,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Department string         `json:"department,omitempty"`
	Type       account.Type   `json:"type"`
	Status     account.Status `json:"status"`
	Balance    money.Amount   `json:"balance"`
	HasPIN     bool           `json:"has_pin"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func toResponse(a *account.Account) accountResponse {
	return accountResponse{
		ID:         a.ID,
		UserCode:   a.UserCode,
		QRCode:     a.QRCode,
		Name:       a.Name,
		Email:      a.Email,
		Phone:      a.Phone,
		Department: a.Department,
		Type:       a.Type,
		Status:     a.Status,
		Balance:    a.Balance,
		HasPIN:     a.HasPIN(),
		LastUsedAt: a.LastUsedAt,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func toResponseList(accts []*account.Account) []accountResponse {
	resp := make([]accountResponse, len(accts))
	for i, a := range accts {
		resp[i] = toResponse(a)
	}

	return resp
}

type entryResponse struct {
	ID            uuid.UUID    `json:"id"`
	Seq           int64        `json:"seq"`
	Kind          ledger.Kind  `json:"kind"`
	Amount        money.Amount `json:"amount"`
	BalanceBefore money.Amount `json:"balance_before"`
	BalanceAfter  money.Amount `json:"balance_after"`
	Description   string       `json:"description"`
	Reference     string       `json:"reference,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

func toEntryResponse(e *ledger.Entry) entryResponse {
	return entryResponse{
		ID:            e.ID,
		Seq:           e.Seq,
		Kind:          e.Kind,
		Amount:        e.Amount,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		Description:   e.Description,
		Reference:     e.Reference,
		CreatedAt:     e.CreatedAt,
	}
}

func toEntryResponseList(entries []*ledger.Entry) []entryResponse {
	resp := make([]entryResponse, len(entries))
	for i, e := range entries {
		resp[i] = toEntryResponse(e)
	}

	return resp
}

type operationResponse struct {
	Account  accountResponse `json:"account"`
	Entry    *entryResponse  `json:"entry,omitempty"`
	Replayed bool            `json:"replayed"`
}

func toOperationResponse(res *ledger.Result) operationResponse {
	resp := operationResponse{Account: toResponse(res.Account), Replayed: res.Replayed}

	if res.Entry != nil {
		e := toEntryResponse(res.Entry)
		resp.Entry = &e
	}

	return resp
}

type verifyResponse struct {
	AccountID     uuid.UUID    `json:"account_id"`
	Consistent    bool         `json:"consistent"`
	Entries       int          `json:"entries"`
	StoredBalance money.Amount `json:"stored_balance"`
	LedgerBalance money.Amount `json:"ledger_balance"`
	Credits       money.Amount `json:"credits"`
	Debits        money.Amount `json:"debits"`
	Problems      []string     `json:"problems"`
}

func toVerifyResponse(r *ledger.Report) verifyResponse {
	problems := r.Problems
	if problems == nil {
		problems = []string{}
	}

	return verifyResponse{
		AccountID:     r.AccountID,
		Consistent:    r.Consistent(),
		Entries:       r.Entries,
		StoredBalance: r.StoredBalance,
		LedgerBalance: r.LedgerBalance,
		Credits:       r.Credits,
		Debits:        r.Debits,
		Problems:      problems,
	}
}

type scanResponse struct {
	Account         accountResponse `json:"account"`
	RecentPurchases []entryResponse `json:"recent_purchases"`
}
