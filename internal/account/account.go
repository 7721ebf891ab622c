package account

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

var (
	// ErrAccountNotFound covers accounts that do not exist and accounts that
	// are inactive.
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidAccount  = errors.New("invalid account")
	ErrDuplicate       = errors.New("account already exists")
	ErrInvalidPIN      = errors.New("invalid pin")
	ErrPINNotSet       = errors.New("pin not set")
	ErrPINLocked       = errors.New("pin locked after too many failed attempts")
)

// Type is the category of campus user an account belongs to.
type Type string

const (
	TypeStudent  Type = "Student"
	TypeEmployee Type = "Employee"
	TypeStaff    Type = "Staff"
	TypeVisitor  Type = "Visitor"
)

func (t Type) Valid() bool {
	switch t {
	case TypeStudent, TypeEmployee, TypeStaff, TypeVisitor:
		return true
	}

	return false
}

// codePrefix is the three-letter prefix of generated user codes.
func (t Type) codePrefix() string {
	switch t {
	case TypeStudent:
		return "STU"
	case TypeEmployee:
		return "EMP"
	case TypeStaff:
		return "STF"
	}

	return "VST"
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Account is a prepaid canteen account. Balance only moves through the ledger.
type Account struct {
	ID         uuid.UUID
	UserCode   string
	QRCode     string
	Name       string
	Email      string
	Phone      string
	Department string
	Type       Type
	Status     Status
	Balance    money.Amount
	PINHash    string
	LastUsedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (a *Account) Active() bool { return a.Status == StatusActive }

func (a *Account) HasPIN() bool { return a.PINHash != "" }
