package account

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=account
type Repository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
	ListAccounts(ctx context.Context, filter ListFilter) ([]*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error

	FindActiveByIdentifier(ctx context.Context, identifier string) (*Account, error)
	TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error
	SetPINHash(ctx context.Context, id uuid.UUID, hash string) error
}

// Opener inserts a new account and credits its opening balance in one unit
// of work. Nothing is stored when either step fails.
type Opener interface {
	OpenAccount(ctx context.Context, a *Account, opening money.Amount) (*Account, error)
}

// PINGuard counts failed PIN attempts per key.
type PINGuard interface {
	Allowed(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

type Service struct {
	repo    Repository
	opener  Opener
	guard   PINGuard
	pinCost int
	now     func() time.Time
}

type Option func(*Service)

// WithPINCost overrides the bcrypt cost used for new PINs.
func WithPINCost(cost int) Option {
	return func(s *Service) { s.pinCost = cost }
}

func NewService(repo Repository, opener Opener, guard PINGuard, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		opener:  opener,
		guard:   guard,
		pinCost: bcrypt.DefaultCost,
		now:     func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type CreateParams struct {
	UserCode       string
	Name           string
	Email          string
	Phone          string
	Department     string
	Type           Type
	OpeningBalance money.Amount
	PIN            string
}

type UpdateParams struct {
	Name       *string
	Email      *string
	Phone      *string
	Department *string
	Type       *Type
	Status     *Status
}

type ListFilter struct {
	Type            *Type
	IncludeInactive bool
	Limit           int
}

var pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

const maxCodeAttempts = 5

func (s *Service) Create(ctx context.Context, params CreateParams) (*Account, error) {
	params.Name = strings.TrimSpace(params.Name)
	params.Email = strings.ToLower(strings.TrimSpace(params.Email))

	if params.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidAccount)
	}

	if !params.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAccount, params.Type)
	}

	if params.OpeningBalance.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance cannot be negative", ErrInvalidAccount)
	}

	var pinHash string

	if params.PIN != "" {
		hash, err := s.hashPIN(params.PIN)
		if err != nil {
			return nil, err
		}

		pinHash = hash
	}

	now := s.now()
	a := &Account{
		Name:       params.Name,
		Email:      params.Email,
		Phone:      strings.TrimSpace(params.Phone),
		Department: strings.TrimSpace(params.Department),
		Type:       params.Type,
		Status:     StatusActive,
		PINHash:    pinHash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return s.openWithCodes(ctx, a, strings.TrimSpace(params.UserCode), params.OpeningBalance)
}

// openWithCodes regenerates generated codes on a unique violation. A
// caller-supplied user code is never regenerated.
func (s *Service) openWithCodes(ctx context.Context, a *Account, userCode string, opening money.Amount) (*Account, error) {
	for attempt := 1; ; attempt++ {
		a.ID = uuid.New()
		a.QRCode = GenerateQRCode(a.Type, a.Name)
		a.UserCode = userCode

		if a.UserCode == "" {
			a.UserCode = GenerateUserCode(a.Type)
		}

		opened, err := s.opener.OpenAccount(ctx, a, opening)
		if err == nil {
			return opened, nil
		}

		if !errors.Is(err, ErrDuplicate) || userCode != "" || attempt == maxCodeAttempts {
			return nil, err
		}
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Account, error) {
	return s.repo.ListAccounts(ctx, filter)
}

// Update changes profile fields. The balance is not touched.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Account, error) {
	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidAccount)
		}

		a.Name = name
	}

	if params.Email != nil {
		a.Email = strings.ToLower(strings.TrimSpace(*params.Email))
	}

	if params.Phone != nil {
		a.Phone = strings.TrimSpace(*params.Phone)
	}

	if params.Department != nil {
		a.Department = strings.TrimSpace(*params.Department)
	}

	if params.Type != nil {
		if !params.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidAccount, *params.Type)
		}

		a.Type = *params.Type
	}

	if params.Status != nil {
		if *params.Status != StatusActive && *params.Status != StatusInactive {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidAccount, *params.Status)
		}

		a.Status = *params.Status
	}

	a.UpdatedAt = s.now()

	if err := s.repo.UpdateAccount(ctx, a); err != nil {
		return nil, err
	}

	return a, nil
}

// Deactivate hides the account from the kiosk and the ledger. Accounts are
// never deleted.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetStatus(ctx, id, StatusInactive)
}

// Lookup resolves a scanned QR code, user code or email to an active account
// and records the scan time.
func (s *Service) Lookup(ctx context.Context, identifier string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrAccountNotFound
	}

	a, err := s.repo.FindActiveByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.TouchLastUsed(ctx, a.ID, now); err != nil {
		return nil, err
	}

	a.LastUsedAt = &now

	return a, nil
}

func (s *Service) SetPIN(ctx context.Context, id uuid.UUID, pin string) error {
	hash, err := s.hashPIN(pin)
	if err != nil {
		return err
	}

	if err := s.repo.SetPINHash(ctx, id, hash); err != nil {
		return err
	}

	return s.guard.Reset(ctx, id.String())
}

// VerifyPIN checks pin against the stored hash. Failures count towards the
// lockout; a success clears the counter.
func (s *Service) VerifyPIN(ctx context.Context, id uuid.UUID, pin string) (*Account, error) {
	key := id.String()

	allowed, err := s.guard.Allowed(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("checking pin attempts: %w", err)
	}

	if !allowed {
		return nil, ErrPINLocked
	}

	a, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if !a.Active() {
		return nil, ErrAccountNotFound
	}

	if !a.HasPIN() {
		return nil, ErrPINNotSet
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PINHash), []byte(pin)); err != nil {
		if failErr := s.guard.Fail(ctx, key); failErr != nil {
			return nil, fmt.Errorf("recording failed pin attempt: %w", failErr)
		}

		return nil, ErrInvalidPIN
	}

	if err := s.guard.Reset(ctx, key); err != nil {
		return nil, fmt.Errorf("resetting pin attempts: %w", err)
	}

	return a, nil
}

func (s *Service) hashPIN(pin string) (string, error) {
	if !pinPattern.MatchString(pin) {
		return "", fmt.Errorf("%w: must be 4 to 6 digits", ErrInvalidPIN)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.pinCost)
	if err != nil {
		return "", fmt.Errorf("hashing pin: %w", err)
	}

	return string(hash), nil
}

// GenerateUserCode returns a code like STU0042.
func GenerateUserCode(t Type) string {
	return fmt.Sprintf("%s%04d", t.codePrefix(), rand.IntN(10000))
}

// GenerateQRCode returns the payload printed on an account's QR card: the
// first three letters of the type, of the name without spaces, and six digits.
func GenerateQRCode(t Type, name string) string {
	nameCode := strings.ToUpper(strings.Join(strings.Fields(name), ""))
	if r := []rune(nameCode); len(r) > 3 {
		nameCode = string(r[:3])
	}

	prefix := strings.ToUpper(string(t))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}

	return fmt.Sprintf("%s%s%06d", prefix, nameCode, rand.IntN(1000000))
}
