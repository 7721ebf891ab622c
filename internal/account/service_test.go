package account_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type mocks struct {
	repo   *account.MockRepository
	opener *account.MockOpener
	guard  *account.MockPINGuard
}

func newService(t *testing.T) (*account.Service, mocks) {
	ctrl := gomock.NewController(t)
	m := mocks{
		repo:   account.NewMockRepository(ctrl),
		opener: account.NewMockOpener(ctrl),
		guard:  account.NewMockPINGuard(ctrl),
	}

	return account.NewService(m.repo, m.opener, m.guard, account.WithPINCost(bcrypt.MinCost)), m
}

// echo returns the account it was given, as OpenAccount does for a zero
// opening balance.
func echo(_ context.Context, a *account.Account, _ money.Amount) (*account.Account, error) {
	return a, nil
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name      string
		params    account.CreateParams
		setupMock func(m mocks)
		wantErr   error
		check     func(t *testing.T, a *account.Account)
	}{
		{
			name:    "missing name",
			params:  account.CreateParams{Name: "  ", Type: account.TypeStudent},
			wantErr: account.ErrInvalidAccount,
		},
		{
			name:    "unknown type",
			params:  account.CreateParams{Name: "Asha", Type: "Alien"},
			wantErr: account.ErrInvalidAccount,
		},
		{
			name:    "bad pin",
			params:  account.CreateParams{Name: "Asha", Type: account.TypeStudent, PIN: "12"},
			wantErr: account.ErrInvalidPIN,
		},
		{
			name:   "generates codes",
			params: account.CreateParams{Name: "Asha Rao", Email: " Asha@Campus.EDU ", Type: account.TypeStudent},
			setupMock: func(m mocks) {
				m.opener.EXPECT().OpenAccount(gomock.Any(), gomock.Any(), money.Zero).DoAndReturn(echo)
			},
			check: func(t *testing.T, a *account.Account) {
				assert.Regexp(t, `^STU[0-9]{4}$`, a.UserCode)
				assert.Regexp(t, `^STUASH[0-9]{6}$`, a.QRCode)
				assert.Equal(t, "asha@campus.edu", a.Email)
				assert.Equal(t, account.StatusActive, a.Status)
				assert.True(t, a.Balance.IsZero())
				assert.NotEqual(t, uuid.Nil, a.ID)
			},
		},
		{
			name:   "retries generated code on duplicate",
			params: account.CreateParams{Name: "Ravi", Type: account.TypeStaff},
			setupMock: func(m mocks) {
				gomock.InOrder(
					m.opener.EXPECT().OpenAccount(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, account.ErrDuplicate),
					m.opener.EXPECT().OpenAccount(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(echo),
				)
			},
			check: func(t *testing.T, a *account.Account) {
				assert.Regexp(t, `^STF[0-9]{4}$`, a.UserCode)
			},
		},
		{
			name:   "explicit code is not regenerated",
			params: account.CreateParams{UserCode: "STU0001", Name: "Ravi", Type: account.TypeStudent},
			setupMock: func(m mocks) {
				m.opener.EXPECT().OpenAccount(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, account.ErrDuplicate)
			},
			wantErr: account.ErrDuplicate,
		},
		{
			name: "opening balance is credited with the insert",
			params: account.CreateParams{
				Name: "Meena", Type: account.TypeEmployee, OpeningBalance: money.MustParse("50.00"),
			},
			setupMock: func(m mocks) {
				m.opener.EXPECT().
					OpenAccount(gomock.Any(), gomock.Any(), money.MustParse("50.00")).
					DoAndReturn(func(_ context.Context, a *account.Account, amount money.Amount) (*account.Account, error) {
						funded := *a
						funded.Balance = amount

						return &funded, nil
					})
			},
			check: func(t *testing.T, a *account.Account) {
				assert.Equal(t, "50.00", a.Balance.String())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			a, err := svc.Create(context.Background(), tt.params)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			tt.check(t, a)
		})
	}
}

func TestService_Update(t *testing.T) {
	id := uuid.New()

	t.Run("applies fields", func(t *testing.T) {
		svc, m := newService(t)
		m.repo.EXPECT().GetAccount(gomock.Any(), id).
			Return(&account.Account{ID: id, Name: "Old", Type: account.TypeStudent, Balance: 500}, nil)
		m.repo.EXPECT().UpdateAccount(gomock.Any(), gomock.Any()).Return(nil)

		a, err := svc.Update(context.Background(), id, account.UpdateParams{
			Name:       new("New Name"),
			Department: new("CSE"),
			Type:       new(account.TypeStaff),
		})
		require.NoError(t, err)
		assert.Equal(t, "New Name", a.Name)
		assert.Equal(t, "CSE", a.Department)
		assert.Equal(t, account.TypeStaff, a.Type)
		assert.Equal(t, money.FromMinor(500), a.Balance)
	})

	t.Run("not found", func(t *testing.T) {
		svc, m := newService(t)
		m.repo.EXPECT().GetAccount(gomock.Any(), id).Return(nil, account.ErrAccountNotFound)

		_, err := svc.Update(context.Background(), id, account.UpdateParams{Name: new("x")})
		assert.ErrorIs(t, err, account.ErrAccountNotFound)
	})

	t.Run("invalid status", func(t *testing.T) {
		svc, m := newService(t)
		m.repo.EXPECT().GetAccount(gomock.Any(), id).Return(&account.Account{ID: id, Name: "A"}, nil)

		_, err := svc.Update(context.Background(), id, account.UpdateParams{Status: new(account.Status("frozen"))})
		assert.ErrorIs(t, err, account.ErrInvalidAccount)
	})
}

func TestService_Lookup(t *testing.T) {
	t.Run("touches last used", func(t *testing.T) {
		svc, m := newService(t)
		id := uuid.New()

		m.repo.EXPECT().FindActiveByIdentifier(gomock.Any(), "STU0042").
			Return(&account.Account{ID: id, UserCode: "STU0042"}, nil)
		m.repo.EXPECT().TouchLastUsed(gomock.Any(), id, gomock.Any()).Return(nil)

		a, err := svc.Lookup(context.Background(), " STU0042 ")
		require.NoError(t, err)
		assert.NotNil(t, a.LastUsedAt)
	})

	t.Run("empty identifier", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.Lookup(context.Background(), "")
		assert.ErrorIs(t, err, account.ErrAccountNotFound)
	})
}

func TestService_VerifyPIN(t *testing.T) {
	id := uuid.New()
	hash, err := bcrypt.GenerateFromPassword([]byte("1234"), bcrypt.MinCost)
	require.NoError(t, err)

	active := func() *account.Account {
		return &account.Account{ID: id, Status: account.StatusActive, PINHash: string(hash)}
	}

	tests := []struct {
		name      string
		pin       string
		setupMock func(m mocks)
		wantErr   error
	}{
		{
			name: "correct pin resets counter",
			pin:  "1234",
			setupMock: func(m mocks) {
				m.guard.EXPECT().Allowed(gomock.Any(), id.String()).Return(true, nil)
				m.repo.EXPECT().GetAccount(gomock.Any(), id).Return(active(), nil)
				m.guard.EXPECT().Reset(gomock.Any(), id.String()).Return(nil)
			},
		},
		{
			name: "wrong pin counts a failure",
			pin:  "9999",
			setupMock: func(m mocks) {
				m.guard.EXPECT().Allowed(gomock.Any(), id.String()).Return(true, nil)
				m.repo.EXPECT().GetAccount(gomock.Any(), id).Return(active(), nil)
				m.guard.EXPECT().Fail(gomock.Any(), id.String()).Return(nil)
			},
			wantErr: account.ErrInvalidPIN,
		},
		{
			name: "locked",
			pin:  "1234",
			setupMock: func(m mocks) {
				m.guard.EXPECT().Allowed(gomock.Any(), id.String()).Return(false, nil)
			},
			wantErr: account.ErrPINLocked,
		},
		{
			name: "no pin set",
			pin:  "1234",
			setupMock: func(m mocks) {
				m.guard.EXPECT().Allowed(gomock.Any(), id.String()).Return(true, nil)
				m.repo.EXPECT().GetAccount(gomock.Any(), id).
					Return(&account.Account{ID: id, Status: account.StatusActive}, nil)
			},
			wantErr: account.ErrPINNotSet,
		},
		{
			name: "inactive account",
			pin:  "1234",
			setupMock: func(m mocks) {
				m.guard.EXPECT().Allowed(gomock.Any(), id.String()).Return(true, nil)
				inactive := active()
				inactive.Status = account.StatusInactive
				m.repo.EXPECT().GetAccount(gomock.Any(), id).Return(inactive, nil)
			},
			wantErr: account.ErrAccountNotFound,
		},
		{
			name: "guard failure",
			pin:  "1234",
			setupMock: func(m mocks) {
				m.guard.EXPECT().Allowed(gomock.Any(), id.String()).Return(false, errors.New("redis down"))
			},
			wantErr: errors.New("redis down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMock(m)

			a, err := svc.VerifyPIN(context.Background(), id, tt.pin)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, id, a.ID)
		})
	}
}

func TestService_SetPIN(t *testing.T) {
	id := uuid.New()

	t.Run("stores hash", func(t *testing.T) {
		svc, m := newService(t)
		m.repo.EXPECT().SetPINHash(gomock.Any(), id, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, hash string) error {
				assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("482913")))
				return nil
			})
		m.guard.EXPECT().Reset(gomock.Any(), id.String()).Return(nil)

		require.NoError(t, svc.SetPIN(context.Background(), id, "482913"))
	})

	for _, pin := range []string{"", "123", "1234567", "12a4"} {
		t.Run("rejects "+pin, func(t *testing.T) {
			svc, _ := newService(t)
			assert.ErrorIs(t, svc.SetPIN(context.Background(), id, pin), account.ErrInvalidPIN)
		})
	}
}

func TestGenerateQRCode(t *testing.T) {
	assert.Regexp(t, `^VISJO[0-9]{6}$`, account.GenerateQRCode(account.TypeVisitor, "Jo"))
	assert.Regexp(t, `^EMPKAV[0-9]{6}$`, account.GenerateQRCode(account.TypeEmployee, "ka vitha"))
}
