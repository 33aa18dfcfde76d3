package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/ledger-bank/internal/interfaces"
	"github.com/sheikh-saqib/ledger-bank/internal/logger"
	"github.com/sheikh-saqib/ledger-bank/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrUsernameRequired = errors.New("username is required")
	ErrPasswordRequired = errors.New("password is required")
	ErrPasswordTooLong  = errors.New("password must be at most 72 bytes")
	ErrUsernameTooLong  = errors.New("username must be at most 64 characters")
)

const (
	maxUsernameLength = 64
	maxPasswordBytes  = 72
	numberAttempts    = 5
)

// Service registers and authenticates account holders.
type Service struct {
	store           interfaces.AccountStore
	audit           interfaces.AuditLog
	hasher          interfaces.PasswordHasher
	startingBalance decimal.Decimal
	newNumber       func() (string, error)
	now             func() time.Time
}

func NewService(store interfaces.AccountStore, audit interfaces.AuditLog, hasher interfaces.PasswordHasher, startingBalance decimal.Decimal) *Service {
	return &Service{
		store:           store,
		audit:           audit,
		hasher:          hasher,
		startingBalance: startingBalance,
		newNumber:       GenerateAccountNumber,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount registers username with a hashed password and credits the
// starting balance as an opening deposit.
func (s *Service) CreateAccount(ctx context.Context, username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return models.Account{}, err
	}

	logger.Info("account service create account request", logger.Fields{
		"username": username,
	})

	hash, err := s.hasher.Hash(password)
	if err != nil {
		logger.Error("account service hash password failed", err, nil)
		return models.Account{}, err
	}

	for attempt := 1; attempt <= numberAttempts; attempt++ {
		number, err := s.newNumber()
		if err != nil {
			return models.Account{}, err
		}

		now := s.now()
		account := models.Account{
			ID:            uuid.NewString(),
			Username:      username,
			PasswordHash:  hash,
			AccountNumber: number,
			CreatedAt:     now,
		}
		opening := models.LedgerEntry{
			ID:        uuid.NewString(),
			AccountID: account.ID,
			Kind:      models.EntryDeposit,
			Amount:    s.startingBalance,
			CreatedAt: now,
		}

		created, err := s.store.CreateAccount(ctx, account, opening)
		if errors.Is(err, models.ErrDuplicateAccountNumber) {
			logger.Warn("account service account number collision", logger.Fields{
				"attempt": attempt,
			})
			continue
		}
		if err != nil {
			if !errors.Is(err, models.ErrDuplicateUsername) {
				logger.Error("account service create account failed", err, logger.Fields{
					"username": username,
				})
			}
			return models.Account{}, err
		}

		s.record(ctx, created.ID, models.ActionCreatedAccount)
		logger.Info("account service create account success", logger.Fields{
			"accountId":     created.ID,
			"accountNumber": created.AccountNumber,
		})
		return created, nil
	}

	return models.Account{}, fmt.Errorf("%w: no free account number after %d attempts", models.ErrStorage, numberAttempts)
}

// Authenticate returns the account for username when password matches. An
// unknown username and a wrong password fail identically.
func (s *Service) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	username = strings.TrimSpace(username)

	account, err := s.store.GetAccountByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return models.Account{}, models.ErrAuthFailure
	}
	if err != nil {
		logger.Error("account service authenticate lookup failed", err, nil)
		return models.Account{}, err
	}

	ok, err := s.hasher.Verify(account.PasswordHash, password)
	if err != nil {
		logger.Error("account service verify password failed", err, logger.Fields{
			"accountId": account.ID,
		})
		return models.Account{}, models.ErrAuthFailure
	}
	if !ok {
		return models.Account{}, models.ErrAuthFailure
	}

	s.record(ctx, account.ID, models.ActionLoggedIn)
	return account, nil
}

// Logout records the end of a login. Like every audit write it cannot fail
// the user action.
func (s *Service) Logout(ctx context.Context, accountID string) {
	s.record(ctx, accountID, models.ActionLoggedOut)
}

// record appends to the audit log. The log is write-only from here and a
// failed append never fails the user action.
func (s *Service) record(ctx context.Context, accountID, action string) {
	if s.audit == nil {
		return
	}
	err := s.audit.AppendAudit(ctx, models.AuditRecord{
		AccountID: accountID,
		Action:    action,
		CreatedAt: s.now(),
	})
	if err != nil {
		logger.Error("account service append audit failed", err, logger.Fields{
			"accountId": accountID,
			"action":    action,
		})
	}
}

func validateCredentials(username, password string) error {
	if username == "" {
		return ErrUsernameRequired
	}
	if utf8.RuneCountInString(username) > maxUsernameLength {
		return ErrUsernameTooLong
	}
	if password == "" {
		return ErrPasswordRequired
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
