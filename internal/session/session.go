// Package session drives one user's interaction as an explicit state machine.
// A session starts Anonymous, becomes Authenticated on a successful login,
// returns to Anonymous on logout and ends in Closed after Exit.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sheikh-saqib/ledger-bank/internal/models"
	"github.com/shopspring/decimal"
)

type State int

const (
	Anonymous State = iota
	Authenticated
	Closed
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var ErrCommandNotAllowed = errors.New("command not allowed")

// Accounts is the registration and login collaborator.
type Accounts interface {
	CreateAccount(ctx context.Context, username, password string) (models.Account, error)
	Authenticate(ctx context.Context, username, password string) (models.Account, error)
	Logout(ctx context.Context, accountID string)
}

// Bank is the ledger collaborator.
type Bank interface {
	CurrentBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error)
	Transfer(ctx context.Context, senderID, recipientAccountNumber string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Command is one discrete user action.
type Command interface {
	Name() string
	allowedIn(State) bool
}

type (
	CreateAccount struct{ Username, Password string }
	Login         struct{ Username, Password string }
	Exit          struct{}
	CheckBalance  struct{}
	Deposit       struct{ Amount decimal.Decimal }
	Logout        struct{}
)

type Transfer struct {
	Amount                 decimal.Decimal
	RecipientAccountNumber string
}

func (CreateAccount) Name() string { return "create account" }
func (Login) Name() string         { return "login" }
func (Exit) Name() string          { return "exit" }
func (CheckBalance) Name() string  { return "check balance" }
func (Deposit) Name() string       { return "deposit" }
func (Transfer) Name() string      { return "transfer" }
func (Logout) Name() string        { return "logout" }

func (CreateAccount) allowedIn(s State) bool { return s == Anonymous }
func (Login) allowedIn(s State) bool         { return s == Anonymous }
func (Exit) allowedIn(s State) bool          { return s == Anonymous }
func (CheckBalance) allowedIn(s State) bool  { return s == Authenticated }
func (Deposit) allowedIn(s State) bool       { return s == Authenticated }
func (Transfer) allowedIn(s State) bool      { return s == Authenticated }
func (Logout) allowedIn(s State) bool        { return s == Authenticated }

// Result carries what a command produced. Account is set by CreateAccount and
// Login; Balance by CheckBalance, Deposit and Transfer.
type Result struct {
	Account models.Account
	Balance decimal.Decimal
}

type Session struct {
	state    State
	account  models.Account
	accounts Accounts
	bank     Bank
}

func New(accounts Accounts, bank Bank) *Session {
	return &Session{state: Anonymous, accounts: accounts, bank: bank}
}

func (s *Session) State() State { return s.state }

// Account returns the logged-in account, if any.
func (s *Session) Account() (models.Account, bool) {
	return s.account, s.state == Authenticated
}

// Handle runs cmd against the current state. A failed command never changes
// the state.
func (s *Session) Handle(ctx context.Context, cmd Command) (Result, error) {
	if !cmd.allowedIn(s.state) {
		return Result{}, fmt.Errorf("%w: %s while %s", ErrCommandNotAllowed, cmd.Name(), s.state)
	}

	switch c := cmd.(type) {
	case CreateAccount:
		acc, err := s.accounts.CreateAccount(ctx, c.Username, c.Password)
		if err != nil {
			return Result{}, err
		}
		return Result{Account: acc, Balance: acc.Balance}, nil

	case Login:
		acc, err := s.accounts.Authenticate(ctx, c.Username, c.Password)
		if err != nil {
			return Result{}, err
		}
		s.account = acc
		s.state = Authenticated
		return Result{Account: acc}, nil

	case Exit:
		s.state = Closed
		return Result{}, nil

	case CheckBalance:
		bal, err := s.bank.CurrentBalance(ctx, s.account.ID)
		if err != nil {
			return Result{}, err
		}
		return Result{Balance: bal}, nil

	case Deposit:
		bal, err := s.bank.Deposit(ctx, s.account.ID, c.Amount)
		if err != nil {
			return Result{}, err
		}
		return Result{Balance: bal}, nil

	case Transfer:
		bal, err := s.bank.Transfer(ctx, s.account.ID, c.RecipientAccountNumber, c.Amount)
		if err != nil {
			return Result{}, err
		}
		return Result{Balance: bal}, nil

	case Logout:
		s.accounts.Logout(ctx, s.account.ID)
		s.account = models.Account{}
		s.state = Anonymous
		return Result{}, nil
	}

	return Result{}, fmt.Errorf("%w: unknown command %s", ErrCommandNotAllowed, cmd.Name())
}
