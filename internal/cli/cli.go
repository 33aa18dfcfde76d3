package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sheikh-saqib/ledger-bank/internal/accounts"
	"github.com/sheikh-saqib/ledger-bank/internal/logger"
	"github.com/sheikh-saqib/ledger-bank/internal/models"
	"github.com/sheikh-saqib/ledger-bank/internal/session"
	"github.com/shopspring/decimal"
)

// errEOF marks the end of input; the loop treats it as Exit.
var errEOF = errors.New("end of input")

// CLI renders the text menus and turns each choice into a session command.
type CLI struct {
	in       *bufio.Scanner
	out      io.Writer
	session  *session.Session
	currency string
}

func New(in io.Reader, out io.Writer, s *session.Session, currency string) *CLI {
	return &CLI{
		in:       bufio.NewScanner(in),
		out:      out,
		session:  s,
		currency: currency,
	}
}

// Run loops until the user exits, input ends or ctx is cancelled.
func (c *CLI) Run(ctx context.Context) error {
	for c.session.State() != session.Closed {
		if err := ctx.Err(); err != nil {
			c.leave(context.WithoutCancel(ctx))
			return err
		}

		var err error
		if c.session.State() == session.Authenticated {
			err = c.accountMenu(ctx)
		} else {
			err = c.mainMenu(ctx)
		}

		if errors.Is(err, errEOF) {
			c.leave(ctx)
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				c.leave(context.WithoutCancel(ctx))
				return ctx.Err()
			}
			return err
		}
	}
	return nil
}

func (c *CLI) mainMenu(ctx context.Context) error {
	c.printf("\n1. Create Account\n2. Login\n3. Exit\n")
	choice, err := c.prompt("Choose an option: ")
	if err != nil {
		return err
	}

	switch choice {
	case "1":
		username, password, err := c.credentials()
		if err != nil {
			return err
		}
		res, err := c.session.Handle(ctx, session.CreateAccount{Username: username, Password: password})
		if err != nil {
			c.report(err)
			return nil
		}
		c.printf("Account creation successful.\n")
		c.printf("Your account number is: %s\n", res.Account.AccountNumber)
		c.printf("You have received an initial balance of %s %s.\n", res.Balance.StringFixed(2), c.currency)

	case "2":
		username, password, err := c.credentials()
		if err != nil {
			return err
		}
		if _, err := c.session.Handle(ctx, session.Login{Username: username, Password: password}); err != nil {
			c.report(err)
			return nil
		}
		c.printf("Login successful.\n")

	case "3":
		if _, err := c.session.Handle(ctx, session.Exit{}); err != nil {
			return err
		}
		c.printf("Goodbye!\n")

	default:
		c.printf("Invalid option. Please try again.\n")
	}
	return nil
}

func (c *CLI) accountMenu(ctx context.Context) error {
	c.printf("\n1. Check Balance\n2. Deposit Amount\n3. Transfer Amount\n4. Logout\n")
	choice, err := c.prompt("Choose an action: ")
	if err != nil {
		return err
	}

	switch choice {
	case "1":
		res, err := c.session.Handle(ctx, session.CheckBalance{})
		if err != nil {
			c.report(err)
			return nil
		}
		c.printf("Current balance: %s %s\n", res.Balance.StringFixed(2), c.currency)

	case "2":
		amount, ok, err := c.amount("Enter amount to deposit: ")
		if err != nil || !ok {
			return err
		}
		res, err := c.session.Handle(ctx, session.Deposit{Amount: amount})
		if err != nil {
			c.report(err)
			return nil
		}
		c.printf("Deposited %s %s. New balance: %s %s\n", amount.StringFixed(2), c.currency, res.Balance.StringFixed(2), c.currency)

	case "3":
		amount, ok, err := c.amount("Enter amount to transfer: ")
		if err != nil || !ok {
			return err
		}
		recipient, err := c.prompt("Enter recipient account number: ")
		if err != nil {
			return err
		}
		if !accounts.IsAccountNumber(recipient) {
			c.printf("Account numbers are 10 digits.\n")
			return nil
		}
		res, err := c.session.Handle(ctx, session.Transfer{Amount: amount, RecipientAccountNumber: recipient})
		if err != nil {
			c.report(err)
			return nil
		}
		c.printf("Transferred %s %s to account %s. Your new balance is %s %s.\n",
			amount.StringFixed(2), c.currency, recipient, res.Balance.StringFixed(2), c.currency)

	case "4":
		if _, err := c.session.Handle(ctx, session.Logout{}); err != nil {
			c.report(err)
			return nil
		}
		c.printf("Logged out successfully.\n")

	default:
		c.printf("Invalid option. Please try again.\n")
	}
	return nil
}

// leave logs out an open session and closes it.
func (c *CLI) leave(ctx context.Context) {
	if c.session.State() == session.Authenticated {
		if _, err := c.session.Handle(ctx, session.Logout{}); err != nil {
			logger.Error("cli logout on exit failed", err, nil)
		}
	}
	if c.session.State() == session.Anonymous {
		_, _ = c.session.Handle(ctx, session.Exit{})
	}
}

func (c *CLI) credentials() (string, string, error) {
	username, err := c.prompt("Enter username: ")
	if err != nil {
		return "", "", err
	}
	password, err := c.prompt("Enter password: ")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

// amount prompts for a decimal. ok is false when the input did not parse; the
// user has already been told.
func (c *CLI) amount(label string) (decimal.Decimal, bool, error) {
	raw, err := c.prompt(label)
	if err != nil {
		return decimal.Zero, false, err
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		c.printf("Invalid amount %q. Please enter a number such as 500 or 500.25.\n", raw)
		return decimal.Zero, false, nil
	}
	return amount, true, nil
}

func (c *CLI) prompt(label string) (string, error) {
	c.printf("%s", label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", errEOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

func (c *CLI) report(err error) {
	c.printf("%s\n", Message(err))
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// Message turns an error from the core into the line shown to the user.
// Storage details are logged, never shown.
func Message(err error) string {
	switch {
	case errors.Is(err, models.ErrDuplicateUsername):
		return "Username already exists."
	case errors.Is(err, models.ErrAuthFailure):
		return "Invalid credentials."
	case errors.Is(err, models.ErrInvalidAmount):
		return "Error: Amount must be greater than zero, with at most two decimal places and 18 digits before the point."
	case errors.Is(err, models.ErrInsufficientFunds):
		return "Error: Transfer amount exceeds account balance."
	case errors.Is(err, models.ErrRecipientNotFound):
		return "Error: Recipient account not found."
	case errors.Is(err, models.ErrNotFound):
		return "Error: Account not found."
	case errors.Is(err, accounts.ErrUsernameRequired),
		errors.Is(err, accounts.ErrPasswordRequired),
		errors.Is(err, accounts.ErrUsernameTooLong),
		errors.Is(err, accounts.ErrPasswordTooLong):
		return "Error: " + capitalize(err.Error()) + "."
	case errors.Is(err, session.ErrCommandNotAllowed):
		return "That option is not available right now."
	default:
		logger.Error("cli command failed", err, nil)
		return "Something went wrong. Please try again."
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
