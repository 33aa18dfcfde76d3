package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a customer account. Balance is the authoritative balance and is
// only ever changed together with a ledger entry insert.
type Account struct {
	ID            string
	Username      string
	PasswordHash  string
	AccountNumber string
	Balance       decimal.Decimal
	CreatedAt     time.Time
}

// AuditRecord is one append-only line of the user activity log.
type AuditRecord struct {
	AccountID string
	Action    string
	CreatedAt time.Time
}

// Audit actions written by the application.
const (
	ActionCreatedAccount = "created account"
	ActionLoggedIn       = "logged in"
	ActionLoggedOut      = "logged out"
	ActionDeposit        = "deposit"
	ActionTransfer       = "transfer"
)

// Discrepancy is reported by reconciliation when the stored balance of an
// account differs from the sum of its ledger entries.
type Discrepancy struct {
	AccountID     string
	AccountNumber string
	Stored        decimal.Decimal
	LedgerSum     decimal.Decimal
}
