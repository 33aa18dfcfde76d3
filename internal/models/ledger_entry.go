package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a balance-affecting event.
type EntryKind string

const (
	EntryDeposit  EntryKind = "deposit"
	EntryTransfer EntryKind = "transfer"
)

// Valid reports whether k is one of the known kinds.
func (k EntryKind) Valid() bool {
	return k == EntryDeposit || k == EntryTransfer
}

// MaxAmount is the largest amount or balance the accounts and ledger_entries
// columns hold (NUMERIC(20,2)).
var MaxAmount = decimal.RequireFromString("999999999999999999.99")

// LedgerEntry represents a single ledger record for an account
type LedgerEntry struct {
	ID            string          // unique identifier
	AccountID     string          // which account this entry belongs to
	TransactionID string          // shared by both legs of a transfer, empty for deposits
	Kind          EntryKind       // deposit or transfer
	Amount        decimal.Decimal // signed: negative for the sending leg
	BalanceAfter  decimal.Decimal // balance of AccountID once this entry is applied
	CreatedAt     time.Time       // timestamp
}
