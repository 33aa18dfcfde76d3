package interfaces

import (
	"context"

	"github.com/sheikh-saqib/ledger-bank/internal/models"
)

// LedgerStore persists ledger entries together with the balance column they
// affect. Every write method is all-or-nothing: on error nothing is stored.
type LedgerStore interface {
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	GetAccountByNumber(ctx context.Context, accountNumber string) (models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)

	// SaveEntry applies entry.Amount to the account balance and records the
	// entry. The returned entry carries BalanceAfter.
	SaveEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error)

	// SaveTransactionWithEntries records a transfer and both of its legs in
	// one storage transaction.
	SaveTransactionWithEntries(ctx context.Context, tx models.Transaction, debit, credit models.LedgerEntry) (models.LedgerEntry, models.LedgerEntry, error)

	GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error)
	GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error)
}

// AccountStore registers and looks up accounts by username.
type AccountStore interface {
	// CreateAccount inserts account and, when opening.Amount is non-zero, its
	// opening deposit entry as one unit.
	CreateAccount(ctx context.Context, account models.Account, opening models.LedgerEntry) (models.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (models.Account, error)
}

type AuditLog interface {
	AppendAudit(ctx context.Context, record models.AuditRecord) error
}
