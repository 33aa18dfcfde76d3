package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	interfaces "github.com/sheikh-saqib/ledger-bank/internal/interfaces"
	"github.com/sheikh-saqib/ledger-bank/internal/logger"
	"github.com/sheikh-saqib/ledger-bank/internal/models"
	"github.com/shopspring/decimal"
)

const uniqueViolation = pq.ErrorCode("23505")

type PostgresLedgerStore struct {
	db *sql.DB
}

func NewPostgresLedgerStore(db *sql.DB) *PostgresLedgerStore {
	return &PostgresLedgerStore{
		db: db,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrStorage, op, err)
}

const accountColumns = `id, username, password_hash, account_number, balance, created_at`

func scanAccount(row rowScanner, account *models.Account) error {
	return row.Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.AccountNumber,
		&account.Balance,
		&account.CreatedAt,
	)
}

func (p *PostgresLedgerStore) getAccount(ctx context.Context, where string, arg any) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE ` + where + ` = $1`

	var account models.Account
	if err := scanAccount(p.db.QueryRowContext(ctx, query, arg), &account); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, models.ErrNotFound
		}
		return models.Account{}, storageErr("get account by "+where, err)
	}
	return account, nil
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	return p.getAccount(ctx, "id", accountID)
}

func (p *PostgresLedgerStore) GetAccountByNumber(ctx context.Context, accountNumber string) (models.Account, error) {
	return p.getAccount(ctx, "account_number", accountNumber)
}

func (p *PostgresLedgerStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	return p.getAccount(ctx, "username", username)
}

func (p *PostgresLedgerStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storageErr("list accounts", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var account models.Account
		if err := scanAccount(rows, &account); err != nil {
			return nil, storageErr("scan account", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list accounts", err)
	}
	return accounts, nil
}

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, account models.Account, opening models.LedgerEntry) (created models.Account, err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Account{}, storageErr("begin create account", err)
	}

	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO accounts (id, username, password_hash, account_number, balance, created_at)
	VALUES ($1, $2, $3, $4, 0, $5)`

	if _, err = dbTx.ExecContext(ctx, query, account.ID, account.Username, account.PasswordHash, account.AccountNumber, account.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			switch pqErr.Constraint {
			case "accounts_username_key":
				return models.Account{}, models.ErrDuplicateUsername
			case "accounts_account_number_key":
				return models.Account{}, models.ErrDuplicateAccountNumber
			}
		}
		return models.Account{}, storageErr("insert account", err)
	}
	account.Balance = decimal.Zero

	if !opening.Amount.IsZero() {
		opening.AccountID = account.ID
		entry, applyErr := applyEntry(ctx, dbTx, opening)
		if applyErr != nil {
			err = applyErr
			return models.Account{}, err
		}
		account.Balance = entry.BalanceAfter
	}

	if err = dbTx.Commit(); err != nil {
		return models.Account{}, storageErr("commit create account", err)
	}

	logger.Info("postgres store account created", logger.Fields{
		"accountId":     account.ID,
		"accountNumber": account.AccountNumber,
	})
	return account, nil
}

// applyEntry locks the account row, moves its balance by entry.Amount and
// inserts the entry, all on dbTx. Domain errors are returned unwrapped.
func applyEntry(ctx context.Context, dbTx execer, entry models.LedgerEntry) (models.LedgerEntry, error) {
	var balance decimal.Decimal
	err := dbTx.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, entry.AccountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return models.LedgerEntry{}, models.ErrNotFound
	}
	if err != nil {
		return models.LedgerEntry{}, storageErr("lock account", err)
	}

	newBalance := balance.Add(entry.Amount)
	if newBalance.IsNegative() {
		return models.LedgerEntry{}, models.ErrInsufficientFunds
	}
	if newBalance.GreaterThan(models.MaxAmount) {
		return models.LedgerEntry{}, models.ErrInvalidAmount
	}

	if _, err := dbTx.ExecContext(ctx, `UPDATE accounts SET balance = $2 WHERE id = $1`, entry.AccountID, newBalance); err != nil {
		return models.LedgerEntry{}, storageErr("update balance", err)
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.BalanceAfter = newBalance

	const query = `INSERT INTO ledger_entries (id, account_id, transaction_id, kind, amount, balance_after, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = dbTx.ExecContext(ctx, query,
		entry.ID,
		entry.AccountID,
		sql.NullString{String: entry.TransactionID, Valid: entry.TransactionID != ""},
		string(entry.Kind),
		entry.Amount,
		entry.BalanceAfter,
		entry.CreatedAt,
	)
	if err != nil {
		return models.LedgerEntry{}, storageErr("insert entry", err)
	}
	return entry, nil
}

func (p *PostgresLedgerStore) SaveEntry(ctx context.Context, entry models.LedgerEntry) (saved models.LedgerEntry, err error) {
	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.LedgerEntry{}, storageErr("begin save entry", err)
	}

	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	saved, err = applyEntry(ctx, dbTx, entry)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	if err = dbTx.Commit(); err != nil {
		return models.LedgerEntry{}, storageErr("commit save entry", err)
	}
	return saved, nil
}

func saveTransaction(ctx context.Context, dbTx execer, tx models.Transaction) error {
	const query = `INSERT INTO transfers (id, from_account, to_account, amount, created_at)
	VALUES ($1, $2, $3, $4, $5)`

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	if _, err := dbTx.ExecContext(ctx, query, tx.ID, tx.FromAccount, tx.ToAccount, tx.Amount, tx.CreatedAt); err != nil {
		return storageErr("insert transfer", err)
	}
	return nil
}

func (p *PostgresLedgerStore) SaveTransactionWithEntries(ctx context.Context, tx models.Transaction, debit models.LedgerEntry, credit models.LedgerEntry) (debitOut models.LedgerEntry, creditOut models.LedgerEntry, err error) {

	dbTx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, storageErr("begin transfer", err)
	}

	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	if err = saveTransaction(ctx, dbTx, tx); err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}

	debitOut, err = applyEntry(ctx, dbTx, debit)
	if err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}

	creditOut, err = applyEntry(ctx, dbTx, credit)
	if err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}

	if err = dbTx.Commit(); err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, storageErr("commit transfer", err)
	}
	return debitOut, creditOut, nil
}

const entryColumns = `id, account_id, COALESCE(transaction_id::text, ''), kind, amount, balance_after, created_at`

func (p *PostgresLedgerStore) queryEntries(ctx context.Context, query string, args ...any) ([]models.LedgerEntry, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("query entries", err)
	}

	defer rows.Close()

	var entries []models.LedgerEntry

	for rows.Next() {
		var entry models.LedgerEntry
		var kind string
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.TransactionID,
			&kind,
			&entry.Amount,
			&entry.BalanceAfter,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, storageErr("scan entry", err)
		}
		entry.Kind = models.EntryKind(kind)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("query entries", err)
	}
	return entries, nil
}

func (p *PostgresLedgerStore) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	return p.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries ORDER BY seq`)
}

func (p *PostgresLedgerStore) GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	return p.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries
	WHERE account_id = $1 ORDER BY seq`, accountID)
}

func (p *PostgresLedgerStore) AppendAudit(ctx context.Context, record models.AuditRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO audit_log (account_id, action, created_at) VALUES ($1, $2, $3)`
	if _, err := p.db.ExecContext(ctx, query, record.AccountID, record.Action, record.CreatedAt); err != nil {
		return storageErr("append audit", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *PostgresLedgerStore) Close() error {
	return p.db.Close()
}

var (
	_ interfaces.LedgerStore  = (*PostgresLedgerStore)(nil)
	_ interfaces.AccountStore = (*PostgresLedgerStore)(nil)
	_ interfaces.AuditLog     = (*PostgresLedgerStore)(nil)
)
