package memory

import (
	"context" // standard Go package for request-scoped context (timeouts, cancellation)
	"fmt"
	"sync" // standard Go package for concurrency primitives like Mutex
	"time"

	interfaces "github.com/sheikh-saqib/ledger-bank/internal/interfaces" // interfaces LedgerStore, AccountStore, AuditLog
	"github.com/sheikh-saqib/ledger-bank/internal/models"                // domain models: Account, LedgerEntry
	"github.com/shopspring/decimal"
)

// Op names a write step that can be made to fail with InjectFault.
type Op string

const (
	OpCreateAccount   Op = "create_account"
	OpSaveEntry       Op = "save_entry"
	OpSaveTransaction Op = "save_transaction"
	OpDebit           Op = "debit"
	OpCredit          Op = "credit"
	OpAppendAudit     Op = "append_audit"
)

// MemoryLedgerStore is an in-memory implementation of the ledger, account and
// audit stores. Writes are staged on copies and only published to the maps
// once every step has succeeded, so a failed write leaves no trace.
type MemoryLedgerStore struct {
	mu           sync.Mutex                    // guards everything below
	accounts     map[string]models.Account     // account id -> account
	byNumber     map[string]string             // account number -> account id
	byUsername   map[string]string             // username -> account id
	order        []string                      // account ids in creation order
	entries      []models.LedgerEntry          // every ledger entry in write order
	transactions map[string]models.Transaction // transfer id -> transfer
	audit        []models.AuditRecord          // append-only activity log
	faults       map[Op]error                  // one-shot injected failures
	now          func() time.Time
}

// NewMemoryLedgerStore creates and returns a new MemoryLedgerStore instance
func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:     make(map[string]models.Account),
		byNumber:     make(map[string]string),
		byUsername:   make(map[string]string),
		entries:      make([]models.LedgerEntry, 0),
		transactions: make(map[string]models.Transaction),
		faults:       make(map[Op]error),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// InjectFault makes the next write step named op fail with err, wrapped as a
// storage error. Used to simulate a crash between the two legs of a transfer.
func (m *MemoryLedgerStore) InjectFault(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[op] = err
}

func (m *MemoryLedgerStore) fault(op Op) error {
	err, ok := m.faults[op]
	if !ok {
		return nil
	}
	delete(m.faults, op)
	return fmt.Errorf("%w: %s: %w", models.ErrStorage, op, err)
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account models.Account, opening models.LedgerEntry) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUsername[account.Username]; exists {
		return models.Account{}, models.ErrDuplicateUsername
	}
	if _, exists := m.byNumber[account.AccountNumber]; exists {
		return models.Account{}, models.ErrDuplicateAccountNumber
	}
	if err := m.fault(OpCreateAccount); err != nil {
		return models.Account{}, err
	}

	if account.CreatedAt.IsZero() {
		account.CreatedAt = m.now()
	}
	account.Balance = decimal.Zero

	staged := map[string]models.Account{account.ID: account}
	var written []models.LedgerEntry
	if !opening.Amount.IsZero() {
		opening.AccountID = account.ID
		entry, err := m.stageEntry(staged, opening, OpSaveEntry)
		if err != nil {
			return models.Account{}, err
		}
		written = append(written, entry)
	}

	// commit
	m.commit(staged, written)
	m.byUsername[account.Username] = account.ID
	m.byNumber[account.AccountNumber] = account.ID
	m.order = append(m.order, account.ID)
	return m.accounts[account.ID], nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, models.ErrNotFound
	}
	return account, nil
}

func (m *MemoryLedgerStore) GetAccountByNumber(ctx context.Context, accountNumber string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byNumber[accountNumber]
	if !ok {
		return models.Account{}, models.ErrNotFound
	}
	return m.accounts[id], nil
}

func (m *MemoryLedgerStore) GetAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byUsername[username]
	if !ok {
		return models.Account{}, models.ErrNotFound
	}
	return m.accounts[id], nil
}

// ListAccounts returns every account ordered by creation.
func (m *MemoryLedgerStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Account, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.accounts[id])
	}
	return out, nil
}

// SaveEntry applies a single entry and records it.
// Implements the LedgerStore interface.
func (m *MemoryLedgerStore) SaveEntry(ctx context.Context, entry models.LedgerEntry) (models.LedgerEntry, error) {
	m.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock() // unlock automatically when function exits (even if error occurs)

	staged := make(map[string]models.Account)
	written, err := m.stageEntry(staged, entry, OpSaveEntry)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	m.commit(staged, []models.LedgerEntry{written})
	return written, nil
}

// SaveTransactionWithEntries stages the transfer record, the debit and the
// credit, and publishes them together. A failure at any step discards all three.
func (m *MemoryLedgerStore) SaveTransactionWithEntries(ctx context.Context, tx models.Transaction, debit, credit models.LedgerEntry) (models.LedgerEntry, models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.transactions[tx.ID]; exists {
		return models.LedgerEntry{}, models.LedgerEntry{}, fmt.Errorf("%w: duplicate transaction %s", models.ErrStorage, tx.ID)
	}
	if err := m.fault(OpSaveTransaction); err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}

	staged := make(map[string]models.Account)

	debitOut, err := m.stageEntry(staged, debit, OpDebit)
	if err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}

	creditOut, err := m.stageEntry(staged, credit, OpCredit)
	if err != nil {
		return models.LedgerEntry{}, models.LedgerEntry{}, err
	}

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = m.now()
	}
	m.transactions[tx.ID] = tx
	m.commit(staged, []models.LedgerEntry{debitOut, creditOut})
	return debitOut, creditOut, nil
}

// stageEntry applies entry to the staged copy of its account, reading the
// committed account the first time it is touched. Nothing committed changes.
func (m *MemoryLedgerStore) stageEntry(staged map[string]models.Account, entry models.LedgerEntry, op Op) (models.LedgerEntry, error) {
	account, ok := staged[entry.AccountID]
	if !ok {
		account, ok = m.accounts[entry.AccountID]
		if !ok {
			return models.LedgerEntry{}, models.ErrNotFound
		}
	}

	newBalance := account.Balance.Add(entry.Amount)
	if newBalance.IsNegative() {
		return models.LedgerEntry{}, models.ErrInsufficientFunds
	}
	if newBalance.GreaterThan(models.MaxAmount) {
		return models.LedgerEntry{}, models.ErrInvalidAmount
	}
	if err := m.fault(op); err != nil {
		return models.LedgerEntry{}, err
	}

	account.Balance = newBalance
	staged[account.ID] = account

	entry.BalanceAfter = newBalance
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	return entry, nil
}

func (m *MemoryLedgerStore) commit(staged map[string]models.Account, written []models.LedgerEntry) {
	for id, account := range staged {
		m.accounts[id] = account
	}
	m.entries = append(m.entries, written...)
}

// GetLedgerEntries returns a copy of all ledger entries stored in memory.
// Useful for testing, debugging, and printing ledger state.
func (m *MemoryLedgerStore) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {

	m.mu.Lock()         // lock to prevent concurrent modification while reading
	defer m.mu.Unlock() // unlock automatically at the end

	// create a new slice to copy entries
	copied := make([]models.LedgerEntry, len(m.entries))
	copy(copied, m.entries) // copy all entries to the new slice
	return copied, nil      // return the copy so external code can't modify internal state
}

func (m *MemoryLedgerStore) GetEntriesByAccount(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	var result []models.LedgerEntry

	for _, e := range m.entries {
		if e.AccountID == accountID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *MemoryLedgerStore) AppendAudit(ctx context.Context, record models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fault(OpAppendAudit); err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = m.now()
	}
	m.audit = append(m.audit, record)
	return nil
}

// AuditRecords returns the audit log in append order.
func (m *MemoryLedgerStore) AuditRecords() []models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.AuditRecord, len(m.audit))
	copy(out, m.audit)
	return out
}

// Close is a no-op; it lets the memory store stand in wherever a database
// backed store is expected.
func (m *MemoryLedgerStore) Close() error { return nil }

// Compile-time check: ensure MemoryLedgerStore implements the store interfaces
var (
	_ interfaces.LedgerStore  = (*MemoryLedgerStore)(nil)
	_ interfaces.AccountStore = (*MemoryLedgerStore)(nil)
	_ interfaces.AuditLog     = (*MemoryLedgerStore)(nil)
)
