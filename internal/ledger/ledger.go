package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	interfaces "github.com/sheikh-saqib/ledger-bank/internal/interfaces"
	"github.com/sheikh-saqib/ledger-bank/internal/logger"
	"github.com/sheikh-saqib/ledger-bank/internal/models"
	"github.com/sheikh-saqib/ledger-bank/internal/models/events"
	"github.com/shopspring/decimal"
)

// amounts carry at most this many decimal places (kobo/cents)
const amountPlaces = 2

// amounts written with an exponent outside this range are refused before any
// arithmetic touches them
const (
	minAmountExponent = -18
	maxAmountExponent = 18
)

const publishTimeout = 5 * time.Second

// Ledger is the main struct representing our ledger system.
// The balance column held by the store is authoritative; every change to it is
// made by the store together with the ledger entry that explains it.
type Ledger struct {
	store     interfaces.LedgerStore    // Interface to save ledger entries, can be any storage implementation
	audit     interfaces.AuditLog       // optional, write-only activity log
	publisher interfaces.EventPublisher // optional, notified after commit
	now       func() time.Time
}

type Option func(*Ledger)

func WithAuditLog(audit interfaces.AuditLog) Option {
	return func(l *Ledger) { l.audit = audit }
}

func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger is a constructor function that creates a new Ledger instance
// We pass in a storage implementation (MemoryLedgerStore, DB, etc.)
func NewLedger(store interfaces.LedgerStore, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ValidAmount reports whether amount is strictly positive, has no more than
// two decimal places and fits in a balance column.
func ValidAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && wellFormed(amount)
}

// wellFormed reports whether the magnitude of amount is storable with at most
// two decimal places. The exponent is checked first since Truncate and Cmp
// rescale the coefficient.
func wellFormed(amount decimal.Decimal) bool {
	if exp := amount.Exponent(); exp < minAmountExponent || exp > maxAmountExponent {
		return false
	}
	if amount.Abs().GreaterThan(models.MaxAmount) {
		return false
	}
	return amount.Equal(amount.Truncate(amountPlaces))
}

// CurrentBalance returns the authoritative balance of accountID.
func (l *Ledger) CurrentBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	account, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// AppendEntry records a signed amount against accountID and returns the new
// balance. A result below zero is refused with ErrInsufficientFunds.
func (l *Ledger) AppendEntry(ctx context.Context, accountID string, kind models.EntryKind, amount decimal.Decimal) (decimal.Decimal, error) {
	entry, err := l.appendEntry(ctx, accountID, kind, amount)
	if err != nil {
		return decimal.Zero, err
	}
	return entry.BalanceAfter, nil
}

func (l *Ledger) appendEntry(ctx context.Context, accountID string, kind models.EntryKind, amount decimal.Decimal) (models.LedgerEntry, error) {
	if !kind.Valid() || amount.IsZero() || !wellFormed(amount) {
		return models.LedgerEntry{}, models.ErrInvalidAmount
	}

	entry, err := l.store.SaveEntry(ctx, models.LedgerEntry{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Amount:    amount,
		CreatedAt: l.now(),
	})
	if err != nil {
		if errors.Is(err, models.ErrStorage) {
			logger.Error("ledger append entry failed", err, logger.Fields{
				"accountId": accountID,
				"kind":      kind,
			})
		}
		return models.LedgerEntry{}, err
	}

	logger.Info("ledger entry appended", logger.Fields{
		"entryId":      entry.ID,
		"accountId":    accountID,
		"kind":         kind,
		"amount":       amount,
		"balanceAfter": entry.BalanceAfter,
	})
	return entry, nil
}

// Deposit credits a positive amount to accountID.
func (l *Ledger) Deposit(ctx context.Context, accountID string, amount decimal.Decimal) (decimal.Decimal, error) {
	if !ValidAmount(amount) {
		return decimal.Zero, models.ErrInvalidAmount
	}

	entry, err := l.appendEntry(ctx, accountID, models.EntryDeposit, amount)
	if err != nil {
		return decimal.Zero, err
	}

	l.record(ctx, accountID, models.ActionDeposit)
	l.publish(ctx, events.TopicDepositCompleted, accountID, events.DepositCompleted{
		EntryID:      entry.ID,
		AccountID:    accountID,
		Amount:       amount,
		BalanceAfter: entry.BalanceAfter,
		OccurredAt:   entry.CreatedAt,
	})
	return entry.BalanceAfter, nil
}

// Transfer moves amount from senderID to the account numbered
// recipientAccountNumber and returns the sender's new balance.
//
// Checks run in a fixed order and none of them writes: amount, recipient,
// sender funds. The transfer record and both legs are then stored as one unit.
// Sending to one's own account is allowed; it is balance-neutral.
func (l *Ledger) Transfer(ctx context.Context, senderID, recipientAccountNumber string, amount decimal.Decimal) (decimal.Decimal, error) {

	// Basic validation: the transaction amount must be positive
	if !ValidAmount(amount) {
		return decimal.Zero, models.ErrInvalidAmount
	}

	recipient, err := l.store.GetAccountByNumber(ctx, recipientAccountNumber)
	if errors.Is(err, models.ErrNotFound) {
		return decimal.Zero, models.ErrRecipientNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	sender, err := l.store.GetAccount(ctx, senderID)
	if err != nil {
		return decimal.Zero, err
	}
	if amount.GreaterThan(sender.Balance) {
		return decimal.Zero, models.ErrInsufficientFunds
	}

	tx := models.Transaction{
		ID:          uuid.NewString(),
		FromAccount: sender.ID,
		ToAccount:   recipient.ID,
		Amount:      amount,
		CreatedAt:   l.now(),
	}

	// debit: money leaving the sender's account
	debit := models.LedgerEntry{
		ID:            uuid.NewString(),
		AccountID:     tx.FromAccount,
		TransactionID: tx.ID,
		Kind:          models.EntryTransfer,
		Amount:        amount.Neg(),
		CreatedAt:     tx.CreatedAt,
	}

	// credit: money entering the recipient's account
	credit := models.LedgerEntry{
		ID:            uuid.NewString(),
		AccountID:     tx.ToAccount,
		TransactionID: tx.ID,
		Kind:          models.EntryTransfer,
		Amount:        amount,
		CreatedAt:     tx.CreatedAt,
	}

	debitOut, creditOut, err := l.store.SaveTransactionWithEntries(ctx, tx, debit, credit)
	if err != nil {
		if errors.Is(err, models.ErrStorage) {
			logger.Error("ledger transfer failed", err, logger.Fields{
				"transactionId": tx.ID,
				"from":          tx.FromAccount,
				"to":            tx.ToAccount,
			})
		}
		return decimal.Zero, err
	}

	// for a self-transfer the credit is applied last and holds the final balance
	senderBalance := debitOut.BalanceAfter
	if sender.ID == recipient.ID {
		senderBalance = creditOut.BalanceAfter
	}

	logger.Info("ledger transfer posted", logger.Fields{
		"transactionId": tx.ID,
		"from":          tx.FromAccount,
		"to":            tx.ToAccount,
		"amount":        amount,
	})

	l.record(ctx, sender.ID, models.ActionTransfer)
	l.publish(ctx, events.TopicTransactionCompleted, sender.ID, events.TransactionCompleted{
		TransactionID:      tx.ID,
		FromAccount:        tx.FromAccount,
		ToAccount:          tx.ToAccount,
		Amount:             amount,
		SenderBalanceAfter: senderBalance,
		OccurredAt:         tx.CreatedAt,
	})

	return senderBalance, nil
}

// History returns the entries of one account in write order.
func (l *Ledger) History(ctx context.Context, accountID string) ([]models.LedgerEntry, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.GetEntriesByAccount(ctx, accountID)
}

func (l *Ledger) GetLedgerEntries(ctx context.Context) ([]models.LedgerEntry, error) {
	ledgerEntries, err := l.store.GetLedgerEntries(ctx)

	if err != nil {
		return []models.LedgerEntry{}, err
	}
	return ledgerEntries, nil
}

func (l *Ledger) record(ctx context.Context, accountID, action string) {
	if l.audit == nil {
		return
	}
	if err := l.audit.AppendAudit(ctx, models.AuditRecord{AccountID: accountID, Action: action, CreatedAt: l.now()}); err != nil {
		logger.Error("ledger append audit failed", err, logger.Fields{
			"accountId": accountID,
			"action":    action,
		})
	}
}

// publish is best effort: the ledger write has already committed.
func (l *Ledger) publish(ctx context.Context, topic, key string, event any) {
	if l.publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := l.publisher.Publish(ctx, topic, key, event); err != nil {
		logger.Error("ledger publish event failed", err, logger.Fields{
			"topic": topic,
			"key":   key,
		})
	}
}
