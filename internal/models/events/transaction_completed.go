package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicTransactionCompleted = "transaction_completed"
	TopicDepositCompleted     = "deposit_completed"
)

type TransactionCompleted struct {
	TransactionID      string          `json:"transaction_id"`
	FromAccount        string          `json:"from_account"`
	ToAccount          string          `json:"to_account"`
	Amount             decimal.Decimal `json:"amount"`
	SenderBalanceAfter decimal.Decimal `json:"sender_balance_after"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

type DepositCompleted struct {
	EntryID      string          `json:"entry_id"`
	AccountID    string          `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	OccurredAt   time.Time       `json:"occurred_at"`
}
