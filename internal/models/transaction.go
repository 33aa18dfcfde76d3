package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents an intent to transfer money between two accounts.
// Its two legs are stored as ledger entries sharing the transaction ID.
type Transaction struct {
	ID          string
	FromAccount string          // sender account id
	ToAccount   string          // recipient account id
	Amount      decimal.Decimal // always positive
	CreatedAt   time.Time
}
