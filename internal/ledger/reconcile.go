package ledger

import (
	"context"

	"github.com/sheikh-saqib/ledger-bank/internal/logger"
	"github.com/sheikh-saqib/ledger-bank/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const reconcileWorkers = 4

// Reconcile re-derives every account balance from its ledger entries and
// reports the accounts whose stored balance disagrees. It only reads.
func (l *Ledger) Reconcile(ctx context.Context) ([]models.Discrepancy, error) {
	accounts, err := l.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	found := make([]*models.Discrepancy, len(accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)
	for i, account := range accounts {
		i, account := i, account
		g.Go(func() error {
			entries, err := l.store.GetEntriesByAccount(gctx, account.ID)
			if err != nil {
				return err
			}
			sum := SumEntries(entries)
			if !sum.Equal(account.Balance) {
				found[i] = &models.Discrepancy{
					AccountID:     account.ID,
					AccountNumber: account.AccountNumber,
					Stored:        account.Balance,
					LedgerSum:     sum,
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.Discrepancy
	for _, d := range found {
		if d == nil {
			continue
		}
		logger.Warn("ledger reconcile mismatch", logger.Fields{
			"accountId": d.AccountID,
			"stored":    d.Stored,
			"ledgerSum": d.LedgerSum,
		})
		out = append(out, *d)
	}

	logger.Info("ledger reconcile finished", logger.Fields{
		"accounts":      len(accounts),
		"discrepancies": len(out),
	})
	return out, nil
}

// SumEntries adds up the signed amounts of entries.
func SumEntries(entries []models.LedgerEntry) decimal.Decimal {
	balance := decimal.Zero

	for _, ledgerEntry := range entries {
		balance = balance.Add(ledgerEntry.Amount)
	}
	return balance
}
