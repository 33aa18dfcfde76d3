package ledger

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sheikh-saqib/ledger-bank/internal/models"
	"github.com/sheikh-saqib/ledger-bank/internal/models/events"
	"github.com/sheikh-saqib/ledger-bank/internal/storage/memory"
	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// open creates an account holding the usual 10000 starting balance.
func open(t *testing.T, store *memory.MemoryLedgerStore, username, number string) models.Account {
	t.Helper()
	acc, err := store.CreateAccount(context.Background(), models.Account{
		ID:            uuid.NewString(),
		Username:      username,
		PasswordHash:  "x",
		AccountNumber: number,
	}, models.LedgerEntry{ID: uuid.NewString(), Kind: models.EntryDeposit, Amount: d(10000)})
	if err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return acc
}

func balance(t *testing.T, l *Ledger, id string) decimal.Decimal {
	t.Helper()
	b, err := l.CurrentBalance(context.Background(), id)
	if err != nil {
		t.Fatalf("CurrentBalance(%s): %v", id, err)
	}
	return b
}

func assertBalance(t *testing.T, l *Ledger, id string, want decimal.Decimal) {
	t.Helper()
	if got := balance(t, l, id); !got.Equal(want) {
		t.Fatalf("balance(%s) = %s, want %s", id, got, want)
	}
}

func TestScenarioDepositThenTransfer(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()

	a := open(t, store, "a", "1000000001")
	b := open(t, store, "b", "1000000002")

	got, err := l.Deposit(ctx, a.ID, d(500))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d(10500)) {
		t.Fatalf("after deposit = %s, want 10500", got)
	}

	got, err = l.Transfer(ctx, a.ID, b.AccountNumber, d(2000))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d(8500)) {
		t.Fatalf("sender after transfer = %s, want 8500", got)
	}
	assertBalance(t, l, a.ID, d(8500))
	assertBalance(t, l, b.ID, d(12000))

	if total := balance(t, l, a.ID).Add(balance(t, l, b.ID)); !total.Equal(d(20500)) {
		t.Fatalf("total = %s, want 20500", total)
	}
}

func TestTransferConservation(t *testing.T) {
	amounts := []decimal.Decimal{d(1), d(2000), d(10000), decimal.RequireFromString("0.01"), decimal.RequireFromString("333.33")}

	for _, amount := range amounts {
		t.Run(amount.String(), func(t *testing.T) {
			store := memory.NewMemoryLedgerStore()
			l := NewLedger(store)
			x := open(t, store, "x", "1000000001")
			y := open(t, store, "y", "1000000002")

			xBefore, yBefore := balance(t, l, x.ID), balance(t, l, y.ID)

			if _, err := l.Transfer(context.Background(), x.ID, y.AccountNumber, amount); err != nil {
				t.Fatal(err)
			}

			xAfter, yAfter := balance(t, l, x.ID), balance(t, l, y.ID)
			if !xAfter.Equal(xBefore.Sub(amount)) {
				t.Fatalf("sender = %s, want %s", xAfter, xBefore.Sub(amount))
			}
			if !yAfter.Equal(yBefore.Add(amount)) {
				t.Fatalf("recipient = %s, want %s", yAfter, yBefore.Add(amount))
			}
			if !xAfter.Add(yAfter).Equal(xBefore.Add(yBefore)) {
				t.Fatal("transfer did not conserve the total")
			}
		})
	}
}

func TestDepositTransferRoundTrip(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()
	a := open(t, store, "a", "1000000001")
	b := open(t, store, "b", "1000000002")

	before := balance(t, l, a.ID)
	amount := decimal.RequireFromString("1234.56")

	if _, err := l.Deposit(ctx, a.ID, amount); err != nil {
		t.Fatal(err)
	}
	got, err := l.Transfer(ctx, a.ID, b.AccountNumber, amount)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(before) {
		t.Fatalf("round trip left %s, want %s", got, before)
	}
}

func TestTransferTwoEntries(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()
	a := open(t, store, "a", "1000000001")
	b := open(t, store, "b", "1000000002")

	if _, err := l.Transfer(ctx, a.ID, b.AccountNumber, d(300)); err != nil {
		t.Fatal(err)
	}

	all, err := l.GetLedgerEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// two opening deposits + two transfer legs
	if len(all) != 4 {
		t.Fatalf("entries = %d, want 4", len(all))
	}
	debit, credit := all[2], all[3]
	if debit.AccountID != a.ID || !debit.Amount.Equal(d(-300)) || !debit.BalanceAfter.Equal(d(9700)) {
		t.Fatalf("unexpected debit %+v", debit)
	}
	if credit.AccountID != b.ID || !credit.Amount.Equal(d(300)) || !credit.BalanceAfter.Equal(d(10300)) {
		t.Fatalf("unexpected credit %+v", credit)
	}
	if debit.Kind != models.EntryTransfer || credit.Kind != models.EntryTransfer {
		t.Fatalf("kinds = %s, %s", debit.Kind, credit.Kind)
	}
	if debit.TransactionID == "" || debit.TransactionID != credit.TransactionID {
		t.Fatalf("legs should share a transaction id: %q %q", debit.TransactionID, credit.TransactionID)
	}

	history, err := l.History(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[1].ID != debit.ID {
		t.Fatalf("history = %+v", history)
	}
}

func TestTransferRejections(t *testing.T) {
	tests := []struct {
		name      string
		amount    decimal.Decimal
		recipient string
		sender    string // "" means the funded account
		want      error
	}{
		{"zero amount", d(0), "1000000002", "", models.ErrInvalidAmount},
		{"negative amount", d(-5), "1000000002", "", models.ErrInvalidAmount},
		{"sub-cent amount", decimal.RequireFromString("0.001"), "1000000002", "", models.ErrInvalidAmount},
		{"tiny exponent", decimal.RequireFromString("1e-999999999"), "1000000002", "", models.ErrInvalidAmount},
		{"huge exponent", decimal.RequireFromString("1e999999999"), "1000000002", "", models.ErrInvalidAmount},
		{"above column limit", decimal.RequireFromString("1e20"), "1000000002", "", models.ErrInvalidAmount},
		{"unknown recipient", d(10), "9999999999", "", models.ErrRecipientNotFound},
		{"insufficient funds", d(10001), "1000000002", "", models.ErrInsufficientFunds},
		{"unknown sender", d(10), "1000000002", "no-such-id", models.ErrNotFound},
		// invalid amount is reported before the recipient lookup
		{"invalid amount and unknown recipient", d(0), "9999999999", "", models.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewMemoryLedgerStore()
			l := NewLedger(store)
			a := open(t, store, "a", "1000000001")
			b := open(t, store, "b", "1000000002")

			sender := a.ID
			if tt.sender != "" {
				sender = tt.sender
			}

			_, err := l.Transfer(context.Background(), sender, tt.recipient, tt.amount)
			if !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}

			assertBalance(t, l, a.ID, d(10000))
			assertBalance(t, l, b.ID, d(10000))
			entries, _ := l.GetLedgerEntries(context.Background())
			if len(entries) != 2 {
				t.Fatalf("rejected transfer wrote entries: %d", len(entries))
			}
		})
	}
}

func TestTransferRollsBackWhenCreditFails(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()
	a := open(t, store, "a", "1000000001")
	b := open(t, store, "b", "1000000002")

	store.InjectFault(memory.OpCredit, errors.New("connection reset"))

	_, err := l.Transfer(ctx, a.ID, b.AccountNumber, d(700))
	if !errors.Is(err, models.ErrStorage) {
		t.Fatalf("want ErrStorage, got %v", err)
	}

	assertBalance(t, l, a.ID, d(10000))
	assertBalance(t, l, b.ID, d(10000))
	entries, _ := l.GetLedgerEntries(ctx)
	if len(entries) != 2 {
		t.Fatalf("partial transfer visible: %d entries", len(entries))
	}

	// the fault is one-shot; the same transfer now goes through
	if _, err := l.Transfer(ctx, a.ID, b.AccountNumber, d(700)); err != nil {
		t.Fatalf("retry: %v", err)
	}
	assertBalance(t, l, a.ID, d(9300))
	assertBalance(t, l, b.ID, d(10700))
}

func TestSelfTransferIsBalanceNeutral(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()
	a := open(t, store, "a", "1000000001")

	got, err := l.Transfer(ctx, a.ID, a.AccountNumber, d(10000))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d(10000)) {
		t.Fatalf("self transfer returned %s", got)
	}
	assertBalance(t, l, a.ID, d(10000))

	history, _ := l.History(ctx, a.ID)
	if len(history) != 3 {
		t.Fatalf("self transfer should still write two legs, history=%d", len(history))
	}
}

func TestCurrentBalanceUnknownAccount(t *testing.T) {
	l := NewLedger(memory.NewMemoryLedgerStore())
	if _, err := l.CurrentBalance(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := l.History(context.Background(), "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAppendEntry(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()
	a := open(t, store, "a", "1000000001")

	got, err := l.AppendEntry(ctx, a.ID, models.EntryTransfer, d(-2500))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(d(7500)) {
		t.Fatalf("new balance = %s, want 7500", got)
	}

	if _, err := l.AppendEntry(ctx, a.ID, models.EntryTransfer, d(-7501)); !errors.Is(err, models.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if _, err := l.AppendEntry(ctx, a.ID, models.EntryKind("refund"), d(1)); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount for unknown kind, got %v", err)
	}
	if _, err := l.AppendEntry(ctx, "missing", models.EntryDeposit, d(1)); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	store.InjectFault(memory.OpSaveEntry, errors.New("disk full"))
	if _, err := l.AppendEntry(ctx, a.ID, models.EntryDeposit, d(1)); !errors.Is(err, models.ErrStorage) {
		t.Fatalf("want ErrStorage, got %v", err)
	}
	assertBalance(t, l, a.ID, d(7500))
}

func TestDepositRejectsNonPositive(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	a := open(t, store, "a", "1000000001")

	for _, amount := range []decimal.Decimal{d(0), d(-1)} {
		if _, err := l.Deposit(context.Background(), a.ID, amount); !errors.Is(err, models.ErrInvalidAmount) {
			t.Fatalf("amount %s: want ErrInvalidAmount, got %v", amount, err)
		}
	}
	assertBalance(t, l, a.ID, d(10000))
}

func TestDepositRejectsOversizedAmounts(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()
	a := open(t, store, "a", "1000000001")

	for _, raw := range []string{"1e-999999999", "1e999999999", "-1e999999999"} {
		amount := decimal.RequireFromString(raw)

		done := make(chan error, 1)
		go func() {
			_, err := l.Deposit(ctx, a.ID, amount)
			done <- err
		}()
		select {
		case err := <-done:
			if !errors.Is(err, models.ErrInvalidAmount) {
				t.Fatalf("%s: want ErrInvalidAmount, got %v", raw, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s: deposit did not return", raw)
		}

		if _, err := l.AppendEntry(ctx, a.ID, models.EntryTransfer, amount); !errors.Is(err, models.ErrInvalidAmount) {
			t.Fatalf("%s: AppendEntry want ErrInvalidAmount, got %v", raw, err)
		}
	}

	// a valid amount that would take the balance past the column limit
	if _, err := l.Deposit(ctx, a.ID, models.MaxAmount); !errors.Is(err, models.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
	assertBalance(t, l, a.ID, d(10000))
}

func TestBalancesNeverNegative(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store)
	ctx := context.Background()

	accounts := []models.Account{
		open(t, store, "a", "1000000001"),
		open(t, store, "b", "1000000002"),
		open(t, store, "c", "1000000003"),
	}

	rng := rand.New(rand.NewSource(42))
	total := d(30000)

	for i := 0; i < 500; i++ {
		from := accounts[rng.Intn(len(accounts))]
		to := accounts[rng.Intn(len(accounts))]
		amount := d(int64(rng.Intn(6000) - 500))

		if rng.Intn(5) == 0 {
			if _, err := l.Deposit(ctx, from.ID, amount); err == nil {
				total = total.Add(amount)
			}
		} else {
			_, _ = l.Transfer(ctx, from.ID, to.AccountNumber, amount)
		}

		sum := decimal.Zero
		for _, acc := range accounts {
			b := balance(t, l, acc.ID)
			if b.IsNegative() {
				t.Fatalf("step %d: negative balance %s on %s", i, b, acc.Username)
			}
			sum = sum.Add(b)
		}
		if !sum.Equal(total) {
			t.Fatalf("step %d: total %s, want %s", i, sum, total)
		}
	}

	discrepancies, err := l.Reconcile(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(discrepancies) != 0 {
		t.Fatalf("unexpected discrepancies: %+v", discrepancies)
	}
}

// driftingStore reports a stored balance that no longer matches the ledger.
type driftingStore struct {
	*memory.MemoryLedgerStore
	accountID string
	delta     decimal.Decimal
}

func (s driftingStore) ListAccounts(ctx context.Context) ([]models.Account, error) {
	accounts, err := s.MemoryLedgerStore.ListAccounts(ctx)
	for i := range accounts {
		if accounts[i].ID == s.accountID {
			accounts[i].Balance = accounts[i].Balance.Add(s.delta)
		}
	}
	return accounts, err
}

func TestReconcileReportsDrift(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	a := open(t, store, "a", "1000000001")
	open(t, store, "b", "1000000002")

	l := NewLedger(driftingStore{MemoryLedgerStore: store, accountID: a.ID, delta: d(5)})

	got, err := l.Reconcile(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("discrepancies = %+v, want one", got)
	}
	if got[0].AccountID != a.ID || !got[0].Stored.Equal(d(10005)) || !got[0].LedgerSum.Equal(d(10000)) {
		t.Fatalf("unexpected discrepancy %+v", got[0])
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, topic, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

func TestEventsAndAudit(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	pub := &recordingPublisher{}
	l := NewLedger(store, WithAuditLog(store), WithPublisher(pub))
	ctx := context.Background()
	a := open(t, store, "a", "1000000001")
	b := open(t, store, "b", "1000000002")

	if _, err := l.Deposit(ctx, a.ID, d(50)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Transfer(ctx, a.ID, b.AccountNumber, d(25)); err != nil {
		t.Fatal(err)
	}
	// rejected operations publish nothing
	_, _ = l.Transfer(ctx, a.ID, b.AccountNumber, d(0))

	if len(pub.topics) != 2 || pub.topics[0] != events.TopicDepositCompleted || pub.topics[1] != events.TopicTransactionCompleted {
		t.Fatalf("topics = %v", pub.topics)
	}
	tc := pub.events[1].(events.TransactionCompleted)
	if tc.FromAccount != a.ID || tc.ToAccount != b.ID || !tc.SenderBalanceAfter.Equal(d(10025)) {
		t.Fatalf("unexpected event %+v", tc)
	}

	audit := store.AuditRecords()
	if len(audit) != 2 || audit[0].Action != models.ActionDeposit || audit[1].Action != models.ActionTransfer {
		t.Fatalf("audit = %+v", audit)
	}
}

func TestPublishFailureDoesNotFailTransfer(t *testing.T) {
	store := memory.NewMemoryLedgerStore()
	l := NewLedger(store, WithPublisher(&recordingPublisher{err: errors.New("broker down")}))
	a := open(t, store, "a", "1000000001")
	b := open(t, store, "b", "1000000002")

	if _, err := l.Transfer(context.Background(), a.ID, b.AccountNumber, d(1)); err != nil {
		t.Fatalf("transfer should succeed after commit: %v", err)
	}
	assertBalance(t, l, b.ID, d(10001))
}

func TestValidAmount(t *testing.T) {
	cases := map[string]bool{
		"1":      true,
		"0.01":   true,
		"10.50":  true,
		"10.500": true,
		"0":      false,
		"-1":     false,
		"0.005":  false,

		"999999999999999999.99": true,
		"1e18":                  false,
		"1e20":                  false,
		"1e-999999999":          false,
		"1e999999999":           false,
	}
	for in, want := range cases {
		if got := ValidAmount(decimal.RequireFromString(in)); got != want {
			t.Errorf("ValidAmount(%s) = %v, want %v", in, got, want)
		}
	}
}
