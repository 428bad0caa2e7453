package ledger

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/NgigiN/fintrack/internal/domain"
	"github.com/NgigiN/fintrack/internal/money"
	"github.com/NgigiN/fintrack/internal/storage"
)

const owner = "user-1"

func setupLedger(t *testing.T) (*Service, *storage.Database) {
	t.Helper()
	db, err := storage.Open(storage.DriverSQLite, filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db, zerolog.Nop()), db
}

func openAccount(t *testing.T, svc *Service, ownerID, name, balance string) *storage.Account {
	t.Helper()
	account, err := svc.CreateAccount(context.Background(), ownerID, AccountInput{
		Name:    name,
		Type:    domain.Current,
		Balance: money.MustParse(balance),
	})
	if err != nil {
		t.Fatalf("failed to create account %s: %v", name, err)
	}
	return account
}

func expense(accountID, amount string) TransactionInput {
	return TransactionInput{
		AccountID: accountID,
		Type:      domain.Expense,
		Amount:    money.MustParse(amount),
		Category:  "groceries",
		Date:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func assertBalance(t *testing.T, svc *Service, ownerID, accountID, want string) {
	t.Helper()
	account, err := svc.GetAccount(context.Background(), ownerID, accountID)
	if err != nil {
		t.Fatalf("failed to load account %s: %v", accountID, err)
	}
	if account.Balance != money.MustParse(want) {
		t.Fatalf("account %s balance = %s, want %s", account.Name, account.Balance, want)
	}
}

func TestCreateEditDeleteRoundTrip(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	account := openAccount(t, svc, owner, "Main", "500.00")

	txn, err := svc.CreateTransaction(ctx, owner, expense(account.ID, "100.00"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	assertBalance(t, svc, owner, account.ID, "400.00")

	if _, err := svc.UpdateTransaction(ctx, owner, txn.ID, expense(account.ID, "50.00")); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	assertBalance(t, svc, owner, account.ID, "450.00")

	if _, err := svc.BulkDeleteTransactions(ctx, owner, []string{txn.ID}); err != nil {
		t.Fatalf("BulkDeleteTransactions: %v", err)
	}
	assertBalance(t, svc, owner, account.ID, "500.00")
}

func TestEditChangesType(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	account := openAccount(t, svc, owner, "Main", "100.00")

	txn, err := svc.CreateTransaction(ctx, owner, expense(account.ID, "40.00"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	assertBalance(t, svc, owner, account.ID, "60.00")

	in := expense(account.ID, "40.00")
	in.Type = domain.Income
	updated, err := svc.UpdateTransaction(ctx, owner, txn.ID, in)
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if updated.Type != domain.Income {
		t.Fatalf("expected INCOME after edit, got %s", updated.Type)
	}
	assertBalance(t, svc, owner, account.ID, "140.00")
}

func TestEditReassignsAccount(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	a := openAccount(t, svc, owner, "A", "230.00")
	b := openAccount(t, svc, owner, "B", "100.00")

	txn, err := svc.CreateTransaction(ctx, owner, expense(a.ID, "30.00"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	assertBalance(t, svc, owner, a.ID, "200.00")

	updated, err := svc.UpdateTransaction(ctx, owner, txn.ID, expense(b.ID, "30.00"))
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if updated.AccountID != b.ID {
		t.Fatalf("expected transaction on account B, got %s", updated.AccountID)
	}
	assertBalance(t, svc, owner, a.ID, "230.00")
	assertBalance(t, svc, owner, b.ID, "70.00")
}

func TestEditToForeignAccountLeavesEverythingUntouched(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	mine := openAccount(t, svc, owner, "Mine", "100.00")
	theirs := openAccount(t, svc, "user-2", "Theirs", "100.00")

	txn, err := svc.CreateTransaction(ctx, owner, expense(mine.ID, "10.00"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	_, err = svc.UpdateTransaction(ctx, owner, txn.ID, expense(theirs.ID, "10.00"))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertBalance(t, svc, owner, mine.ID, "90.00")
	assertBalance(t, svc, "user-2", theirs.ID, "100.00")

	if _, err := svc.UpdateTransaction(ctx, "user-2", txn.ID, expense(theirs.ID, "10.00")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound when editing someone else's transaction, got %v", err)
	}
}

func TestCreateRejectsForeignAccount(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	theirs := openAccount(t, svc, "user-2", "Theirs", "50.00")

	if _, err := svc.CreateTransaction(ctx, owner, expense(theirs.ID, "10.00")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	assertBalance(t, svc, "user-2", theirs.ID, "50.00")

	txns, err := svc.ListTransactions(ctx, "user-2", "")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txns))
	}
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	account := openAccount(t, svc, owner, "Main", "50.00")

	negative := expense(account.ID, "10.00")
	negative.Amount = money.MustParse("-10.00")

	missingInterval := expense(account.ID, "10.00")
	missingInterval.IsRecurring = true

	badType := expense(account.ID, "10.00")
	badType.Type = "TRANSFER"

	noCategory := expense(account.ID, "10.00")
	noCategory.Category = "  "

	noDate := expense(account.ID, "10.00")
	noDate.Date = time.Time{}

	for name, in := range map[string]TransactionInput{
		"negative amount":  negative,
		"missing interval": missingInterval,
		"unknown type":     badType,
		"no category":      noCategory,
		"no date":          noDate,
	} {
		if _, err := svc.CreateTransaction(ctx, owner, in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
	assertBalance(t, svc, owner, account.ID, "50.00")
}

func TestRecurringFieldsMoveInLockstep(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	account := openAccount(t, svc, owner, "Main", "1000.00")

	monthly := domain.Monthly
	in := expense(account.ID, "25.00")
	in.Date = time.Date(2025, 1, 31, 8, 0, 0, 0, time.UTC)
	in.IsRecurring = true
	in.RecurringInterval = &monthly

	txn, err := svc.CreateTransaction(ctx, owner, in)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	want := time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)
	if txn.NextRecurringDate == nil || !txn.NextRecurringDate.Equal(want) {
		t.Fatalf("next recurring date = %v, want %s", txn.NextRecurringDate, want)
	}

	in.IsRecurring = false
	updated, err := svc.UpdateTransaction(ctx, owner, txn.ID, in)
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	if updated.IsRecurring || updated.RecurringInterval != nil || updated.NextRecurringDate != nil {
		t.Fatalf("expected recurrence fields cleared, got %+v", updated)
	}

	weekly := domain.Weekly
	in.IsRecurring = true
	in.RecurringInterval = &weekly
	updated, err = svc.UpdateTransaction(ctx, owner, txn.ID, in)
	if err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	want = time.Date(2025, 2, 7, 8, 0, 0, 0, time.UTC)
	if updated.NextRecurringDate == nil || !updated.NextRecurringDate.Equal(want) {
		t.Fatalf("next recurring date = %v, want %s", updated.NextRecurringDate, want)
	}
	assertBalance(t, svc, owner, account.ID, "975.00")
}

func TestBulkDeleteAggregatesPerAccount(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	account := openAccount(t, svc, owner, "Main", "100.00")
	other := openAccount(t, svc, owner, "Other", "100.00")

	var ids []string
	for _, amount := range []string{"10.00", "20.00", "30.00"} {
		txn, err := svc.CreateTransaction(ctx, owner, expense(account.ID, amount))
		if err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
		ids = append(ids, txn.ID)
	}
	income := expense(other.ID, "5.00")
	income.Type = domain.Income
	txn, err := svc.CreateTransaction(ctx, owner, income)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	ids = append(ids, txn.ID)
	assertBalance(t, svc, owner, account.ID, "40.00")
	assertBalance(t, svc, owner, other.ID, "105.00")

	result, err := svc.BulkDeleteTransactions(ctx, owner, append(ids, ids[0]))
	if err != nil {
		t.Fatalf("BulkDeleteTransactions: %v", err)
	}
	if result.Deleted != 4 {
		t.Fatalf("expected 4 deleted, got %d", result.Deleted)
	}
	if len(result.BalanceChanges) != 2 {
		t.Fatalf("expected one aggregated change per account, got %v", result.BalanceChanges)
	}
	if got := result.BalanceChanges[account.ID]; got != money.MustParse("60.00") {
		t.Fatalf("aggregated reversal = %s, want 60.00", got)
	}
	if got := result.BalanceChanges[other.ID]; got != money.MustParse("-5.00") {
		t.Fatalf("aggregated reversal = %s, want -5.00", got)
	}
	assertBalance(t, svc, owner, account.ID, "100.00")
	assertBalance(t, svc, owner, other.ID, "100.00")
}

func TestBulkDeleteIsAllOrNothing(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	account := openAccount(t, svc, owner, "Main", "100.00")
	theirs := openAccount(t, svc, "user-2", "Theirs", "100.00")

	mine, err := svc.CreateTransaction(ctx, owner, expense(account.ID, "10.00"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	foreign, err := svc.CreateTransaction(ctx, "user-2", expense(theirs.ID, "10.00"))
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if _, err := svc.BulkDeleteTransactions(ctx, owner, []string{mine.ID, foreign.ID}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetTransaction(ctx, owner, mine.ID); err != nil {
		t.Fatalf("expected transaction to survive the failed batch: %v", err)
	}
	assertBalance(t, svc, owner, account.ID, "90.00")
	assertBalance(t, svc, "user-2", theirs.ID, "90.00")

	if _, err := svc.BulkDeleteTransactions(ctx, owner, nil); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty batch, got %v", err)
	}
}

func TestExactlyOneDefaultAccount(t *testing.T) {
	svc, db := setupLedger(t)
	ctx := context.Background()

	first := openAccount(t, svc, owner, "First", "0")
	if !first.IsDefault {
		t.Fatal("first account must become default")
	}
	second := openAccount(t, svc, owner, "Second", "0")
	if second.IsDefault {
		t.Fatal("second account must not steal the default implicitly")
	}
	third, err := svc.CreateAccount(ctx, owner, AccountInput{Name: "Third", Type: domain.Savings, IsDefault: true})
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}

	countDefaults := func() int64 {
		var n int64
		db.DB(ctx).Model(&storage.Account{}).Where("user_id = ? AND is_default = ?", owner, true).Count(&n)
		return n
	}
	if n := countDefaults(); n != 1 {
		t.Fatalf("expected exactly one default, got %d", n)
	}
	def, err := svc.DefaultAccount(ctx, owner)
	if err != nil || def.ID != third.ID {
		t.Fatalf("expected third account as default, got %v (%v)", def, err)
	}

	if _, err := svc.SetDefaultAccount(ctx, owner, second.ID); err != nil {
		t.Fatalf("SetDefaultAccount: %v", err)
	}
	if n := countDefaults(); n != 1 {
		t.Fatalf("expected exactly one default after switch, got %d", n)
	}
	if def, _ := svc.DefaultAccount(ctx, owner); def.ID != second.ID {
		t.Fatalf("expected second account as default, got %s", def.Name)
	}

	if _, err := svc.SetDefaultAccount(ctx, owner, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := countDefaults(); n != 1 {
		t.Fatalf("failed switch must keep the default, got %d defaults", n)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()

	cases := map[string]AccountInput{
		"empty name":       {Name: " ", Type: domain.Current},
		"unknown type":     {Name: "Main", Type: "CHECKING"},
		"negative balance": {Name: "Main", Type: domain.Current, Balance: money.MustParse("-1")},
	}
	for name, in := range cases {
		if _, err := svc.CreateAccount(ctx, owner, in); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%s: expected ErrInvalidInput, got %v", name, err)
		}
	}
}

func TestBalanceMatchesTransactionsAfterRandomOperations(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	accounts := []*storage.Account{
		openAccount(t, svc, owner, "A", "1000.00"),
		openAccount(t, svc, owner, "B", "250.50"),
		openAccount(t, svc, owner, "C", "0"),
	}
	initial := map[string]money.Money{}
	for _, a := range accounts {
		initial[a.ID] = a.Balance
	}

	randomInput := func() TransactionInput {
		in := expense(accounts[rng.Intn(len(accounts))].ID, "0")
		in.Amount = money.FromMinor(int64(rng.Intn(50000)))
		if rng.Intn(2) == 0 {
			in.Type = domain.Income
		}
		return in
	}

	var live []string
	for i := 0; i < 60; i++ {
		switch op := rng.Intn(4); {
		case op <= 1 || len(live) == 0:
			txn, err := svc.CreateTransaction(ctx, owner, randomInput())
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			live = append(live, txn.ID)
		case op == 2:
			id := live[rng.Intn(len(live))]
			if _, err := svc.UpdateTransaction(ctx, owner, id, randomInput()); err != nil {
				t.Fatalf("update: %v", err)
			}
		default:
			n := 1 + rng.Intn(len(live))
			if _, err := svc.BulkDeleteTransactions(ctx, owner, live[:n]); err != nil {
				t.Fatalf("delete: %v", err)
			}
			live = live[n:]
		}
	}

	txns, err := svc.ListTransactions(ctx, owner, "")
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	expected := initial
	for _, txn := range txns {
		expected[txn.AccountID] += domain.SignedEffect(txn.Type, txn.Amount)
	}
	for _, a := range accounts {
		assertBalance(t, svc, owner, a.ID, expected[a.ID].String())
	}
}

func TestConcurrentCreatesDoNotLoseUpdates(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()
	account := openAccount(t, svc, owner, "Main", "0")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := expense(account.ID, "1.25")
			if i%2 == 0 {
				in.Type = domain.Income
				in.Amount = money.MustParse("3.00")
			}
			if _, err := svc.CreateTransaction(ctx, owner, in); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create failed: %v", err)
	}
	// 10 * 3.00 - 10 * 1.25
	assertBalance(t, svc, owner, account.ID, "17.50")
}

func TestEnsureUser(t *testing.T) {
	svc, _ := setupLedger(t)
	ctx := context.Background()

	user, err := svc.EnsureUser(ctx, "u-9", "ann@example.com", "Ann")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if user.Email != "ann@example.com" || user.Name != "Ann" {
		t.Fatalf("unexpected user %+v", user)
	}

	user, err = svc.EnsureUser(ctx, "u-9", "", "")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if user.Email != "ann@example.com" {
		t.Fatalf("empty email must not overwrite stored one, got %q", user.Email)
	}

	if _, err := svc.EnsureUser(ctx, " ", "", ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
