package ledger

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Moon9t/C-Mini-Bank-System/internal/admin"
	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"
	"github.com/Moon9t/C-Mini-Bank-System/internal/storage"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var errDisk = errors.New("disk full")

// faultyStore wraps a real store and fails selected writes
type faultyStore struct {
	storage.Store
	failAppendFor string
	failSave      bool
	failTruncate  bool
}

func (f *faultyStore) AppendTransaction(num string, tx domain.Transaction) error {
	if num == f.failAppendFor {
		return errDisk
	}
	return f.Store.AppendTransaction(num, tx)
}

func (f *faultyStore) SaveAll(recs []storage.AccountRecord) error {
	if f.failSave {
		return errDisk
	}
	return f.Store.SaveAll(recs)
}

func (f *faultyStore) TruncateTransactions(num string, n int) error {
	if f.failTruncate {
		return errDisk
	}
	return f.Store.TruncateTransactions(num, n)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func quiet() *log.Logger { return log.New(io.Discard) }

func admins(t *testing.T) *admin.Registry {
	t.Helper()
	c, err := admin.NewCredential("admin", "admin123", bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	r, err := admin.NewRegistry(c)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func fileStore(t *testing.T, dir string) *storage.FileStore {
	t.Helper()
	s, err := storage.NewFileStore(dir, quiet())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func openBank(t *testing.T, store storage.Store) *Bank {
	t.Helper()
	b, err := Open(Options{Store: store, Admins: admins(t), Logger: quiet(), PinCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("Open err=%v", err)
	}
	return b
}

func newBank(t *testing.T) (*Bank, string) {
	t.Helper()
	dir := t.TempDir()
	return openBank(t, fileStore(t, dir)), dir
}

func balance(t *testing.T, b *Bank, num string) decimal.Decimal {
	t.Helper()
	a, err := b.FindAccount(num)
	if err != nil {
		t.Fatalf("FindAccount(%s) err=%v", num, err)
	}
	return a.Balance()
}

func historyLen(t *testing.T, b *Bank, num string) int {
	t.Helper()
	h, err := b.History(num)
	if err != nil {
		t.Fatalf("History(%s) err=%v", num, err)
	}
	return len(h)
}

func checkInvariant(t *testing.T, b *Bank) {
	t.Helper()
	for _, a := range b.Accounts() {
		sum := decimal.Zero
		for _, tx := range a.History() {
			sum = sum.Add(tx.Amount)
		}
		if !sum.Equal(a.Balance()) {
			t.Fatalf("%s balance=%s sum(history)=%s", a.Number(), a.Balance(), sum)
		}
	}
}

func TestEndToEndScenario(t *testing.T) {
	b, dir := newBank(t)

	if _, err := b.CreateAccount("A1", "Alice", "1111", domain.Savings, d("100.00")); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Deposit("A1", d("50.00")); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, b, "A1"); !got.Equal(d("150.00")) {
		t.Fatalf("A1 balance=%s want=150.00", got)
	}
	if n := historyLen(t, b, "A1"); n != 2 {
		t.Fatalf("A1 history=%d want=2", n)
	}

	if _, err := b.CreateAccount("A2", "Bob", "2222", domain.Checking, d("0.00")); err != nil {
		t.Fatal(err)
	}
	if err := b.Transfer("A1", "A2", d("30.00")); err != nil {
		t.Fatal(err)
	}
	if got := balance(t, b, "A1"); !got.Equal(d("120.00")) {
		t.Fatalf("A1 balance=%s want=120.00", got)
	}
	if got := balance(t, b, "A2"); !got.Equal(d("30.00")) {
		t.Fatalf("A2 balance=%s want=30.00", got)
	}
	if historyLen(t, b, "A1") != 3 || historyLen(t, b, "A2") != 1 {
		t.Fatalf("each side of the transfer should gain one transaction")
	}

	if _, err := b.CreateAccount("A1", "Mallory", "9999", domain.Checking, d("1000")); !errors.Is(err, domain.ErrDuplicateAccount) {
		t.Fatalf("want ErrDuplicateAccount, got %v", err)
	}
	a1, _ := b.FindAccount("A1")
	if a1.Owner() != "Alice" || !a1.Balance().Equal(d("120")) || len(b.Accounts()) != 2 {
		t.Fatalf("duplicate create changed state")
	}
	checkInvariant(t, b)

	// everything survives a restart
	r := openBank(t, fileStore(t, dir))
	if got := balance(t, r, "A1"); !got.Equal(d("120")) {
		t.Fatalf("reopened A1 balance=%s", got)
	}
	if got := balance(t, r, "A2"); !got.Equal(d("30")) {
		t.Fatalf("reopened A2 balance=%s", got)
	}
	if historyLen(t, r, "A1") != 3 || historyLen(t, r, "A2") != 1 {
		t.Fatalf("reopened histories differ")
	}
	if _, err := r.Authenticate("A1", "1111"); err != nil {
		t.Fatalf("PIN lost across restart: %v", err)
	}
	checkInvariant(t, r)
}

func TestCreateAccountValidation(t *testing.T) {
	b, _ := newBank(t)
	tests := []struct {
		name, num, owner, pin, initial string
		want                           error
	}{
		{"negative opening", "A1", "Alice", "1111", "-1", domain.ErrInvalidAmount},
		{"oversized opening", "A1", "Alice", "1111", "1e70000", domain.ErrInvalidAmount},
		{"fractional cent opening", "A1", "Alice", "1111", "0.001", domain.ErrInvalidAmount},
		{"no owner", "A1", " ", "1111", "0", domain.ErrInvalidInput},
		{"no pin", "A1", "Alice", "", "0", domain.ErrInvalidInput},
		{"bad number", "A/1", "Alice", "1111", "0", domain.ErrInvalidAccountNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := b.CreateAccount(tt.num, tt.owner, tt.pin, domain.Savings, d(tt.initial)); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
	if len(b.Accounts()) != 0 {
		t.Fatalf("failed creates inserted accounts")
	}
}

func TestCreateAccountGeneratesNumber(t *testing.T) {
	b, _ := newBank(t)
	a, err := b.CreateAccount("", "Carol", "3333", domain.Checking, d("5"))
	if err != nil {
		t.Fatal(err)
	}
	if !domain.ValidAccountNumber(a.Number()) || len(a.Number()) != 10 {
		t.Fatalf("generated number %q", a.Number())
	}
	if _, err := b.FindAccount(a.Number()); err != nil {
		t.Fatal(err)
	}
}

func TestFindAccountNotFound(t *testing.T) {
	b, _ := newBank(t)
	if _, err := b.FindAccount("X"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := b.Deposit("X", d("1")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	b, _ := newBank(t)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Savings, d("0"))

	if _, err := b.Authenticate("A1", "1111"); err != nil {
		t.Fatal(err)
	}
	_, wrongPin := b.Authenticate("A1", "0000")
	_, noAccount := b.Authenticate("ZZ", "1111")
	if !errors.Is(wrongPin, domain.ErrUnauthorized) || !errors.Is(noAccount, domain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for both, got %v / %v", wrongPin, noAccount)
	}
	if wrongPin.Error() != noAccount.Error() {
		t.Fatalf("failures are distinguishable: %q vs %q", wrongPin, noAccount)
	}

	if !b.AuthenticateAdmin("admin", "admin123") {
		t.Fatalf("admin rejected")
	}
	if b.AuthenticateAdmin("admin", "nope") || b.AuthenticateAdmin("root", "admin123") {
		t.Fatalf("bad admin credentials accepted")
	}
}

func TestUnknownAccountCostsAsMuchAsWrongPin(t *testing.T) {
	b, _ := newBank(t)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Savings, d("0"))
	_, _ = b.Authenticate("ZZ", "1111") // warm up the decoy

	elapsed := func(num string) time.Duration {
		start := time.Now()
		if _, err := b.Authenticate(num, "0000"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("Authenticate(%s) err=%v", num, err)
		}
		return time.Since(start)
	}
	known, unknown := elapsed("A1"), elapsed("ZZ")
	if unknown < known/4 {
		t.Fatalf("unknown account answered in %v, wrong PIN in %v", unknown, known)
	}
}

func TestWithdrawFailuresLeaveStateUnchanged(t *testing.T) {
	b, _ := newBank(t)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Checking, d("100"))

	if _, err := b.Withdraw("A1", d("100.01")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if _, err := b.Deposit("A1", d("0")); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("want ErrInvalidAmount, got %v", err)
	}
	if !balance(t, b, "A1").Equal(d("100")) || historyLen(t, b, "A1") != 1 {
		t.Fatalf("state changed")
	}
}

func TestOversizedAmountsNeverReachTheStore(t *testing.T) {
	dir := t.TempDir()
	inner := fileStore(t, dir)
	b := openBank(t, inner)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Savings, d("100"))

	huge := d("1e70000")
	if _, err := b.Deposit("A1", huge); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("Deposit want ErrInvalidAmount, got %v", err)
	}
	if _, err := b.Withdraw("A1", d("1e-70000")); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("Withdraw want ErrInvalidAmount, got %v", err)
	}
	if _, err := b.Deposit("A1", domain.MaxAmount); err != nil {
		t.Fatalf("deposit at the limit: %v", err)
	}

	txs, err := inner.LoadTransactions("A1")
	if err != nil || len(txs) != 2 {
		t.Fatalf("log len=%d err=%v", len(txs), err)
	}
	r := openBank(t, fileStore(t, dir))
	if !balance(t, r, "A1").Equal(domain.MaxAmount.Add(d("100"))) {
		t.Fatalf("reopened balance=%s", balance(t, r, "A1"))
	}
}

func TestTransferErrors(t *testing.T) {
	b, _ := newBank(t)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Savings, d("100"))
	_, _ = b.CreateAccount("A2", "Bob", "2222", domain.Checking, d("0"))

	tests := []struct {
		name, src, dst, amt string
		want                error
	}{
		{"missing source", "XX", "A2", "1", domain.ErrNotFound},
		{"missing target", "A1", "XX", "1", domain.ErrNotFound},
		{"same account", "A1", "A1", "1", domain.ErrSameAccount},
		{"insufficient", "A1", "A2", "101", domain.ErrInsufficientFunds},
		{"negative", "A1", "A2", "-1", domain.ErrInvalidAmount},
		{"oversized", "A1", "A2", "1e70000", domain.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := b.Transfer(tt.src, tt.dst, d(tt.amt)); !errors.Is(err, tt.want) {
				t.Fatalf("want %v, got %v", tt.want, err)
			}
		})
	}
	if !balance(t, b, "A1").Equal(d("100")) || !balance(t, b, "A2").IsZero() {
		t.Fatalf("failed transfers moved money")
	}
}

func TestTransferRollsBackWhenCreditLegCannotBePersisted(t *testing.T) {
	dir := t.TempDir()
	inner := fileStore(t, dir)
	fs := &faultyStore{Store: inner}
	b := openBank(t, fs)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Savings, d("100"))
	_, _ = b.CreateAccount("A2", "Bob", "2222", domain.Checking, d("0"))

	fs.failAppendFor = "A2"
	if err := b.Transfer("A1", "A2", d("40")); !errors.Is(err, errDisk) {
		t.Fatalf("want disk error, got %v", err)
	}
	if !balance(t, b, "A1").Equal(d("100")) || historyLen(t, b, "A1") != 1 {
		t.Fatalf("source not restored: %s", balance(t, b, "A1"))
	}
	if !balance(t, b, "A2").IsZero() || historyLen(t, b, "A2") != 0 {
		t.Fatalf("target changed: %s", balance(t, b, "A2"))
	}

	// the debit already written to A1's log was cut back
	txs, err := inner.LoadTransactions("A1")
	if err != nil || len(txs) != 1 {
		t.Fatalf("A1 log len=%d err=%v", len(txs), err)
	}

	fs.failAppendFor = ""
	if err := b.Transfer("A1", "A2", d("40")); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	r := openBank(t, fileStore(t, dir))
	if !balance(t, r, "A1").Equal(d("60")) || !balance(t, r, "A2").Equal(d("40")) {
		t.Fatalf("reopened balances %s/%s", balance(t, r, "A1"), balance(t, r, "A2"))
	}
	checkInvariant(t, r)
}

func TestSnapshotFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	fs := &faultyStore{Store: fileStore(t, dir)}
	b := openBank(t, fs)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Savings, d("100"))

	fs.failSave = true
	if _, err := b.Deposit("A1", d("5")); !errors.Is(err, errDisk) {
		t.Fatalf("want disk error, got %v", err)
	}
	if _, err := b.CreateAccount("A2", "Bob", "2222", domain.Checking, d("10")); !errors.Is(err, errDisk) {
		t.Fatalf("want disk error, got %v", err)
	}
	if _, err := b.FindAccount("A2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("failed create left an account behind")
	}
	if !balance(t, b, "A1").Equal(d("100")) || historyLen(t, b, "A1") != 1 {
		t.Fatalf("memory not rolled back")
	}

	r := openBank(t, fileStore(t, dir))
	if !balance(t, r, "A1").Equal(d("100")) || historyLen(t, r, "A1") != 1 {
		t.Fatalf("disk not consistent with memory")
	}
	if len(r.Accounts()) != 1 {
		t.Fatalf("reopened %d accounts want 1", len(r.Accounts()))
	}
}

func TestFailedLogUndoSuspendsWritesUntilRepaired(t *testing.T) {
	dir := t.TempDir()
	inner := fileStore(t, dir)
	fs := &faultyStore{Store: inner}
	b := openBank(t, fs)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Savings, d("100"))

	// the deposit line reaches the log but neither the snapshot nor the undo does
	fs.failSave, fs.failTruncate = true, true
	if _, err := b.Deposit("A1", d("5")); !errors.Is(err, errDisk) {
		t.Fatalf("want disk error, got %v", err)
	}
	if txs, _ := inner.LoadTransactions("A1"); len(txs) != 2 {
		t.Fatalf("expected a stale line in the log, len=%d", len(txs))
	}

	fs.failSave = false
	if _, err := b.Deposit("A1", d("7")); !errors.Is(err, errDisk) {
		t.Fatalf("write allowed on an unsynced log: %v", err)
	}
	if !balance(t, b, "A1").Equal(d("100")) || historyLen(t, b, "A1") != 1 {
		t.Fatalf("refused write changed memory")
	}

	fs.failTruncate = false
	if _, err := b.Deposit("A1", d("7")); err != nil {
		t.Fatalf("deposit after repair: %v", err)
	}
	txs, err := inner.LoadTransactions("A1")
	if err != nil || len(txs) != 2 || !txs[1].Amount.Equal(d("7")) {
		t.Fatalf("log after repair: %+v err=%v", txs, err)
	}

	r := openBank(t, fileStore(t, dir))
	if !balance(t, r, "A1").Equal(d("107")) || historyLen(t, r, "A1") != 2 {
		t.Fatalf("reopened balance=%s len=%d", balance(t, r, "A1"), historyLen(t, r, "A1"))
	}
	checkInvariant(t, r)
}

func TestApplyMonthlyInterestToAll(t *testing.T) {
	dir := t.TempDir()
	b := openBank(t, fileStore(t, dir))
	_, _ = b.CreateAccount("S1", "Alice", "1111", domain.Savings, d("1200.00"))
	_, _ = b.CreateAccount("S2", "Dan", "4444", domain.Savings, d("0"))
	_, _ = b.CreateAccount("C1", "Bob", "2222", domain.Checking, d("1200.00"))

	n, err := b.ApplyMonthlyInterestToAll()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("credited=%d want=2", n)
	}
	if got := balance(t, b, "S1"); !got.Equal(d("1202.50")) {
		t.Fatalf("S1 balance=%s want=1202.50", got)
	}
	h, _ := b.History("S1")
	if last := h[len(h)-1]; last.Kind != domain.KindInterest || !last.Amount.Equal(d("2.50")) {
		t.Fatalf("interest tx=%+v", last)
	}
	if h, _ := b.History("S2"); len(h) != 1 || h[0].Kind != domain.KindInterest || !h[0].Amount.IsZero() {
		t.Fatalf("S2 history=%+v want one zero INTEREST record", h)
	}
	if got := balance(t, b, "C1"); !got.Equal(d("1200")) || historyLen(t, b, "C1") != 1 {
		t.Fatalf("checking account changed: %s", got)
	}

	r := openBank(t, fileStore(t, dir))
	if got := balance(t, r, "S1"); !got.Equal(d("1202.50")) {
		t.Fatalf("reopened S1 balance=%s", got)
	}
}

func TestOpenReconcilesUncommittedTail(t *testing.T) {
	dir := t.TempDir()
	inner := fileStore(t, dir)
	b := openBank(t, inner)
	_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Checking, d("100"))

	// simulate a crash between the log append and the snapshot write
	a, _ := b.FindAccount("A1")
	_ = a.Deposit(d("5"))
	h := a.History()
	if err := inner.AppendTransaction("A1", h[len(h)-1]); err != nil {
		t.Fatal(err)
	}

	r := openBank(t, fileStore(t, dir))
	if !balance(t, r, "A1").Equal(d("100")) || historyLen(t, r, "A1") != 1 {
		t.Fatalf("uncommitted record replayed: %s", balance(t, r, "A1"))
	}
	txs, _ := inner.LoadTransactions("A1")
	if len(txs) != 1 {
		t.Fatalf("log not truncated: len=%d", len(txs))
	}
}

func TestOpenRejectsCorruptStore(t *testing.T) {
	t.Run("missing log records", func(t *testing.T) {
		dir := t.TempDir()
		b := openBank(t, fileStore(t, dir))
		_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Checking, d("100"))
		if err := os.Remove(filepath.Join(dir, "transactions_A1.txt")); err != nil {
			t.Fatal(err)
		}
		_, err := Open(Options{Store: fileStore(t, dir), Admins: admins(t), Logger: quiet()})
		if !errors.Is(err, domain.ErrCorruptStore) {
			t.Fatalf("want ErrCorruptStore, got %v", err)
		}
	})

	t.Run("balance mismatch", func(t *testing.T) {
		dir := t.TempDir()
		inner := fileStore(t, dir)
		b := openBank(t, inner)
		_, _ = b.CreateAccount("A1", "Alice", "1111", domain.Checking, d("100"))
		recs, _ := inner.LoadAll()
		recs[0].Balance = d("1000000")
		if err := inner.SaveAll(recs); err != nil {
			t.Fatal(err)
		}
		_, err := Open(Options{Store: fileStore(t, dir), Admins: admins(t), Logger: quiet()})
		if !errors.Is(err, domain.ErrCorruptStore) {
			t.Fatalf("want ErrCorruptStore, got %v", err)
		}
	})

	t.Run("garbage accounts file", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "accounts.json"), []byte("garbage"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := Open(Options{Store: fileStore(t, dir), Admins: admins(t), Logger: quiet()})
		if !errors.Is(err, domain.ErrCorruptStore) {
			t.Fatalf("want ErrCorruptStore, got %v", err)
		}
	})
}

func TestCreateAccountClearsOrphanLog(t *testing.T) {
	dir := t.TempDir()
	inner := fileStore(t, dir)
	// a log left behind by a create whose snapshot write never happened
	orphan := domain.Transaction{Kind: domain.KindInitial, Amount: d("999"), BalanceAfter: d("999")}
	if err := inner.AppendTransaction("A1", orphan); err != nil {
		t.Fatal(err)
	}

	b := openBank(t, inner)
	if _, err := b.CreateAccount("A1", "Alice", "1111", domain.Checking, d("10")); err != nil {
		t.Fatal(err)
	}
	r := openBank(t, fileStore(t, dir))
	if !balance(t, r, "A1").Equal(d("10")) || historyLen(t, r, "A1") != 1 {
		t.Fatalf("orphan log replayed: %s", balance(t, r, "A1"))
	}
}

func TestAccountsSorted(t *testing.T) {
	b, _ := newBank(t)
	for _, n := range []string{"C3", "A1", "B2"} {
		if _, err := b.CreateAccount(n, "x", "1", domain.Checking, d("0")); err != nil {
			t.Fatal(err)
		}
	}
	got := b.Accounts()
	if got[0].Number() != "A1" || got[1].Number() != "B2" || got[2].Number() != "C3" {
		t.Fatalf("unexpected order: %s %s %s", got[0].Number(), got[1].Number(), got[2].Number())
	}
}
