// Package ledger is the bank: it owns every account, is the only place new
// accounts are inserted, and writes each mutation through to the store before
// returning.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Moon9t/C-Mini-Bank-System/internal/admin"
	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"
	"github.com/Moon9t/C-Mini-Bank-System/internal/secret"
	"github.com/Moon9t/C-Mini-Bank-System/internal/storage"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Options struct {
	Store  storage.Store
	Admins admin.Authenticator
	Logger *log.Logger
	// PinCost is the bcrypt cost used for new PINs; zero means secret.DefaultCost
	PinCost int
	// Clock overrides the transaction time source; nil uses the wall clock
	Clock func() time.Time
}

// Bank is not safe for concurrent use; the process serves one session at a time.
type Bank struct {
	store   storage.Store
	admins  admin.Authenticator
	log     *log.Logger
	pinCost int
	clock   func() time.Time
	accts   map[string]*domain.Account

	// unsynced holds logs whose rollback truncate failed, with the length
	// they must be cut back to before anything else is appended
	unsynced map[string]int
}

// Open builds a bank from whatever the store holds. A store that cannot be
// loaded completely is an error; nothing is partially loaded.
func Open(opts Options) (*Bank, error) {
	if opts.Store == nil {
		return nil, errors.New("ledger: store is required")
	}
	if opts.Admins == nil {
		return nil, errors.New("ledger: admin store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cost := opts.PinCost
	if cost == 0 {
		cost = secret.DefaultCost
	}

	b := &Bank{
		store:   opts.Store,
		admins:  opts.Admins,
		log:     logger.WithPrefix("ledger"),
		pinCost: secret.ClampCost(cost),
		clock:   opts.Clock,
		accts:   make(map[string]*domain.Account),

		unsynced: make(map[string]int),
	}
	if err := b.restore(); err != nil {
		return nil, err
	}

	b.log.Info("ledger opened", "accounts", len(b.accts))
	return b, nil
}

func (b *Bank) restore() error {
	recs, err := b.store.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	accts := make(map[string]*domain.Account, len(recs))
	for _, rec := range recs {
		a, err := b.restoreAccount(rec)
		if err != nil {
			return err
		}
		accts[a.Number()] = a
	}
	b.accts = accts
	return nil
}

func (b *Bank) restoreAccount(rec storage.AccountRecord) (*domain.Account, error) {
	corrupt := func(format string, args ...any) error {
		return fmt.Errorf("%w: account %s: %s", domain.ErrCorruptStore, rec.Number, fmt.Sprintf(format, args...))
	}

	typ, err := domain.ParseAccountType(rec.Type)
	if err != nil {
		return nil, corrupt("%v", err)
	}

	txs, err := b.store.LoadTransactions(rec.Number)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	if len(txs) < rec.TxCount {
		return nil, corrupt("transaction log has %d records, %d committed", len(txs), rec.TxCount)
	}
	if len(txs) > rec.TxCount {
		b.log.Warn("dropping uncommitted transactions", "account", rec.Number, "count", len(txs)-rec.TxCount)
		txs = txs[:rec.TxCount]
	}
	// always called: it also cuts a torn final record
	if err := b.store.TruncateTransactions(rec.Number, rec.TxCount); err != nil {
		return nil, fmt.Errorf("failed to reconcile transaction log for %s: %w", rec.Number, err)
	}

	running := decimal.Zero
	for i, tx := range txs {
		running = running.Add(tx.Amount)
		if !tx.BalanceAfter.Equal(running) {
			return nil, corrupt("record %d balance %s, expected %s", i+1, tx.BalanceAfter, running)
		}
	}
	if !running.Equal(rec.Balance) {
		return nil, corrupt("balance %s does not match transaction total %s", rec.Balance, running)
	}

	a := domain.RestoreAccount(rec.Number, rec.Owner, rec.PinHash, typ, txs)
	if b.clock != nil {
		a.SetClock(b.clock)
	}
	return a, nil
}

// CreateAccount opens a new account. A blank number is replaced with a
// generated one.
func (b *Bank) CreateAccount(number, owner, pin string, typ domain.AccountType, initial decimal.Decimal) (*domain.Account, error) {
	number = strings.TrimSpace(number)
	owner = strings.TrimSpace(owner)
	if number == "" {
		number = b.newAccountNumber()
	}
	if _, ok := b.accts[number]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, number)
	}
	if owner == "" {
		return nil, fmt.Errorf("%w: owner name is required", domain.ErrInvalidInput)
	}
	if pin == "" {
		return nil, fmt.Errorf("%w: PIN is required", domain.ErrInvalidInput)
	}
	if !domain.ValidAccountNumber(number) {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAccountNumber, number)
	}
	if initial.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance must not be negative", domain.ErrInvalidAmount)
	}
	if initial.IsPositive() {
		if err := domain.CheckAmount(initial); err != nil {
			return nil, err
		}
	}

	h, err := secret.Hash(pin, b.pinCost)
	if err != nil {
		return nil, err
	}
	a, err := domain.NewAccount(number, owner, h, typ, initial)
	if err != nil {
		return nil, err
	}
	if b.clock != nil {
		a.SetClock(b.clock)
	}

	if err := b.repairLogs(); err != nil {
		return nil, err
	}
	// a log left by an earlier failed create would otherwise be replayed
	if err := b.store.TruncateTransactions(number, 0); err != nil {
		return nil, fmt.Errorf("failed to reset transaction log: %w", err)
	}

	b.accts[number] = a
	empty := domain.Mark{}
	if err := b.persist([]*domain.Account{a}, []domain.Mark{empty}); err != nil {
		delete(b.accts, number)
		return nil, err
	}

	b.log.Info("account created", "account", number, "type", typ)
	return a, nil
}

func (b *Bank) newAccountNumber() string {
	for {
		n := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
		if _, ok := b.accts[n]; !ok {
			return n
		}
	}
}

// FindAccount returns the live account. Callers must mutate it only through
// Bank methods, otherwise the change is never persisted.
func (b *Bank) FindAccount(number string) (*domain.Account, error) {
	a, ok := b.accts[number]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", number, domain.ErrNotFound)
	}
	return a, nil
}

// Authenticate returns the account if pin matches. Unknown accounts and wrong
// PINs fail the same way.
func (b *Bank) Authenticate(number, pin string) (*domain.Account, error) {
	a, ok := b.accts[number]
	if !ok {
		secret.Reject(pin)
	}
	if !ok || !a.VerifyPin(pin) {
		b.log.Debug("account authentication failed", "account", number)
		return nil, domain.ErrUnauthorized
	}
	return a, nil
}

func (b *Bank) AuthenticateAdmin(username, password string) bool {
	ok := b.admins.Authenticate(username, password)
	if !ok {
		b.log.Debug("admin authentication failed", "username", username)
	}
	return ok
}

// Accounts returns every account ordered by account number
func (b *Bank) Accounts() []*domain.Account {
	out := make([]*domain.Account, 0, len(b.accts))
	for _, a := range b.accts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number() < out[j].Number() })
	return out
}

func (b *Bank) History(number string) ([]domain.Transaction, error) {
	a, err := b.FindAccount(number)
	if err != nil {
		return nil, err
	}
	return a.History(), nil
}

func (b *Bank) Deposit(number string, amount decimal.Decimal) (*domain.Account, error) {
	if err := domain.CheckAmount(amount); err != nil {
		return nil, err
	}
	a, err := b.FindAccount(number)
	if err != nil {
		return nil, err
	}
	if err := b.mutate(func() error { return a.Deposit(amount) }, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (b *Bank) Withdraw(number string, amount decimal.Decimal) (*domain.Account, error) {
	if err := domain.CheckAmount(amount); err != nil {
		return nil, err
	}
	a, err := b.FindAccount(number)
	if err != nil {
		return nil, err
	}
	if err := b.mutate(func() error { return a.Withdraw(amount) }, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Transfer moves amount between two accounts. On any failure, including a
// failed write, neither account shows a trace of it.
func (b *Bank) Transfer(source, target string, amount decimal.Decimal) error {
	if source == target {
		return domain.ErrSameAccount
	}
	if err := domain.CheckAmount(amount); err != nil {
		return err
	}
	src, err := b.FindAccount(source)
	if err != nil {
		return err
	}
	dst, err := b.FindAccount(target)
	if err != nil {
		return err
	}
	return b.mutate(func() error { return src.Transfer(dst, amount) }, src, dst)
}

// ApplyMonthlyInterestToAll credits interest to every savings account and
// persists once. It returns how many accounts were credited.
func (b *Bank) ApplyMonthlyInterestToAll() (int, error) {
	accts := b.Accounts()
	credited := 0
	err := b.mutate(func() error {
		for _, a := range accts {
			if _, ok := a.ApplyInterest(); ok {
				credited++
			}
		}
		return nil
	}, accts...)
	if err != nil {
		return 0, err
	}

	b.log.Info("monthly interest applied", "credited", credited)
	return credited, nil
}

// mutate runs fn against accts and persists the result. Any failure rolls
// the accounts back to where they were before fn ran.
func (b *Bank) mutate(fn func() error, accts ...*domain.Account) error {
	if err := b.repairLogs(); err != nil {
		return err
	}
	marks := make([]domain.Mark, len(accts))
	for i, a := range accts {
		marks[i] = a.Mark()
	}
	rollback := func() {
		for i, a := range accts {
			a.Rollback(marks[i])
		}
	}

	if err := fn(); err != nil {
		rollback()
		return err
	}
	if err := b.persist(accts, marks); err != nil {
		rollback()
		return err
	}
	return nil
}

// persist appends the new transactions of each account, then saves the
// account snapshot. The snapshot's transaction counts are the commit point: on
// failure the logs are cut back so disk matches the rolled back memory.
func (b *Bank) persist(accts []*domain.Account, marks []domain.Mark) error {
	for i, a := range accts {
		for _, tx := range a.Since(marks[i]) {
			if err := b.store.AppendTransaction(a.Number(), tx); err != nil {
				b.undoLogs(accts, marks)
				return fmt.Errorf("failed to persist transaction: %w", err)
			}
		}
	}
	if err := b.store.SaveAll(b.records()); err != nil {
		b.undoLogs(accts, marks)
		return fmt.Errorf("failed to persist accounts: %w", err)
	}
	return nil
}

func (b *Bank) undoLogs(accts []*domain.Account, marks []domain.Mark) {
	for i, a := range accts {
		if err := b.store.TruncateTransactions(a.Number(), marks[i].Len()); err != nil {
			b.log.Error("failed to undo transaction log", "account", a.Number(), "err", err)
			b.unsynced[a.Number()] = marks[i].Len()
		}
	}
}

// repairLogs retries rollback truncates that failed earlier. Until every log
// is back in step with memory no further writes are made.
func (b *Bank) repairLogs() error {
	for num, n := range b.unsynced {
		if err := b.store.TruncateTransactions(num, n); err != nil {
			return fmt.Errorf("transaction log for %s is out of sync, writes suspended: %w", num, err)
		}
		delete(b.unsynced, num)
		b.log.Info("transaction log repaired", "account", num, "kept", n)
	}
	return nil
}

func (b *Bank) records() []storage.AccountRecord {
	accts := b.Accounts()
	recs := make([]storage.AccountRecord, 0, len(accts))
	for _, a := range accts {
		recs = append(recs, storage.AccountRecord{
			Number:  a.Number(),
			Owner:   a.Owner(),
			Type:    a.Type().Code(),
			PinHash: a.PinHash(),
			Balance: a.Balance(),
			TxCount: a.Len(),
		})
	}
	return recs
}
