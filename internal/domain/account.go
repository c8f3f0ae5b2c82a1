package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Moon9t/C-Mini-Bank-System/internal/secret"
	"github.com/shopspring/decimal"
)

type AccountType int

const (
	Savings AccountType = iota
	Checking
)

// String returns the display name shown in account listings
func (t AccountType) String() string {
	switch t {
	case Savings:
		return "Savings"
	case Checking:
		return "Checking"
	default:
		return fmt.Sprintf("AccountType(%d)", int(t))
	}
}

// Code is the stable identifier used in persisted records
func (t AccountType) Code() string {
	switch t {
	case Savings:
		return "SAVINGS"
	case Checking:
		return "CHECKING"
	default:
		return ""
	}
}

// ParseAccountType accepts codes, display names and the 0/1 menu choices
func ParseAccountType(s string) (AccountType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "savings", "saving":
		return Savings, nil
	case "1", "checking", "chequing":
		return Checking, nil
	default:
		return 0, fmt.Errorf("%w: unknown account type %q", ErrInvalidInput, s)
	}
}

// SavingsAnnualRate is the flat yearly rate paid on savings accounts, credited monthly
var SavingsAnnualRate = decimal.RequireFromString("0.025")

var (
	monthsPerYear = decimal.NewFromInt(12)
	accountNumRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)
)

// ValidAccountNumber reports whether num can be used as an account number.
// Account numbers name the per-account transaction log, so the charset is narrow.
func ValidAccountNumber(num string) bool {
	return accountNumRe.MatchString(num)
}

// Account owns a balance and its append-only transaction history. Every
// mutation updates both together.
type Account struct {
	number  string
	owner   string
	pinHash string
	typ     AccountType
	balance decimal.Decimal
	history []Transaction
	clock   func() time.Time
}

// NewAccount opens an account. A positive opening balance is recorded as an
// INITIAL transaction; pinHash must already be hashed.
func NewAccount(number, owner, pinHash string, typ AccountType, initial decimal.Decimal) (*Account, error) {
	if !ValidAccountNumber(number) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAccountNumber, number)
	}
	if initial.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance must not be negative", ErrInvalidAmount)
	}
	if err := checkBounds(initial); err != nil {
		return nil, err
	}

	a := &Account{
		number:  number,
		owner:   owner,
		pinHash: pinHash,
		typ:     typ,
		balance: decimal.Zero,
		clock:   defaultClock,
	}
	if initial.IsPositive() {
		a.apply(KindInitial, initial)
	}
	return a, nil
}

// RestoreAccount rebuilds an account from persisted history. The balance is
// recomputed from the history rather than trusted.
func RestoreAccount(number, owner, pinHash string, typ AccountType, history []Transaction) *Account {
	a := &Account{
		number:  number,
		owner:   owner,
		pinHash: pinHash,
		typ:     typ,
		balance: decimal.Zero,
		history: make([]Transaction, len(history)),
		clock:   defaultClock,
	}
	copy(a.history, history)
	for _, t := range history {
		a.balance = a.balance.Add(t.Amount)
	}
	return a
}

func defaultClock() time.Time { return time.Now().UTC() }

// SetClock replaces the time source; used by tests
func (a *Account) SetClock(clock func() time.Time) { a.clock = clock }

func (a *Account) Number() string           { return a.number }
func (a *Account) Owner() string            { return a.owner }
func (a *Account) Type() AccountType        { return a.typ }
func (a *Account) Balance() decimal.Decimal { return a.balance }
func (a *Account) PinHash() string          { return a.pinHash }

// Len returns the number of recorded transactions
func (a *Account) Len() int { return len(a.history) }

// History returns a copy of the transaction history, oldest first
func (a *Account) History() []Transaction {
	out := make([]Transaction, len(a.history))
	copy(out, a.history)
	return out
}

// VerifyPin checks candidate against the stored hash in constant time
func (a *Account) VerifyPin(candidate string) bool {
	return secret.Verify(a.pinHash, candidate)
}

func (a *Account) Deposit(amount decimal.Decimal) error {
	return a.credit(KindDeposit, amount)
}

func (a *Account) Withdraw(amount decimal.Decimal) error {
	return a.debit(KindWithdraw, amount)
}

// Transfer moves amount from a to target. If the credit to target cannot be
// applied the debit is undone, so either both legs land or neither does.
func (a *Account) Transfer(target *Account, amount decimal.Decimal) error {
	if target == nil {
		return fmt.Errorf("transfer target: %w", ErrNotFound)
	}
	if target == a || target.number == a.number {
		return ErrSameAccount
	}

	mark := a.Mark()
	if err := a.debit(KindTransferOut, amount); err != nil {
		return err
	}
	if err := target.credit(KindTransferIn, amount); err != nil {
		a.Rollback(mark)
		return fmt.Errorf("transfer to %s: %w", target.number, err)
	}
	return nil
}

// ApplyInterest credits one month of interest to a savings account and records
// it, even when it rounds to zero. Checking accounts are left untouched. Each
// call compounds.
func (a *Account) ApplyInterest() (Transaction, bool) {
	if a.typ != Savings {
		return Transaction{}, false
	}
	interest := a.balance.Mul(SavingsAnnualRate).Div(monthsPerYear).Round(AmountDecimals)
	return a.apply(KindInterest, interest), true
}

func (a *Account) credit(kind Kind, amount decimal.Decimal) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	a.apply(kind, amount)
	return nil
}

func (a *Account) debit(kind Kind, amount decimal.Decimal) error {
	if err := CheckAmount(amount); err != nil {
		return err
	}
	if amount.GreaterThan(a.balance) {
		return fmt.Errorf("%w: balance %s, requested %s",
			ErrInsufficientFunds, a.balance.StringFixed(2), amount.StringFixed(2))
	}
	a.apply(kind, amount.Neg())
	return nil
}

// apply is the only place balance and history change
func (a *Account) apply(kind Kind, amount decimal.Decimal) Transaction {
	ts := a.clock()
	if n := len(a.history); n > 0 && ts.Before(a.history[n-1].Timestamp) {
		ts = a.history[n-1].Timestamp
	}
	a.balance = a.balance.Add(amount)
	t := newTransaction(ts, kind, amount, a.balance)
	a.history = append(a.history, t)
	return t
}

// Mark is an undo point for an account
type Mark struct {
	balance decimal.Decimal
	n       int
}

// Len is the history length captured by the mark
func (m Mark) Len() int { return m.n }

func (a *Account) Mark() Mark {
	return Mark{balance: a.balance, n: len(a.history)}
}

// Rollback discards everything recorded after m
func (a *Account) Rollback(m Mark) {
	if m.n > len(a.history) {
		return
	}
	a.history = a.history[:m.n]
	a.balance = m.balance
}

// Since returns the transactions recorded after m
func (a *Account) Since(m Mark) []Transaction {
	if m.n >= len(a.history) {
		return nil
	}
	out := make([]Transaction, len(a.history)-m.n)
	copy(out, a.history[m.n:])
	return out
}
