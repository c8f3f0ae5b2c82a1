package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindInitial     Kind = "INITIAL"
	KindDeposit     Kind = "DEPOSIT"
	KindWithdraw    Kind = "WITHDRAW"
	KindTransferOut Kind = "TRANSFER_OUT"
	KindTransferIn  Kind = "TRANSFER_IN"
	KindInterest    Kind = "INTEREST"
)

// Valid reports whether k is one of the known transaction kinds
func (k Kind) Valid() bool {
	switch k {
	case KindInitial, KindDeposit, KindWithdraw, KindTransferOut, KindTransferIn, KindInterest:
		return true
	default:
		return false
	}
}

const (
	fieldSeparator = "|"
	timestampFmt   = time.RFC3339Nano
	describeFmt    = time.ANSIC
)

// Transaction is one balance-changing event on an account. Amount is signed:
// credits are positive, debits negative.
type Transaction struct {
	Timestamp    time.Time
	Kind         Kind
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
}

// NewTransaction stamps a transaction with the current time
func NewTransaction(kind Kind, amount, balanceAfter decimal.Decimal) Transaction {
	return newTransaction(time.Now().UTC(), kind, amount, balanceAfter)
}

func newTransaction(ts time.Time, kind Kind, amount, balanceAfter decimal.Decimal) Transaction {
	return Transaction{
		Timestamp:    ts,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balanceAfter,
	}
}

// Describe renders the transaction for display, e.g.
//
//	Mon Jan  2 15:04:05 2006 |    DEPOSIT | $50.00 | Balance: $150.00
func (t Transaction) Describe() string {
	return fmt.Sprintf("%s | %10s | $%s | Balance: $%s",
		t.Timestamp.Local().Format(describeFmt),
		t.Kind,
		t.Amount.StringFixed(2),
		t.BalanceAfter.StringFixed(2),
	)
}

// Serialize encodes the transaction as a single log line without the trailing newline
func (t Transaction) Serialize() string {
	return strings.Join([]string{
		t.Timestamp.UTC().Format(timestampFmt),
		string(t.Kind),
		t.Amount.String(),
		t.BalanceAfter.String(),
	}, fieldSeparator)
}

// Deserialize parses a line produced by Serialize
func Deserialize(line string) (Transaction, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), fieldSeparator)
	if len(fields) != 4 {
		return Transaction{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrFormat, len(fields))
	}

	ts, err := time.Parse(timestampFmt, fields[0])
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: timestamp %q: %v", ErrFormat, fields[0], err)
	}

	kind := Kind(fields[1])
	if !kind.Valid() {
		return Transaction{}, fmt.Errorf("%w: unknown kind %q", ErrFormat, fields[1])
	}

	amount, err := decimal.NewFromString(fields[2])
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: amount %q: %v", ErrFormat, fields[2], err)
	}

	balance, err := decimal.NewFromString(fields[3])
	if err != nil {
		return Transaction{}, fmt.Errorf("%w: balance %q: %v", ErrFormat, fields[3], err)
	}

	return Transaction{
		Timestamp:    ts,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: balance,
	}, nil
}
