// Package command maps bank commands onto ledger calls. It knows nothing
// about terminals, so every command can be driven from tests.
package command

import (
	"fmt"
	"strings"

	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"
	"github.com/shopspring/decimal"
)

type Kind string

const (
	CreateAccount Kind = "create_account"
	Balance       Kind = "balance"
	Deposit       Kind = "deposit"
	Withdraw      Kind = "withdraw"
	Transfer      Kind = "transfer"
	History       Kind = "history"
	AdminLogin    Kind = "admin_login"
	ListAccounts  Kind = "list_accounts"
	ApplyInterest Kind = "apply_interest"
	Exit          Kind = "exit"
)

// Request carries every field any command may need; each kind reads only its own.
type Request struct {
	Kind Kind

	AccountNumber string
	PIN           string
	Owner         string
	Type          domain.AccountType
	Amount        decimal.Decimal
	Target        string

	Username string
	Password string
}

// AccountView is a read-only rendering of an account
type AccountView struct {
	Number  string
	Owner   string
	Type    domain.AccountType
	Balance decimal.Decimal
}

func viewOf(a *domain.Account) AccountView {
	return AccountView{
		Number:  a.Number(),
		Owner:   a.Owner(),
		Type:    a.Type(),
		Balance: a.Balance(),
	}
}

func (v AccountView) String() string {
	return fmt.Sprintf("Account: %s | Owner: %s | Type: %s | Balance: $%s",
		v.Number, v.Owner, v.Type, v.Balance.StringFixed(2))
}

type Response struct {
	Message  string
	Account  *AccountView
	Accounts []AccountView
	History  []string
}

// ParseAmount reads a currency amount such as "50", "$12.5" or "0.01". Exponent
// notation and amounts beyond domain.MaxAmount are rejected.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", domain.ErrInvalidInput)
	}
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("%w: exponent notation is not accepted", domain.ErrInvalidInput)
	}
	amt, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount is not a number", domain.ErrInvalidInput)
	}
	if amt.Abs().GreaterThan(domain.MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: exceeds the %s limit", domain.ErrInvalidAmount, domain.MaxAmount.StringFixed(domain.AmountDecimals))
	}
	if !amt.Equal(amt.Truncate(domain.AmountDecimals)) {
		return decimal.Zero, fmt.Errorf("%w: at most %d decimal places", domain.ErrInvalidAmount, domain.AmountDecimals)
	}
	return amt, nil
}
