package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
)

// Ledger is the subset of the bank the dispatcher drives
type Ledger interface {
	CreateAccount(number, owner, pin string, typ domain.AccountType, initial decimal.Decimal) (*domain.Account, error)
	Authenticate(number, pin string) (*domain.Account, error)
	AuthenticateAdmin(username, password string) bool
	Deposit(number string, amount decimal.Decimal) (*domain.Account, error)
	Withdraw(number string, amount decimal.Decimal) (*domain.Account, error)
	Transfer(source, target string, amount decimal.Decimal) error
	History(number string) ([]domain.Transaction, error)
	Accounts() []*domain.Account
	ApplyMonthlyInterestToAll() (int, error)
}

// Recorder receives one action per dispatched command
type Recorder interface {
	Record(action string, keyvals ...any)
}

type Dispatcher struct {
	bank    Ledger
	actions Recorder
	log     *log.Logger
}

func NewDispatcher(bank Ledger, actions Recorder, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		bank:    bank,
		actions: actions,
		log:     logger.WithPrefix("command"),
	}
}

// Dispatch runs one command. Failures are recorded in the action log with the
// error text; PINs and passwords never are.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	resp, err := d.dispatch(req)
	if err != nil {
		d.recordFailure(req, err)
		d.log.Debug("command failed", "kind", req.Kind, "err", err)
		return Response{}, err
	}
	return resp, nil
}

func (d *Dispatcher) dispatch(req Request) (Response, error) {
	switch req.Kind {
	case CreateAccount:
		return d.createAccount(req)
	case Balance:
		return d.balance(req)
	case Deposit:
		return d.deposit(req)
	case Withdraw:
		return d.withdraw(req)
	case Transfer:
		return d.transfer(req)
	case History:
		return d.history(req)
	case AdminLogin:
		return d.adminLogin(req)
	case ListAccounts:
		return d.listAccounts(req)
	case ApplyInterest:
		return d.applyInterest(req)
	case Exit:
		d.actions.Record("system exit")
		return Response{Message: "Thank you for using our banking system!"}, nil
	default:
		return Response{}, fmt.Errorf("%w: unknown command %q", domain.ErrInvalidInput, req.Kind)
	}
}

func (d *Dispatcher) createAccount(req Request) (Response, error) {
	a, err := d.bank.CreateAccount(req.AccountNumber, req.Owner, req.PIN, req.Type, req.Amount)
	if err != nil {
		return Response{}, err
	}
	d.actions.Record("account created", "account", a.Number(), "type", a.Type())
	v := viewOf(a)
	return Response{
		Message: fmt.Sprintf("Account %s created successfully!", a.Number()),
		Account: &v,
	}, nil
}

func (d *Dispatcher) login(req Request) (*domain.Account, error) {
	return d.bank.Authenticate(req.AccountNumber, req.PIN)
}

func (d *Dispatcher) balance(req Request) (Response, error) {
	a, err := d.login(req)
	if err != nil {
		return Response{}, err
	}
	d.actions.Record("balance", "account", a.Number())
	v := viewOf(a)
	return Response{
		Message: fmt.Sprintf("Balance: $%s", a.Balance().StringFixed(2)),
		Account: &v,
	}, nil
}

func (d *Dispatcher) deposit(req Request) (Response, error) {
	if _, err := d.login(req); err != nil {
		return Response{}, err
	}
	a, err := d.bank.Deposit(req.AccountNumber, req.Amount)
	if err != nil {
		return Response{}, err
	}
	d.actions.Record("deposit", "account", a.Number(), "amount", req.Amount.StringFixed(2))
	v := viewOf(a)
	return Response{Message: "Deposit successful!", Account: &v}, nil
}

func (d *Dispatcher) withdraw(req Request) (Response, error) {
	if _, err := d.login(req); err != nil {
		return Response{}, err
	}
	a, err := d.bank.Withdraw(req.AccountNumber, req.Amount)
	if err != nil {
		return Response{}, err
	}
	d.actions.Record("withdraw", "account", a.Number(), "amount", req.Amount.StringFixed(2))
	v := viewOf(a)
	return Response{Message: "Withdrawal successful!", Account: &v}, nil
}

func (d *Dispatcher) transfer(req Request) (Response, error) {
	a, err := d.login(req)
	if err != nil {
		return Response{}, err
	}
	if err := d.bank.Transfer(req.AccountNumber, req.Target, req.Amount); err != nil {
		return Response{}, err
	}
	d.actions.Record("transfer", "account", req.AccountNumber, "target", req.Target, "amount", req.Amount.StringFixed(2))
	v := viewOf(a)
	return Response{Message: "Transfer successful!", Account: &v}, nil
}

func (d *Dispatcher) history(req Request) (Response, error) {
	a, err := d.login(req)
	if err != nil {
		return Response{}, err
	}
	txs, err := d.bank.History(a.Number())
	if err != nil {
		return Response{}, err
	}
	lines := make([]string, 0, len(txs))
	for _, tx := range txs {
		lines = append(lines, tx.Describe())
	}
	d.actions.Record("history", "account", a.Number(), "count", len(lines))
	return Response{
		Message: fmt.Sprintf("Transaction History for Account %s:", a.Number()),
		History: lines,
	}, nil
}

func (d *Dispatcher) admin(req Request) error {
	if !d.bank.AuthenticateAdmin(req.Username, req.Password) {
		return domain.ErrUnauthorized
	}
	return nil
}

func (d *Dispatcher) adminLogin(req Request) (Response, error) {
	if err := d.admin(req); err != nil {
		return Response{}, err
	}
	d.actions.Record("admin login", "username", req.Username)
	return Response{Message: "Admin login successful"}, nil
}

func (d *Dispatcher) listAccounts(req Request) (Response, error) {
	if err := d.admin(req); err != nil {
		return Response{}, err
	}
	accts := d.bank.Accounts()
	views := make([]AccountView, 0, len(accts))
	for _, a := range accts {
		views = append(views, viewOf(a))
	}
	d.actions.Record("accounts listed", "username", req.Username, "count", len(views))
	return Response{Message: "All Accounts:", Accounts: views}, nil
}

func (d *Dispatcher) applyInterest(req Request) (Response, error) {
	if err := d.admin(req); err != nil {
		return Response{}, err
	}
	n, err := d.bank.ApplyMonthlyInterestToAll()
	if err != nil {
		return Response{}, err
	}
	d.actions.Record("interest applied", "username", req.Username, "credited", n)
	return Response{
		Message: fmt.Sprintf("Monthly interest applied to all savings accounts (%d credited).", n),
	}, nil
}

func (d *Dispatcher) recordFailure(req Request, err error) {
	if errors.Is(err, domain.ErrUnauthorized) {
		switch req.Kind {
		case AdminLogin, ListAccounts, ApplyInterest:
			d.actions.Record("admin login failed", "username", req.Username)
		default:
			d.actions.Record("login failed", "account", req.AccountNumber)
		}
		return
	}

	keyvals := []any{"command", string(req.Kind), "err", err.Error()}
	if req.AccountNumber != "" {
		keyvals = append(keyvals, "account", req.AccountNumber)
	}
	d.actions.Record("error", keyvals...)
}
