// Package console is the interactive menu. It only collects input and prints
// results; every operation goes through the command dispatcher.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Moon9t/C-Mini-Bank-System/internal/command"
	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"

	"github.com/charmbracelet/huh"
	"github.com/shopspring/decimal"
)

// Dispatcher is satisfied by *command.Dispatcher
type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) (command.Response, error)
}

type Console struct {
	disp Dispatcher
	out  io.Writer
}

func New(disp Dispatcher, out io.Writer) *Console {
	return &Console{disp: disp, out: out}
}

// Run shows the main menu until the user exits or aborts with Ctrl-C
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, "Welcome to the Go Banking System")

	for {
		var choice string
		err := c.ask(ctx, huh.NewSelect[string]().
			Title("Main Menu").
			Options(
				huh.NewOption("Create Account", "create"),
				huh.NewOption("Banking Operations", "bank"),
				huh.NewOption("Admin Login", "admin"),
				huh.NewOption("Exit", "exit"),
			).
			Value(&choice))
		if err != nil {
			return c.exit(ctx, err)
		}

		switch choice {
		case "create":
			err = c.createAccount(ctx)
		case "bank":
			err = c.banking(ctx)
		case "admin":
			err = c.adminMode(ctx)
		case "exit":
			return c.exit(ctx, nil)
		}
		if err != nil {
			return c.exit(ctx, err)
		}
	}
}

// exit records the exit action. An abort is a normal exit.
func (c *Console) exit(ctx context.Context, cause error) error {
	if cause != nil && !errors.Is(cause, huh.ErrUserAborted) {
		return cause
	}
	resp, err := c.disp.Dispatch(context.WithoutCancel(ctx), command.Request{Kind: command.Exit})
	if err == nil {
		fmt.Fprintln(c.out, resp.Message)
	}
	return nil
}

func (c *Console) ask(ctx context.Context, fields ...huh.Field) error {
	return huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx)
}

func (c *Console) createAccount(ctx context.Context) error {
	var number, owner, pin, typ, initial string
	err := c.ask(ctx,
		huh.NewInput().Title("Account number").Description("Leave blank to generate one").
			Value(&number).Validate(validateAccountNumber),
		huh.NewInput().Title("Owner name").Value(&owner).Validate(required("name")),
		huh.NewInput().Title("Create PIN").EchoMode(huh.EchoModePassword).
			Value(&pin).Validate(validatePin),
		huh.NewSelect[string]().Title("Account type").
			Options(huh.NewOption("Savings", "SAVINGS"), huh.NewOption("Checking", "CHECKING")).
			Value(&typ),
		huh.NewInput().Title("Initial deposit").Placeholder("0.00").
			Value(&initial).Validate(validateOpeningBalance),
	)
	if err != nil {
		return err
	}

	accountType, err := domain.ParseAccountType(typ)
	if err != nil {
		c.report(err)
		return nil
	}
	amount := decimal.Zero
	if strings.TrimSpace(initial) != "" {
		if amount, err = command.ParseAmount(initial); err != nil {
			c.report(err)
			return nil
		}
	}

	c.run(ctx, command.Request{
		Kind:          command.CreateAccount,
		AccountNumber: strings.TrimSpace(number),
		Owner:         owner,
		PIN:           pin,
		Type:          accountType,
		Amount:        amount,
	})
	return nil
}

func (c *Console) banking(ctx context.Context) error {
	var number, pin string
	err := c.ask(ctx,
		huh.NewInput().Title("Account number").Value(&number).Validate(required("account number")),
		huh.NewInput().Title("PIN").EchoMode(huh.EchoModePassword).Value(&pin),
	)
	if err != nil {
		return err
	}
	number = strings.TrimSpace(number)

	login := command.Request{AccountNumber: number, PIN: pin}
	if _, err := c.disp.Dispatch(ctx, with(login, command.Balance)); err != nil {
		c.report(err)
		return nil
	}

	for {
		var op string
		err := c.ask(ctx, huh.NewSelect[string]().
			Title("Account "+number).
			Options(
				huh.NewOption("Check Balance", string(command.Balance)),
				huh.NewOption("Deposit", string(command.Deposit)),
				huh.NewOption("Withdraw", string(command.Withdraw)),
				huh.NewOption("Transfer", string(command.Transfer)),
				huh.NewOption("Transaction History", string(command.History)),
				huh.NewOption("Exit", "exit"),
			).
			Value(&op))
		if err != nil {
			return err
		}

		req := with(login, command.Kind(op))
		switch req.Kind {
		case "exit":
			return nil
		case command.Deposit, command.Withdraw:
			if req.Amount, err = c.askAmount(ctx, "Enter "+string(req.Kind)+" amount"); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return err
				}
				c.report(err)
				continue
			}
		case command.Transfer:
			var target, amt string
			err := c.ask(ctx,
				huh.NewInput().Title("Recipient account number").Value(&target).Validate(required("account number")),
				huh.NewInput().Title("Enter transfer amount").Value(&amt).Validate(validateAmount),
			)
			if err != nil {
				return err
			}
			req.Target = strings.TrimSpace(target)
			if req.Amount, err = command.ParseAmount(amt); err != nil {
				c.report(err)
				continue
			}
		}
		c.run(ctx, req)
	}
}

func (c *Console) adminMode(ctx context.Context) error {
	var username, password string
	err := c.ask(ctx,
		huh.NewInput().Title("Admin username").Value(&username),
		huh.NewInput().Title("Admin password").EchoMode(huh.EchoModePassword).Value(&password),
	)
	if err != nil {
		return err
	}

	creds := command.Request{Username: strings.TrimSpace(username), Password: password}
	if !c.run(ctx, with(creds, command.AdminLogin)) {
		return nil
	}

	for {
		var op string
		err := c.ask(ctx, huh.NewSelect[string]().
			Title("Admin Menu").
			Options(
				huh.NewOption("View All Accounts", string(command.ListAccounts)),
				huh.NewOption("Apply Monthly Interest", string(command.ApplyInterest)),
				huh.NewOption("Exit Admin Mode", "exit"),
			).
			Value(&op))
		if err != nil {
			return err
		}
		if op == "exit" {
			return nil
		}
		c.run(ctx, with(creds, command.Kind(op)))
	}
}

func (c *Console) askAmount(ctx context.Context, title string) (decimal.Decimal, error) {
	var amt string
	if err := c.ask(ctx, huh.NewInput().Title(title).Value(&amt).Validate(validateAmount)); err != nil {
		return decimal.Zero, err
	}
	return command.ParseAmount(amt)
}

// run dispatches req and prints the outcome. It reports whether req succeeded.
func (c *Console) run(ctx context.Context, req command.Request) bool {
	resp, err := c.disp.Dispatch(ctx, req)
	if err != nil {
		c.report(err)
		return false
	}
	c.render(resp)
	return true
}

func (c *Console) render(resp command.Response) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, resp.Message)
	if len(resp.History) > 0 || len(resp.Accounts) > 0 {
		fmt.Fprintln(c.out, strings.Repeat("-", 48))
	}
	for _, line := range resp.History {
		fmt.Fprintln(c.out, line)
	}
	for _, v := range resp.Accounts {
		fmt.Fprintln(c.out, v.String())
	}
}

func (c *Console) report(err error) {
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Error:", errorMessage(err))
}

func with(base command.Request, kind command.Kind) command.Request {
	base.Kind = kind
	return base
}
