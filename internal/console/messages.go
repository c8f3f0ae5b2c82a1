package console

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Moon9t/C-Mini-Bank-System/internal/command"
	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"
)

// errorMessage turns domain errors into the short text shown to the user
func errorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "Invalid credentials!"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "Insufficient funds!"
	case errors.Is(err, domain.ErrInvalidAmount):
		return "Invalid amount!"
	case errors.Is(err, domain.ErrDuplicateAccount):
		return "Account number already exists!"
	case errors.Is(err, domain.ErrNotFound):
		return "Account not found!"
	case errors.Is(err, domain.ErrSameAccount):
		return "Cannot transfer to the same account!"
	case errors.Is(err, domain.ErrInvalidAccountNumber):
		return "Account numbers use letters, digits, '-' and '_' (up to 32)."
	case errors.Is(err, domain.ErrInvalidInput):
		return err.Error()
	default:
		return "Operation failed: " + err.Error()
	}
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func validateAccountNumber(s string) error {
	s = strings.TrimSpace(s)
	if s != "" && !domain.ValidAccountNumber(s) {
		return errors.New("use letters, digits, '-' and '_' (up to 32)")
	}
	return nil
}

func validatePin(s string) error {
	if len(s) < 4 {
		return errors.New("PIN must be at least 4 characters")
	}
	return nil
}

func validateAmount(s string) error {
	amt, err := command.ParseAmount(s)
	if err != nil {
		return err
	}
	if !amt.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	return nil
}

func validateOpeningBalance(s string) error {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	amt, err := command.ParseAmount(s)
	if err != nil {
		return err
	}
	if amt.IsNegative() {
		return errors.New("amount cannot be negative")
	}
	return nil
}
