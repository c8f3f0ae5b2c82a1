package domain

import "errors"

var (
	// ErrInvalidAmount is returned for non-positive, fractional-cent or over-limit
	// amounts, and for negative opening balances
	ErrInvalidAmount = errors.New("invalid amount")

	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrDuplicateAccount = errors.New("account number already exists")

	// ErrNotFound covers unknown accounts and unknown administrators
	ErrNotFound = errors.New("not found")

	// ErrFormat marks a transaction record that cannot be parsed
	ErrFormat = errors.New("malformed transaction record")

	// ErrCorruptStore marks an account store that cannot be loaded as a whole
	ErrCorruptStore = errors.New("corrupt account store")

	ErrSameAccount = errors.New("source and target account are the same")

	ErrInvalidAccountNumber = errors.New("invalid account number")

	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is deliberately generic: it never says whether the
	// account exists or the secret was wrong
	ErrUnauthorized = errors.New("invalid credentials")
)
