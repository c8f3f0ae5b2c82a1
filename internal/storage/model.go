package storage

import (
	"time"

	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	// FormatName tags account snapshots so a foreign JSON file is never loaded by accident
	FormatName = "bank_accounts"

	// CurrentVersion is bumped whenever AccountRecord changes shape
	CurrentVersion = 1
)

// Meta describes the snapshot encoding
type Meta struct {
	Format  string    `json:"format"`
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
}

// AccountRecord is the persisted form of an account. The PIN is stored only
// as a bcrypt hash; TxCount is the committed length of the account's
// transaction log.
type AccountRecord struct {
	Number  string          `json:"account_number"`
	Owner   string          `json:"owner"`
	Type    string          `json:"type"`
	PinHash string          `json:"pin_hash"`
	Balance decimal.Decimal `json:"balance"`
	TxCount int             `json:"tx_count"`
}

// Snapshot is the full account file
type Snapshot struct {
	Meta     Meta            `json:"_meta"`
	Accounts []AccountRecord `json:"accounts"`
}

// Store is the persistence contract the ledger depends on
type Store interface {
	// SaveAll atomically replaces the stored account set
	SaveAll(accounts []AccountRecord) error
	// LoadAll returns every stored account or fails with domain.ErrCorruptStore
	LoadAll() ([]AccountRecord, error)
	// AppendTransaction appends one record to the account's transaction log
	AppendTransaction(accountNumber string, tx domain.Transaction) error
	// LoadTransactions replays the account's transaction log in order
	LoadTransactions(accountNumber string) ([]domain.Transaction, error)
	// TruncateTransactions keeps only the first n records of the account's log
	TruncateTransactions(accountNumber string, n int) error
}
