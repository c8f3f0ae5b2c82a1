package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"
	"github.com/Moon9t/C-Mini-Bank-System/internal/secret"

	"github.com/charmbracelet/log"
)

const (
	accountsFileName = "accounts.json"
	txFilePrefix     = "transactions_"
	txFileSuffix     = ".txt"

	// maxRecordSize bounds one transaction log line. Appends that would exceed
	// it are refused, so every committed line can be read back.
	maxRecordSize = 1 << 20
)

// FileStore keeps the account snapshot in accounts.json and one append-only
// transaction log per account, all under a single directory.
type FileStore struct {
	dir string
	log *log.Logger
}

// NewFileStore creates the data directory if needed
func NewFileStore(dir string, logger *log.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{
		dir: dir,
		log: logger.WithPrefix("store"),
	}, nil
}

func (s *FileStore) accountsPath() string {
	return filepath.Join(s.dir, accountsFileName)
}

func (s *FileStore) txPath(accountNumber string) string {
	return filepath.Join(s.dir, txFilePrefix+accountNumber+txFileSuffix)
}

// SaveAll writes the snapshot to a temp file and renames it over the old one,
// so a failed write never leaves a half-written accounts file behind.
func (s *FileStore) SaveAll(accounts []AccountRecord) error {
	snap := Snapshot{
		Meta: Meta{
			Format:  FormatName,
			Version: CurrentVersion,
			SavedAt: time.Now().UTC(),
		},
		Accounts: accounts,
	}
	if snap.Accounts == nil {
		snap.Accounts = []AccountRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}

	if err := writeFileAtomic(s.accountsPath(), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write accounts file: %w", err)
	}

	s.log.Debug("saved accounts", "count", len(accounts))
	return nil
}

// LoadAll reads the snapshot. A missing file is an empty store; anything that
// cannot be fully validated fails with domain.ErrCorruptStore.
func (s *FileStore) LoadAll() ([]AccountRecord, error) {
	data, err := os.ReadFile(s.accountsPath())
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("no accounts file, starting empty", "path", s.accountsPath())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptStore, s.accountsPath(), err)
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrCorruptStore, s.accountsPath(), err)
	}

	s.log.Debug("loaded accounts", "count", len(snap.Accounts), "version", snap.Meta.Version)
	return snap.Accounts, nil
}

func validateSnapshot(snap Snapshot) error {
	if snap.Meta.Format != FormatName {
		return fmt.Errorf("unexpected format %q", snap.Meta.Format)
	}
	if snap.Meta.Version != CurrentVersion {
		return fmt.Errorf("unsupported version %d", snap.Meta.Version)
	}

	seen := make(map[string]bool, len(snap.Accounts))
	for i, rec := range snap.Accounts {
		if !domain.ValidAccountNumber(rec.Number) {
			return fmt.Errorf("account %d: invalid number %q", i, rec.Number)
		}
		if seen[rec.Number] {
			return fmt.Errorf("account %q listed twice", rec.Number)
		}
		seen[rec.Number] = true

		if _, err := domain.ParseAccountType(rec.Type); err != nil {
			return fmt.Errorf("account %q: %v", rec.Number, err)
		}
		if !secret.Valid(rec.PinHash) {
			return fmt.Errorf("account %q: missing or malformed PIN hash", rec.Number)
		}
		if rec.TxCount < 0 {
			return fmt.Errorf("account %q: negative transaction count", rec.Number)
		}
	}
	return nil
}

// AppendTransaction appends one line and syncs it to disk
func (s *FileStore) AppendTransaction(accountNumber string, tx domain.Transaction) error {
	line := tx.Serialize()
	if len(line) >= maxRecordSize {
		return fmt.Errorf("%w: record is %d bytes, limit %d", domain.ErrFormat, len(line), maxRecordSize)
	}

	f, err := os.OpenFile(s.txPath(accountNumber), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open transaction log: %w", err)
	}

	if _, err := io.WriteString(f, line+"\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync transaction log: %w", err)
	}
	return f.Close()
}

// LoadTransactions parses the whole log. A final line without a newline is a
// torn append from an interrupted run and is dropped.
func (s *FileStore) LoadTransactions(accountNumber string) ([]domain.Transaction, error) {
	lines, _, err := s.readLines(accountNumber)
	if err != nil {
		return nil, err
	}

	txs := make([]domain.Transaction, 0, len(lines))
	for i, line := range lines {
		tx, err := domain.Deserialize(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.txPath(accountNumber), i+1, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// TruncateTransactions rewrites the log with its first n lines. A torn final
// record is always cut, even when n covers every complete line.
func (s *FileStore) TruncateTransactions(accountNumber string, n int) error {
	lines, torn, err := s.readLines(accountNumber)
	if err != nil {
		return err
	}
	if n < 0 {
		n = 0
	}
	if n >= len(lines) {
		if !torn {
			return nil
		}
		n = len(lines)
	}

	var buf bytes.Buffer
	for _, line := range lines[:n] {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	if err := writeFileAtomic(s.txPath(accountNumber), buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to truncate transaction log: %w", err)
	}

	s.log.Warn("truncated transaction log", "account", accountNumber, "kept", n)
	return nil
}

func (s *FileStore) readLines(accountNumber string) ([]string, bool, error) {
	data, err := os.ReadFile(s.txPath(accountNumber))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read transaction log: %w", err)
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), maxRecordSize+1)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, false, fmt.Errorf("failed to scan transaction log: %w", err)
	}

	torn := len(data) > 0 && data[len(data)-1] != '\n'
	if torn && len(lines) > 0 {
		s.log.Warn("ignoring torn record at end of transaction log", "account", accountNumber)
		lines = lines[:len(lines)-1]
	}
	return lines, torn, nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return syncDir(filepath.Dir(path))
}

// syncDir makes a rename in dir durable
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return fmt.Errorf("failed to sync directory: %w", err)
	}
	return d.Close()
}
