package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/Moon9t/C-Mini-Bank-System/internal/actionlog"
	"github.com/Moon9t/C-Mini-Bank-System/internal/admin"
	"github.com/Moon9t/C-Mini-Bank-System/internal/command"
	"github.com/Moon9t/C-Mini-Bank-System/internal/config"
	"github.com/Moon9t/C-Mini-Bank-System/internal/console"
	"github.com/Moon9t/C-Mini-Bank-System/internal/domain"
	"github.com/Moon9t/C-Mini-Bank-System/internal/ledger"
	"github.com/Moon9t/C-Mini-Bank-System/internal/storage"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "bank"})

	// Load environment variables
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("could not load .env file", "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogLevelInvalid {
		logger.Warn("unknown LOG_LEVEL, using info")
	}
	if cfg.DefaultAdmin {
		logger.Warn("using built-in admin credentials; set ADMIN_PASSWORD or ADMIN_PASSWORD_HASH", "username", cfg.AdminUsername)
	}

	cred, err := cfg.AdminCredential()
	if err != nil {
		logger.Fatal("failed to prepare admin credentials", "err", err)
	}
	admins, err := admin.NewRegistry(cred)
	if err != nil {
		logger.Fatal("failed to build admin registry", "err", err)
	}

	store, err := storage.NewFileStore(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal("failed to open data directory", "dir", cfg.DataDir, "err", err)
	}

	bank, err := ledger.Open(ledger.Options{
		Store:   store,
		Admins:  admins,
		Logger:  logger,
		PinCost: cfg.BcryptCost,
	})
	if errors.Is(err, domain.ErrCorruptStore) {
		logger.Fatal("stored account data is corrupt; refusing to start", "dir", cfg.DataDir, "err", err)
	}
	if err != nil {
		logger.Fatal("failed to load accounts", "err", err)
	}
	logger.Info("accounts loaded", "count", len(bank.Accounts()), "dir", cfg.DataDir)

	actions := actionlog.Open(cfg.ActionLog, logger)
	logger.Debug("action log opened", "path", cfg.ActionLog, "session", actions.Session())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	disp := command.NewDispatcher(bank, actions, logger)
	runErr := console.New(disp, os.Stdout).Run(ctx)
	stop()

	if err := actions.Close(); err != nil {
		logger.Warn("failed to close action log", "err", err)
	}
	if runErr != nil {
		logger.Fatal("console stopped", "err", runErr)
	}
}
