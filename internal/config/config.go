package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Moon9t/C-Mini-Bank-System/internal/admin"
	"github.com/Moon9t/C-Mini-Bank-System/internal/secret"

	"github.com/charmbracelet/log"
)

const (
	defaultDataDir       = "data"
	defaultActionLog     = "bank.log"
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin123"
)

type Config struct {
	DataDir   string
	ActionLog string
	LogLevel  log.Level
	// LogLevelInvalid is set when LOG_LEVEL could not be parsed and info was used
	LogLevelInvalid bool

	AdminUsername     string
	AdminPasswordHash string
	AdminPassword     string
	// DefaultAdmin is true when neither ADMIN_PASSWORD_HASH nor ADMIN_PASSWORD was set
	DefaultAdmin bool

	BcryptCost int
}

// Load reads configuration from the environment. Call godotenv.Load first if
// a .env file should be honoured.
func Load() (*Config, error) {
	cfg := &Config{
		DataDir:           getEnv("BANK_DATA_DIR", defaultDataDir),
		ActionLog:         getEnv("BANK_ACTION_LOG", defaultActionLog),
		AdminUsername:     getEnv("ADMIN_USERNAME", defaultAdminUsername),
		AdminPasswordHash: strings.TrimSpace(os.Getenv("ADMIN_PASSWORD_HASH")),
		AdminPassword:     os.Getenv("ADMIN_PASSWORD"),
		BcryptCost:        secret.DefaultCost,
	}

	level, err := log.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = log.InfoLevel
		cfg.LogLevelInvalid = true
	}
	cfg.LogLevel = level

	if v := strings.TrimSpace(os.Getenv("BCRYPT_COST")); v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid BCRYPT_COST %q: %w", v, err)
		}
		cfg.BcryptCost = secret.ClampCost(cost)
	}

	if cfg.AdminPasswordHash != "" && !secret.Valid(cfg.AdminPasswordHash) {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash")
	}
	if cfg.AdminPasswordHash == "" && cfg.AdminPassword == "" {
		cfg.AdminPassword = defaultAdminPassword
		cfg.DefaultAdmin = true
	}

	return cfg, nil
}

// AdminCredential returns the configured administrator, hashing a plaintext
// password if no hash was given
func (c *Config) AdminCredential() (admin.Credential, error) {
	if c.AdminPasswordHash != "" {
		return admin.Credential{Username: c.AdminUsername, PasswordHash: c.AdminPasswordHash}, nil
	}
	return admin.NewCredential(c.AdminUsername, c.AdminPassword, c.BcryptCost)
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
