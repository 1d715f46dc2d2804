package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/walletbot/ingress/internal/security"
	internalsettings "github.com/walletbot/ingress/internal/settings"
	"gopkg.in/yaml.v3"
)

// InitRequest contains parameters for writing a starter config file.
type InitRequest struct {
	DSN           string
	Addr          string
	AdminUsername string
	AdminPassword string
}

type starterConfig struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT struct {
		Secret string `yaml:"secret"`
		Expiry string `yaml:"expiry"`
	} `yaml:"jwt"`
	Admin struct {
		Username     string `yaml:"username,omitempty"`
		PasswordHash string `yaml:"password-hash,omitempty"`
	} `yaml:"admin"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Cooldowns         map[string]int64 `yaml:"cooldowns"`
	FinancialCommands []string         `yaml:"financial-commands"`
}

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// validateInitRequest normalizes and validates init input data.
func validateInitRequest(req *InitRequest) error {
	req.DSN = strings.TrimSpace(req.DSN)
	if req.DSN != "" {
		if _, errDSN := summarizeDSN(req.DSN); errDSN != nil {
			return fmt.Errorf("invalid database dsn: %w", errDSN)
		}
	}
	req.Addr = strings.TrimSpace(req.Addr)
	if req.Addr == "" {
		req.Addr = internalsettings.DefaultServerAddr
	}
	req.AdminUsername = strings.TrimSpace(req.AdminUsername)
	if req.AdminUsername != "" && len(req.AdminPassword) < 8 {
		return errors.New("admin password must be at least 8 characters")
	}
	return nil
}

// generateJWTSecret returns a fresh signing secret for the admin API.
func generateJWTSecret() (string, error) {
	secret, err := security.GenerateRandomString(32)
	if err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return secret, nil
}

// WriteConfigFile writes a starter config.yaml. It refuses to overwrite an
// existing file.
func WriteConfigFile(configPath string, req InitRequest) error {
	if ConfigExists(configPath) {
		return fmt.Errorf("config file already exists: %s", configPath)
	}
	if errValidate := validateInitRequest(&req); errValidate != nil {
		return errValidate
	}

	var cfg starterConfig
	cfg.Server.Addr = req.Addr
	cfg.Database.DSN = req.DSN
	secret, errSecret := generateJWTSecret()
	if errSecret != nil {
		return errSecret
	}
	cfg.JWT.Secret = secret
	cfg.JWT.Expiry = "12h"
	if req.AdminUsername != "" {
		hash, errHash := security.HashPassword(req.AdminPassword)
		if errHash != nil {
			return fmt.Errorf("hash admin password: %w", errHash)
		}
		cfg.Admin.Username = req.AdminUsername
		cfg.Admin.PasswordHash = hash
	}
	cfg.Logging.Level = internalsettings.DefaultLogLevel
	cfg.Logging.Format = internalsettings.DefaultLogFormat
	cfg.Cooldowns = internalsettings.DefaultCooldowns
	cfg.FinancialCommands = internalsettings.DefaultFinancialCommands

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}
