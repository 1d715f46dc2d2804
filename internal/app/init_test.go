package app

import (
	"path/filepath"
	"testing"

	"github.com/walletbot/ingress/internal/config"
	"github.com/walletbot/ingress/internal/security"
)

func TestWriteConfigFile_Loadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.yaml")
	req := InitRequest{
		DSN:           "file:" + filepath.Join(t.TempDir(), "ingress.db"),
		Addr:          "127.0.0.1:9000",
		AdminUsername: "ops",
		AdminPassword: "correct-horse",
	}
	if err := WriteConfigFile(path, req); err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	if !ConfigExists(path) {
		t.Fatalf("expected config file to exist")
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Database.DSN != req.DSN {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
	if len(cfg.JWT.Secret) != 64 {
		t.Fatalf("expected generated jwt secret, got %q", cfg.JWT.Secret)
	}
	if cfg.Admin.Username != "ops" {
		t.Fatalf("unexpected admin %q", cfg.Admin.Username)
	}
	if !security.CheckPassword(cfg.Admin.PasswordHash, "correct-horse") {
		t.Fatalf("stored hash does not match admin password")
	}
	if cfg.Cooldowns["/withdraw"] != 60_000 {
		t.Fatalf("expected default /withdraw cooldown, got %d", cfg.Cooldowns["/withdraw"])
	}
}

func TestWriteConfigFile_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteConfigFile(path, InitRequest{}); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteConfigFile(path, InitRequest{}); err == nil {
		t.Fatalf("expected error when config exists")
	}
}

func TestWriteConfigFile_RejectsShortPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := WriteConfigFile(path, InitRequest{AdminUsername: "ops", AdminPassword: "short"})
	if err == nil {
		t.Fatalf("expected error for short admin password")
	}
	if ConfigExists(path) {
		t.Fatalf("config must not be written on validation failure")
	}
}
