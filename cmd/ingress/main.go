package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/walletbot/ingress/internal/app"
	"github.com/walletbot/ingress/internal/config"
	"github.com/walletbot/ingress/internal/security"

	log "github.com/sirupsen/logrus"
)

// envAdminPassword supplies the admin password to -init-config.
const envAdminPassword = "ADMIN_PASSWORD"

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if errRun := run(ctx, os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run parses flags, then writes a starter config, issues an admin token,
// migrates, or starts the server.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingress", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	initConfig := fs.Bool("init-config", false, "write a starter config file and exit")
	adminUser := fs.String("admin-user", "", "admin username for -init-config (password from env ADMIN_PASSWORD)")
	dsn := fs.String("dsn", "", "database DSN for -init-config")
	addr := fs.String("addr", "", "listen address for -init-config")
	issueToken := fs.String("issue-admin-token", "", "print a signed admin token for the given username and exit")
	migrateOnly := fs.Bool("migrate", false, "run database migrations and exit")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	configPath := config.ResolveConfigPath(*cfgPath)

	if *initConfig {
		req := app.InitRequest{
			DSN:           *dsn,
			Addr:          *addr,
			AdminUsername: *adminUser,
			AdminPassword: os.Getenv(envAdminPassword),
		}
		if errWrite := app.WriteConfigFile(configPath, req); errWrite != nil {
			return errWrite
		}
		log.Infof("config written to %s", configPath)
		return nil
	}

	if !app.ConfigExists(configPath) {
		log.Warnf("config file %s not found, using defaults", configPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if username := strings.TrimSpace(*issueToken); username != "" {
		if cfg.JWT.Secret == "" {
			return errors.New("jwt.secret is not configured")
		}
		token, errIssue := security.IssueAdminToken(username, security.TokenConfig{
			Secret: cfg.JWT.Secret,
			Expiry: cfg.JWT.Expiry,
		})
		if errIssue != nil {
			return errIssue
		}
		fmt.Println(token)
		return nil
	}

	if *migrateOnly {
		return app.Migrate(ctx, cfg)
	}

	return app.RunServer(ctx, cfg)
}
