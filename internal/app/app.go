package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/walletbot/ingress/internal/admission"
	"github.com/walletbot/ingress/internal/config"
	"github.com/walletbot/ingress/internal/db"
	"github.com/walletbot/ingress/internal/http/api/admin"
	"github.com/walletbot/ingress/internal/http/api/inbound"
	"github.com/walletbot/ingress/internal/identity"
	"github.com/walletbot/ingress/internal/metrics"
	"github.com/walletbot/ingress/internal/models"
	"github.com/walletbot/ingress/internal/pipeline"
	"github.com/walletbot/ingress/internal/ratelimit"
	"github.com/walletbot/ingress/internal/session"
	"github.com/walletbot/ingress/internal/sweeper"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// App is the assembled ingress service.
type App struct {
	cfg          config.Config
	conn         *gorm.DB
	rateState    *ratelimit.FallbackStore
	sessions     session.Store
	orchestrator *pipeline.Orchestrator
	sweeper      *sweeper.Sweeper
	metrics      *metrics.Metrics
	engine       *gin.Engine
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.Config) error {
	if cfg.Database.DSN == "" {
		return errors.New("migrate: database.dsn is not configured")
	}
	conn, err := db.Open(cfg.Database.DSN)
	if err != nil {
		return err
	}
	defer closeDB(conn)
	return db.Migrate(conn.WithContext(ctx))
}

// ConfigureLogging applies the logging section to the standard logrus logger.
func ConfigureLogging(cfg config.LoggingConfig) error {
	level, errLevel := log.ParseLevel(cfg.Level)
	if errLevel != nil {
		return fmt.Errorf("logging: %w", errLevel)
	}
	log.SetLevel(level)
	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if level >= log.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	return nil
}

// Build assembles stores, the pipeline and the HTTP engine from cfg.
func Build(cfg config.Config) (*App, error) {
	a := &App{cfg: cfg, metrics: metrics.New()}

	var accounts identity.AccountStore
	if cfg.Database.DSN != "" {
		summary, errSummary := summarizeDSN(cfg.Database.DSN)
		if errSummary != nil {
			return nil, errSummary
		}
		log.Infof("database: %s", summary)
		conn, err := db.Open(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		if errMigrate := db.Migrate(conn); errMigrate != nil {
			closeDB(conn)
			return nil, errMigrate
		}
		a.conn = conn
		accounts = identity.NewGormAccountStore(conn)
		a.sessions = session.NewGormStore(conn, nil)
	} else {
		log.Warn("database.dsn is empty; accounts and sessions are kept in memory")
		accounts = identity.NewMemoryAccountStore()
		a.sessions = session.NewMemoryStore(nil)
	}

	a.rateState = ratelimit.NewFallbackStore(cfg.RateStateSettings(), nil, nil)
	gate := admission.NewGate(a.rateState, admission.Options{
		Limits:            cfg.TierLimits(),
		Cooldowns:         cfg.CooldownDurations(),
		FinancialCommands: cfg.FinancialCommands,
	}, nil)
	resolver := identity.NewResolver(accounts, identity.Options{
		AddressPrefix: cfg.Identity.AddressPrefix,
		AddressDomain: cfg.Identity.AddressDomain,
		CreateTimeout: cfg.Identity.CreateTimeout,
		OnProvision: func(models.Account) {
			a.metrics.ObserveProvisioned()
		},
	}, nil)
	a.orchestrator = pipeline.NewOrchestrator(gate, resolver, a.sessions, newRouter(), a.metrics)

	a.sweeper = sweeper.New(cfg.Retention.Idle, cfg.Retention.Interval, a.metrics.ObserveSwept)
	a.sweeper.Add("rate_state", gate)
	a.sweeper.Add("session", a.sessions)

	engine := gin.New()
	engine.Use(gin.Recovery())
	admin.RegisterAdminRoutes(engine, admin.Deps{
		DB:       a.conn,
		Admin:    cfg.Admin,
		JWT:      cfg.JWT,
		State:    a.orchestrator,
		Accounts: resolver,
		Metrics:  a.metrics,
	})
	inbound.RegisterInboundRoutes(engine, a.orchestrator, inbound.NewIntakeLimiter(cfg.Ingress.RPS, cfg.Ingress.Burst))
	a.engine = engine

	return a, nil
}

// Handler returns the HTTP handler serving the webhook and admin API.
func (a *App) Handler() http.Handler { return a.engine }

// Orchestrator returns the assembled pipeline.
func (a *App) Orchestrator() *pipeline.Orchestrator { return a.orchestrator }

// Run serves HTTP and runs the retention sweep until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("ingress listening on %s", srv.Addr)
		if errServe := srv.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", errServe)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("http shutdown: %w", errShutdown)
		}
		return nil
	})
	g.Go(func() error {
		return a.sweeper.Run(gctx)
	})
	return g.Wait()
}

// Close releases the rate state backend and the database.
func (a *App) Close() error {
	var errs []error
	if a.rateState != nil {
		if errClose := a.rateState.Close(); errClose != nil {
			errs = append(errs, errClose)
		}
	}
	if a.conn != nil {
		sqlDB, errDB := a.conn.DB()
		if errDB != nil {
			errs = append(errs, errDB)
		} else if errClose := sqlDB.Close(); errClose != nil {
			errs = append(errs, errClose)
		}
	}
	return errors.Join(errs...)
}

// RunServer configures logging, builds the service and serves until ctx ends.
func RunServer(ctx context.Context, cfg config.Config) error {
	if errLog := ConfigureLogging(cfg.Logging); errLog != nil {
		return errLog
	}
	log.Infof("config: %s", cfg)
	a, err := Build(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := a.Close(); errClose != nil {
			log.WithError(errClose).Warn("close app")
		}
	}()
	return a.Run(ctx)
}

func closeDB(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil {
		return
	}
	if errClose := sqlDB.Close(); errClose != nil {
		log.Errorf("sql db close error: %v", errClose)
	}
}
