// Package app assembles the portal's services from configuration. Both the
// HTTP server and portalctl build on it so they share one wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"incorp/internal/audit"
	authMetrics "incorp/internal/auth/metrics"
	authModels "incorp/internal/auth/models"
	authService "incorp/internal/auth/service"
	principalStore "incorp/internal/auth/store/principal"
	"incorp/internal/auth/store/revocation"
	"incorp/internal/auth/token"
	intakeMetrics "incorp/internal/intake/metrics"
	intakeService "incorp/internal/intake/service"
	intakeStore "incorp/internal/intake/store"
	"incorp/internal/platform/config"
	"incorp/internal/platform/postgres"
	"incorp/internal/platform/redis"
	lockoutService "incorp/internal/ratelimit/service/authlockout"
	lockoutStore "incorp/internal/ratelimit/store/authlockout"
	"incorp/pkg/domain"
	pstrings "incorp/pkg/platform/strings"
)

// App holds the constructed services and the resources behind them.
type App struct {
	Config config.Server
	Logger *slog.Logger

	DB    *sqlx.DB
	Redis *redis.Client

	Auth   *authService.Service
	Intake *intakeService.Service

	// AuditWorker is nil unless a Kafka sink is configured.
	AuditWorker *audit.Worker

	closers []func()
}

type buildOptions struct {
	migrate bool
}

// Option adjusts Build.
type Option func(*buildOptions)

// SkipMigrations leaves the schema untouched even when DB_AUTO_MIGRATE is set.
func SkipMigrations() Option {
	return func(o *buildOptions) {
		o.migrate = false
	}
}

// Build opens the configured backends and constructs the services. Metrics
// are registered on reg. Close releases everything Build opened.
func Build(ctx context.Context, cfg config.Server, logger *slog.Logger, reg prometheus.Registerer, opts ...Option) (*App, error) {
	o := buildOptions{migrate: cfg.Database.AutoMigrate}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{Config: cfg, Logger: logger}

	if err := a.openStores(ctx, o); err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.openAudit(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var principals authService.PrincipalStore = principalStore.NewInMemory()
	var requests intakeService.Store = intakeStore.NewInMemory()
	if a.DB != nil {
		principals = principalStore.NewPostgres(a.DB)
		requests = intakeStore.NewPostgres(a.DB, cfg.Database.RLSRole)
	}

	am := authMetrics.New(reg)
	var trl authService.TokenRevocationList = revocation.NewInMemoryTRL()
	if a.Redis != nil {
		trl = revocation.NewRedisTRL(a.Redis, revocation.WithLatencyObserver(am.ObserveIsRevoked))
	}
	tokens := token.New(cfg.Session.SigningKey, cfg.Session.Issuer, cfg.Session.TTL)

	authOpts := []authService.Option{
		authService.WithLogger(logger),
		authService.WithMetrics(am),
		authService.WithAuditPublisher(publisher),
	}
	if cfg.Lockout.Attempts > 0 {
		lockout, err := a.newLockout()
		if err != nil {
			a.Close()
			return nil, err
		}
		authOpts = append(authOpts, authService.WithLockout(lockout))
	}
	a.Auth, err = authService.New(principals, trl, tokens, authOpts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("auth service: %w", err)
	}

	a.Intake, err = intakeService.New(requests,
		intakeService.WithLogger(logger),
		intakeService.WithMetrics(intakeMetrics.New(reg)),
		intakeService.WithAuditPublisher(publisher),
		intakeService.WithDirectory(a.Auth),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("intake service: %w", err)
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context, o buildOptions) error {
	if a.Config.StoreDriver == config.StoreDriverPostgres {
		db, err := postgres.Open(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		a.DB = db
		a.closers = append(a.closers, func() { _ = db.Close() })
		if o.migrate {
			if err := postgres.Migrate(db, a.Logger); err != nil {
				return err
			}
		}
	}

	rc, err := redis.New(ctx, a.Config.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		a.Redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}
	return nil
}

func (a *App) openAudit(ctx context.Context) (*audit.Publisher, error) {
	cfg := a.Config.Audit
	brokers := pstrings.DedupeAndTrim(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return audit.NewPublisher(a.Logger), nil
	}
	sink, err := audit.NewKafkaSink(brokers, cfg.KafkaTopic)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, sink.Close)
	if err := sink.EnsureTopic(ctx, 1, 1); err != nil {
		// Clusters with auto-creation still accept the first produce.
		a.Logger.WarnContext(ctx, "could not ensure audit topic",
			"topic", cfg.KafkaTopic,
			"error", err,
		)
	}
	a.AuditWorker = audit.NewWorker(sink, cfg.BufferSize, a.Logger)
	return audit.NewPublisher(a.Logger, audit.WithQueue(a.AuditWorker.Inbox())), nil
}

func (a *App) newLockout() (*lockoutService.Service, error) {
	var store lockoutService.Store = lockoutStore.New()
	if a.Redis != nil {
		store = lockoutStore.NewRedis(a.Redis)
	}
	cfg := a.Config.Lockout
	svc, err := lockoutService.New(store,
		lockoutService.WithLogger(a.Logger),
		lockoutService.WithConfig(lockoutService.Config{
			Attempts:     cfg.Attempts,
			Window:       cfg.Window,
			LockDuration: cfg.Duration,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("sign-in lockout: %w", err)
	}
	return svc, nil
}

// SeedAdmin provisions the configured admin principal if it is missing.
func (a *App) SeedAdmin(ctx context.Context) error {
	seed := a.Config.Seed
	if seed.AdminEmail == "" {
		return nil
	}
	created, err := a.Auth.EnsurePrincipal(ctx, authModels.NewPrincipal{
		Email:       seed.AdminEmail,
		DisplayName: "Administrator",
		Password:    seed.AdminPassword,
		Role:        domain.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		a.Logger.InfoContext(ctx, "seeded admin principal", "email", seed.AdminEmail)
	}
	return nil
}

// HealthChecks lists a probe per external dependency in use.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := map[string]func(context.Context) error{}
	if a.DB != nil {
		checks["postgres"] = a.DB.PingContext
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Health
	}
	return checks
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
