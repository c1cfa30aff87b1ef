package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"incorp/internal/app"
	"incorp/internal/audit"
	"incorp/internal/platform/config"
	"incorp/internal/platform/httpserver"
	"incorp/internal/platform/logger"
	"incorp/internal/platform/metrics"
	"incorp/internal/web"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server) error {
	log := logger.New(cfg.LogLevel)
	if cfg.UsesDevSigningKey() {
		log.Warn("SESSION_SIGNING_KEY not set, using development key")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.Build(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.SeedAdmin(ctx); err != nil {
		return err
	}

	authCtx := web.NewAuthContext(a.Auth, web.CookieConfig{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, log)
	opts := []web.Option{
		web.WithLogger(log),
		web.WithMetricsHandler(metrics.Handler(reg)),
		web.WithMiddleware(metrics.NewHTTP(reg).Middleware),
	}
	for name, check := range a.HealthChecks() {
		opts = append(opts, web.WithHealthCheck(name, check))
	}
	portal, err := web.New(authCtx, a.Intake, a.Auth, opts...)
	if err != nil {
		return err
	}
	srv := httpserver.New(cfg.Addr, portal.Handler(), log)

	log.Info("starting incorporation portal",
		"addr", cfg.Addr,
		"store", string(cfg.StoreDriver),
		"redis", a.Redis != nil,
		"kafka", a.AuditWorker != nil,
	)
	return serve(ctx, srv, a.AuditWorker, log)
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// serve runs srv until ctx is done. The audit worker keeps delivering until
// srv.Shutdown has returned, so events emitted by in-flight requests are
// still drained.
func serve(ctx context.Context, srv httpServer, worker *audit.Worker, log *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()
	if worker != nil {
		g.Go(func() error {
			return worker.Run(workerCtx)
		})
	}
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer stopWorker()
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
