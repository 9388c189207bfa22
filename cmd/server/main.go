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

	"github.com/go-chi/chi/v5"

	"didlab/internal/credential/handler"
	credmetrics "didlab/internal/credential/metrics"
	"didlab/internal/credential/resolver"
	credservice "didlab/internal/credential/service"
	"didlab/internal/platform/config"
	"didlab/internal/platform/health"
	"didlab/internal/platform/logger"
	"didlab/internal/platform/metrics"
	"didlab/pkg/platform/middleware/apikey"
	"didlab/pkg/platform/middleware/clientip"
	"didlab/pkg/platform/middleware/request"
	"didlab/pkg/platform/middleware/requesttime"
	"didlab/pkg/platform/validation"
)

const readHeaderTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load(os.Getenv("DIDLAB_CONFIG_FILE"))
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := metrics.NewRegistry()

	in, err := connect(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer in.close()

	ldg, err := in.buildLedger(cfg.Ledger, reg)
	if err != nil {
		return err
	}
	auditor := in.buildAuditor(cfg.Kafka, reg, log)
	defer auditor.Close()

	svc := credservice.New(ldg, in.buildStore(),
		credservice.WithCache(in.buildCache(ctx, cfg.Credentials, log)),
		credservice.WithAuditor(auditor),
		credservice.WithMetrics(credmetrics.New(reg)),
		credservice.WithLogger(log),
	)

	router, err := newRouter(cfg, log, reg, svc)
	if err != nil {
		return err
	}
	healthHandler := health.New(cfg.Server.Environment)
	in.registerChecks(healthHandler)
	healthHandler.Register(router)
	router.Method(http.MethodGet, "/metrics", reg.Handler())

	reg.SetBuildInfo(health.Version, cfg.Server.Environment, in.ledgerBackend())
	go in.recordRedisStats(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	log.Info("starting didlab server",
		"addr", cfg.Server.Addr,
		"environment", cfg.Server.Environment,
		"ledger", in.ledgerBackend(),
		"issuer", ldg.Issuer(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRouter(cfg *config.Config, log *slog.Logger, reg *metrics.Registry, svc *credservice.Service) (chi.Router, error) {
	proxies, err := clientip.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(log))
	r.Use(request.RequestID)
	r.Use(clientip.New(proxies).Middleware)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(log))
	r.Use(request.Timeout(cfg.Server.RequestTimeout))
	r.Use(request.LatencyMiddleware(request.NewMetrics(reg)))

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(request.BodyLimit(validation.MaxBodySize))

		h := handler.New(svc, resolver.New(cfg.Credentials.MaxPayloadBytes), log,
			handler.WithIssueGuard(apikey.Require(cfg.Security.IssueAPIKey, log)),
			handler.WithRevokeGuard(apikey.Require(cfg.Security.RevokeAPIKey, log)),
			handler.WithExportGuard(apikey.Require(cfg.Security.ExportAPIKey, log)),
		)
		h.Register(r)
	})

	return r, nil
}
