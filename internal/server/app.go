// Package server wires the reference sync server: storage, services, the
// gRPC endpoint and the Prometheus metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/splitsync/internal/cryptox"
	"github.com/dmitrijs2005/splitsync/internal/logging"
	"github.com/dmitrijs2005/splitsync/internal/server/config"
	"github.com/dmitrijs2005/splitsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/splitsync/internal/server/services"

	gs "github.com/dmitrijs2005/splitsync/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	repos    repomanager.RepositoryManager
	registry *prometheus.Registry
	grpc     *gs.GRPCServer
}

// NewApp opens the store named by c.DatabaseDSN, or an in-memory one when it
// is empty, and builds the servers.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	var (
		repos repomanager.RepositoryManager
		err   error
	)
	if c.DatabaseDSN == "" {
		logger.Warn(ctx, "no database DSN, data is kept in memory")
		repos = repomanager.NewInMemoryRepositoryManager()
	} else if repos, err = repomanager.NewPostgresRepositoryManager(ctx, c.DatabaseDSN); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	secret := c.SecretKey
	if secret == "" {
		if secret, err = cryptox.RandHex(32); err != nil {
			_ = repos.Close()
			return nil, err
		}
		logger.Warn(ctx, "no secret key configured, tokens will not survive a restart")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	grpcServer := gs.NewGRPCServer(
		c.EndpointAddrGRPC,
		logger,
		services.NewAccountService(repos, []byte(secret), c.AccessTokenValidityDuration),
		services.NewRecordService(repos),
		[]byte(secret),
		gs.NewMetrics(registry),
	)

	return &App{config: c, logger: logger, repos: repos, registry: registry, grpc: grpcServer}, nil
}

func (app *App) startMetricsServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           app.metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (app *App) metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	return mux
}

// Run serves until ctx is cancelled or one of the servers fails, then closes
// the store.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...")
	defer func() {
		if err := app.repos.Close(); err != nil {
			app.logger.Error(ctx, "failed to close store", "error", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.grpc.Run(ctx) })
	if app.config.MetricsAddr != "" {
		g.Go(func() error { return app.startMetricsServer(ctx) })
	}

	if err := g.Wait(); err != nil {
		app.logger.Error(ctx, err.Error())
		return err
	}
	app.logger.Info(ctx, "Stopped")
	return nil
}
