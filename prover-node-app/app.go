package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/compose-network/epoch-prover/metrics"
	"github.com/compose-network/epoch-prover/prover-node-app/config"
	apisrv "github.com/compose-network/epoch-prover/server/api"
	apimw "github.com/compose-network/epoch-prover/server/api/middleware"
	"github.com/compose-network/epoch-prover/x/prover"
	proverhttp "github.com/compose-network/epoch-prover/x/prover/http"
)

// App serves a prover pool over REST so orchestrators on other hosts can
// use it as their remote prover.
type App struct {
	cfg       *config.Config
	log       zerolog.Logger
	startedAt time.Time

	pool    *prover.Pool
	handler *proverhttp.Handler

	apiServer *apisrv.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates a new application instance
func NewApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	runCtx, cancel := context.WithCancel(ctx)
	app := &App{
		cfg:       cfg,
		log:       log.With().Str("component", "app").Logger(),
		startedAt: time.Now(),
		ctx:       runCtx,
		cancel:    cancel,
	}

	if err := app.initialize(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}

	return app, nil
}

func (a *App) initialize() error {
	pool, err := prover.New(a.cfg.Prover, a.log)
	if err != nil {
		return fmt.Errorf("failed to create prover: %w", err)
	}
	a.pool = pool
	a.handler = proverhttp.NewHandler(a.ctx, pool, a.log)

	a.initializeAPIServer()
	return nil
}

// initializeAPIServer sets up the HTTP API server with all endpoints
func (a *App) initializeAPIServer() {
	s := apisrv.NewServer(a.cfg.API, a.log)
	s.Use(
		apimw.Recover(a.log),
		apimw.RequestID(),
		apimw.Logger(a.log),
		apimw.Metrics(metrics.NewComponentRegistry("prover", "http")),
	)

	s.Router.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	s.Router.HandleFunc("/ready", a.handleReady).Methods(http.MethodGet)
	s.Router.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)

	if a.cfg.Metrics.Enabled {
		s.Router.Handle(a.cfg.Metrics.Path, promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).
			Methods(http.MethodGet)
	}

	a.handler.RegisterMux(s.Router)
	a.apiServer = s
}

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	errc := make(chan error, 1)
	go func() {
		errc <- a.apiServer.Start(a.ctx)
	}()
	go a.statsReporter(a.ctx)

	return a.runWithGracefulShutdown(errc)
}

func (a *App) runWithGracefulShutdown(errc <-chan error) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	a.log.Info().Str("listen_addr", a.cfg.API.ListenAddr).Msg("Prover node started")

	var runErr error
	select {
	case <-a.ctx.Done():
		a.log.Info().Msg("Context canceled, initiating shutdown")
	case sig := <-sigCh:
		a.log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case runErr = <-errc:
		a.log.Error().Err(runErr).Msg("API server error")
	}

	a.shutdown()
	return runErr
}

func (a *App) shutdown() {
	a.log.Info().Msg("Initiating graceful shutdown")
	a.cancel()
	a.handler.Wait()
	a.log.Info().Msg("Graceful shutdown complete")
}

func (a *App) handleHealth(w http.ResponseWriter, _ *http.Request) {
	apisrv.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.ctx.Err() != nil {
		apisrv.WriteError(w, r, http.StatusServiceUnavailable, "shutting_down", "prover node is shutting down", nil)
		return
	}
	apisrv.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"workers": a.cfg.Prover.Workers,
	})
}

func (a *App) handleStats(w http.ResponseWriter, _ *http.Request) {
	apisrv.WriteJSON(w, http.StatusOK, a.GetStats())
}

// GetStats returns application statistics.
func (a *App) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"pool":           a.pool.GetStats(),
		"http":           a.handler.GetStats(),
		"prover_mode":    string(a.cfg.Prover.Mode),
		"uptime_seconds": time.Since(a.startedAt).Seconds(),
		"app_version":    Version,
		"app_build_time": BuildTime,
		"app_git_commit": GitCommit,
	}
}

// statsReporter periodically logs the pool statistics.
func (a *App) statsReporter(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := a.pool.GetStats()
			a.log.Info().
				Int64("queued", stats["queued"].(int64)).
				Int64("running", stats["running"].(int64)).
				Uint64("completed", stats["completed"].(uint64)).
				Uint64("failed", stats["failed"].(uint64)).
				Msg("Prover pool statistics")
		}
	}
}
