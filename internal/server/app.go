// Package server initializes and runs the messaging server. It wires the
// storage, crypto, realtime and HTTP layers together and handles graceful
// shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/venturelink/messenger/internal/cipherx"
	"github.com/venturelink/messenger/internal/logging"
	"github.com/venturelink/messenger/internal/server/config"
	"github.com/venturelink/messenger/internal/server/httpapi"
	"github.com/venturelink/messenger/internal/server/metrics"
	"github.com/venturelink/messenger/internal/server/registry"
	"github.com/venturelink/messenger/internal/server/relay"
	"github.com/venturelink/messenger/internal/server/repositories/repomanager"
	"github.com/venturelink/messenger/internal/server/services"
	"github.com/venturelink/messenger/internal/server/typing"
	"github.com/venturelink/messenger/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	repos  repomanager.RepositoryManager
	router http.Handler
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	repos, err := repomanager.NewPostgresRepositoryManager(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	cipher, err := cipherx.New(cipherx.DeriveKey([]byte(cfg.CipherPassphrase), []byte(cfg.CipherSalt)))
	if err != nil {
		repos.Close()
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	collector := metrics.NewPromCollector(promRegistry)

	svc := services.NewMessageService(repos.Messages(), cipher, logger)
	reg := registry.New()
	r := relay.New(svc, reg, typing.NewTracker(), collector, logger, cfg.PersistTimeout)
	reg.OnPresence(r.PresenceChanged)

	wsHandler := ws.NewHandler([]byte(cfg.SecretKey), reg, r, collector, logger, cfg.EventRate, cfg.EventBurst)

	router := httpapi.NewRouter(&httpapi.RouterDeps{
		SecretKey: []byte(cfg.SecretKey),
		Service:   svc,
		Registry:  reg,
		Logger:    logger,
		WSHandler: wsHandler,
		Gatherer:  promRegistry,
	})

	return &App{config: cfg, logger: logger, repos: repos, router: router}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		app.repos.Close()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown closes the listener and the websocket connections along
	// with it; the read loops then unregister their sessions.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
	}

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	return nil
}
