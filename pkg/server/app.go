package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "PayPull/internal/domain/repository"
	"PayPull/internal/usecase"
	"PayPull/pkg/config"
	xhttp "PayPull/pkg/http"
	applogger "PayPull/pkg/logger"
	"PayPull/pkg/postgres"
)

// App owns the process lifecycle. With no schedule interval configured it
// runs a single ingestion pass and exits; with an interval it keeps polling
// on a ticker and serves the ops endpoints until interrupted.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	poller    *usecase.Poller
	store     domrepo.TransactionStore
	publisher domrepo.Publisher
	pg        *postgres.Client
	handler   xhttp.Handler

	httpServer *xhttp.Server
}

// New creates the App with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	poller *usecase.Poller,
	store domrepo.TransactionStore,
	publisher domrepo.Publisher,
	pg *postgres.Client,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		poller:    poller,
		store:     store,
		publisher: publisher,
		pg:        pg,
		handler:   handler,
	}
}

// Run blocks until the work is done or a shutdown signal arrives.
func (a *App) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	defer a.closeResources()

	if a.cfg.Schedule.Interval <= 0 {
		return a.poller.Run(ctx)
	}
	return a.runScheduled(ctx)
}

func (a *App) runScheduled(ctx context.Context) error {
	if a.cfg.Server.Enabled {
		a.httpServer = xhttp.NewServer(a.handler,
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		)
		if err := a.httpServer.Start(); err != nil {
			return err
		}
	}

	a.log.Info("scheduled polling started", applogger.Duration("interval", a.cfg.Schedule.Interval))

	ticker := time.NewTicker(a.cfg.Schedule.Interval)
	defer ticker.Stop()

	a.runPass(ctx)
	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutdown signal received")
			return a.shutdown()
		case <-ticker.C:
			a.runPass(ctx)
		}
	}
}

// runPass absorbs pass-level errors: in scheduled mode a failed pass must
// not take the process down, the next tick retries from the cursor.
func (a *App) runPass(ctx context.Context) {
	if err := a.poller.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		a.log.Error("ingestion pass failed", applogger.Error(err))
	}
}

func (a *App) shutdown() error {
	if a.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
	return nil
}

func (a *App) closeResources() {
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("publisher close error", applogger.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("store close error", applogger.Error(err))
	}
	if a.pg != nil {
		if err := a.pg.Close(); err != nil {
			a.log.Warn("postgres close error", applogger.Error(err))
		}
	}
}
