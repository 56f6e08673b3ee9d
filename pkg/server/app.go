package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/handler/ws"
	"CoinPulse/internal/usecase"
	pkgch "CoinPulse/pkg/clickhouse"
	"CoinPulse/pkg/config"
	xhttp "CoinPulse/pkg/http"
	applogger "CoinPulse/pkg/logger"
)

// App encapsulates the entire application lifecycle: the signal scheduler,
// the HTTP API, the websocket hub and the optional archive and broker
// connections.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	sched      *usecase.Scheduler
	handler    xhttp.Handler
	hub        *ws.Hub
	sink       drepo.SignalSink
	archiver   drepo.SnapshotArchiver
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. hub, sink, archiver
// and chClient may be nil when the corresponding backend is disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	sched *usecase.Scheduler,
	handler xhttp.Handler,
	hub *ws.Hub,
	sink drepo.SignalSink,
	archiver drepo.SnapshotArchiver,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		sched:    sched,
		handler:  handler,
		hub:      hub,
		sink:     sink,
		archiver: archiver,
		chClient: chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.log, time.Second),
	)
	if a.hub != nil {
		a.hub.RegisterRoutes(a.httpServer.Echo())
	}

	a.sched.Start(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("service started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.Int("symbols", len(a.cfg.Symbols)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown drains the scheduler first so no publish races a closing sink,
// then tears the rest down.
func (a *App) shutdown() error {
	a.sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Error("sink close error", applogger.Error(err))
		}
	}
	if a.archiver != nil {
		if err := a.archiver.Close(); err != nil {
			a.log.Error("archiver close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Error("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("service stopped")
	return nil
}
