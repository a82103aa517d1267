package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pcashcroft/backtest/internal/handler/api"
	"github.com/pcashcroft/backtest/pkg/config"
	xhttp "github.com/pcashcroft/backtest/pkg/http"
	applogger "github.com/pcashcroft/backtest/pkg/logger"
)

// App owns the query-server lifecycle: HTTP serving, signal handling and
// graceful shutdown. Infrastructure clients are owned by the DI cleanup.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    *api.MetricsHandler
	httpServer *xhttp.Server
}

// New creates the application.
func New(cfg *config.Config, log *applogger.Logger, handler *api.MetricsHandler) *App {
	return &App{cfg: cfg, log: log, handler: handler}
}

// Run starts the HTTP server and blocks until an interrupt or SIGTERM.
func (a *App) Run() error {
	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("query server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		return err
	}

	a.log.Info("shutdown complete")
	return nil
}
