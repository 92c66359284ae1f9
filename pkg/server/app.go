package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MoexPull/internal/domain/repository"
	xhttp "MoexPull/pkg/http"
	pkgkafka "MoexPull/pkg/kafka"
	applogger "MoexPull/pkg/logger"
)

// App encapsulates the application lifecycle.
type App struct {
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	store      repository.HoldingStore
}

// New creates an App. consumer may be nil.
func New(
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	store repository.HoldingStore,
) *App {
	return &App{
		log:        l,
		httpServer: httpServer,
		consumer:   consumer,
		store:      store,
	}
}

// Run starts every component and blocks until ctx is done or the process
// receives SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.checkStore(ctx); err != nil {
		return err
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) checkStore(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.store.Health(hctx); err != nil {
		a.log.Error("holding store unhealthy", applogger.Error(err))
		return err
	}
	return nil
}

// shutdown stops intake first, then drains the consumer.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.httpServer.ShutdownTimeout())
	defer cancel()

	var firstErr error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		firstErr = err
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("holding store close error", applogger.Error(err))
	}

	a.log.Info("shutdown complete")
	return firstErr
}
