// Package app assembles the worker process: one dispatcher per queue, the
// ops HTTP server, and the shared Redis, database, and broker handles.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/velprakashr08-max/Frutify/internal/broker"
	"github.com/velprakashr08-max/Frutify/internal/config"
	"github.com/velprakashr08-max/Frutify/internal/dispatch"
)

type App struct {
	Config      *config.Config
	Logger      *slog.Logger
	Redis       redis.UniversalClient
	Broker      *broker.Connection
	Dispatchers []*dispatch.Dispatcher
	OpsServer   *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, rdb redis.UniversalClient, conn *broker.Connection, dispatchers []*dispatch.Dispatcher, ops *http.Server) *App {
	return &App{
		Config:      cfg,
		Logger:      logger,
		Redis:       rdb,
		Broker:      conn,
		Dispatchers: dispatchers,
		OpsServer:   ops,
	}
}

// Run declares the topology, starts every dispatcher and the ops server,
// and blocks until ctx is cancelled. Dispatcher goroutines drain their
// in-flight work before Run returns.
func (a *App) Run(ctx context.Context) error {
	if err := a.Broker.DeclareTopology(broker.DefaultTopology()); err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, d := range a.Dispatchers {
		wg.Add(1)
		go func(d *dispatch.Dispatcher) {
			defer wg.Done()
			if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error("dispatcher stopped", "error", err)
			}
		}(d)
	}

	go func() {
		a.Logger.Info("ops server starting", "addr", a.OpsServer.Addr)
		if err := a.OpsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("ops server failed", "error", err)
		}
	}()

	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.OpsServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := a.Broker.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.Redis.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
