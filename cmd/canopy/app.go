package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/canopy"
	"github.com/aretw0/canopy/internal/cli"
	"github.com/aretw0/canopy/pkg/middleware"
)

const shutdownTimeout = 5 * time.Second

// app is what a command needs to talk to the server.
type app struct {
	logger *slog.Logger
	config *middleware.Config
	stores *cli.Stores
	client *canopy.Client
}

type appOptions struct {
	withStore bool
	origin    string
	registry  prometheus.Registerer
}

func newApp(withStore bool) (*app, error) {
	return newAppWith(appOptions{withStore: withStore})
}

func newAppWith(opts appOptions) (*app, error) {
	logger, err := cli.NewLogger(globalOpts)
	if err != nil {
		return nil, err
	}
	cfg, err := cli.LoadConfig(globalOpts)
	if err != nil {
		return nil, err
	}

	origin := opts.origin
	if origin == "" {
		origin, err = cli.ResolveOrigin(globalOpts)
		if err != nil {
			return nil, err
		}
	}

	a := &app{logger: logger, config: cfg}
	if opts.withStore {
		a.stores, err = cli.OpenStores(cfg, globalOpts.Dir)
		if err != nil {
			return nil, err
		}
	}

	a.client, err = cli.NewClient(origin, cli.ClientDeps{
		Logger:   logger,
		Config:   cfg,
		Stores:   a.stores,
		Registry: opts.registry,
	})
	if err != nil {
		a.closeStores()
		return nil, err
	}
	return a, nil
}

// Close flushes sessions and releases the store backend.
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.client.Close(ctx); err != nil {
		a.logger.Warn("Shutdown incomplete", "err", err)
	}
	a.closeStores()
}

func (a *app) closeStores() {
	if a.stores == nil {
		return
	}
	if err := a.stores.Close(); err != nil {
		a.logger.Warn("Failed to close store", "err", err)
	}
}
