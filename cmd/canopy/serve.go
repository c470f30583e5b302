package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aretw0/canopy/internal/cli"
	"github.com/aretw0/canopy/internal/presentation/tui"
	httpAdapter "github.com/aretw0/canopy/pkg/adapters/http"
	"github.com/aretw0/canopy/pkg/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the middleware chain from the config file in front of the sessions API,
the diff event stream and Prometheus metrics. Without --origin the sessions
fetch from this server itself, which suits a chain ending in the static middleware.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		mode, _ := cmd.Flags().GetString("mode")
		quiet, _ := cmd.Flags().GetBool("quiet")

		origin, err := cli.ResolveOrigin(globalOpts)
		if err != nil {
			origin = "http://localhost:" + port
		}

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		app, err := newAppWith(appOptions{withStore: true, origin: origin, registry: registry})
		if err != nil {
			return err
		}
		defer app.Close()

		configPath := globalOpts.ConfigPath
		runner := middleware.NewRunner(middleware.Options{
			Cmd:    middleware.Cmd(mode),
			Config: app.config,
			LoadEntries: func(ctx context.Context) (middleware.Entries, error) {
				return middleware.FileEntries{Path: configPath}, nil
			},
			Logger: app.logger,
		})

		srv := &http.Server{
			Addr: ":" + port,
			Handler: httpAdapter.NewHandler(httpAdapter.ServerOptions{
				Runner:   runner,
				Sessions: app.client.Sessions(),
				Gatherer: registry,
				Logger:   app.logger,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		if !quiet {
			tui.PrintBanner(cmd.ErrOrStderr())
		}
		app.logger.Info("Starting server", "addr", srv.Addr, "origin", origin, "mode", mode)

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Stop()

		serverErrors := make(chan error, 1)
		go func() {
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-sc.Done():
			app.logger.Info("Shutting down", "signal", sc.Signal())
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			app.logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("failed to close server: %w", err)
			}
		}
		app.logger.Info("Server stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().String("mode", string(middleware.CmdDev), "Middleware mode: dev reads config once, start loads entries on first request")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
