package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/operad"
	"github.com/aretw0/operad/internal/cli"
	httpAdapter "github.com/aretw0/operad/pkg/adapters/http"
	"github.com/aretw0/operad/pkg/runner"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve [workflow...]",
	Short: "Start the HTTP server",
	Long: `Exposes kernel compilation, run management, reflex event intake, run
streams (SSE) and Prometheus metrics over HTTP. Workflow files given as
arguments are compiled and registered at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setupApp()
		if err != nil {
			return err
		}
		defer app.Close()

		for _, path := range args {
			ko, _, err := cli.LoadKernel(app.Engine, path)
			if err != nil {
				return err
			}
			if err := app.Manager.Register(cmd.Context(), ko); err != nil {
				return err
			}
			logger.Info("kernel registered", "ko", ko.ID, "path", path)
		}

		version := strings.TrimSpace(operad.Version)
		handler := httpAdapter.NewHandler(app.Engine, app.Manager,
			httpAdapter.WithMetrics(app.Metrics.Handler()),
			httpAdapter.WithEventRate(rate.Limit(cfg.Events.Rate), cfg.Events.Burst),
			httpAdapter.WithVersion(version),
			httpAdapter.WithLogger(logger),
		)

		addr := cfg.HTTP.Addr
		if cmd.Flags().Changed("addr") {
			addr, _ = cmd.Flags().GetString("addr")
		}
		srv := &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := runner.SignalContext(cmd.Context())
		defer cancel()

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("operad server listening", "address", addr, "version", version, "store", cfg.Store.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful shutdown did not complete", "error", err)
				return srv.Close()
			}
			logger.Info("server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Listen address (default from config)")
}
