package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/henrybloomingdale/clinlit/internal/config"
	"github.com/henrybloomingdale/clinlit/internal/server"
)

const shutdownGrace = 10 * time.Second

// serveCmd exposes the pipeline over HTTP with SSE progress streaming.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the query pipeline as an HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := newLogger(cfg)

		hub := server.NewHub()
		orch := newOrchestrator(cfg, log, hub)
		router := server.NewRouter(orch, hub, log)

		srv := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: router,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			log.WithField("addr", cfg.HTTPAddr).Info("listening")
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}
