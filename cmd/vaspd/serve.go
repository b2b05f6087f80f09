package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oriys/offchain/internal/logging"
	"github.com/oriys/offchain/internal/metrics"
	"github.com/oriys/offchain/internal/observability"
)

func serveCmd() *cobra.Command {
	var (
		httpAddr string
		keyFile  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the vaspd daemon, answering peer requests and retransmitting pending ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("http") {
				cfg.Daemon.HTTPAddr = httpAddr
			}

			ctx := context.Background()
			a, err := newApp(ctx, cfg, keyFile)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := observability.Shutdown(shutdownCtx); err != nil {
					logging.Op().Warn("tracing shutdown failed", "error", err)
				}
			}()

			mux := http.NewServeMux()
			mux.Handle("/", a.server.Handler())
			mux.Handle("/metrics", metrics.Handler())
			mux.Handle("/metrics/prometheus", metrics.PrometheusHandler())

			httpServer := &http.Server{Addr: cfg.Daemon.HTTPAddr, Handler: mux}
			errCh := make(chan error, 1)
			go func() {
				logging.Op().Info("vaspd listening", "addr", cfg.Daemon.HTTPAddr, "self", a.self.String())
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			ticker := time.NewTicker(cfg.Daemon.RetransmitTick)
			defer ticker.Stop()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			for {
				select {
				case err := <-errCh:
					return fmt.Errorf("http server: %w", err)
				case <-sigCh:
					logging.Op().Info("shutdown signal received")
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return httpServer.Shutdown(shutdownCtx)
				case <-ticker.C:
					a.registry.RetransmitAll(ctx)
				}
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (overrides config)")
	cmd.Flags().StringVar(&keyFile, "key", "vaspd.key", "path to this VASP's Ed25519 seed file (generated on first run)")

	return cmd
}
