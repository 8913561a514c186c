package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"redistrict/pkg/logger"
	"redistrict/pkg/metrics"
)

func newServeMetricsCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Serve Prometheus metrics and a health endpoint until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if !cmd.Flags().Changed("port") {
				port = a.cfg.Metrics.Port
			}

			if err := prometheus.Register(metrics.NewRuntimeCollector(a.cfg.Metrics.Namespace, a.cfg.Metrics.Subsystem)); err != nil {
				logger.Log.Warn("Failed to register runtime collector", "error", err)
			}

			srv := metrics.NewServer(port, a.cfg.Metrics.Path)
			errCh := make(chan error, 1)
			go func() {
				logger.Log.Info("Metrics server started", "port", port)
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

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Log.Info("Shutting down metrics server")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: metrics.port)")

	return cmd
}
