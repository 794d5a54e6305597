package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command: it runs the polling loop until
// interrupted.
func ServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the workflow automation loop",
		Long:  "Runs the SLA scan, rule scan and reminder dispatch loop until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			application, logger, err := buildApp()
			if err != nil {
				return err
			}
			defer application.Close()

			ctx, stop := signal.NotifyContext(NewContext(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if application.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsSrv := &http.Server{Addr: application.MetricsAddr, Handler: mux}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics listener failed", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					metricsSrv.Shutdown(shutdownCtx)
				}()
				logger.Info("metrics listener started", "addr", application.MetricsAddr)
			}

			logger.Info("loanflow worker starting")
			if err := application.Loop.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
