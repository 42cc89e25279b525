package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"loans/internal/config"
	"loans/internal/graphql"
	apphttp "loans/internal/http"
	"loans/internal/log"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the REST and GraphQL API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap(func(c *config.Config) {
				if port != "" {
					c.Port = port
				}
			})
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	ctx, stop := ShutdownContext(ctx, logger)
	defer stop()

	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{publish: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()

	gql, err := graphql.NewHandler(rt.loans, logger)
	if err != nil {
		return fmt.Errorf("build graphql schema: %w", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, rt.loans, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		GraphQL:            gql,
		Readiness:          rt.readiness,
		Logger:             logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting loans server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events", rt.amqp != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	metrics := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"total_requests", metrics.TotalRequests,
		"avg_response_us", metrics.AverageResponseTime,
		"rate_limited", srv.RateLimitMetrics().TotalHits,
		"suspicious", srv.DetectionMetrics().SuspiciousRequests)
	return nil
}
