package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"loans/internal/amqp"
	"loans/internal/config"
	"loans/internal/log"
	"loans/internal/services"
	"loans/internal/worker"
)

func newWorkerCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume payment events and log scheduled portfolio reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.bootstrap()
			if err != nil {
				return err
			}
			return runWorker(cmd.Context(), cfg, logger)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	ctx, stop := ShutdownContext(ctx, logger)
	defer stop()

	workerLogger := logger.WithComponent(log.ComponentWorker)
	workerLogger.Info("Starting loans worker")

	rt, err := newRuntime(ctx, cfg, logger, runtimeOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("Cleanup failed", "error", err)
		}
	}()

	paymentWorker := worker.NewPaymentWorker(rt.loans)

	// surface problems that arose while the worker was down
	if _, err := paymentWorker.StartupCheck(ctx); err != nil {
		workerLogger.Error("Failed startup check", "error", err)
	}

	reportCfg := services.DefaultReportProcessorConfig()
	reportCfg.Schedule = cfg.ReportSchedule
	reports := services.NewReportProcessor(rt.loans, reportCfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := reports.Start(gctx); err != nil {
			return fmt.Errorf("start report processor: %w", err)
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return reports.Stop(stopCtx)
	})

	if cfg.AMQPURL == "" {
		workerLogger.Info("AMQP_URL not set, skipping payment event consumption")
	} else {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return fmt.Errorf("initialize AMQP client: %w", err)
		}
		defer client.Close()

		g.Go(func() error {
			err := client.ConsumePaymentEvents(gctx, paymentWorker.HandlePaymentRecorded)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	_, runs := reports.Last()
	workerLogger.Info("Worker shutdown complete", "report_runs", runs)
	return nil
}
