package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"financify/internal/cli"
	"financify/internal/log"
	"financify/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting financify-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	be, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()
	if be.AMQP == nil {
		logger.Error("AMQP client unavailable, refusing to start")
		os.Exit(1)
	}

	// runs happen here, so the service never enqueues
	reportService := be.ReportService(false)
	reportWorker := worker.NewReportWorker(reportService)
	processor := cli.NewProcessor(cfg, reportService)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := be.AMQP.ConsumeReportRuns(gctx, reportWorker.HandleRunMessage)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if processor != nil {
		if err := processor.Start(gctx); err != nil {
			logger.Error("Failed to start report processor", log.FieldError, err.Error())
			os.Exit(1)
		}
		g.Go(func() error {
			<-gctx.Done()
			stopCtx, stopCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
			defer stopCancel()
			return processor.Stop(stopCtx)
		})
	} else {
		logger.Info("Scheduled report runs disabled", "report_interval", cfg.ReportInterval)
	}

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
