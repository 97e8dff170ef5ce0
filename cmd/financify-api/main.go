package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"financify/internal/cli"
	apphttp "financify/internal/http"
	"financify/internal/log"
	"financify/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.MustLoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, cancel := cli.GracefulShutdown(logger)
	defer cancel()

	be, err := cli.InitBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	reportService := be.ReportService(true)
	srv := apphttp.NewServer(apphttp.Config{
		Addr:          ":" + cfg.Port,
		AdminMode:     cfg.AdminMode,
		RateLimitRPM:  cfg.RateLimitRPM,
		AuthCacheSize: cfg.AuthCacheSize,
		AuthCacheTTL:  cfg.AuthCacheTTL,
	}, apphttp.Deps{
		Store:      be.Store,
		Statements: services.NewStatementService(be.Store),
		Expenses:   services.NewExpenseService(be.Store),
		Patterns:   services.NewPatternService(be.Store),
		Users:      services.NewUserService(be.Store),
		Reports:    reportService,
	}, logger)

	// with a queue the worker owns scheduled runs
	var processor *services.ReportProcessor
	if !reportService.CanEnqueue() {
		processor = cli.NewProcessor(cfg, reportService)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting financify API",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"admin_mode", cfg.AdminMode,
			"queue", reportService.CanEnqueue())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if processor != nil {
		if err := processor.Start(gctx); err != nil {
			logger.Error("Failed to start report processor", log.FieldError, err.Error())
			os.Exit(1)
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cli.ShutdownTimeout)
		defer shutdownCancel()

		var errs []error
		if processor != nil {
			errs = append(errs, processor.Stop(shutdownCtx))
		}
		errs = append(errs, srv.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
