package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"obligations/internal/cli"
	apphttp "obligations/internal/http"
	"obligations/internal/log"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)

	result := cli.NewBackend(context.Background(), logger, cfg, nil)
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	opts := apphttp.Options{
		Logger:             logger.WithComponent(log.ComponentHTTP),
		Directory:          result.Store,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	// With GCS the bucket is the source of truth; local records would not be counted.
	if cfg.AttachmentsBackend == "store" {
		opts.Attachments = result.Store
	}
	if result.AMQP != nil {
		opts.ReadyChecks = map[string]apphttp.ReadyCheck{"amqp": result.AMQP.Ping}
	}
	srv := apphttp.NewServer(":"+cfg.Port, result.Engine, opts)
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, srv.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting obligations server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return result.Janitor.Run(gctx, cfg.DirectoryCacheTTL)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = srv.Shutdown(context.Background())
		_ = result.Cleanup()
		os.Exit(1)
	}
	<-done
	logger.Info("Server stopped gracefully")
}
