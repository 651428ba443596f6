package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"obligations/internal/backend"
	"obligations/internal/cli"
	"obligations/internal/log"
	"obligations/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentWorker)
	logger.Info("Starting obligations-worker")

	// The worker is the consumer: events it observes itself are applied
	// directly rather than published back to the queue it reads.
	result := cli.NewBackend(context.Background(), logger, cfg, func(c *backend.Config) {
		c.EventsInProcess = true
	})
	defer func() {
		if err := result.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	docWorker := worker.NewDocumentationWorker(result.Engine)
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	if result.AMQP != nil {
		g.Go(func() error {
			err := result.AMQP.ConsumeDocumentation(gctx, docWorker.HandleDocumentationMessage)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no broker available")
	}
	g.Go(func() error {
		return docWorker.Run(gctx, cfg.ReconcileInterval)
	})
	g.Go(func() error {
		return result.Janitor.Run(gctx, cfg.DirectoryCacheTTL)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", log.FieldError, err)
		_ = result.Cleanup()
		os.Exit(1)
	}
	<-done
	logger.Info("Worker shutdown complete")
}
