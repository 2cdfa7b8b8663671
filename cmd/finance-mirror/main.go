package main

import (
	"context"
	"errors"
	"os"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"finance/internal/amqp"
	"finance/internal/cli"
	"finance/internal/log"
	"finance/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load .env", "error", err)
		os.Exit(1)
	}

	bootLogger := cli.SetupLogger(nil, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	if err := cfg.ValidateMirror(); err != nil {
		bootLogger.Error("Mirror configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, log.ComponentWorker)
	logger.Info("Starting finance-mirror",
		"user", cfg.UserName,
		"source", cfg.DataBackend,
		"mirror", cfg.MirrorBackend)

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	source, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open source backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer source.Close()

	mirror, err := cli.OpenMirror(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open mirror backend", "error", err, "backend", cfg.MirrorBackend)
		os.Exit(1)
	}
	defer mirror.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewMirrorWorker(cfg.UserName, source.Store, mirror.Store)

	// Catch up on anything committed while the worker was down.
	if err := w.Reconcile(ctx); err != nil {
		logger.Error("Startup reconcile failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeCommits(gctx, w.HandleCommit)
	})
	g.Go(func() error {
		return w.RunReconciler(gctx, cfg.ReconcileInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Mirror worker stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Mirror worker stopped gracefully")
}
