package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"finance/internal/cache"
	"finance/internal/cli"
	apphttp "finance/internal/http"
	"finance/internal/log"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		log.New(log.DefaultConfig()).Error("Failed to load .env", "error", err)
		os.Exit(1)
	}

	bootLogger := cli.SetupLogger(nil, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Failed to close ledger backend", "error", err)
		}
	}()

	publisher, err := cli.NewPublisher(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP publisher", "error", err)
		os.Exit(1)
	}
	if publisher != nil {
		defer publisher.Close()
	}

	svc, err := cli.NewService(ctx, cfg, res, publisher, logger)
	if err != nil {
		logger.Error("Failed to load ledger", "error", err, "user", cfg.UserName)
		os.Exit(1)
	}

	cacheManager := cache.NewManager()
	cacheManager.Register(svc.TotalsCache())
	cacheManager.StartCleanup(5 * time.Minute)
	defer cacheManager.Stop()

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORSAllowOrigin:    cfg.CORSAllowOrigin,
		TrustedProxies:     cfg.TrustedProxies,
		Logger:             logger,
		Ready:              res.Ping,
		CacheEntries:       svc.TotalsCache().Size,
	}, svc)
	if err != nil {
		logger.Error("Failed to configure HTTP server", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finance server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"user", cfg.UserName,
			"session", svc.Session().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
