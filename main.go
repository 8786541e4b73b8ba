package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"secure-voting/api"
	"secure-voting/blockchain"
	"secure-voting/config"
	"secure-voting/encryption"
	"secure-voting/logger"
	"secure-voting/mailer"
	"secure-voting/metrics"
	"secure-voting/registry"
	"secure-voting/service"
	"secure-voting/storage"
)

type flags struct {
	configPath string
	port       string
	difficulty int
}

func parseFlags() *flags {
	f := &flags{}

	flag.StringVar(&f.configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&f.port, "port", "", "Server port (overrides config)")
	flag.IntVar(&f.difficulty, "difficulty", -1, "Ledger mining difficulty in leading zero hex digits (overrides config)")
	flag.Parse()

	return f
}

func main() {
	f := parseFlags()

	cfg, err := config.Load(f.configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if f.port != "" {
		cfg.Server.Port = f.port
	}
	if f.difficulty >= 0 {
		if f.difficulty > 16 {
			log.Fatal("Difficulty must be between 0 and 16")
		}
		cfg.Ledger.Difficulty = uint8(f.difficulty)
	}

	appLogger, err := logger.NewLogger(cfg.Logging.Environment, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	cfg.LogConfig(appLogger)

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, appLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	db, err := storage.Open(cfg.Database, appLogger)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	if err := registry.LoadAndApply(ctx, db, cfg.Registry.SeedFile, cfg.Registry.CreateDefault, appLogger); err != nil {
		return fmt.Errorf("failed to seed registry: %w", err)
	}

	store := storage.NewStore(db)
	collector := metrics.NewCollector()

	ledger, err := blockchain.NewLedger(ctx, store, cfg.Ledger.Difficulty, appLogger)
	if err != nil {
		return err
	}

	worker := blockchain.NewSyncWorker(store, ledger, cfg.Ledger.QueueSize, collector, appLogger)
	worker.Start()
	defer worker.Stop()

	if cfg.Ledger.ResyncOnStart {
		if _, err := worker.Resync(ctx, cfg.Ledger.ResyncBatch); err != nil {
			appLogger.Error("Startup ledger resync failed", zap.Error(err))
		}
	}

	limiter := service.NewRateLimiter(cfg.Protocol.RateLimitMax, cfg.Protocol.RateLimitWindow, time.Now)
	go limiter.Run(ctx, cfg.Protocol.RateLimitCleanup)

	voting := service.NewSecureVotingService(
		store,
		store,
		encryption.NewKeyGenerator(),
		limiter,
		mailer.NewLogMailer(appLogger),
		worker,
		collector,
		appLogger,
		service.Options{
			PrimaryKeyTTL:      cfg.Protocol.PrimaryKeyTTL,
			ConfirmationKeyTTL: cfg.Protocol.ConfirmationKeyTTL,
			AllowKeyRedisplay:  cfg.Protocol.AllowKeyRedisplay,
		},
	)
	defer voting.Wait()

	counting := service.NewVoteCountingService(store, ledger, collector, appLogger)
	server := api.NewServer(appLogger, collector, voting, counting, ledger, worker, cfg.Ledger.ResyncBatch, cfg.Server.TrustedProxies)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		appLogger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown failed", zap.Error(err))
	}

	appLogger.Info("Server shutdown completed")
	return nil
}
