package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"secure-voting/blockchain"
	"secure-voting/config"
	"secure-voting/logger"
	"secure-voting/metrics"
	"secure-voting/storage"
)

const usage = `usage: ledgerctl [-config path] <command>

commands:
  verify   recompute every block hash and check the chain linkage
  stats    print chain length, vote count and validity
  resync   record votes missing from the ledger and complete stranded keys
`

func main() {
	configPath := flag.String("config", "", "Path to YAML configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.NewLogger(cfg.Logging.Environment, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	code, err := run(context.Background(), cfg, flag.Arg(0), appLogger)
	if err != nil {
		appLogger.Error("Command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
	appLogger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, command string, appLogger *zap.Logger) (int, error) {
	db, err := storage.Open(cfg.Database, appLogger)
	if err != nil {
		return 1, err
	}
	defer storage.Close(db)

	store := storage.NewStore(db)
	ledger, err := blockchain.NewLedger(ctx, store, cfg.Ledger.Difficulty, appLogger)
	if err != nil {
		return 1, err
	}

	switch command {
	case "verify":
		valid, err := ledger.VerifyChainIntegrity(ctx)
		if err != nil {
			return 1, err
		}
		if err := printJSON(map[string]bool{"isValid": valid}); err != nil {
			return 1, err
		}
		if !valid {
			return 3, nil
		}
		return 0, nil

	case "stats":
		stats, err := ledger.Statistics(ctx)
		if err != nil {
			return 1, err
		}
		return exitCode(printJSON(stats))

	case "resync":
		worker := blockchain.NewSyncWorker(store, ledger, cfg.Ledger.QueueSize, metrics.NewCollector(), appLogger)
		report, err := worker.Resync(ctx, cfg.Ledger.ResyncBatch)
		if err != nil {
			return 1, err
		}
		if err := printJSON(report); err != nil {
			return 1, err
		}
		if report.Failed > 0 {
			return 3, nil
		}
		return 0, nil

	default:
		fmt.Fprint(os.Stderr, usage)
		return 2, fmt.Errorf("unknown command %q", command)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func exitCode(err error) (int, error) {
	if err != nil {
		return 1, err
	}
	return 0, nil
}
