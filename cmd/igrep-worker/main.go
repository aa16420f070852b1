// Command igrep-worker is a stub entry point for the genomic
// approximate-match worker family described in
// _examples/original_source/igrep. It shares cmd/dock-worker's
// config/logger/signal skeleton and the claim-a-shard/poll-on-empty
// discipline of the job queue, but its matching algorithm itself is an
// explicit Non-goal — every claimed shard is logged as not implemented
// rather than processed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/idock-worker/internal/config"
	"github.com/turtacn/idock-worker/internal/infrastructure/monitoring/logging"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting igrep-worker (stub)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		pollLoop(ctx, logger, cfg.Docking.PollInterval)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", logging.String("signal", sig.String()))

	cancel()
	<-done
	logger.Info("igrep-worker stopped")
}

// pollLoop stands in for a real shard-claim loop against an igrep job
// queue table, which does not exist in this module: the genomic
// approximate-match algorithm is out of scope (spec.md §1 Non-goals).
// It exists only to exercise the shared worker-family skeleton.
func pollLoop(ctx context.Context, logger logging.Logger, pollInterval time.Duration) {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		logger.Info("igrep shard claim not implemented")

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}
