// Command dock-worker is the docking worker process entry point: it claims
// docking job slices off the PostgreSQL queue, runs the Monte Carlo search
// and RF-Score rescoring pipeline over every admitted ligand, and once a
// job's last slice completes, combines the results into the final gzip
// artifacts and uploads them to object storage. It is the Go shape of
// _examples/original_source/idock/src/main.cpp's single long-lived process,
// minus the one-shot precalculation and CLI argument parsing it also did —
// those become a config-driven startup sequence here so the same binary can
// be replicated across a worker fleet.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/idock-worker/internal/application/docking"
	"github.com/turtacn/idock-worker/internal/config"
	"github.com/turtacn/idock-worker/internal/domain/docking/atomtype"
	"github.com/turtacn/idock-worker/internal/domain/docking/job"
	"github.com/turtacn/idock-worker/internal/domain/docking/pool"
	"github.com/turtacn/idock-worker/internal/domain/docking/rescore"
	"github.com/turtacn/idock-worker/internal/domain/docking/scoring"
	pgconn "github.com/turtacn/idock-worker/internal/infrastructure/database/postgres"
	pgrepo "github.com/turtacn/idock-worker/internal/infrastructure/database/postgres/repositories"
	redisinfra "github.com/turtacn/idock-worker/internal/infrastructure/database/redis"
	kafkainfra "github.com/turtacn/idock-worker/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/idock-worker/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/idock-worker/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/idock-worker/internal/infrastructure/notify"
	minioinfra "github.com/turtacn/idock-worker/internal/infrastructure/storage/minio"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultHealthPort = 8081
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.LogConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting dock-worker",
		logging.Int("concurrency", cfg.Worker.Concurrency),
		logging.String("jobs_root", cfg.Docking.JobsRoot),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace: "dock_worker",
	}, logger)
	if err != nil {
		logger.Error("failed to initialize metrics collector", logging.Err(err))
		os.Exit(1)
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	sf, err := buildScoringTable()
	if err != nil {
		logger.Error("failed to precalculate scoring table", logging.Err(err))
		os.Exit(1)
	}

	forest, err := loadForest(cfg.Docking.RandomForestPath)
	if err != nil {
		logger.Error("failed to load random forest", logging.Err(err))
		os.Exit(1)
	}

	pgConn, err := pgconn.NewConnection(pgconn.PostgresConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.DBName,
		Username: cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to postgres", logging.Err(err))
		os.Exit(1)
	}
	queue := pgrepo.NewJobQueueRepository(pgConn.DB())

	minioClient, err := minioinfra.NewMinIOClient(&minioinfra.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		UseSSL:          cfg.MinIO.UseSSL,
		DefaultBucket:   cfg.MinIO.Bucket,
		PresignExpiry:   cfg.MinIO.PresignExpiry,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize minio client", logging.Err(err))
		os.Exit(1)
	}
	objects := minioinfra.NewMinIORepository(minioClient, logger)

	producer, err := kafkainfra.NewProducer(kafkainfra.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize kafka producer", logging.Err(err))
		os.Exit(1)
	}
	defer producer.Close()

	var notifier *notify.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewNotifier(notify.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger)
	}

	redisClient, err := redisinfra.NewClient(&redisinfra.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to redis", logging.Err(err))
		os.Exit(1)
	}
	locks := redisinfra.NewLockFactory(redisClient, logger)

	p := pool.New(cfg.Worker.Concurrency)

	jobConfig := job.Config{
		NumMCTasks:        cfg.Docking.NumMCTasks,
		MaxConformations:  cfg.Docking.MaxConformations,
		MaxResultsPerTask: cfg.Docking.MaxResultsPerTask,
		EnergyRange:       cfg.Docking.EnergyRange,
	}

	seed := cfg.Docking.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	worker := docking.NewWorker(queue, objects, cfg.MinIO.Bucket, producer, notifier, logger, p, sf, forest, seed, locks, jobConfig)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthSrv := startHealthServer(logger, collector)

	done := make(chan struct{})
	go func() {
		defer close(done)
		runPollLoop(ctx, worker, cfg.Docking.PollInterval, logger, appMetrics)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", logging.String("signal", sig.String()))

	cancel()

	select {
	case <-done:
		logger.Info("poll loop stopped")
	case <-time.After(30 * time.Second):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown error", logging.Err(err))
	}

	logger.Info("dock-worker stopped")
}

// buildScoringTable precalculates every atom-type pair's scoring function
// samples once at startup — the Go shape of main.cpp's own lines ~119-141,
// which precompute the same triangular table before entering its event
// loop, since the sampling cost is shared across every ligand a process
// will ever dock.
func buildScoringTable() (*scoring.Table, error) {
	sf := scoring.NewTable()
	rs := scoring.SampleDistances()
	n := int(atomtype.NumInteraction)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sf.Precalculate(atomtype.Interaction(i), atomtype.Interaction(j), rs)
		}
	}
	return sf, nil
}

func loadForest(path string) (*rescore.Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening random forest file %q: %w", path, err)
	}
	defer f.Close()
	return rescore.LoadForest(f)
}

// runPollLoop repeatedly asks the worker to claim and dock one slice. When
// no slice is claimable it backs off for pollInterval before trying again.
// This is the horizontally-scaled-fleet replacement for main.cpp's single
// MongoDB tailable-cursor polling loop: any number of these processes can
// run concurrently against the same job queue.
func runPollLoop(ctx context.Context, w *docking.Worker, pollInterval time.Duration, logger logging.Logger, metrics *prometheus.AppMetrics) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := w.RunOnce(ctx)
		if err != nil {
			logger.Error("slice processing failed", logging.Err(err))
			metrics.ErrorsTotal.WithLabelValues("worker", "slice_processing").Inc()
		}
		if claimed {
			metrics.JobsClaimedTotal.WithLabelValues("slice").Inc()
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(pollInterval):
		}
	}
}

func startHealthServer(logger logging.Logger, collector prometheus.MetricsCollector) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", defaultHealthPort),
		Handler: mux,
	}

	go func() {
		logger.Info("health server listening", logging.Int("port", defaultHealthPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()

	return srv
}
