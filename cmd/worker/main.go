package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habbo-sync/internal/config"
	"habbo-sync/internal/db"
	"habbo-sync/internal/habbo"
	"habbo-sync/internal/logging"
	"habbo-sync/internal/redis"
	"habbo-sync/internal/storage"
	"habbo-sync/internal/store"
	"habbo-sync/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_worker", "service", "habbo-sync-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL (with retry)
	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Connect to Redis
	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// Initialize storage client (R2 or simulator)
	var storageClient storage.StorageClient
	if cfg.R2Endpoint != "" && cfg.R2Bucket != "" {
		var r2Keys map[string]string
		if err := json.Unmarshal([]byte(cfg.R2KeysRaw), &r2Keys); err == nil {
			s3Client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.R2Endpoint,
				AccessKeyID:     r2Keys["access_key_id"],
				SecretAccessKey: r2Keys["secret_access_key"],
				Bucket:          cfg.R2Bucket,
				PublicURL:       r2Keys["public_url"],
				Region:          "auto",
			})
			if err == nil {
				storageClient = s3Client
				logger.Info("using_s3_storage", "endpoint", cfg.R2Endpoint)
			}
		}
	}

	if storageClient == nil {
		storageClient = storage.NewSimulator(cfg.R2Bucket, cfg.R2Endpoint)
		logger.Info("using_storage_simulator")
	}

	st := store.NewPostgres(dbConn, logger)

	habboClient := habbo.NewClient(logger, habbo.ClientOptions{
		FetchTimeout: cfg.FetchTimeout,
	})

	syncer := sync.NewSyncer(logger, st, habboClient)
	scheduler := sync.NewScheduler(logger, st, syncer, sync.SchedulerOptions{
		BatchSize:       cfg.SyncBatchSize,
		InterBatchDelay: cfg.SyncBatchDelay,
	})

	// job de arquivamento das imagens de avatar
	figureJob := storage.NewFigureArchiveJob(logger, st, storageClient)
	go figureJob.Start()

	logger.Info("worker_started",
		"sync_interval", cfg.SyncInterval.String(),
		"batch_size", cfg.SyncBatchSize,
	)

	// ciclo periódico de sync; o primeiro roda imediatamente
	go func() {
		runCycle(ctx, logger, scheduler)

		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runCycle(ctx, logger, scheduler)
			case <-ctx.Done():
				return
			}
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	cancel()

	// fechar conexões redis
	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	} else {
		logger.Info("redis_closed")
	}

	// fechar conexão db
	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("worker_stopped")
}

func runCycle(ctx context.Context, logger *slog.Logger, scheduler *sync.Scheduler) {
	cycleCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if _, err := scheduler.Run(cycleCtx); err != nil {
		logger.Error("sync_cycle_failed", "error", err)
	}
}
