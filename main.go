package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"habbo-sync/internal/api"
	"habbo-sync/internal/config"
	"habbo-sync/internal/db"
	"habbo-sync/internal/habbo"
	"habbo-sync/internal/logging"
	"habbo-sync/internal/redis"
	"habbo-sync/internal/storage"
	"habbo-sync/internal/store"
	"habbo-sync/internal/sync"
)

// Binário all-in-one: API + worker de sync no mesmo processo. Em deploys
// maiores usar cmd/api e cmd/worker separados.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service", "service", "habbo-sync", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "err", err.Error())
		os.Exit(1)
	}
	defer dbConn.Close()

	// connect to redis
	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// initialize storage client
	var storageClient storage.StorageClient
	if cfg.R2Endpoint != "" && cfg.R2Bucket != "" {
		var r2Keys map[string]string
		if jsonErr := json.Unmarshal([]byte(cfg.R2KeysRaw), &r2Keys); jsonErr == nil {
			if s3Client, s3Err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.R2Endpoint,
				AccessKeyID:     r2Keys["access_key_id"],
				SecretAccessKey: r2Keys["secret_access_key"],
				Bucket:          cfg.R2Bucket,
				PublicURL:       r2Keys["public_url"],
				Region:          "auto",
			}); s3Err == nil {
				storageClient = s3Client
			}
		}
	}
	if storageClient == nil {
		storageClient = storage.NewSimulator(cfg.R2Bucket, cfg.R2Endpoint)
	}

	st := store.NewPostgres(dbConn, logger)

	habboClient := habbo.NewClient(logger, habbo.ClientOptions{
		FetchTimeout: cfg.FetchTimeout,
	})

	syncer := sync.NewSyncer(logger, st, habboClient)
	registrar := sync.NewRegistrar(logger, st, syncer, redisClient)
	scheduler := sync.NewScheduler(logger, st, syncer, sync.SchedulerOptions{
		BatchSize:       cfg.SyncBatchSize,
		InterBatchDelay: cfg.SyncBatchDelay,
	})

	// job de arquivamento das imagens de avatar
	figureJob := storage.NewFigureArchiveJob(logger, st, storageClient)
	go figureJob.Start()

	// ciclo periódico de sync
	go func() {
		runCycle := func() {
			cycleCtx, cycleCancel := context.WithTimeout(ctx, 30*time.Minute)
			defer cycleCancel()
			if _, err := scheduler.Run(cycleCtx); err != nil {
				logger.Error("sync_cycle_failed", "error", err)
			}
		}

		runCycle()

		ticker := time.NewTicker(cfg.SyncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runCycle()
			case <-ctx.Done():
				return
			}
		}
	}()

	srv := api.NewServer(logger, dbConn, redisClient, cfg, st, registrar, scheduler, syncer)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("service_started",
		"addr", cfg.HTTPAddr,
		"sync_interval", cfg.SyncInterval.String(),
	)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	}
	dbConn.Close()

	logger.Info("service_stopped")
}
