package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"videoforge/internal/catalog"
	"videoforge/internal/config"
	"videoforge/internal/database"
	"videoforge/internal/ledger"
	"videoforge/internal/media"
	"videoforge/internal/queue"
	"videoforge/internal/storage"
	"videoforge/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if cfg.Database.DSN == "" {
		// The worker shares the catalog and ledger with the server; an
		// in-memory store in a separate process would see nothing.
		log.Fatal("DATABASE_URL is required for the worker")
	}
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	cat := catalog.NewGormStore(db)
	led := ledger.NewGormStore(db, logger)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	mirror, err := storage.NewMirror(cfg.Storage)
	if err != nil {
		log.Fatalf("mirror: %v", err)
	}
	if mirror != nil {
		logger.Info("artifact mirroring enabled", "bucket", cfg.Storage.MirrorBucket)
	}

	store := storage.NewManager(cfg.Storage.UploadDir, cfg.Storage.ProcessedDir)
	pool := worker.NewPool(worker.Deps{
		Queue:       queue.NewRedisQueue(redisClient, cfg.Redis.QueueKey),
		Ledger:      led,
		Catalog:     cat,
		Storage:     store,
		Mirror:      mirror,
		Executor:    media.NewExecutor(cfg.FFmpeg, cfg.Storage.AssetsDir, media.NewRunner(), logger),
		Logger:      logger,
		Count:       cfg.Worker.Count,
		PollTimeout: cfg.Worker.PollTimeout,
	})

	sweeper := &worker.Sweeper{
		Catalog: cat,
		Storage: store,
		MaxAge:  cfg.Worker.SweepMaxAge,
		Logger:  logger,
	}
	c := cron.New()
	if _, err := c.AddFunc(cfg.Worker.SweepSchedule, func() {
		if err := sweeper.Sweep(ctx); err != nil {
			logger.Warn("orphan sweep failed", "error", err)
		}
	}); err != nil {
		log.Fatalf("sweep schedule: %v", err)
	}
	c.Start()
	defer c.Stop()

	logger.Info("worker pool starting", "workers", cfg.Worker.Count, "queue", cfg.Redis.QueueKey)
	if err := pool.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker pool stopped with error", "error", err)
	}
	logger.Info("worker pool stopped")
}
