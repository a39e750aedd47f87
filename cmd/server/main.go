package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"videoforge/internal/catalog"
	"videoforge/internal/config"
	"videoforge/internal/database"
	"videoforge/internal/httpapi"
	"videoforge/internal/ledger"
	"videoforge/internal/queue"
	"videoforge/internal/storage"
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

	var (
		cat catalog.Store
		led ledger.Store
	)
	if cfg.Database.DSN != "" {
		db, err := database.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		cat = catalog.NewGormStore(db)
		led = ledger.NewGormStore(db, logger)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		memCat := catalog.NewMemoryStore()
		memLed := ledger.NewMemoryStore(logger)
		memLed.VideoExists = func(id string) bool {
			_, err := memCat.GetVideo(context.Background(), id)
			return err == nil
		}
		cat, led = memCat, memLed
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	server := httpapi.NewServer(
		cat, led,
		queue.NewRedisQueue(redisClient, cfg.Redis.QueueKey),
		storage.NewManager(cfg.Storage.UploadDir, cfg.Storage.ProcessedDir),
		cfg, logger,
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Router(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", "addr", cfg.Server.Addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
	logger.Info("server stopped")
}
