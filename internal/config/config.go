package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and passed by reference into each
// component. No component reads the environment after this.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	FFmpeg   FFmpegConfig
	Worker   WorkerConfig
	LogLevel slog.Level
}

type ServerConfig struct {
	Addr             string
	MaxUploadBytes   int64
	AllowedVideoMIME []string
}

type DatabaseConfig struct {
	// DSN for Postgres. Empty selects the in-memory stores, which is
	// only meant for local development.
	DSN string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
}

type StorageConfig struct {
	UploadDir    string
	ProcessedDir string
	AssetsDir    string

	// Optional object-storage mirror for completed artifacts. Disabled
	// when Endpoint or Bucket is empty.
	MirrorEndpoint  string
	MirrorAccessKey string
	MirrorSecretKey string
	MirrorBucket    string
	MirrorUseSSL    bool
}

type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
	// RunTimeout is the hard ceiling on one tool invocation. Exceeding
	// it kills the process and fails the job.
	RunTimeout   time.Duration
	ProbeTimeout time.Duration
}

type WorkerConfig struct {
	Count         int
	PollTimeout   time.Duration
	SweepSchedule string
	SweepMaxAge   time.Duration
}

// Load reads .env if present, then the environment. Storage directories
// are created here so later components can assume they exist.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:           valueOrDefault(os.Getenv("SERVER_ADDR"), ":8080"),
			MaxUploadBytes: parseInt64(os.Getenv("MAX_UPLOAD_BYTES"), 500<<20),
			AllowedVideoMIME: splitList(valueOrDefault(os.Getenv("ALLOWED_VIDEO_TYPES"),
				"video/mp4,video/avi,video/quicktime,video/x-ms-wmv")),
		},
		Database: DatabaseConfig{
			DSN: os.Getenv("DATABASE_URL"),
		},
		Redis: RedisConfig{
			Addr:     valueOrDefault(os.Getenv("REDIS_ADDR"), "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       parseInt(os.Getenv("REDIS_DB"), 0),
			QueueKey: valueOrDefault(os.Getenv("REDIS_QUEUE_KEY"), "video:jobs:queue"),
		},
		Storage: StorageConfig{
			UploadDir:       valueOrDefault(os.Getenv("UPLOAD_DIR"), "uploads"),
			ProcessedDir:    valueOrDefault(os.Getenv("PROCESSED_DIR"), "processed"),
			AssetsDir:       valueOrDefault(os.Getenv("ASSETS_DIR"), "assets"),
			MirrorEndpoint:  os.Getenv("MIRROR_ENDPOINT"),
			MirrorAccessKey: os.Getenv("MIRROR_ACCESS_KEY"),
			MirrorSecretKey: os.Getenv("MIRROR_SECRET_KEY"),
			MirrorBucket:    os.Getenv("MIRROR_BUCKET"),
			MirrorUseSSL:    strings.EqualFold(os.Getenv("MIRROR_USE_SSL"), "true"),
		},
		FFmpeg: FFmpegConfig{
			FFmpegPath:   valueOrDefault(os.Getenv("FFMPEG_PATH"), "ffmpeg"),
			FFprobePath:  valueOrDefault(os.Getenv("FFPROBE_PATH"), "ffprobe"),
			RunTimeout:   parseDuration(os.Getenv("FFMPEG_RUN_TIMEOUT"), 30*time.Minute),
			ProbeTimeout: parseDuration(os.Getenv("FFPROBE_TIMEOUT"), time.Minute),
		},
		Worker: WorkerConfig{
			Count:         parseInt(os.Getenv("WORKER_COUNT"), 4),
			PollTimeout:   parseDuration(os.Getenv("QUEUE_POLL_TIMEOUT"), 5*time.Second),
			SweepSchedule: valueOrDefault(os.Getenv("SWEEP_SCHEDULE"), "@every 1h"),
			SweepMaxAge:   parseDuration(os.Getenv("SWEEP_MAX_AGE"), 24*time.Hour),
		},
		LogLevel: parseLogLevel(os.Getenv("LOG_LEVEL")),
	}

	for _, dir := range []string{cfg.Storage.UploadDir, cfg.Storage.ProcessedDir, cfg.Storage.AssetsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return cfg, nil
}

func parseLogLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func parseInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt64(value string, fallback int64) int64 {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
