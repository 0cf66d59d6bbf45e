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

// Page cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

type Config struct {
	Port string

	// Auth; empty disables it
	APIKey string

	// Wiki connection
	WikiAPIURL    string
	WikiUserAgent string
	WikiTimeout   time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Page cache
	PageCache      string
	PageCacheSize  int
	PageCacheTTL   time.Duration
	RedisURL       string
	RedisKeyPrefix string

	LogLevel slog.Level
}

// Load reads .env when present, then the environment.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("WIKIREFS_API_KEY"),

		WikiAPIURL:    envOr("WIKI_API_URL", "https://en.wikipedia.org/w/api.php"),
		WikiUserAgent: envOr("WIKI_USER_AGENT", "wikirefs/1.0 (https://github.com/dgallion1/wikirefs)"),
		WikiTimeout:   envDuration("WIKI_TIMEOUT", 30*time.Second),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PageCache:      strings.ToLower(envOr("PAGE_CACHE", CacheMemory)),
		PageCacheSize:  envInt("PAGE_CACHE_SIZE", 256),
		PageCacheTTL:   envDuration("PAGE_CACHE_TTL", 10*time.Minute),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisKeyPrefix: envOr("REDIS_KEY_PREFIX", "wikirefs:page:"),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.WikiTimeout <= 0 {
		cfg.WikiTimeout = 30 * time.Second
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.PageCacheSize <= 0 {
		cfg.PageCacheSize = 256
	}
	if cfg.PageCacheTTL <= 0 {
		cfg.PageCacheTTL = 10 * time.Minute
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.PageCache {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when PAGE_CACHE=redis")
		}
	default:
		return fmt.Errorf("PAGE_CACHE must be one of memory, redis, none; got %q", c.PageCache)
	}
	if c.WikiAPIURL == "" {
		return fmt.Errorf("WIKI_API_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}
