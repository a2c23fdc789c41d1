// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Content blocks
	ContentRoot       string
	ContentBlockMap   string
	Loader            string
	RelaxedReferences bool
	WatchContent      bool

	// S3 loader
	S3Endpoint string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Bucket   string
	S3Prefix   string

	// Shared block cache
	CacheBackend string
	CacheSize    int
	CacheTTL     time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PathstoreURL    string
	PathstoreAPIKey string

	// Resolution limits
	MaxReferenceDepth int
	MaxNesting        int
	RequestTimeout    time.Duration

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set take precedence over .env.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCRESOLVE_API_KEY"),

		ContentRoot:       envOr("CONTENT_ROOT", "content"),
		ContentBlockMap:   os.Getenv("CONTENT_BLOCK_MAP"),
		Loader:            strings.ToLower(envOr("LOADER", "fs")),
		RelaxedReferences: envBool("RELAXED_REFERENCES", false),
		WatchContent:      envBool("WATCH_CONTENT", true),

		S3Endpoint: os.Getenv("S3_ENDPOINT"),
		S3Region:   envOr("S3_REGION", "us-east-1"),
		S3Key:      os.Getenv("S3_KEY"),
		S3Secret:   os.Getenv("S3_SECRET"),
		S3Bucket:   os.Getenv("S3_BUCKET"),
		S3Prefix:   os.Getenv("S3_PREFIX"),

		CacheBackend: strings.ToLower(envOr("CACHE_BACKEND", "memory")),
		CacheSize:    envInt("CACHE_SIZE", 512),
		CacheTTL:     envDuration("CACHE_TTL", 0),

		RedisAddr:     envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		PathstoreURL:    envOr("PATHSTORE_URL", "http://localhost:8080"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		MaxReferenceDepth: envInt("MAX_REFERENCE_DEPTH", 5),
		MaxNesting:        envInt("MAX_NESTING", 10),
		RequestTimeout:    envDuration("REQUEST_TIMEOUT", 30*time.Second),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		LogLevel: envOr("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 512
	}

	return cfg
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}

	if c.APIKey == "" {
		add("DOCRESOLVE_API_KEY is required")
	}
	switch c.Loader {
	case "fs":
		if c.ContentRoot == "" {
			add("CONTENT_ROOT is required for the fs loader")
		}
	case "s3":
		if c.S3Bucket == "" {
			add("S3_BUCKET is required for the s3 loader")
		}
	default:
		add("LOADER must be fs or s3, got %q", c.Loader)
	}
	switch c.CacheBackend {
	case "none", "memory":
	case "redis":
		if c.RedisAddr == "" {
			add("REDIS_ADDR is required for the redis cache")
		}
	case "pathstore":
		if c.PathstoreURL == "" {
			add("PATHSTORE_URL is required for the pathstore cache")
		}
		if c.PathstoreAPIKey == "" {
			add("PATHSTORE_API_KEY is required for the pathstore cache")
		}
	default:
		add("CACHE_BACKEND must be none, memory, redis or pathstore, got %q", c.CacheBackend)
	}
	if c.MaxReferenceDepth <= 0 {
		add("MAX_REFERENCE_DEPTH must be positive")
	}
	if c.MaxNesting <= 0 {
		add("MAX_NESTING must be positive")
	}
	if c.RequestTimeout <= 0 {
		add("REQUEST_TIMEOUT must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errors.New("LOG_LEVEL must be debug, info, warn or error")
	}
	return l, nil
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
