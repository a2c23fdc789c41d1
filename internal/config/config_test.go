package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-1")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("LOADER", "")

	cfg := Load()
	if cfg.WorkerCount != 4 {
		t.Errorf("expected worker count 4, got %d", cfg.WorkerCount)
	}
	if cfg.MaxReferenceDepth != 5 || cfg.MaxNesting != 10 {
		t.Errorf("expected limits 5/10, got %d/%d", cfg.MaxReferenceDepth, cfg.MaxNesting)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.RequestTimeout)
	}
	if cfg.CacheBackend != "memory" || cfg.Loader != "fs" {
		t.Errorf("expected memory/fs, got %s/%s", cfg.CacheBackend, cfg.Loader)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MAX_REFERENCE_DEPTH", "3")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("CACHE_BACKEND", "Redis")
	t.Setenv("RELAXED_REFERENCES", "true")
	t.Setenv("CACHE_TTL", "not-a-duration")

	cfg := Load()
	if cfg.MaxReferenceDepth != 3 {
		t.Errorf("expected depth 3, got %d", cfg.MaxReferenceDepth)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %s", cfg.RequestTimeout)
	}
	if cfg.CacheBackend != "redis" {
		t.Errorf("expected redis, got %q", cfg.CacheBackend)
	}
	if !cfg.RelaxedReferences {
		t.Error("expected relaxed references")
	}
	if cfg.CacheTTL != 0 {
		t.Errorf("expected unparsable ttl to fall back to 0, got %s", cfg.CacheTTL)
	}
}

func validConfig() Config {
	return Config{
		APIKey:            "k",
		Loader:            "fs",
		ContentRoot:       "content",
		CacheBackend:      "memory",
		MaxReferenceDepth: 5,
		MaxNesting:        10,
		RequestTimeout:    time.Second,
		LogLevel:          "info",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.APIKey = ""
	cfg.Loader = "s3"
	cfg.CacheBackend = "pathstore"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Fatalf("expected *multierror.Error, got %T", err)
	}
	// api key, bucket, pathstore url, pathstore key, log level
	if len(merr.Errors) != 5 {
		t.Fatalf("expected 5 problems, got %d: %v", len(merr.Errors), err)
	}
	if !strings.Contains(err.Error(), "S3_BUCKET") {
		t.Errorf("expected S3_BUCKET in %q", err)
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := validConfig()
	cfg.LogLevel = "DEBUG"
	l, err := cfg.SlogLevel()
	if err != nil || l != slog.LevelDebug {
		t.Fatalf("expected debug, got %v %v", l, err)
	}
}
