// Package app builds the loader, block cache and conversion engine
// described by a Config. Both binaries share it.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgallion1/docresolve/internal/blockcache"
	"github.com/dgallion1/docresolve/internal/config"
	"github.com/dgallion1/docresolve/internal/convert"
	"github.com/dgallion1/docresolve/internal/loader"
	"github.com/dgallion1/docresolve/internal/parser"
	"github.com/dgallion1/docresolve/internal/pathstore"
	"github.com/dgallion1/docresolve/internal/resolve"
	"github.com/dgallion1/docresolve/internal/score"
)

// Runtime is a wired conversion stack.
type Runtime struct {
	Engine *convert.Engine
	Loader resolve.Loader
	// FS is set when blocks come from a local content root.
	FS *loader.FSLoader
	// Cache is nil when CACHE_BACKEND is none.
	Cache *blockcache.Cache

	cfg     config.Config
	log     *slog.Logger
	closers []func() error
}

// NewLogger returns a JSON logger writing to w and, when LOG_FILE is set, to
// a rotated log file. The closer releases the file.
func NewLogger(cfg config.Config, w io.Writer) (*slog.Logger, io.Closer) {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		w = io.MultiWriter(w, lj)
		closer = lj
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Build wires a Runtime from cfg.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*Runtime, error) {
	rt := &Runtime{cfg: cfg, log: log}
	popts := parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext}

	aliases := loader.DefaultAliases()
	if cfg.ContentBlockMap != "" {
		a, err := loader.LoadAliases(cfg.ContentBlockMap)
		if err != nil {
			return nil, err
		}
		aliases = a
	}

	switch cfg.Loader {
	case "", "fs":
		fs, err := loader.NewFS(cfg.ContentRoot,
			loader.WithAliases(aliases),
			loader.WithParserOptions(popts),
			loader.WithLogger(log),
		)
		if err != nil {
			return nil, err
		}
		rt.FS, rt.Loader = fs, fs
		log.Info("content root indexed", "root", fs.Root(), "blocks", len(fs.Blocks()))
	case "s3":
		s3l, err := loader.NewS3(loader.S3Config{
			Endpoint: cfg.S3Endpoint,
			Region:   cfg.S3Region,
			Key:      cfg.S3Key,
			Secret:   cfg.S3Secret,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
		}, aliases, popts, log)
		if err != nil {
			return nil, err
		}
		rt.Loader = s3l
	default:
		return nil, fmt.Errorf("unknown loader %q", cfg.Loader)
	}

	store, err := rt.store(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}
	opts := []convert.Option{
		convert.WithLimits(convert.Limits{
			MaxDepth:   cfg.MaxReferenceDepth,
			MaxNesting: cfg.MaxNesting,
			Timeout:    cfg.RequestTimeout,
		}),
		convert.WithScorer(score.New(score.HTMLChecker{})),
		convert.WithLogger(log),
	}
	if store != nil {
		rt.Cache = blockcache.New(store, log)
		opts = append(opts, convert.WithCache(rt.Cache))
	}
	rt.Engine = convert.New(rt.Loader, opts...)
	return rt, nil
}

func (rt *Runtime) store(ctx context.Context) (blockcache.Store, error) {
	cfg := rt.cfg
	switch cfg.CacheBackend {
	case "none":
		return nil, nil
	case "", "memory":
		return blockcache.NewMemoryStore(cfg.CacheSize, cfg.CacheTTL)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		rt.closers = append(rt.closers, client.Close)
		return blockcache.NewRedisStore(client, "", cfg.CacheTTL), nil
	case "pathstore":
		client := pathstore.NewClient(cfg.PathstoreURL, cfg.PathstoreAPIKey)
		rt.closers = append(rt.closers, func() error { client.Close(); return nil })
		return blockcache.NewPathstoreStore(client, "", cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Watch keeps the content index current and invalidates changed blocks
// until ctx is done. It returns immediately when there is nothing to watch.
func (rt *Runtime) Watch(ctx context.Context) error {
	if rt.FS == nil || !rt.cfg.WatchContent {
		return nil
	}
	w, err := loader.NewWatcher(rt.FS, rt.onChange(ctx))
	if err != nil {
		return fmt.Errorf("watch content root: %w", err)
	}
	rt.log.Info("watching content root", "root", rt.FS.Root())
	return w.Run(ctx)
}

func (rt *Runtime) onChange(ctx context.Context) func(loader.Change) {
	return func(c loader.Change) {
		if rt.Cache == nil {
			return
		}
		var err error
		if c.All {
			// Index changes can redirect any identifier.
			err = rt.Cache.Purge(ctx)
		} else {
			err = rt.Cache.Invalidate(ctx, c.IDs...)
		}
		if err != nil {
			rt.log.Warn("invalidate changed blocks", "ids", c.IDs, "all", c.All, "error", err)
		}
	}
}

// Close releases cache connections.
func (rt *Runtime) Close() error {
	var errs *multierror.Error
	for _, c := range rt.closers {
		if err := c(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	rt.closers = nil
	return errs.ErrorOrNil()
}
