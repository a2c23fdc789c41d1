// Package api exposes conversion jobs, synchronous resolution and block
// cache control over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"

	"github.com/dgallion1/docresolve/internal/blockcache"
	"github.com/dgallion1/docresolve/internal/config"
	"github.com/dgallion1/docresolve/internal/loader"
	"github.com/dgallion1/docresolve/internal/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// BlockCache is the shared block cache as seen by the API.
type BlockCache interface {
	Invalidate(ctx context.Context, ids ...string) error
	Purge(ctx context.Context) error
	Stats() blockcache.Stats
}

// BlockLister is implemented by loaders that keep an index of their blocks.
type BlockLister interface {
	Blocks() []loader.Block
}

// Server is the HTTP API server for docresolve.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	cache        BlockCache
	blocks       BlockLister
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. cache and blocks may be
// nil when caching is disabled or the loader keeps no index.
func NewServer(orch *pipeline.Orchestrator, cache BlockCache, blocks BlockLister, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		cache:        cache,
		blocks:       blocks,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/convert", s.handleConvert)
		r.Post("/api/convert/batch", s.handleBatchConvert)
		r.Get("/api/convert/{jobID}/status", s.handleConvertStatus)
		r.Get("/api/convert/{jobID}/report", s.handleConvertReport)

		r.Post("/api/resolve", s.handleResolve)

		r.Get("/api/blocks", s.handleListBlocks)
		r.Post("/api/cache/invalidate", s.handleInvalidate)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
