// Package server provides the HTTP API for vidgrep.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/vidgrep/internal/config"
	"github.com/hyperjump/vidgrep/internal/ingest"
	"github.com/hyperjump/vidgrep/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Searcher runs text queries. Run never fails; failures come back as an empty result
// list with the reason in Debug. *search.Pipeline implements it.
type Searcher interface {
	Run(ctx context.Context, query *models.SearchQuery) *models.SearchResponse
}

// Ingester adds and removes videos.
type Ingester interface {
	IngestPaths(ctx context.Context, paths []string) (*ingest.Summary, error)
	DeleteVideo(ctx context.Context, videoID string) (int, error)
}

// IndexInfo exposes read-only index state for status and listings.
type IndexInfo interface {
	Stats() models.StoreStats
	Videos() []string
	IndexType() string
}

// VideoCatalog lists ingested videos.
type VideoCatalog interface {
	List(ctx context.Context) ([]*models.Video, error)
	Count(ctx context.Context) (int, error)
}

// WatchService is the subset of the directory watcher the API manages.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Deps are the components behind the API. Catalog and Watch are optional.
type Deps struct {
	Search  Searcher
	Ingest  Ingester
	Index   IndexInfo
	Catalog VideoCatalog
	Watch   WatchService
}

// Server is the HTTP server for the vidgrep API.
type Server struct {
	deps       Deps
	cfg        *config.Config
	configPath string // watch directory changes are persisted here when set
	cfgMu      sync.Mutex
	limiter    *rate.Limiter
	logger     *zap.Logger
	server     *http.Server
}

// NewServer creates a server. cfg supplies listen address, rate limits, artifact
// directories and status details.
func NewServer(deps Deps, cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.Server.SearchRate > 0 {
		limit = rate.Limit(cfg.Server.SearchRate)
	}
	burst := cfg.Server.SearchBurst
	if burst <= 0 {
		burst = 1
	}
	return &Server{
		deps:       deps,
		cfg:        cfg,
		configPath: configPath,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// Router builds the request router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/api/v1/search", s.handleSearch)
		r.Get("/api/v1/search", s.handleSearchGet)
	})
	r.Post("/api/v1/videos", s.handleIngest)
	r.Get("/api/v1/videos", s.handleListVideos)
	r.Delete("/api/v1/videos/{id}", s.handleDeleteVideo)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)

	if dir := s.cfg.Storage.ResultsDir; dir != "" {
		r.Handle("/results/*", http.StripPrefix("/results/", http.FileServer(http.Dir(dir))))
	}
	if dir := s.cfg.Storage.ResultsVideoDir; dir != "" {
		r.Handle("/results_video/*", http.StripPrefix("/results_video/", http.FileServer(http.Dir(dir))))
	}
	return r
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.respondError(w, http.StatusTooManyRequests, "too many search requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
