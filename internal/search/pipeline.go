// Package search turns a text query into a deduplicated, identified, rendered result list.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/vidgrep/internal/embedding"
	"github.com/hyperjump/vidgrep/internal/ident"
	"github.com/hyperjump/vidgrep/internal/models"
	"github.com/hyperjump/vidgrep/internal/render"
	"go.uber.org/zap"
)

// Defaults used when Config leaves a knob at zero.
const (
	DefaultTopK   = 10
	DefaultLimit  = 10
	DefaultWindow = 10.0
)

// URL prefixes under which the server exposes rendered artifacts.
const (
	ClipURLPrefix  = "/results_video/"
	ImageURLPrefix = "/results/"
)

// EmptyIndexDebug is the diagnostic attached to a query against an index with no rows.
const EmptyIndexDebug = "index is empty; ingest videos first"

// Index is the read side of the index store used by the pipeline.
type Index interface {
	Search(query []float32, k int) ([]models.SearchHit, error)
	Len() int
}

// Config holds query defaults.
type Config struct {
	TopK   int
	Limit  int
	Window float64 // seconds
	Render bool
}

// Pipeline encodes a query, searches the index, deduplicates hits, assigns result
// identifiers and resolves rendered artifacts.
type Pipeline struct {
	index    Index
	embedder embedding.Embedder
	renderer render.Renderer
	cfg      Config
	logger   *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a logger for query diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline. renderer may be nil, in which case results carry no artifacts.
func NewPipeline(index Index, embedder embedding.Embedder, renderer render.Renderer, cfg Config, opts ...Option) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	p := &Pipeline{
		index:    index,
		embedder: embedder,
		renderer: renderer,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Search runs the full pipeline and returns an error if any stage before enrichment fails.
// An empty index is not an error: the response has no results and says so in Debug.
// Rendering failures do not fail the query; they are reported in the response's Debug field.
func (p *Pipeline) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := ProcessQuery(query, p.cfg); err != nil {
		return nil, err
	}
	if p.index.Len() == 0 {
		p.logger.Warn("query against empty index", zap.String("query", query.Query))
		return &models.SearchResponse{
			Query:     query.Query,
			Results:   []*models.SearchResult{},
			Debug:     EmptyIndexDebug,
			QueryTime: time.Since(start).Milliseconds(),
		}, nil
	}

	vec, err := p.embedder.EmbedText(ctx, query.Query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	hits, err := p.index.Search(vec, query.TopK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	kept := Dedupe(hits, query.Window, query.Limit)
	p.logger.Debug("query searched",
		zap.String("query", query.Query),
		zap.Int("top_k", query.TopK),
		zap.Int("hits", len(hits)),
		zap.Int("kept", len(kept)))

	resp := &models.SearchResponse{
		Query:   query.Query,
		Results: make([]*models.SearchResult, 0, len(kept)),
	}
	var renderErr error
	for i, h := range kept {
		rank := i + 1
		res := &models.SearchResult{
			Rank:       rank,
			VideoID:    h.VideoID,
			Timestamp:  h.Timestamp,
			Score:      h.Score,
			FramePath:  h.FramePath,
			VideoPath:  h.VideoPath,
			Identifier: ident.ResultID(h.VideoID, h.Timestamp, h.Score, rank),
		}
		if err := p.attachArtifacts(ctx, res, *query.Render); err != nil && renderErr == nil {
			renderErr = err
		}
		if res.ClipAvailable {
			resp.ClipCount++
		}
		resp.Results = append(resp.Results, res)
	}

	if len(resp.Results) > 0 && resp.ClipCount == 0 && *query.Render && p.renderer != nil {
		resp.Debug = "no clips could be rendered"
		if renderErr != nil {
			resp.Debug += ": " + renderErr.Error()
		}
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

// Run is Search for presentation layers: it never fails. On error it returns an empty
// result list with the failure text in Debug. Callers that must reject blank queries
// validate before calling Run.
func (p *Pipeline) Run(ctx context.Context, query *models.SearchQuery) *models.SearchResponse {
	resp, err := p.Search(ctx, query)
	if err != nil {
		p.logger.Debug("query failed", zap.String("query", query.Query), zap.Error(err))
		return &models.SearchResponse{
			Query:   query.Query,
			Results: []*models.SearchResult{},
			Debug:   err.Error(),
		}
	}
	return resp
}

func (p *Pipeline) attachArtifacts(ctx context.Context, res *models.SearchResult, doRender bool) error {
	if p.renderer == nil {
		return nil
	}
	var (
		a   render.Artifacts
		err error
	)
	if doRender {
		a, err = p.renderer.Render(ctx, render.Request{
			ID:        res.Identifier,
			VideoID:   res.VideoID,
			VideoPath: res.VideoPath,
			FramePath: res.FramePath,
			Timestamp: res.Timestamp,
		})
		if err != nil {
			p.logger.Debug("render failed", zap.String("id", res.Identifier), zap.Error(err))
		}
	} else {
		a = p.renderer.Artifacts(res.Identifier)
	}
	res.ClipAvailable = a.ClipAvailable
	res.ImageAvailable = a.ImageAvailable
	if a.ClipAvailable {
		res.ClipURL = ClipURLPrefix + res.Identifier + ".mp4"
	}
	if a.ImageAvailable {
		res.ImageURL = ImageURLPrefix + res.Identifier + ".jpg"
	}
	return err
}
