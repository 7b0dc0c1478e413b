package main

import (
	"context"
	"fmt"

	"github.com/hyperjump/vidgrep/internal/catalog"
	"github.com/hyperjump/vidgrep/internal/cli"
	"github.com/hyperjump/vidgrep/internal/config"
	"github.com/hyperjump/vidgrep/internal/embedding"
	"github.com/hyperjump/vidgrep/internal/extract"
	"github.com/hyperjump/vidgrep/internal/ingest"
	"github.com/hyperjump/vidgrep/internal/render"
	"github.com/hyperjump/vidgrep/internal/search"
	"github.com/hyperjump/vidgrep/internal/store"
	"github.com/hyperjump/vidgrep/internal/vector"
	"go.uber.org/zap"
)

// Components holds initialized services.
type Components struct {
	Store    *store.Store
	Catalog  *catalog.Catalog
	Embedder embedding.Embedder
	Renderer *render.FFmpegRenderer
	Pipeline *search.Pipeline
	Driver   *ingest.Driver
}

func (c *Components) Close() {
	if c.Catalog != nil {
		_ = c.Catalog.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	ec := cfg.Embedding
	if ec.Provider == "mock" {
		logger.Warn("using mock embedder; search results are not semantic")
		return embedding.NewMockEmbedder(ec.Dimensions), nil
	}
	var vocab map[string]int64
	if ec.VocabPath != "" {
		v, err := embedding.LoadVocab(ec.VocabPath)
		if err != nil {
			return nil, err
		}
		vocab = v
	}
	e, err := embedding.NewONNXEmbedder(embedding.ONNXConfig{
		LibraryPath:    ec.LibraryPath,
		ImageModelPath: ec.ImageModelPath,
		TextModelPath:  ec.TextModelPath,
		Dimensions:     ec.Dimensions,
		MaxTokens:      ec.MaxTokens,
		CacheSize:      ec.CacheSize,
	}, embedding.NewSimpleTokenizer(vocab))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize CLIP models (set embedding.provider: mock to run without them): %w", err)
	}
	return e, nil
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	debugLogger := zap.NewNop()
	if debug {
		debugLogger = logger
	}

	st, err := store.Open(store.Config{
		IndexPath:    cfg.Storage.IndexPath,
		MetadataPath: cfg.Storage.MetadataPath,
		Dimensions:   cfg.Embedding.Dimensions,
		IndexType:    cfg.Storage.IndexType,
	}, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}
	c := &Components{Store: st}
	logger.Debug("index store opened",
		zap.Int("rows", st.Len()),
		zap.String("type", st.IndexType()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	cat, err := catalog.Open(cfg.Storage.DatabasePath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	c.Catalog = cat

	emb, err := newEmbedder(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Embedder = emb

	c.Renderer = render.NewFFmpegRenderer(render.Config{
		ResultsDir:      cfg.Storage.ResultsDir,
		ResultsVideoDir: cfg.Storage.ResultsVideoDir,
		VideosDir:       cfg.Storage.VideosDir,
		Extensions:      cfg.Ingest.Extensions,
		ClipSeconds:     cfg.Search.ClipSeconds,
		FFmpegPath:      cfg.Ingest.FFmpegPath,
	}, render.WithLogger(debugLogger))

	c.Pipeline = search.NewPipeline(st, emb, c.Renderer, search.Config{
		TopK:   cfg.Search.TopK,
		Limit:  cfg.Search.Limit,
		Window: cfg.Search.DedupWindow,
		Render: cfg.Search.RenderOrDefault(),
	}, search.WithLogger(debugLogger))

	extractor := extract.NewFFmpegExtractor(cfg.Ingest.FrameInterval, cfg.Ingest.JPEGQuality,
		extract.WithBinaries(cfg.Ingest.FFmpegPath, cfg.Ingest.FFprobePath),
		extract.WithLogger(debugLogger))
	c.Driver = ingest.NewDriver(st, emb, extractor, ingest.Config{
		FramesDir:  cfg.Storage.FramesDir,
		BatchSize:  cfg.Ingest.BatchSize,
		Workers:    cfg.Ingest.Workers,
		Extensions: cfg.Ingest.Extensions,
	}, ingest.WithLogger(logger), ingest.WithCatalog(cat))
	return c, nil
}

// status gathers the report printed by the status command.
func (c *Components) status(ctx context.Context, cfg *config.Config) (cli.Status, error) {
	n, err := c.Catalog.Count(ctx)
	if err != nil {
		return cli.Status{}, err
	}
	st := cfg.Storage
	r := cli.Status{
		StoreStats:    c.Store.Stats(),
		IndexType:     c.Store.IndexType(),
		IndexPath:     st.IndexPath,
		MetadataPath:  st.MetadataPath,
		DatabasePath:  st.DatabasePath,
		CatalogVideos: n,
	}
	if bytes, err := catalog.DiskUsageBytes(st.IndexPath, st.MetadataPath, st.DatabasePath, st.FramesDir); err == nil {
		r.DiskUsageBytes = bytes
	}
	return r, nil
}
