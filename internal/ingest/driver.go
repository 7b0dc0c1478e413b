// Package ingest turns video files into index rows: extract frames, embed them in batches,
// insert one batch per video and keep the video catalog in step.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/vidgrep/internal/catalog"
	"github.com/hyperjump/vidgrep/internal/embedding"
	"github.com/hyperjump/vidgrep/internal/extract"
	"github.com/hyperjump/vidgrep/internal/ident"
	"github.com/hyperjump/vidgrep/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize = 32
	DefaultWorkers   = 4
)

// DefaultExtensions are the video file extensions picked up by directory ingestion.
var DefaultExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv"}

// Index is the write side of the index store.
type Index interface {
	ReplaceVideo(videoID string, vectors [][]float32, records []models.FrameRecord) (int, error)
	DeleteByVideoID(videoID string) (int, error)
	HasVideo(videoID string) bool
	Stats() models.StoreStats
	Save() error
}

// Catalog records ingested videos. *catalog.Catalog implements it.
type Catalog interface {
	Get(ctx context.Context, id string) (*models.Video, error)
	Upsert(ctx context.Context, v *models.Video) error
	Delete(ctx context.Context, id string) error
}

// Config controls where frames go and how embedding work is split.
type Config struct {
	FramesDir  string
	BatchSize  int
	Workers    int
	Extensions []string
}

// VideoResult describes the outcome for one video.
type VideoResult struct {
	VideoID  string `json:"video_id"`
	Path     string `json:"path"`
	Frames   int    `json:"frames"`
	Replaced int    `json:"replaced,omitempty"` // rows removed from a previous ingest
	Skipped  bool   `json:"skipped,omitempty"`  // unchanged since last ingest
}

// VideoError records a video that could not be ingested.
type VideoError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Summary reports a multi-video ingest run.
type Summary struct {
	RunID       string            `json:"run_id"`
	Videos      []VideoResult     `json:"videos"`
	Errors      []VideoError      `json:"errors,omitempty"`
	TotalFrames int               `json:"total_frames"`
	Stats       models.StoreStats `json:"stats"`
	Duration    time.Duration     `json:"duration_ns"`
}

// Driver orchestrates ingestion. Mutations of the index are serialized by the driver.
type Driver struct {
	index     Index
	embedder  embedding.Embedder
	extractor extract.Extractor
	catalog   Catalog
	cfg       Config
	mu        sync.Mutex
	logger    *zap.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets a logger for progress and debug output.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithCatalog enables video bookkeeping and skipping of unchanged videos.
func WithCatalog(c Catalog) Option {
	return func(d *Driver) { d.catalog = c }
}

// NewDriver creates an ingestion driver.
func NewDriver(index Index, embedder embedding.Embedder, extractor extract.Extractor, cfg Config, opts ...Option) *Driver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	d := &Driver{
		index:     index,
		embedder:  embedder,
		extractor: extractor,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Extensions returns the accepted video extensions.
func (d *Driver) Extensions() []string {
	return append([]string(nil), d.cfg.Extensions...)
}

// IngestVideo extracts, embeds and inserts all frames of one video. Rows from a previous
// ingest of the same video ID are replaced. Videos whose size and mtime match the catalog
// entry are skipped. The index is not saved; call Save or use IngestPaths.
func (d *Driver) IngestVideo(ctx context.Context, path string) (VideoResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return VideoResult{}, fmt.Errorf("absolute path: %w", err)
	}
	res := VideoResult{VideoID: ident.VideoID(absPath), Path: absPath}
	if !ExtensionAllowed(filepath.Ext(absPath), d.cfg.Extensions) {
		return res, fmt.Errorf("extension %q not in allowed list", filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return res, fmt.Errorf("stat video: %w", err)
	}
	if !info.Mode().IsRegular() {
		return res, fmt.Errorf("not a regular file: %s", absPath)
	}
	if d.unchanged(ctx, res.VideoID, absPath, info) {
		d.logger.Debug("skipping unchanged video", zap.String("path", absPath))
		res.Skipped = true
		return res, nil
	}

	// Frames are extracted next to the live frames dir and only swapped in once the new
	// rows are committed, so a failed re-ingest leaves the old rows and frames intact.
	framesDir := filepath.Join(d.cfg.FramesDir, res.VideoID)
	if err := os.MkdirAll(d.cfg.FramesDir, 0755); err != nil {
		return res, fmt.Errorf("create frames dir: %w", err)
	}
	staging, err := os.MkdirTemp(d.cfg.FramesDir, "."+res.VideoID+".staging-")
	if err != nil {
		return res, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	var frames []extract.Frame
	for f, err := range d.extractor.Frames(ctx, absPath, staging) {
		if err != nil {
			return res, err
		}
		frames = append(frames, f)
	}
	if len(frames) == 0 {
		return res, errors.New("no frames extracted")
	}

	vectors, err := d.embedFrames(ctx, frames)
	if err != nil {
		return res, err
	}
	records := make([]models.FrameRecord, len(frames))
	for i, f := range frames {
		rel, err := filepath.Rel(staging, f.Path)
		if err != nil || !filepath.IsLocal(rel) {
			return res, fmt.Errorf("frame %s outside output dir", f.Path)
		}
		records[i] = models.FrameRecord{
			VideoID:   res.VideoID,
			Timestamp: f.Timestamp,
			FramePath: filepath.Join(framesDir, rel),
			VideoPath: absPath,
		}
	}

	d.mu.Lock()
	res.Replaced, err = d.index.ReplaceVideo(res.VideoID, vectors, records)
	if err != nil {
		d.mu.Unlock()
		return res, fmt.Errorf("insert frames: %w", err)
	}
	// The rows are in. If the swap fails the catalog keeps the old entry, so the next
	// ingest redoes this video.
	err = installFrames(staging, framesDir)
	d.mu.Unlock()
	if err != nil {
		return res, err
	}
	res.Frames = len(frames)

	if d.catalog != nil {
		v := &models.Video{
			ID:         res.VideoID,
			Path:       absPath,
			Size:       info.Size(),
			ModTime:    info.ModTime().UnixNano(),
			FrameCount: res.Frames,
		}
		if err := d.catalog.Upsert(ctx, v); err != nil {
			d.logger.Warn("catalog update failed", zap.String("video_id", res.VideoID), zap.Error(err))
		}
	}
	d.logger.Debug("video ingested",
		zap.String("video_id", res.VideoID),
		zap.Int("frames", res.Frames),
		zap.Int("replaced", res.Replaced))
	return res, nil
}

// installFrames replaces dst with the freshly extracted frames in staging.
func installFrames(staging, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("remove old frames: %w", err)
	}
	if err := os.Rename(staging, dst); err != nil {
		return fmt.Errorf("install frames: %w", err)
	}
	return nil
}

// unchanged reports whether the catalog already holds this exact file and the index still
// has its rows.
func (d *Driver) unchanged(ctx context.Context, videoID, absPath string, info os.FileInfo) bool {
	if d.catalog == nil {
		return false
	}
	v, err := d.catalog.Get(ctx, videoID)
	if err != nil {
		return false
	}
	if v.Path != absPath || v.Size != info.Size() || v.ModTime != info.ModTime().UnixNano() {
		return false
	}
	return d.index.HasVideo(videoID)
}

// embedFrames embeds frames in batches of BatchSize, running up to Workers batches at once.
// The returned vectors are in frame order.
func (d *Driver) embedFrames(ctx context.Context, frames []extract.Frame) ([][]float32, error) {
	vectors := make([][]float32, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)
	for start := 0; start < len(frames); start += d.cfg.BatchSize {
		end := min(start+d.cfg.BatchSize, len(frames))
		g.Go(func() error {
			images := make([][]byte, 0, end-start)
			for _, f := range frames[start:end] {
				data, err := os.ReadFile(f.Path)
				if err != nil {
					return fmt.Errorf("read frame: %w", err)
				}
				images = append(images, data)
			}
			embs, err := d.embedder.EmbedImages(gctx, images)
			if err != nil {
				return fmt.Errorf("embed frames: %w", err)
			}
			if len(embs) != len(images) {
				return fmt.Errorf("embed frames: got %d embeddings for %d images", len(embs), len(images))
			}
			copy(vectors[start:end], embs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// IngestPaths ingests each video in turn. A failing video is recorded in the summary and
// does not stop the run. The index is saved once at the end if anything changed; only a
// save failure is returned as an error.
func (d *Driver) IngestPaths(ctx context.Context, paths []string) (*Summary, error) {
	start := time.Now()
	sum := &Summary{RunID: uuid.New().String(), Videos: []VideoResult{}}
	logger := d.logger.With(zap.String("run_id", sum.RunID))
	logger.Info("ingest started", zap.Int("videos", len(paths)))

	changed := false
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			sum.Errors = append(sum.Errors, VideoError{Path: p, Error: err.Error()})
			break
		}
		res, err := d.IngestVideo(ctx, p)
		if err != nil {
			logger.Warn("video not ingested", zap.String("path", p), zap.Error(err))
			sum.Errors = append(sum.Errors, VideoError{Path: p, Error: err.Error()})
			continue
		}
		if !res.Skipped {
			changed = true
		}
		sum.TotalFrames += res.Frames
		sum.Videos = append(sum.Videos, res)
	}

	if changed {
		if err := d.Save(); err != nil {
			return sum, err
		}
	}
	sum.Stats = d.index.Stats()
	sum.Duration = time.Since(start)
	logger.Info("ingest finished",
		zap.Int("frames", sum.TotalFrames),
		zap.Int("failed", len(sum.Errors)),
		zap.Int("total_rows", sum.Stats.TotalRows),
		zap.Int("unique_videos", sum.Stats.UniqueVideoCount),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}

// IngestDirectory walks dir recursively and ingests every regular file with an accepted
// extension, in lexical path order.
func (d *Driver) IngestDirectory(ctx context.Context, dir string) (*Summary, error) {
	paths, err := DiscoverVideos(dir, d.cfg.Extensions)
	if err != nil {
		return nil, err
	}
	return d.IngestPaths(ctx, paths)
}

// DeleteVideo removes every row of videoID, saves the index if anything was removed and
// drops the catalog entry and stored frames. Unknown IDs remove nothing and are not an error.
func (d *Driver) DeleteVideo(ctx context.Context, videoID string) (int, error) {
	d.mu.Lock()
	removed, err := d.index.DeleteByVideoID(videoID)
	if err == nil && removed > 0 {
		err = d.index.Save()
	}
	d.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if d.catalog != nil {
		if err := d.catalog.Delete(ctx, videoID); err != nil {
			d.logger.Warn("catalog delete failed", zap.String("video_id", videoID), zap.Error(err))
		}
	}
	if removed > 0 && d.cfg.FramesDir != "" && videoID != "" && !strings.ContainsAny(videoID, `/\`) {
		_ = os.RemoveAll(filepath.Join(d.cfg.FramesDir, videoID))
	}
	d.logger.Debug("video deleted", zap.String("video_id", videoID), zap.Int("removed", removed))
	return removed, nil
}

// Save persists the index.
func (d *Driver) Save() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.index.Save(); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// DiscoverVideos returns the regular files under dir with an accepted extension, sorted.
func DiscoverVideos(dir string, extensions []string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var paths []string
	err = filepath.WalkDir(absDir, func(path string, ent os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ent.IsDir() || !ExtensionAllowed(filepath.Ext(path), extensions) {
			return nil
		}
		// Resolve symlinks so only regular files are ingested.
		if finfo, err := os.Stat(path); err != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// ExtensionAllowed reports whether ext (with or without the dot, any case) is in allowed.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

var _ Catalog = (*catalog.Catalog)(nil)
