// Package store keeps a vector index and its metadata ledger in positional lockstep and
// persists both as a pair.
package store

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/hyperjump/vidgrep/internal/metadata"
	"github.com/hyperjump/vidgrep/internal/models"
	"github.com/hyperjump/vidgrep/internal/vector"
	"go.uber.org/zap"
)

// Config locates and shapes a store.
type Config struct {
	IndexPath    string
	MetadataPath string
	Dimensions   int
	IndexType    string // "flat" (default) or "faiss"
}

// Store owns the embedding index and the metadata ledger. Row i of the index always
// pairs with record i of the ledger. Mutations take the write lock and replace state only
// after every step has succeeded; searches share the read lock.
type Store struct {
	cfg    Config
	mu     sync.RWMutex
	index  vector.Index
	ledger *metadata.Ledger
	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a logger for load, save, and delete events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open loads the store from cfg's paths. When neither artifact exists the store starts
// empty; when exactly one exists, or their row counts differ, ErrCorruptStore is returned.
func Open(cfg Config, opts ...Option) (*Store, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", cfg.Dimensions)
	}
	s := &Store{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	indexExists, err := exists(cfg.IndexPath)
	if err != nil {
		return nil, err
	}
	metaExists, err := exists(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}

	switch {
	case !indexExists && !metaExists:
		idx, err := vector.New(cfg.IndexType, cfg.Dimensions)
		if err != nil {
			return nil, err
		}
		s.index = idx
		s.ledger = metadata.New()
		s.logger.Debug("store starting empty",
			zap.String("index_path", cfg.IndexPath),
			zap.Int("dimensions", cfg.Dimensions))
		return s, nil
	case indexExists != metaExists:
		return nil, fmt.Errorf("%w: index present=%t, metadata present=%t", ErrCorruptStore, indexExists, metaExists)
	}

	idx, err := vector.Load(cfg.IndexType, cfg.IndexPath)
	if err != nil {
		return nil, loadError("index", cfg.IndexPath, err)
	}
	if idx.Dimensions() != cfg.Dimensions {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: %w", ErrCorruptStore,
			&vector.DimensionMismatchError{Expected: cfg.Dimensions, Actual: idx.Dimensions()})
	}
	ledger, err := metadata.Load(cfg.MetadataPath)
	if err != nil {
		_ = idx.Close()
		return nil, loadError("metadata", cfg.MetadataPath, err)
	}
	if idx.Len() != ledger.Len() {
		_ = idx.Close()
		return nil, fmt.Errorf("%w: index has %d rows, metadata has %d records", ErrCorruptStore, idx.Len(), ledger.Len())
	}
	s.index = idx
	s.ledger = ledger
	s.logger.Info("store loaded",
		zap.String("index_path", cfg.IndexPath),
		zap.Int("rows", idx.Len()),
		zap.Int("dimensions", idx.Dimensions()))
	return s, nil
}

// loadError wraps a failure to read an artifact that exists. Anything other than a
// permission problem means the file cannot be decoded and the store is corrupt.
func loadError(what, path string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("load %s %s: %w", what, path, err)
	}
	return fmt.Errorf("%w: load %s %s: %w", ErrCorruptStore, what, path, err)
}

func exists(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// InsertBatch normalizes vectors to unit length and appends them with their records.
// Returns the row of the first inserted vector. Nothing is written when validation fails.
func (s *Store) InsertBatch(vectors [][]float32, records []models.FrameRecord) (int, error) {
	normalized, err := s.prepare(vectors, records)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(normalized) == 0 {
		return s.index.Len(), nil
	}
	start, err := s.index.Add(normalized)
	if err != nil {
		return 0, fmt.Errorf("add vectors: %w", err)
	}
	s.ledger.Append(records...)
	return start, nil
}

// prepare validates a batch and returns its vectors normalized to unit length.
func (s *Store) prepare(vectors [][]float32, records []models.FrameRecord) ([][]float32, error) {
	if len(vectors) != len(records) {
		return nil, fmt.Errorf("%w: %d vectors, %d records", ErrBatchSizeMismatch, len(vectors), len(records))
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != s.cfg.Dimensions {
			return nil, &vector.DimensionMismatchError{Expected: s.cfg.Dimensions, Actual: len(v)}
		}
		normalized[i] = vector.Normalize(v)
	}
	return normalized, nil
}

// DeleteByVideoID removes every row whose record belongs to videoID and rebuilds the index
// from the surviving rows in their original order. Unknown IDs remove nothing.
func (s *Store) DeleteByVideoID(videoID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.replaceLocked(videoID, nil, nil)
	if err != nil || removed == 0 {
		return removed, err
	}
	s.logger.Info("video deleted from store",
		zap.String("video_id", videoID),
		zap.Int("removed", removed),
		zap.Int("remaining", s.ledger.Len()))
	return removed, nil
}

// ReplaceVideo swaps every row of videoID for a new batch in one step and returns how many
// rows were removed. The batch is validated before anything changes; on error the store is
// exactly as it was.
func (s *Store) ReplaceVideo(videoID string, vectors [][]float32, records []models.FrameRecord) (int, error) {
	normalized, err := s.prepare(vectors, records)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed, err := s.replaceLocked(videoID, normalized, records)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("video replaced in store",
		zap.String("video_id", videoID),
		zap.Int("removed", removed),
		zap.Int("added", len(records)))
	return removed, nil
}

// replaceLocked drops the rows of videoID and appends the given normalized batch. When rows
// are dropped the index is rebuilt from the survivors followed by the batch; the live index
// and ledger are only swapped once the rebuild succeeded. s.mu must be held.
func (s *Store) replaceLocked(videoID string, normalized [][]float32, records []models.FrameRecord) (int, error) {
	kept, keptRows, removed := s.ledger.RemoveWhere(func(r models.FrameRecord) bool {
		return r.VideoID == videoID
	})
	if removed == 0 {
		if len(normalized) == 0 {
			return 0, nil
		}
		if _, err := s.index.Add(normalized); err != nil {
			return 0, fmt.Errorf("add vectors: %w", err)
		}
		s.ledger.Append(records...)
		return 0, nil
	}

	vectors := make([][]float32, 0, int(keptRows.GetCardinality())+len(normalized))
	it := keptRows.Iterator()
	for it.HasNext() {
		v, err := s.index.Reconstruct(int(it.Next()))
		if err != nil {
			return 0, fmt.Errorf("rebuild after delete: %w", err)
		}
		vectors = append(vectors, v)
	}
	vectors = append(vectors, normalized...)
	rebuilt, err := vector.Build(s.index.Type(), s.cfg.Dimensions, vectors)
	if err != nil {
		return 0, fmt.Errorf("rebuild after delete: %w", err)
	}

	rows := make([]models.FrameRecord, 0, len(kept)+len(records))
	rows = append(rows, kept...)
	rows = append(rows, records...)
	old := s.index
	s.index = rebuilt
	s.ledger = metadata.FromRecords(rows)
	_ = old.Close()
	return removed, nil
}

// Search normalizes query (unless it is all zeros) and returns up to k hits joined with
// their metadata, best first.
func (s *Store) Search(query []float32, k int) ([]models.SearchHit, error) {
	if len(query) != s.cfg.Dimensions {
		return nil, &vector.DimensionMismatchError{Expected: s.cfg.Dimensions, Actual: len(query)}
	}
	if vector.L2Norm(query) > 0 {
		query = vector.Normalize(query)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	hits, err := s.index.Search(query, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	results := make([]models.SearchHit, 0, len(hits))
	for _, h := range hits {
		rec, ok := s.ledger.At(h.Row)
		if !ok {
			continue
		}
		results = append(results, models.SearchHit{FrameRecord: rec, Score: h.Score, RowIndex: h.Row})
	}
	return results, nil
}

// Stats returns row, dimension, and distinct video counts.
func (s *Store) Stats() models.StoreStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.StoreStats{
		TotalRows:        s.index.Len(),
		Dimension:        s.cfg.Dimensions,
		UniqueVideoCount: len(s.ledger.VideoIDs()),
	}
}

// Videos returns the distinct video IDs in order of first appearance.
func (s *Store) Videos() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.VideoIDs()
}

// HasVideo reports whether any row belongs to videoID.
func (s *Store) HasVideo(videoID string) bool {
	for _, id := range s.Videos() {
		if id == videoID {
			return true
		}
	}
	return false
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Len()
}

// Dimensions returns the configured vector dimension.
func (s *Store) Dimensions() int {
	return s.cfg.Dimensions
}

// IndexType returns the backing index type.
func (s *Store) IndexType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Type()
}

// Paths returns the persisted artifact locations.
func (s *Store) Paths() (indexPath, metadataPath string) {
	return s.cfg.IndexPath, s.cfg.MetadataPath
}

// Close releases the index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	return err
}
