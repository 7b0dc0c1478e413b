// Package catalog records ingested source videos in SQLite. It is bookkeeping only: the
// index store stays the source of truth for which frames are searchable.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/vidgrep/internal/models"
)

// ErrNotFound is returned when a video is not in the catalog.
var ErrNotFound = errors.New("video not found")

// Catalog stores one row per ingested video.
type Catalog struct {
	db *sqlx.DB
}

// Open opens or creates the catalog database at dbPath. Parent directories are created
// if they do not exist. ":memory:" opens a private in-memory database.
func Open(dbPath string) (*Catalog, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL DEFAULT 0,
		frame_count INTEGER NOT NULL DEFAULT 0,
		ingested_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_videos_path ON videos(path);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts or replaces the row for v.ID. A zero IngestedAt is set to now.
func (c *Catalog) Upsert(ctx context.Context, v *models.Video) error {
	if v.ID == "" {
		return errors.New("video id cannot be empty")
	}
	if v.IngestedAt.IsZero() {
		v.IngestedAt = time.Now().UTC()
	}
	_, err := c.db.NamedExecContext(ctx,
		`INSERT INTO videos (id, path, size, mod_time, frame_count, ingested_at)
		 VALUES (:id, :path, :size, :mod_time, :frame_count, :ingested_at)
		 ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			size = excluded.size,
			mod_time = excluded.mod_time,
			frame_count = excluded.frame_count,
			ingested_at = excluded.ingested_at`,
		v,
	)
	if err != nil {
		return fmt.Errorf("upsert video %s: %w", v.ID, err)
	}
	return nil
}

// Get returns the video with the given ID or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*models.Video, error) {
	var v models.Video
	err := c.db.GetContext(ctx, &v,
		`SELECT id, path, size, mod_time, frame_count, ingested_at FROM videos WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Delete removes the video row. Deleting an unknown ID is not an error.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	return err
}

// List returns all videos ordered by ID.
func (c *Catalog) List(ctx context.Context) ([]*models.Video, error) {
	videos := []*models.Video{}
	err := c.db.SelectContext(ctx, &videos,
		`SELECT id, path, size, mod_time, frame_count, ingested_at FROM videos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// Count returns the number of catalogued videos.
func (c *Catalog) Count(ctx context.Context) (int, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM videos`); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
