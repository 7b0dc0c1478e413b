package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/vidgrep/internal/models"
)

func TestCatalog_CRUD(t *testing.T) {
	ctx := context.Background()
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()

	ingested := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	v := &models.Video{ID: "trip", Path: "/videos/trip.mp4", Size: 1024, ModTime: 42, FrameCount: 30, IngestedAt: ingested}
	require.NoError(t, c.Upsert(ctx, v))

	got, err := c.Get(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, "/videos/trip.mp4", got.Path)
	assert.Equal(t, int64(1024), got.Size)
	assert.Equal(t, int64(42), got.ModTime)
	assert.Equal(t, 30, got.FrameCount)
	assert.True(t, got.IngestedAt.Equal(ingested), "ingested_at = %v", got.IngestedAt)

	v.FrameCount = 31
	v.Size = 2048
	require.NoError(t, c.Upsert(ctx, v))
	got, err = c.Get(ctx, "trip")
	require.NoError(t, err)
	assert.Equal(t, 31, got.FrameCount)
	assert.Equal(t, int64(2048), got.Size)

	require.NoError(t, c.Upsert(ctx, &models.Video{ID: "beach", Path: "/videos/beach.mov"}))
	n, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "beach", list[0].ID)
	assert.Equal(t, "trip", list[1].ID)
	assert.False(t, list[0].IngestedAt.IsZero())

	require.NoError(t, c.Delete(ctx, "trip"))
	_, err = c.Get(ctx, "trip")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, c.Delete(ctx, "trip"))
}

func TestCatalog_EmptyList(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()
	list, err := c.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestCatalog_RejectsEmptyID(t *testing.T) {
	c, err := Open(":memory:")
	require.NoError(t, err)
	defer c.Close()
	assert.Error(t, c.Upsert(context.Background(), &models.Video{Path: "/x.mp4"}))
}

func TestCatalog_PersistsOnDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "vidgrep.db")
	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Upsert(ctx, &models.Video{ID: "v", Path: "/v.mp4", FrameCount: 3}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	got, err := c.Get(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, 3, got.FrameCount)
}
