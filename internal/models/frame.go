// Package models defines core data structures for frame rows, videos, queries, and search results.
package models

import "time"

// FrameRecord is the metadata stored for one sampled frame. It is immutable once written.
type FrameRecord struct {
	VideoID   string  `json:"video_id"`
	Timestamp float64 `json:"timestamp"`
	FramePath string  `json:"frame_path"`
	VideoPath string  `json:"video_path"`
}

// Video is a catalog entry for an ingested source video.
type Video struct {
	ID         string    `json:"id" db:"id"`
	Path       string    `json:"path" db:"path"`
	Size       int64     `json:"size" db:"size"`
	ModTime    int64     `json:"mod_time" db:"mod_time"` // UnixNano
	FrameCount int       `json:"frame_count" db:"frame_count"`
	IngestedAt time.Time `json:"ingested_at" db:"ingested_at"`
}

// StoreStats summarizes an index store.
type StoreStats struct {
	TotalRows        int `json:"total_rows"`
	Dimension        int `json:"dimension"`
	UniqueVideoCount int `json:"unique_video_count"`
}
