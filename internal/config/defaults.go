package config

import "path/filepath"

// DefaultDataDir is the root for derived storage paths.
const DefaultDataDir = "/usr/local/var/vidgrep/data"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SearchRate == 0 {
		cfg.Server.SearchRate = 5
	}
	if cfg.Server.SearchBurst == 0 {
		cfg.Server.SearchBurst = 10
	}

	s := &cfg.Storage
	if s.DataDir == "" {
		s.DataDir = DefaultDataDir
	}
	derive := func(p *string, elem ...string) {
		if *p == "" {
			*p = filepath.Join(append([]string{s.DataDir}, elem...)...)
		}
	}
	derive(&s.IndexPath, "index", "frames.index")
	derive(&s.MetadataPath, "index", "metadata.json")
	derive(&s.DatabasePath, "db", "vidgrep.db")
	derive(&s.FramesDir, "frames")
	derive(&s.VideosDir, "videos")
	derive(&s.ResultsDir, "results")
	derive(&s.ResultsVideoDir, "results_video")
	derive(&cfg.Snapshot.Dir, "snapshots")
	derive(&cfg.Embedding.ImageModelPath, "models", "clip-vision.onnx")
	derive(&cfg.Embedding.TextModelPath, "models", "clip-text.onnx")
	if s.IndexType == "" {
		s.IndexType = "flat"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 77
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}

	if cfg.Ingest.FrameInterval == 0 {
		cfg.Ingest.FrameInterval = 1.0
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 32
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv"}
	}
	if cfg.Ingest.FFmpegPath == "" {
		cfg.Ingest.FFmpegPath = "ffmpeg"
	}
	if cfg.Ingest.FFprobePath == "" {
		cfg.Ingest.FFprobePath = "ffprobe"
	}
	if cfg.Ingest.JPEGQuality == 0 {
		cfg.Ingest.JPEGQuality = 2
	}

	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 10
	}
	if cfg.Search.DedupWindow == 0 {
		cfg.Search.DedupWindow = 10
	}
	if cfg.Search.Limit == 0 {
		cfg.Search.Limit = 10
	}
	if cfg.Search.ClipSeconds == 0 {
		cfg.Search.ClipSeconds = 10
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
