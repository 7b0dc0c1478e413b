// Package config provides configuration loading and structs for vidgrep.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string  `yaml:"host"`
	Port        int     `yaml:"port"`
	SearchRate  float64 `yaml:"search_rate"`  // search requests per second
	SearchBurst int     `yaml:"search_burst"` // burst size for the search limiter
}

// StorageConfig holds on-disk locations. Empty paths are derived from DataDir.
type StorageConfig struct {
	DataDir         string `yaml:"data_dir"`
	IndexPath       string `yaml:"index_path"`
	MetadataPath    string `yaml:"metadata_path"`
	DatabasePath    string `yaml:"database_path"`
	FramesDir       string `yaml:"frames_dir"`
	VideosDir       string `yaml:"videos_dir"`
	ResultsDir      string `yaml:"results_dir"`
	ResultsVideoDir string `yaml:"results_video_dir"`
	IndexType       string `yaml:"index_type"` // flat or faiss
}

// EmbeddingConfig holds CLIP model settings.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // onnx or mock
	LibraryPath    string `yaml:"library_path"`
	ImageModelPath string `yaml:"image_model_path"`
	TextModelPath  string `yaml:"text_model_path"`
	VocabPath      string `yaml:"vocab_path"`
	Dimensions     int    `yaml:"dimensions"`
	MaxTokens      int    `yaml:"max_tokens"`
	CacheSize      int    `yaml:"cache_size"`
}

// IngestConfig holds frame sampling and embedding batch settings.
type IngestConfig struct {
	FrameInterval float64  `yaml:"frame_interval"` // seconds between sampled frames
	BatchSize     int      `yaml:"batch_size"`
	Workers       int      `yaml:"workers"`
	Extensions    []string `yaml:"extensions"`
	FFmpegPath    string   `yaml:"ffmpeg_path"`
	FFprobePath   string   `yaml:"ffprobe_path"`
	JPEGQuality   int      `yaml:"jpeg_quality"` // ffmpeg -q:v, 2 (best) to 31
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	TopK        int     `yaml:"top_k"`
	DedupWindow float64 `yaml:"dedup_window"` // seconds
	Limit       int     `yaml:"limit"`
	Render      *bool   `yaml:"render"`
	ClipSeconds float64 `yaml:"clip_seconds"`
}

// RenderOrDefault returns whether to render artifacts; defaults to true when unset.
func (s *SearchConfig) RenderOrDefault() bool {
	if s.Render != nil {
		return *s.Render
	}
	return true
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// SnapshotConfig holds snapshot locations. Endpoint and Bucket enable remote upload.
type SnapshotConfig struct {
	Dir       string `yaml:"dir"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Region    string `yaml:"region"`
}

// RemoteEnabled reports whether an object storage target is configured.
func (s *SnapshotConfig) RemoteEnabled() bool {
	return s.Endpoint != "" && s.Bucket != ""
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if cfg.Storage.DataDir != "" {
		cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	}
	ApplyDefaults(&cfg)
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}

	for _, p := range cfg.paths() {
		*p = expandPath(*p, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	return &cfg, nil
}

// Default returns a configuration built only from defaults and the environment.
func Default() (*Config, error) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides. BATCH_SIZE overrides ingest.batch_size.
func ApplyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("BATCH_SIZE")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid BATCH_SIZE %q: must be a positive integer", v)
		}
		cfg.Ingest.BatchSize = n
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// paths returns pointers to every file system path that should be expanded.
func (c *Config) paths() []*string {
	ps := []*string{
		&c.Storage.IndexPath,
		&c.Storage.MetadataPath,
		&c.Storage.DatabasePath,
		&c.Storage.FramesDir,
		&c.Storage.VideosDir,
		&c.Storage.ResultsDir,
		&c.Storage.ResultsVideoDir,
		&c.Embedding.ImageModelPath,
		&c.Embedding.TextModelPath,
		&c.Snapshot.Dir,
	}
	if c.Embedding.LibraryPath != "" {
		ps = append(ps, &c.Embedding.LibraryPath)
	}
	if c.Embedding.VocabPath != "" {
		ps = append(ps, &c.Embedding.VocabPath)
	}
	return ps
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
