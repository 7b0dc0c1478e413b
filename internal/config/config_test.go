package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "/tmp/test.db"
search:
  top_k: 25
  render: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath != "/tmp/test.db" {
		t.Errorf("database_path = %s", cfg.Storage.DatabasePath)
	}
	if cfg.Search.TopK != 25 {
		t.Errorf("top_k = %d", cfg.Search.TopK)
	}
	if cfg.Search.RenderOrDefault() {
		t.Error("render should be false when set in config")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	cfg, err := Load(writeConfig(t, "debug: true\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_dataDirRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  data_dir: "./data"
  frames_dir: "./frames"
watch:
  directories: ["./videos"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	tests := [][2]string{
		{cfg.Storage.DataDir, filepath.Join(dir, "data")},
		{cfg.Storage.IndexPath, filepath.Join(dir, "data", "index", "frames.index")},
		{cfg.Storage.MetadataPath, filepath.Join(dir, "data", "index", "metadata.json")},
		{cfg.Storage.DatabasePath, filepath.Join(dir, "data", "db", "vidgrep.db")},
		{cfg.Storage.FramesDir, filepath.Join(dir, "frames")},
		{cfg.Watch.Directories[0], filepath.Join(dir, "videos")},
	}
	for _, tt := range tests {
		if tt[0] != tt[1] {
			t.Errorf("path = %s, want %s", tt[0], tt[1])
		}
	}
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected read error")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Port != 8080 || cfg.Server.SearchRate != 5 || cfg.Server.SearchBurst != 10 {
		t.Errorf("server defaults: %+v", cfg.Server)
	}
	if cfg.Embedding.Dimensions != 512 || cfg.Embedding.MaxTokens != 77 || cfg.Embedding.CacheSize != 1000 {
		t.Errorf("embedding defaults: %+v", cfg.Embedding)
	}
	if cfg.Ingest.FrameInterval != 1.0 || cfg.Ingest.BatchSize != 32 || cfg.Ingest.Workers != 4 {
		t.Errorf("ingest defaults: %+v", cfg.Ingest)
	}
	if len(cfg.Ingest.Extensions) != 6 || cfg.Ingest.Extensions[0] != ".mp4" || cfg.Ingest.Extensions[5] != ".wmv" {
		t.Errorf("extensions: %v", cfg.Ingest.Extensions)
	}
	if cfg.Search.TopK != 10 || cfg.Search.DedupWindow != 10 || cfg.Search.Limit != 10 || cfg.Search.ClipSeconds != 10 {
		t.Errorf("search defaults: %+v", cfg.Search)
	}
	if !cfg.Search.RenderOrDefault() {
		t.Error("render should default to true")
	}
	if cfg.Storage.IndexType != "flat" {
		t.Errorf("index type: %s", cfg.Storage.IndexType)
	}
	if cfg.Storage.ResultsVideoDir != filepath.Join(DefaultDataDir, "results_video") {
		t.Errorf("results_video_dir: %s", cfg.Storage.ResultsVideoDir)
	}
	if cfg.Watch.Recursive != nil {
		t.Error("recursive should stay unset without directories")
	}
}

func TestApplyEnv_BatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "8")
	cfg, err := Default()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ingest.BatchSize != 8 {
		t.Errorf("batch size = %d, want 8", cfg.Ingest.BatchSize)
	}

	t.Setenv("BATCH_SIZE", "zero")
	if _, err := Default(); err == nil {
		t.Error("expected error for invalid BATCH_SIZE")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	f := false
	if !(&WatchConfig{}).RecursiveOrDefault() {
		t.Error("nil should default to true")
	}
	if (&WatchConfig{Recursive: &f}).RecursiveOrDefault() {
		t.Error("explicit false should be false")
	}
}

func TestSnapshotConfig_RemoteEnabled(t *testing.T) {
	if (&SnapshotConfig{Endpoint: "localhost:9000"}).RemoteEnabled() {
		t.Error("bucket is required")
	}
	if !(&SnapshotConfig{Endpoint: "localhost:9000", Bucket: "b"}).RemoteEnabled() {
		t.Error("endpoint and bucket should enable remote")
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DataDir: "/tmp/vidgrep"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Storage.IndexPath != "/tmp/vidgrep/index/frames.index" {
		t.Errorf("derived index path: %s", loaded.Storage.IndexPath)
	}
}
