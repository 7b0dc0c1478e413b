package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/vidgrep/internal/cli"
	"github.com/hyperjump/vidgrep/internal/config"
	"github.com/hyperjump/vidgrep/internal/embedding"
	"github.com/hyperjump/vidgrep/internal/models"
	"github.com/hyperjump/vidgrep/internal/search"
	"github.com/hyperjump/vidgrep/internal/store"
)

func TestParseInterspersed(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		wantWords []string
		wantTopK  int
		wantLimit int
	}{
		{"flags after query", []string{"dog on a beach", "--top-k", "5"}, []string{"dog on a beach"}, 5, 0},
		{"flags first", []string{"--top-k", "5", "dog on a beach"}, []string{"dog on a beach"}, 5, 0},
		{"query only", []string{"dog", "on", "a", "beach"}, []string{"dog", "on", "a", "beach"}, 0, 0},
		{"empty args", []string{}, nil, 0, 0},
		{"flag between words keeps word order", []string{"red", "car", "--top-k", "5", "at", "night"}, []string{"red", "car", "at", "night"}, 5, 0},
		{"several flags interleaved", []string{"red", "-limit=2", "car", "--top-k", "9", "at"}, []string{"red", "car", "at"}, 9, 2},
		{"double dash ends flags", []string{"red", "--", "--top-k", "car"}, []string{"red", "--top-k", "car"}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("search", flag.ContinueOnError)
			topK := fs.Int("top-k", 0, "")
			limit := fs.Int("limit", 0, "")
			got, err := parseInterspersed(fs, tt.args)
			if err != nil {
				t.Fatalf("parseInterspersed() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.wantWords) {
				t.Errorf("words = %v, want %v", got, tt.wantWords)
			}
			if *topK != tt.wantTopK || *limit != tt.wantLimit {
				t.Errorf("top-k = %d, limit = %d, want %d, %d", *topK, *limit, tt.wantTopK, tt.wantLimit)
			}
		})
	}
}

func TestParseInterspersed_UnknownFlag(t *testing.T) {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := parseInterspersed(fs, []string{"red", "--bogus", "car"}); err == nil {
		t.Error("expected an error for an unknown flag")
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"sunset"}, "sunset"},
		{"multiple words", []string{"red", "car"}, "red car"},
		{"single quoted phrase", []string{"red car"}, "red car"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestFlagValueFromArgs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"absent", []string{"--limit", "5", "query"}, "text"},
		{"single dash", []string{"-output", "json", "query"}, "json"},
		{"double dash", []string{"query", "--output", "json"}, "json"},
		{"equals form", []string{"--output=json", "query"}, "json"},
		{"dangling flag", []string{"query", "--output"}, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := flagValueFromArgs(tt.args, "output", "text"); got != tt.want {
				t.Errorf("flagValueFromArgs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while configPath from t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_defaultsWhenNoFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	t.Chdir(t.TempDir())
	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for defaults", resolved)
	}
	if cfg.Search.TopK != 10 || cfg.Embedding.Dimensions != 512 {
		t.Errorf("defaults not applied: %+v", cfg.Search)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("explicit missing config should fail")
	}
}

func TestRun_VersionHelpUnknown(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"version"}, &stdout, &stderr); code != 0 || !strings.Contains(stdout.String(), "vidgrep version") {
		t.Errorf("version: code %d, out %q", code, stdout.String())
	}
	stdout.Reset()
	if code := run([]string{"help"}, &stdout, &stderr); code != 0 || !strings.Contains(stdout.String(), "Usage:") {
		t.Errorf("help: code %d", code)
	}
	if code := run([]string{"frobnicate"}, &stdout, &stderr); code != 1 {
		t.Errorf("unknown command: code %d, want 1", code)
	}
	if code := run(nil, &stdout, &stderr); code != 1 {
		t.Errorf("no command: code %d, want 1", code)
	}
}

const testDims = 8

// writeTestConfig writes a config using the mock embedder with all storage under a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`
storage:
  data_dir: %q
embedding:
  provider: mock
  dimensions: %d
`, filepath.Join(dir, "data"), testDims)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// seedStore inserts one frame per (video, timestamp, content) triple, embedding the
// content with the mock embedder so text queries match it exactly.
func seedStore(t *testing.T, configPath string, frames ...[3]string) {
	t.Helper()
	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	st, err := store.Open(store.Config{
		IndexPath:    cfg.Storage.IndexPath,
		MetadataPath: cfg.Storage.MetadataPath,
		Dimensions:   testDims,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	emb := embedding.NewMockEmbedder(testDims)
	payloads := make([][]byte, len(frames))
	records := make([]models.FrameRecord, len(frames))
	for i, f := range frames {
		var ts float64
		if _, err := fmt.Sscan(f[1], &ts); err != nil {
			t.Fatal(err)
		}
		payloads[i] = []byte(f[2])
		records[i] = models.FrameRecord{VideoID: f[0], Timestamp: ts}
	}
	vecs, err := emb.EmbedImages(context.Background(), payloads)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := st.InsertBatch(vecs, records); err != nil {
		t.Fatal(err)
	}
	if err := st.Save(); err != nil {
		t.Fatal(err)
	}
}

func runJSON(t *testing.T, out interface{}, args ...string) int {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	if out != nil {
		if err := json.Unmarshal(stdout.Bytes(), out); err != nil {
			t.Fatalf("%v: stdout is not JSON: %v\n%s\nstderr: %s", args, err, stdout.String(), stderr.String())
		}
	}
	return code
}

func TestRun_SearchEmptyIndexReturnsNoResults(t *testing.T) {
	cfgPath := writeTestConfig(t)
	var resp models.SearchResponse
	code := runJSON(t, &resp, "search", "--config", cfgPath, "--output", "json", "anything")
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if resp.Results == nil || len(resp.Results) != 0 || resp.Debug != search.EmptyIndexDebug {
		t.Errorf("response = %+v", resp)
	}

	var stdout, stderr bytes.Buffer
	if code := run([]string{"search", "--config", cfgPath, "anything"}, &stdout, &stderr); code != 0 {
		t.Fatalf("text exit code = %d, stderr: %s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "No results found.") {
		t.Errorf("text output = %q", stdout.String())
	}
}

func TestRun_SearchKeepsWordOrderAroundFlags(t *testing.T) {
	cfgPath := writeTestConfig(t)
	var resp models.SearchResponse
	if code := runJSON(t, &resp, "search", "red", "car", "--config", cfgPath, "--output", "json", "at", "night"); code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if resp.Query != "red car at night" {
		t.Errorf("query = %q, want %q", resp.Query, "red car at night")
	}
}

func TestRun_SearchDeleteStatus(t *testing.T) {
	cfgPath := writeTestConfig(t)
	seedStore(t, cfgPath,
		[3]string{"beach", "1", "a dog"},
		[3]string{"beach", "3", "a dog"},
		[3]string{"beach", "20", "a dog"},
		[3]string{"city", "5", "a car"},
	)

	var resp models.SearchResponse
	if code := runJSON(t, &resp, "search", "a", "dog", "--config", cfgPath, "--output", "json", "--no-render"); code != 0 {
		t.Fatalf("search exit code = %d", code)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("results = %d, want 3 (t=3 deduplicated)", len(resp.Results))
	}
	first := resp.Results[0]
	if first.VideoID != "beach" || first.Rank != 1 || first.Identifier == "" || first.ClipAvailable {
		t.Errorf("first result = %+v", first)
	}

	var del cli.DeleteResult
	if code := runJSON(t, &del, "delete", "--config", cfgPath, "--output", "json", "ghost"); code != 0 {
		t.Fatalf("delete unknown exit code = %d", code)
	}
	if !del.OK || del.Removed != 0 || del.Remaining != 4 {
		t.Errorf("delete unknown = %+v", del)
	}
	if code := runJSON(t, &del, "delete", "--config", cfgPath, "--output", "json", "beach"); code != 0 {
		t.Fatalf("delete exit code = %d", code)
	}
	if del.Removed != 3 || del.Remaining != 1 {
		t.Errorf("delete beach = %+v", del)
	}

	var status cli.Status
	if code := runJSON(t, &status, "status", "--config", cfgPath, "--output", "json"); code != 0 {
		t.Fatalf("status exit code = %d", code)
	}
	if status.TotalRows != 1 || status.UniqueVideoCount != 1 || status.Dimension != testDims || status.IndexType != "flat" {
		t.Errorf("status = %+v", status)
	}

	var videos []models.Video
	if code := runJSON(t, &videos, "videos", "--config", cfgPath, "--output", "json"); code != 0 {
		t.Fatalf("videos exit code = %d", code)
	}
	if len(videos) != 0 {
		t.Errorf("catalog should be empty for seeded rows, got %v", videos)
	}
}

func TestRun_SnapshotExportRestore(t *testing.T) {
	cfgPath := writeTestConfig(t)
	seedStore(t, cfgPath, [3]string{"beach", "1", "a dog"}, [3]string{"city", "2", "a car"})

	var stdout, stderr bytes.Buffer
	if code := run([]string{"snapshot", "export", "--config", cfgPath}, &stdout, &stderr); code != 0 {
		t.Fatalf("export exit code = %d: %s", code, stderr.String())
	}
	archive, ok := strings.CutPrefix(strings.TrimSpace(stdout.String()), "Exported: ")
	if !ok {
		t.Fatalf("export output = %q", stdout.String())
	}

	var del cli.DeleteResult
	if code := runJSON(t, &del, "delete", "--config", cfgPath, "--output", "json", "beach"); code != 0 || del.Remaining != 1 {
		t.Fatalf("delete: code %d, %+v", code, del)
	}

	stdout.Reset()
	if code := run([]string{"snapshot", "restore", "--config", cfgPath, archive}, &stdout, &stderr); code != 0 {
		t.Fatalf("restore exit code = %d: %s", code, stderr.String())
	}
	var status cli.Status
	if code := runJSON(t, &status, "status", "--config", cfgPath, "--output", "json"); code != 0 {
		t.Fatalf("status exit code = %d", code)
	}
	if status.TotalRows != 2 || status.UniqueVideoCount != 2 {
		t.Errorf("restored status = %+v", status)
	}
}

func TestRun_SnapshotRemoteNotConfigured(t *testing.T) {
	cfgPath := writeTestConfig(t)
	var stdout, stderr bytes.Buffer
	if code := run([]string{"snapshot", "list", "--config", cfgPath}, &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "snapshot.endpoint") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRun_IngestRequiresInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"ingest", "--output", "json"}, &stdout, &stderr); code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
	var payload cli.ErrorPayload
	if err := json.Unmarshal(stdout.Bytes(), &payload); err != nil || payload.OK {
		t.Errorf("payload = %q", stdout.String())
	}
}
