package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (r *recorder) VideoChanged(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, filepath.Base(path))
}

func (r *recorder) VideoRemoved(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, filepath.Base(path))
}

func (r *recorder) snapshot() (changed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.changed), slices.Clone(r.removed)
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

var videoExts = []string{".mp4", ".mkv"}

func startWatcher(t *testing.T, cfg Config, h Handler) *Watcher {
	t.Helper()
	if cfg.Debounce == 0 {
		cfg.Debounce = 50 * time.Millisecond
	}
	w := New(cfg, h)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		w.Stop()
		cancel()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return w
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_ChangeDebouncedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, Config{Roots: []string{dir}, Extensions: videoExts, Recursive: true}, rec)

	p := filepath.Join(dir, "clip.mp4")
	writeFile(t, p, "a")
	writeFile(t, p, "ab")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")

	eventually(t, func() bool {
		changed, _ := rec.snapshot()
		return len(changed) >= 1
	})
	time.Sleep(150 * time.Millisecond)
	changed, _ := rec.snapshot()
	if len(changed) != 1 || changed[0] != "clip.mp4" {
		t.Errorf("changed = %v, want one clip.mp4", changed)
	}
}

func TestWatcher_Remove(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "old.mkv")
	writeFile(t, p, "v")
	rec := &recorder{}
	startWatcher(t, Config{Roots: []string{dir}, Extensions: videoExts, Recursive: true}, rec)

	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, removed := rec.snapshot()
		return slices.Contains(removed, "old.mkv")
	})
}

func TestWatcher_NewDirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, Config{Roots: []string{dir}, Extensions: videoExts, Recursive: true}, rec)

	nested := filepath.Join(dir, "2026", "march")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	// Give the watcher a moment to add the new directories before writing into them.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, filepath.Join(nested, "deep.mp4"), "v")

	eventually(t, func() bool {
		changed, _ := rec.snapshot()
		return slices.Contains(changed, "deep.mp4")
	})
}

func TestWatcher_SyncExistingFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp4"), "v")
	writeFile(t, filepath.Join(dir, "sub", "b.mkv"), "v")
	writeFile(t, filepath.Join(dir, "ignore.txt"), "x")

	rec := &recorder{}
	w := startWatcher(t, Config{Roots: []string{dir}, Extensions: videoExts, Recursive: false}, rec)
	w.SyncExistingFiles()

	changed, _ := rec.snapshot()
	if !slices.Equal(changed, []string{"a.mp4"}) {
		t.Errorf("non-recursive sync = %v, want [a.mp4]", changed)
	}
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(t.TempDir(), "created", "later")
	rec := &recorder{}
	w := startWatcher(t, Config{Roots: []string{dir}, Extensions: videoExts, Recursive: true}, rec)

	if err := w.AddDirectory(other, false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(other); err != nil {
		t.Errorf("added root should be created: %v", err)
	}
	if err := w.AddDirectory(other, false); err != nil {
		t.Fatal(err)
	}
	if got := w.Directories(); len(got) != 2 {
		t.Errorf("Directories() = %v", got)
	}
	if err := w.RemoveDirectory(other); err != nil {
		t.Fatal(err)
	}
	if got := w.Directories(); len(got) != 1 || got[0] != filepath.Clean(dir) {
		t.Errorf("after remove: %v", got)
	}
}

func TestHandlerFuncs(t *testing.T) {
	var changed, removed string
	h := HandlerFuncs{
		OnChange: func(p string) { changed = p },
		OnRemove: func(p string) { removed = p },
	}
	h.VideoChanged("a")
	h.VideoRemoved("b")
	if changed != "a" || removed != "b" {
		t.Errorf("changed=%q removed=%q", changed, removed)
	}
	HandlerFuncs{}.VideoChanged("ignored")
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.mp4", videoExts, true},
		{"/a/b.MKV", videoExts, true},
		{"/a/b.txt", videoExts, false},
		{"/a/b", videoExts, false},
		{"/a/b", nil, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir, path string
		want      bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.mp4", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/ab", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
