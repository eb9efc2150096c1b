package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	changes map[string]int
}

func (r *recorder) onChange(collection, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.changes == nil {
		r.changes = make(map[string]int)
	}
	r.changes[collection]++
}

func (r *recorder) count(collection string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[collection]
}

func startWatcher(t *testing.T, roots map[string]string, rec *recorder) *Watcher {
	t.Helper()
	w := New(roots, []string{".txt", ".pdf"}, rec.onChange, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_debouncesPerCollection(t *testing.T) {
	base := t.TempDir()
	kfe := filepath.Join(base, "KFE")
	lyn := filepath.Join(base, "Lynparza")
	for _, d := range []string{kfe, lyn} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatal(err)
		}
	}
	rec := &recorder{}
	startWatcher(t, map[string]string{"kfe": kfe, "lynparza": lyn}, rec)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		if err := os.WriteFile(filepath.Join(kfe, name), []byte("Darmkrebs"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	time.Sleep(300 * time.Millisecond)

	if n := rec.count("kfe"); n != 1 {
		t.Errorf("kfe changes = %d, want 1 after debounce", n)
	}
	if n := rec.count("lynparza"); n != 0 {
		t.Errorf("lynparza changes = %d, want 0", n)
	}
}

func TestWatcher_ignoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, map[string]string{"vu_gc": dir}, rec)

	if err := os.WriteFile(filepath.Join(dir, "notes.xyz"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := rec.count("vu_gc"); n != 0 {
		t.Errorf("changes = %d, want 0", n)
	}
}

func TestWatcher_newSubdirectory(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, map[string]string{"kfe": dir}, rec)

	nested := filepath.Join(dir, "2024", "broschueren")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(nested, "deep.txt"), []byte("Vorsorge"), 0600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if rec.count("kfe") < 1 {
		t.Error("expected a change for the new subdirectory")
	}
}

func TestWatcher_missingRootIsSkipped(t *testing.T) {
	base := t.TempDir()
	missing := filepath.Join(base, "VU GC")
	rec := &recorder{}
	w := startWatcher(t, map[string]string{"vu_gc": missing}, rec)

	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Errorf("watcher must not create source directories: %v", err)
	}
	if got := w.Directories()["vu_gc"]; got != missing {
		t.Errorf("Directories() = %v", w.Directories())
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.txt", []string{".txt"}, true},
		{"/a/b.TXT", []string{"txt"}, true},
		{"/a/b.md", []string{".txt"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		if got := matchExtension(tt.path, tt.extensions); got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.txt", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
